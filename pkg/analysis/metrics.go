package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts analysis runs by kind and result
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnasim_analysis_runs_total",
		Help: "Total analysis runs by analysis kind and result",
	}, []string{"analysis", "result"})

	// runDuration tracks wall time per analysis run
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mnasim_analysis_duration_seconds",
		Help:    "Analysis run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"analysis"})

	// newtonIterations tracks iterations per converged Newton solve
	newtonIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mnasim_newton_iterations",
		Help:    "Newton iterations per converged DC solve",
		Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
	})

	// gminSteppingTotal counts DC solves that fell back to gmin stepping
	gminSteppingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mnasim_gmin_stepping_total",
		Help: "Total DC solves that needed gmin stepping",
	})

	// sweepPoints counts solved sweep points by analysis kind
	sweepPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnasim_sweep_points_total",
		Help: "Total solved sweep points by analysis kind",
	}, []string{"analysis"})
)

func observeRun(kind string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	runsTotal.WithLabelValues(kind, result).Inc()
	runDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
