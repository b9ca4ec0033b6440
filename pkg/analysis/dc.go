package analysis

import (
	"time"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
)

// DCSweep steps the value of up to two primitives (usually sources) and
// solves the operating point at every combination. The second source is the
// inner loop.
type DCSweep struct {
	BaseAnalysis
	sourceNames []string    // Instance paths of the swept primitives
	startVals   []float64   // Start values for each source
	stopVals    []float64   // Stop values for each source
	increments  []float64   // Incremental value of steps for each source
	sweepVals   [][]float64 // Generated sweep values for each source
}

func NewDCSweep(sources []string, starts, stops, increments []float64, opts ...Option) (*DCSweep, error) {
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(increments) {
		return nil, errors.New("inconsistent parameter lengths")
	}
	if len(sources) == 0 || len(sources) > 2 {
		return nil, errors.Errorf("unsupported number of sweep sources: %d", len(sources))
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(opts...),
		sourceNames:  sources,
		startVals:    starts,
		stopVals:     stops,
		increments:   increments,
		sweepVals:    make([][]float64, len(sources)),
	}

	// Generate sweep values for each source
	for i := range sources {
		if increments[i] == 0 || (stops[i]-starts[i])/increments[i] < 0 {
			return nil, errors.Errorf("sweep of %s never reaches %g from %g by %g", sources[i], stops[i], starts[i], increments[i])
		}
		n := int((stops[i]-starts[i])/increments[i]+1e-9) + 1
		sweep := make([]float64, n)
		for k := range sweep {
			sweep[k] = starts[i] + float64(k)*increments[i]
		}
		dc.sweepVals[i] = sweep
	}

	return dc, nil
}

func (dc *DCSweep) Setup(ckt circuit.Device[float64]) error {
	if err := dc.BaseAnalysis.Setup(ckt); err != nil {
		return err
	}
	for _, name := range dc.sourceNames {
		if _, err := sourceValue(ckt, name); err != nil {
			return errors.Wrapf(err, "sweep source %s", name)
		}
	}
	return nil
}

func (dc *DCSweep) Execute() (err error) {
	if dc.Circuit == nil {
		return ErrCircuitNotSet
	}
	defer func(start time.Time) { observeRun(DC, start, err) }(time.Now())

	keys := dc.solutionKeys(dc.Circuit)

	if len(dc.sourceNames) == 1 {
		var x []float64
		for _, val := range dc.sweepVals[0] {
			x, err = dc.solveAt([]float64{val}, x)
			if err != nil {
				return err
			}
			dc.results["SWEEP1"] = append(dc.results["SWEEP1"], val)
			dc.StoreResult(keys, x)
		}
		dc.logger.Info("dc sweep done", "points", len(dc.sweepVals[0]))
		return nil
	}

	// Nested sweep
	for _, val1 := range dc.sweepVals[0] {
		var x []float64
		for _, val2 := range dc.sweepVals[1] {
			x, err = dc.solveAt([]float64{val1, val2}, x)
			if err != nil {
				return err
			}
			dc.results["SWEEP1"] = append(dc.results["SWEEP1"], val1)
			dc.results["SWEEP2"] = append(dc.results["SWEEP2"], val2)
			dc.StoreResult(keys, x)
		}
	}
	dc.logger.Info("dc sweep done", "points", len(dc.sweepVals[0])*len(dc.sweepVals[1]))
	return nil
}

// solveAt solves the circuit with the swept sources at vals, starting Newton
// from the previous point.
func (dc *DCSweep) solveAt(vals, prev []float64) ([]float64, error) {
	ckt := dc.Circuit
	for i, val := range vals {
		next, err := withValue(ckt, dc.sourceNames[i], val)
		if err != nil {
			return nil, err
		}
		ckt = next
	}

	x, err := dc.solveDC(ckt, prev)
	if err != nil {
		return nil, errors.Wrapf(err, "convergence error at %s=%g", dc.sourceNames[len(vals)-1], vals[len(vals)-1])
	}
	sweepPoints.WithLabelValues(DC).Inc()
	return x, nil
}
