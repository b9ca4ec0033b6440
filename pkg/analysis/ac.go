package analysis

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// Sweep describes the frequency points of an AC-type analysis.
type Sweep struct {
	StartFreq  float64
	StopFreq   float64
	NumPoints  int
	PointsType string // "DEC", "OCT", "LIN"
}

func (s Sweep) validate() error {
	if s.NumPoints < 1 {
		return errors.Errorf("sweep needs at least one point, got %d", s.NumPoints)
	}
	if s.PointsType != "LIN" && (s.StartFreq <= 0 || s.StopFreq <= 0) {
		return errors.Errorf("%s sweep needs positive frequencies", s.PointsType)
	}
	switch s.PointsType {
	case "DEC", "OCT", "LIN":
		return nil
	}
	return errors.Errorf("unknown sweep type %q", s.PointsType)
}

func (s Sweep) frequencies() []float64 {
	freqs := make([]float64, s.NumPoints)
	if s.NumPoints == 1 {
		freqs[0] = s.StartFreq
		return freqs
	}

	switch s.PointsType {
	case "DEC": // Decade
		logStart := math.Log10(s.StartFreq)
		logStop := math.Log10(s.StopFreq)
		step := (logStop - logStart) / float64(s.NumPoints-1)
		for i := range s.NumPoints {
			freqs[i] = math.Pow(10, logStart+float64(i)*step)
		}

	case "OCT": // Octave
		logStart := math.Log2(s.StartFreq)
		logStop := math.Log2(s.StopFreq)
		step := (logStop - logStart) / float64(s.NumPoints-1)
		for i := range s.NumPoints {
			freqs[i] = math.Pow(2, logStart+float64(i)*step)
		}

	case "LIN": // Linear
		step := (s.StopFreq - s.StartFreq) / float64(s.NumPoints-1)
		for i := range s.NumPoints {
			freqs[i] = s.StartFreq + float64(i)*step
		}
	}
	return freqs
}

type ACAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	sweep       Sweep
	frequencies []float64
}

func NewAC(sweep Sweep, opts ...Option) (*ACAnalysis, error) {
	if err := sweep.validate(); err != nil {
		return nil, err
	}
	return &ACAnalysis{
		BaseAnalysis: *NewBaseAnalysis(opts...),
		op:           NewOP(opts...),
		sweep:        sweep,
		frequencies:  sweep.frequencies(),
	}, nil
}

func (ac *ACAnalysis) Setup(ckt circuit.Device[float64]) error {
	if err := ac.BaseAnalysis.Setup(ckt); err != nil {
		return err
	}
	if err := ac.op.Setup(ckt); err != nil {
		return errors.Wrap(err, "operating point setup error")
	}
	return nil
}

func (ac *ACAnalysis) Frequencies() []float64 {
	return append([]float64(nil), ac.frequencies...)
}

func (ac *ACAnalysis) Execute() (err error) {
	if ac.Circuit == nil {
		return ErrCircuitNotSet
	}
	defer func(start time.Time) { observeRun(AC, start, err) }(time.Now())

	if err := ac.op.Execute(); err != nil {
		return errors.Wrap(err, "operating point analysis error")
	}
	lin, err := ac.linearize(ac.Circuit, ac.op.Solution())
	if err != nil {
		return err
	}
	u, err := ac.Circuit.U(0, ac.env)
	if err != nil {
		return err
	}
	rhs := make([]complex128, len(u))
	for i, v := range u {
		rhs[i] = complex(-v, 0)
	}
	rhs, err = matrix.RemoveEntry(lin.ref, rhs)
	if err != nil {
		return err
	}

	mat, err := matrix.NewMatrix(ac.Circuit.N()-1, true)
	if err != nil {
		return err
	}
	defer mat.Destroy()

	keys := ac.solutionKeys(ac.Circuit)
	for _, freq := range ac.frequencies {
		if err := mat.LoadComplex(lin.at(freq), rhs); err != nil {
			return err
		}
		if err := mat.Solve(); err != nil {
			return errors.Wrapf(err, "matrix solve error at f=%g", freq)
		}
		x := matrix.InsertEntry(lin.ref, mat.ComplexSolution(), 0)
		ac.StoreACResult(freq, keys, x)
		sweepPoints.WithLabelValues(AC).Inc()
		ac.logger.Debug("ac point", "freq", freq)
	}
	ac.logger.Info("ac analysis done", "points", len(ac.frequencies))
	return nil
}

// linear holds G and C at an operating point with the reference row and
// column removed.
type linear struct {
	ref  int
	g, c *matrix.Dense[float64]
}

func (a *BaseAnalysis) linearize(ckt circuit.Device[float64], x []float64) (*linear, error) {
	ref, err := a.refIndex(ckt)
	if err != nil {
		return nil, err
	}
	g, err := ckt.G(x, a.env)
	if err != nil {
		return nil, err
	}
	c, err := ckt.C(x, a.env)
	if err != nil {
		return nil, err
	}
	reduced, err := matrix.RemoveRowCol(ref, g, c)
	if err != nil {
		return nil, err
	}
	return &linear{ref: ref, g: reduced[0], c: reduced[1]}, nil
}

// at returns G + j·2πf·C.
func (l *linear) at(freq float64) *matrix.Dense[complex128] {
	return admittance(l.g, l.c, 2*math.Pi*freq)
}

func admittance(g, c *matrix.Dense[float64], omega float64) *matrix.Dense[complex128] {
	n := g.Rows()
	y := matrix.NewSquare[complex128](scalar.Complex{}, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			y.Set(i, j, complex(g.At(i, j), omega*c.At(i, j)))
		}
	}
	return y
}
