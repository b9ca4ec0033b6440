package analysis

import (
	"log/slog"
	"math"
	"math/cmplx"
	"time"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/feedback"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var (
	ErrOperatingPointRequired = errors.New("nonlinear circuit needs an operating point")
	ErrSingularBrokenLoop     = errors.New("broken-loop matrix is singular")
)

// LoopGain is the outcome of a return difference calculation.
type LoopGain[T any] struct {
	DetG      T // det(G) of the intact circuit
	DetBroken T // det(G) with the controlled source neutralised
	F         T // return difference, DetG/DetBroken
	Ratio     T // return ratio, F-1
	Gain      T // loop gain, -T
}

// Feedback computes the loop gain around one controlled source: the target
// instance is replaced on a copy of the circuit by a LoopBreaker, and the
// ratio of the two determinants is the return difference. It works on any
// scalar field.
type Feedback[T any] struct {
	Target  string    // instance path of the controlled source
	Port    [4]string // inp, inn, outp, outn as named by the target
	RefNode string
	Env     *circuit.Env
	// OpPoint is the state vector G is evaluated at. Nil means zero, which
	// only linear circuits accept.
	OpPoint []T
	Logger  *slog.Logger
}

// NewFeedback targets a VCCS-like instance through its own terminal names.
func NewFeedback[T any](target string) *Feedback[T] {
	return &Feedback[T]{
		Target:  target,
		Port:    [4]string{"inp", "inn", "outp", "outn"},
		RefNode: circuit.GroundName,
		Env:     circuit.DefaultEnv(),
		Logger:  slog.Default(),
	}
}

// Broken returns a copy of ckt whose target is wrapped in a LoopBreaker.
func (fb *Feedback[T]) Broken(ckt *circuit.SubCircuit[T]) (*circuit.SubCircuit[T], error) {
	cp, err := asSubCircuit(ckt.Copy())
	if err != nil {
		return nil, err
	}
	target, err := cp.Instance(fb.Target)
	if err != nil {
		return nil, err
	}
	lb, err := feedback.NewLoopBreaker(target, fb.Port[0], fb.Port[1], fb.Port[2], fb.Port[3])
	if err != nil {
		return nil, err
	}
	if err := cp.ReplaceInstance(fb.Target, lb); err != nil {
		return nil, err
	}
	return cp, nil
}

// Reduced returns G of the intact and the broken circuit at the operating
// point, both with the reference row and column removed.
func (fb *Feedback[T]) Reduced(ckt *circuit.SubCircuit[T]) (g, broken *matrix.Dense[T], err error) {
	if fb.OpPoint == nil && ckt.IsNonlinear() {
		return nil, nil, ErrOperatingPointRequired
	}
	cp, err := fb.Broken(ckt)
	if err != nil {
		return nil, nil, err
	}

	ref, err := refIndex[T](ckt, fb.RefNode)
	if err != nil {
		return nil, nil, err
	}
	g, err = ckt.G(fb.OpPoint, fb.Env)
	if err != nil {
		return nil, nil, err
	}
	broken, err = cp.G(fb.OpPoint, fb.Env)
	if err != nil {
		return nil, nil, err
	}
	reduced, err := matrix.RemoveRowCol(ref, g, broken)
	if err != nil {
		return nil, nil, err
	}
	return reduced[0], reduced[1], nil
}

func (fb *Feedback[T]) Run(ckt *circuit.SubCircuit[T]) (lg *LoopGain[T], err error) {
	defer func(start time.Time) { observeRun(LG, start, err) }(time.Now())

	g, broken, err := fb.Reduced(ckt)
	if err != nil {
		return nil, err
	}
	f := ckt.Field()
	lg, err = returnDifference(f, g, broken)
	if err != nil {
		return nil, err
	}
	if fb.Logger != nil {
		fb.Logger.Debug("return difference", "target", fb.Target, "F", f.Format(lg.F))
	}
	return lg, nil
}

func returnDifference[T any](f scalar.Field[T], g, broken *matrix.Dense[T]) (*LoopGain[T], error) {
	det, err := matrix.Det(f, g)
	if err != nil {
		return nil, err
	}
	detBroken, err := matrix.Det(f, broken)
	if err != nil {
		return nil, err
	}
	if f.IsZero(detBroken) {
		return nil, ErrSingularBrokenLoop
	}

	ratio := f.Div(det, detBroken)
	t := f.Sub(ratio, f.One())
	return &LoopGain[T]{
		DetG:      det,
		DetBroken: detBroken,
		F:         ratio,
		Ratio:     t,
		Gain:      f.Neg(t),
	}, nil
}

func refIndex[T any](ckt circuit.Device[T], name string) (int, error) {
	id, err := ckt.Node(name)
	if err != nil {
		return 0, errors.Wrapf(err, "reference node %q", name)
	}
	idx, err := ckt.NodeIndex(id)
	if err != nil {
		return 0, errors.Wrapf(err, "reference node %q", name)
	}
	return idx, nil
}

// LoopGainAnalysis is the numeric driver around Feedback. Nonlinear circuits
// are linearised at their operating point first. With a sweep it evaluates
// the loop gain of G + j·2πf·C at every frequency.
type LoopGainAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	target      string
	port        [4]string
	frequencies []float64
	gains       []complex128
}

func NewLoopGain(target string, port [4]string, opts ...Option) *LoopGainAnalysis {
	return &LoopGainAnalysis{
		BaseAnalysis: *NewBaseAnalysis(opts...),
		op:           NewOP(opts...),
		target:       target,
		port:         port,
	}
}

// NewLoopGainAC is the frequency-domain variant.
func NewLoopGainAC(target string, port [4]string, sweep Sweep, opts ...Option) (*LoopGainAnalysis, error) {
	if err := sweep.validate(); err != nil {
		return nil, err
	}
	lg := NewLoopGain(target, port, opts...)
	lg.frequencies = sweep.frequencies()
	return lg, nil
}

func (lg *LoopGainAnalysis) Setup(ckt circuit.Device[float64]) error {
	if err := lg.BaseAnalysis.Setup(ckt); err != nil {
		return err
	}
	top, err := asSubCircuit(ckt)
	if err != nil {
		return err
	}
	if _, err := top.Instance(lg.target); err != nil {
		return errors.Wrapf(err, "loop gain target %s", lg.target)
	}
	return lg.op.Setup(ckt)
}

// Gains returns the loop gain per point: one value for the DC variant, one
// per frequency otherwise.
func (lg *LoopGainAnalysis) Gains() []complex128 {
	return append([]complex128(nil), lg.gains...)
}

func (lg *LoopGainAnalysis) Execute() (err error) {
	if lg.Circuit == nil {
		return ErrCircuitNotSet
	}
	kind := LG
	if lg.frequencies != nil {
		kind = LGA
	}
	defer func(start time.Time) { observeRun(kind, start, err) }(time.Now())

	top, err := asSubCircuit(lg.Circuit)
	if err != nil {
		return err
	}

	fb := &Feedback[float64]{
		Target:  lg.target,
		Port:    lg.port,
		RefNode: lg.refNode,
		Env:     lg.env,
		Logger:  lg.logger,
	}
	if top.IsNonlinear() {
		if err := lg.op.Execute(); err != nil {
			return errors.Wrap(err, "operating point analysis error")
		}
		fb.OpPoint = lg.op.Solution()
	}

	if lg.frequencies == nil {
		g, broken, err := fb.Reduced(top)
		if err != nil {
			return err
		}
		res, err := returnDifference[float64](scalar.Real{}, g, broken)
		if err != nil {
			return err
		}
		lg.gains = append(lg.gains, complex(res.Gain, 0))
		lg.results["LOOPGAIN"] = []float64{res.Gain}
		lg.results["F"] = []float64{res.F}
		lg.results["T"] = []float64{res.Ratio}
		lg.logger.Info("loop gain", "target", lg.target, "gain", res.Gain)
		return nil
	}

	return lg.sweep(fb, top)
}

func (lg *LoopGainAnalysis) sweep(fb *Feedback[float64], top *circuit.SubCircuit[float64]) error {
	g, gBroken, err := fb.Reduced(top)
	if err != nil {
		return err
	}
	broken, err := fb.Broken(top)
	if err != nil {
		return err
	}
	ref, err := lg.refIndex(top)
	if err != nil {
		return err
	}
	c, err := top.C(fb.OpPoint, lg.env)
	if err != nil {
		return err
	}
	cBroken, err := broken.C(fb.OpPoint, lg.env)
	if err != nil {
		return err
	}
	reduced, err := matrix.RemoveRowCol(ref, c, cBroken)
	if err != nil {
		return err
	}

	f := scalar.Complex{}
	for _, freq := range lg.frequencies {
		omega := 2 * math.Pi * freq
		res, err := returnDifference[complex128](f, admittance(g, reduced[0], omega), admittance(gBroken, reduced[1], omega))
		if err != nil {
			return errors.Wrapf(err, "loop gain at f=%g", freq)
		}
		lg.gains = append(lg.gains, res.Gain)
		lg.results["FREQ"] = append(lg.results["FREQ"], freq)
		lg.results["LOOPGAIN_MAG"] = append(lg.results["LOOPGAIN_MAG"], cmplx.Abs(res.Gain))
		lg.results["LOOPGAIN_PHASE"] = append(lg.results["LOOPGAIN_PHASE"], cmplx.Phase(res.Gain)*180.0/math.Pi)
		sweepPoints.WithLabelValues(LGA).Inc()
	}
	lg.logger.Info("loop gain sweep done", "target", lg.target, "points", len(lg.frequencies))
	return nil
}
