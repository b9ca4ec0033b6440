package analysis

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
)

// NoiseAnalysis computes the output voltage noise PSD at a node. With an
// input source it also refers the noise to that source through its gain.
type NoiseAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	output      string
	source      string
	frequencies []float64
}

func NewNoise(output, source string, sweep Sweep, opts ...Option) (*NoiseAnalysis, error) {
	if output == "" {
		return nil, errors.New("noise analysis needs an output node")
	}
	if err := sweep.validate(); err != nil {
		return nil, err
	}
	return &NoiseAnalysis{
		BaseAnalysis: *NewBaseAnalysis(opts...),
		op:           NewOP(opts...),
		output:       output,
		source:       source,
		frequencies:  sweep.frequencies(),
	}, nil
}

func (na *NoiseAnalysis) Setup(ckt circuit.Device[float64]) error {
	if err := na.BaseAnalysis.Setup(ckt); err != nil {
		return err
	}
	if _, err := ckt.Node(na.output); err != nil {
		return errors.Wrapf(err, "noise output %s", na.output)
	}
	if na.source != "" {
		if _, err := sourceValue(ckt, na.source); err != nil {
			return errors.Wrapf(err, "noise source %s", na.source)
		}
	}
	return na.op.Setup(ckt)
}

func (na *NoiseAnalysis) Execute() (err error) {
	if na.Circuit == nil {
		return ErrCircuitNotSet
	}
	defer func(start time.Time) { observeRun(NZ, start, err) }(time.Now())

	ckt := na.Circuit
	if err := na.op.Execute(); err != nil {
		return errors.Wrap(err, "operating point analysis error")
	}
	x := na.op.Solution()

	lin, err := na.linearize(ckt, x)
	if err != nil {
		return err
	}
	cy, err := ckt.CY(x, na.env.KT(), na.env)
	if err != nil {
		return err
	}
	reduced, err := matrix.RemoveRowCol(lin.ref, cy)
	if err != nil {
		return err
	}
	cy = reduced[0]

	out, err := na.outputVector(ckt, lin.ref)
	if err != nil {
		return err
	}
	var unit []float64
	if na.source != "" {
		if unit, err = na.unitExcitation(ckt, lin.ref); err != nil {
			return err
		}
	}

	for _, freq := range na.frequencies {
		// Adjoint system: z holds the transfer from a current injected at
		// every unknown to the output voltage.
		z, err := matrix.SolveComplex(lin.at(freq).Transpose(), out)
		if err != nil {
			return errors.Wrapf(err, "adjoint solve error at f=%g", freq)
		}

		var s complex128
		for i := range z {
			for j := range z {
				s += cmplx.Conj(z[i]) * complex(cy.At(i, j), 0) * z[j]
			}
		}
		onoise := real(s)

		na.results["FREQ"] = append(na.results["FREQ"], freq)
		na.results["ONOISE"] = append(na.results["ONOISE"], onoise)

		if unit != nil {
			// x = -A⁻¹u, so v(out) = -zᵀu.
			var h complex128
			for i, v := range unit {
				h -= z[i] * complex(v, 0)
			}
			gain := cmplx.Abs(h)
			na.results["GAIN"] = append(na.results["GAIN"], gain)
			inoise := math.Inf(1)
			if gain != 0 {
				inoise = onoise / (gain * gain)
			}
			na.results["INOISE"] = append(na.results["INOISE"], inoise)
		}
		sweepPoints.WithLabelValues(NZ).Inc()
	}
	na.logger.Info("noise analysis done", "points", len(na.frequencies), "output", na.output)
	return nil
}

// outputVector is the reduced unit vector selecting the output node.
func (na *NoiseAnalysis) outputVector(ckt circuit.Device[float64], ref int) ([]complex128, error) {
	id, err := ckt.Node(na.output)
	if err != nil {
		return nil, err
	}
	k, err := ckt.NodeIndex(id)
	if err != nil {
		return nil, err
	}
	if k == ref {
		return nil, errors.Errorf("noise output %s is the reference node", na.output)
	}
	e := make([]complex128, ckt.N())
	e[k] = 1
	return matrix.RemoveEntry(ref, e)
}

// unitExcitation is the reduced U contribution of the input source at value 1.
func (na *NoiseAnalysis) unitExcitation(ckt circuit.Device[float64], ref int) ([]float64, error) {
	on, err := withValue(ckt, na.source, 1)
	if err != nil {
		return nil, err
	}
	off, err := withValue(ckt, na.source, 0)
	if err != nil {
		return nil, err
	}
	u1, err := on.U(0, na.env)
	if err != nil {
		return nil, err
	}
	u0, err := off.U(0, na.env)
	if err != nil {
		return nil, err
	}
	for i := range u1 {
		u1[i] -= u0[i]
	}
	return matrix.RemoveEntry(ref, u1)
}
