package analysis

import (
	"io"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/matrix"
)

// PrintSystem writes the reduced system the solver sees at state x. With
// freq zero that is one Newton step, G·dx = -(i(x)+U); otherwise the AC
// system (G + j·2πf·C)·x = -U. A nil x means the zero state.
func (a *BaseAnalysis) PrintSystem(w io.Writer, x []float64, freq float64) error {
	ckt := a.Circuit
	if ckt == nil {
		return ErrCircuitNotSet
	}
	if x == nil {
		x = make([]float64, ckt.N())
	}
	ref, err := a.refIndex(ckt)
	if err != nil {
		return err
	}
	keys, err := matrix.RemoveEntry(ref, a.solutionKeys(ckt))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return errors.Wrap(matrix.ErrShape, "circuit has no unknowns besides the reference")
	}

	mat, err := matrix.NewMatrix(len(keys), freq != 0)
	if err != nil {
		return err
	}
	defer mat.Destroy()

	if freq == 0 {
		g, r, err := a.residual(ckt, x)
		if err != nil {
			return err
		}
		reduced, err := matrix.RemoveRowCol(ref, g)
		if err != nil {
			return err
		}
		rhs, err := matrix.RemoveEntry(ref, r)
		if err != nil {
			return err
		}
		for i := range rhs {
			rhs[i] = -rhs[i]
		}
		if err := mat.LoadReal(reduced[0], rhs); err != nil {
			return err
		}
	} else {
		lin, err := a.linearize(ckt, x)
		if err != nil {
			return err
		}
		u, err := ckt.U(0, a.env)
		if err != nil {
			return err
		}
		rhs := make([]complex128, 0, len(u)-1)
		for i, v := range u {
			if i != ref {
				rhs = append(rhs, complex(-v, 0))
			}
		}
		if err := mat.LoadComplex(lin.at(freq), rhs); err != nil {
			return err
		}
	}

	mat.Fprint(w, keys)
	return nil
}
