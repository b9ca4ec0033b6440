package device

import (
	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// Diode is an ideal exponential junction, Id = Is·(exp(Vd/(n·Vt)) - 1).
type Diode[T any] struct {
	circuit.Base[T]
}

func NewDiode[T any](a *circuit.Arena, f scalar.Field[T], is T) *Diode[T] {
	return newDiode(a, f, map[string]T{"is": is})
}

// newDiode takes "is" and an optional emission coefficient "n".
func newDiode[T any](a *circuit.Arena, f scalar.Field[T], params map[string]T) *Diode[T] {
	p := make(map[string]T, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if _, ok := p["n"]; !ok {
		p["n"] = f.One()
	}
	return &Diode[T]{Base: circuit.NewBase("D", a, f, twoTerminals, p)}
}

func (d *Diode[T]) Copy() circuit.Device[T] {
	return &Diode[T]{Base: d.Base.Clone()}
}

func (d *Diode[T]) IsNonlinear() bool { return true }

func thermalVoltage(env *circuit.Env) float64 {
	return consts.BOLTZMANN * env.Temperature() / consts.CHARGE
}

// junction returns the local terminal indices, exp(Vd/(n·Vt)) and n·Vt.
func (d *Diode[T]) junction(x []T, env *circuit.Env) ([]int, T, T, error) {
	f := d.Field()
	idx, err := d.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, f.Zero(), f.Zero(), err
	}
	if err := circuit.CheckState[T](d, x); err != nil {
		return nil, f.Zero(), f.Zero(), err
	}

	vt := f.Mul(d.Param("n"), f.FromFloat(thermalVoltage(env)))
	vd := f.Sub(at(f, x, idx[0]), at(f, x, idx[1]))
	return idx, f.Exp(f.Div(vd, vt)), vt, nil
}

func (d *Diode[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, ex, vt, err := d.junction(x, env)
	if err != nil {
		return nil, err
	}

	f := d.Field()
	g := f.Div(f.Mul(d.Param("is"), ex), vt)
	m := d.Zeros()
	stampConductance(f, m, idx[0], idx[1], g)
	return m, nil
}

func (d *Diode[T]) current(x []T, env *circuit.Env) ([]int, T, error) {
	f := d.Field()
	idx, ex, _, err := d.junction(x, env)
	if err != nil {
		return nil, f.Zero(), err
	}
	return idx, f.Mul(d.Param("is"), f.Sub(ex, f.One())), nil
}

func (d *Diode[T]) I(x []T, env *circuit.Env) ([]T, error) {
	idx, id, err := d.current(x, env)
	if err != nil {
		return nil, err
	}

	f := d.Field()
	i := matrix.Zeros(f, d.N())
	i[idx[0]] = f.Add(i[idx[0]], id)
	i[idx[1]] = f.Sub(i[idx[1]], id)
	return i, nil
}

// CY is the shot noise current, 2·q·Id.
func (d *Diode[T]) CY(x []T, kT T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, id, err := d.current(x, env)
	if err != nil {
		return nil, err
	}

	f := d.Field()
	m := d.Zeros()
	stampConductance(f, m, idx[0], idx[1], f.Mul(f.FromFloat(2*consts.CHARGE), id))
	return m, nil
}
