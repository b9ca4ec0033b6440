package device

import (
	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

type Resistor[T any] struct {
	circuit.Base[T]
}

func NewResistor[T any](a *circuit.Arena, f scalar.Field[T], r T) *Resistor[T] {
	return newResistor(a, f, map[string]T{"r": r})
}

// newResistor takes "r" and the optional "tc1" and "tc2" first and second
// order temperature coefficients around the default temperature.
func newResistor[T any](a *circuit.Arena, f scalar.Field[T], params map[string]T) *Resistor[T] {
	return &Resistor[T]{Base: circuit.NewBase("R", a, f, twoTerminals, params)}
}

func (r *Resistor[T]) Copy() circuit.Device[T] {
	return &Resistor[T]{Base: r.Base.Clone()}
}

// resistance applies the temperature coefficients, if any.
func (r *Resistor[T]) resistance(env *circuit.Env) T {
	f := r.Field()
	value := r.Param("r")
	params := r.Params()
	tc1, ok1 := params["tc1"]
	tc2, ok2 := params["tc2"]
	if !ok1 && !ok2 {
		return value
	}

	dt := f.FromFloat(env.Temperature() - consts.DEFAULT_TEMP)
	factor := f.One()
	if ok1 {
		factor = f.Add(factor, f.Mul(tc1, dt))
	}
	if ok2 {
		factor = f.Add(factor, f.Mul(tc2, f.Mul(dt, dt)))
	}
	return f.Mul(value, factor)
}

func (r *Resistor[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := r.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, err
	}

	f := r.Field()
	m := r.Zeros()
	stampConductance(f, m, idx[0], idx[1], f.Div(f.One(), r.resistance(env)))
	return m, nil
}

func (r *Resistor[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](r, x, env)
}

// CY is the thermal noise current, 4kT/r.
func (r *Resistor[T]) CY(x []T, kT T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := r.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, err
	}

	f := r.Field()
	m := r.Zeros()
	stampConductance(f, m, idx[0], idx[1], f.Div(f.Mul(f.FromFloat(4), kT), r.resistance(env)))
	return m, nil
}
