package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// CurrentSource drives i from plus through the source to minus.
type CurrentSource[T any] struct {
	circuit.Base[T]
}

func NewCurrentSource[T any](a *circuit.Arena, f scalar.Field[T], i T) *CurrentSource[T] {
	return &CurrentSource[T]{Base: circuit.NewBase("I", a, f, twoTerminals, map[string]T{"i": i})}
}

func (s *CurrentSource[T]) Copy() circuit.Device[T] {
	return &CurrentSource[T]{Base: s.Base.Clone()}
}

func (s *CurrentSource[T]) U(t float64, env *circuit.Env) ([]T, error) {
	idx, err := s.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, err
	}
	f := s.Field()
	i := s.Param("i")
	u := matrix.Zeros(f, s.N())
	u[idx[0]] = f.Add(u[idx[0]], i)
	u[idx[1]] = f.Sub(u[idx[1]], i)
	return u, nil
}

func (s *CurrentSource[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](s, x, env)
}
