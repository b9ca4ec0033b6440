package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var twoTerminals = []string{"plus", "minus"}

type Inductor[T any] struct {
	circuit.Base[T]
	branch circuit.BranchID
}

func NewInductor[T any](a *circuit.Arena, f scalar.Field[T], l T) *Inductor[T] {
	d := &Inductor[T]{Base: circuit.NewBase("L", a, f, twoTerminals, map[string]T{"l": l})}
	d.branch, _ = d.AddBranch("plus", "minus", "")
	return d
}

func (l *Inductor[T]) Copy() circuit.Device[T] {
	return &Inductor[T]{Base: l.Base.Clone(), branch: l.branch}
}

func (l *Inductor[T]) Branch() circuit.BranchID { return l.branch }

func (l *Inductor[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	return branchG[T](&l.Base, l.branch)
}

func (l *Inductor[T]) C(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	b, err := l.BranchIndex(l.branch)
	if err != nil {
		return nil, err
	}
	m := l.Zeros()
	m.AddAt(b, b, l.Param("l"))
	return m, nil
}

func (l *Inductor[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](l, x, env)
}

// branchG is the incidence stamp shared by inductors and voltage sources.
func branchG[T any](b *circuit.Base[T], branch circuit.BranchID) (*matrix.Dense[T], error) {
	idx, err := b.TerminalIndices("plus", "minus")
	if err != nil {
		return nil, err
	}
	bi, err := b.BranchIndex(branch)
	if err != nil {
		return nil, err
	}
	m := b.Zeros()
	stampBranch(b.Field(), m, idx[0], idx[1], bi)
	return m, nil
}
