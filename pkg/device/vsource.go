package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// VoltageSource forces v between plus and minus. Its branch current is an
// unknown.
type VoltageSource[T any] struct {
	circuit.Base[T]
	branch circuit.BranchID
}

func NewVoltageSource[T any](a *circuit.Arena, f scalar.Field[T], v T) *VoltageSource[T] {
	d := &VoltageSource[T]{Base: circuit.NewBase("V", a, f, twoTerminals, map[string]T{"v": v})}
	d.branch, _ = d.AddBranch("plus", "minus", "")
	return d
}

func (v *VoltageSource[T]) Copy() circuit.Device[T] {
	return &VoltageSource[T]{Base: v.Base.Clone(), branch: v.branch}
}

func (v *VoltageSource[T]) Branch() circuit.BranchID { return v.branch }

func (v *VoltageSource[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	return branchG[T](&v.Base, v.branch)
}

func (v *VoltageSource[T]) U(t float64, env *circuit.Env) ([]T, error) {
	b, err := v.BranchIndex(v.branch)
	if err != nil {
		return nil, err
	}
	f := v.Field()
	u := matrix.Zeros(f, v.N())
	u[b] = f.Neg(v.Param("v"))
	return u, nil
}

func (v *VoltageSource[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](v, x, env)
}
