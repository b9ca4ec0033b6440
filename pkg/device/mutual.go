package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// CoupledInductors is a pair of inductors sharing the mutual inductance m.
// Branch names are "l1" and "l2".
type CoupledInductors[T any] struct {
	circuit.Base[T]
	coils [2]circuit.BranchID
}

func NewCoupledInductors[T any](a *circuit.Arena, f scalar.Field[T], l1, l2, m T) *CoupledInductors[T] {
	return newCoupledInductors(a, f, map[string]T{"l1": l1, "l2": l2, "m": m})
}

// newCoupledInductors takes "l1", "l2" and either "m" or the coupling
// coefficient "k", in which case m = k·sqrt(l1·l2).
func newCoupledInductors[T any](a *circuit.Arena, f scalar.Field[T], params map[string]T) *CoupledInductors[T] {
	p := make(map[string]T, len(params))
	for name, v := range params {
		if name != "k" {
			p[name] = v
		}
	}
	if _, ok := p["m"]; !ok {
		k, ok := params["k"]
		if !ok {
			k = f.Zero()
		}
		p["m"] = f.Mul(k, f.Sqrt(f.Mul(p["l1"], p["l2"])))
	}

	d := &CoupledInductors[T]{Base: circuit.NewBase("K", a, f, []string{"p1", "n1", "p2", "n2"}, p)}
	d.coils[0], _ = d.AddBranch("p1", "n1", "l1")
	d.coils[1], _ = d.AddBranch("p2", "n2", "l2")
	return d
}

func (k *CoupledInductors[T]) Copy() circuit.Device[T] {
	return &CoupledInductors[T]{Base: k.Base.Clone(), coils: k.coils}
}

func (k *CoupledInductors[T]) branchIndices() ([2]int, error) {
	var idx [2]int
	for i, b := range k.coils {
		bi, err := k.BranchIndex(b)
		if err != nil {
			return idx, err
		}
		idx[i] = bi
	}
	return idx, nil
}

func (k *CoupledInductors[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := k.TerminalIndices("p1", "n1", "p2", "n2")
	if err != nil {
		return nil, err
	}
	b, err := k.branchIndices()
	if err != nil {
		return nil, err
	}

	f := k.Field()
	m := k.Zeros()
	stampBranch(f, m, idx[0], idx[1], b[0])
	stampBranch(f, m, idx[2], idx[3], b[1])
	return m, nil
}

func (k *CoupledInductors[T]) C(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	b, err := k.branchIndices()
	if err != nil {
		return nil, err
	}

	mutual := k.Param("m")
	m := k.Zeros()
	m.AddAt(b[0], b[0], k.Param("l1"))
	m.AddAt(b[0], b[1], mutual)
	m.AddAt(b[1], b[0], mutual)
	m.AddAt(b[1], b[1], k.Param("l2"))
	return m, nil
}

func (k *CoupledInductors[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](k, x, env)
}
