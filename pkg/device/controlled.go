package device

import (
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var fourTerminals = []string{"inp", "inn", "outp", "outn"}

// VCVS forces v(outp, outn) = g·v(inp, inn) through a branch on the output
// port.
type VCVS[T any] struct {
	circuit.Base[T]
	branch circuit.BranchID
}

func NewVCVS[T any](a *circuit.Arena, f scalar.Field[T], g T) *VCVS[T] {
	d := &VCVS[T]{Base: circuit.NewBase("E", a, f, fourTerminals, map[string]T{"g": g})}
	d.branch, _ = d.AddBranch("outp", "outn", "")
	return d
}

func (e *VCVS[T]) Copy() circuit.Device[T] {
	return &VCVS[T]{Base: e.Base.Clone(), branch: e.branch}
}

func (e *VCVS[T]) Branch() circuit.BranchID { return e.branch }

func (e *VCVS[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := e.TerminalIndices(fourTerminals...)
	if err != nil {
		return nil, err
	}
	b, err := e.BranchIndex(e.branch)
	if err != nil {
		return nil, err
	}

	f := e.Field()
	one := f.One()
	g := e.Param("g")
	inp, inn, outp, outn := idx[0], idx[1], idx[2], idx[3]

	m := e.Zeros()
	m.AddAt(outp, b, one)
	m.AddAt(outn, b, f.Neg(one))
	m.AddAt(b, outp, f.Neg(one))
	m.AddAt(b, outn, one)
	m.AddAt(b, inp, g)
	m.AddAt(b, inn, f.Neg(g))
	return m, nil
}

func (e *VCVS[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](e, x, env)
}

// VCCS drives gm·v(inp, inn) out of outp and into outn.
type VCCS[T any] struct {
	circuit.Base[T]
}

func NewVCCS[T any](a *circuit.Arena, f scalar.Field[T], gm T) *VCCS[T] {
	return &VCCS[T]{Base: circuit.NewBase("G", a, f, fourTerminals, map[string]T{"gm": gm})}
}

func (g *VCCS[T]) Copy() circuit.Device[T] {
	return &VCCS[T]{Base: g.Base.Clone()}
}

func (g *VCCS[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	idx, err := g.TerminalIndices(fourTerminals...)
	if err != nil {
		return nil, err
	}
	m := g.Zeros()
	stampTransconductance(g.Field(), m, idx[0], idx[1], idx[2], idx[3], g.Param("gm"))
	return m, nil
}

func (g *VCCS[T]) I(x []T, env *circuit.Env) ([]T, error) {
	return circuit.LinearI[T](g, x, env)
}
