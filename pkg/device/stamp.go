package device

import (
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// stampConductance adds g between local indices p and n.
func stampConductance[T any](f scalar.Field[T], m *matrix.Dense[T], p, n int, g T) {
	m.AddAt(p, p, g)
	m.AddAt(p, n, f.Neg(g))
	m.AddAt(n, p, f.Neg(g))
	m.AddAt(n, n, g)
}

// stampBranch adds the unity incidence of a branch b between p and n.
func stampBranch[T any](f scalar.Field[T], m *matrix.Dense[T], p, n, b int) {
	one := f.One()
	m.AddAt(p, b, one)
	m.AddAt(n, b, f.Neg(one))
	m.AddAt(b, p, one)
	m.AddAt(b, n, f.Neg(one))
}

// stampTransconductance adds gm·(v[inp]-v[inn]) flowing out of outp into outn.
func stampTransconductance[T any](f scalar.Field[T], m *matrix.Dense[T], inp, inn, outp, outn int, gm T) {
	m.AddAt(outp, inp, gm)
	m.AddAt(outp, inn, f.Neg(gm))
	m.AddAt(outn, inp, f.Neg(gm))
	m.AddAt(outn, inn, gm)
}

func at[T any](f scalar.Field[T], x []T, i int) T {
	if x == nil {
		return f.Zero()
	}
	return x[i]
}
