package symbolic

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSimplification(t *testing.T) {
	f := Field{}
	x := Sym("x")
	y := Sym("y")

	data := []struct {
		name string
		got  *Expr
		want *Expr
	}{
		{"const add", f.Add(Num(2), Num(3)), Num(5)},
		{"add zero", f.Add(x, f.Zero()), x},
		{"zero add", f.Add(f.Zero(), x), x},
		{"x minus x", f.Sub(x, x), f.Zero()},
		{"double negation", f.Neg(f.Neg(x)), x},
		{"mul one", f.Mul(f.One(), x), x},
		{"mul zero", f.Mul(x, f.Zero()), f.Zero()},
		{"mul minus one", f.Mul(Num(-1), x), f.Neg(x)},
		{"neg pulled out of product", f.Mul(f.Neg(x), y), f.Neg(f.Mul(x, y))},
		{"div self", f.Div(x, x), f.One()},
		{"div by one", f.Div(x, f.One()), x},
		{"const exp", f.Exp(Num(0)), f.One()},
		{"const sqrt", f.Sqrt(Num(4)), Num(2)},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			assert.True(t, f.Equal(d.got, d.want), "got %s, want %s", d.got, d.want)
		})
	}
}

func TestStructuralEquality(t *testing.T) {
	f := Field{}
	gm := Sym("gm")

	assert.True(t, f.Equal(f.Neg(f.Neg(gm)), gm))
	assert.True(t, f.Equal(f.Add(gm, Sym("r")), f.Add(Sym("gm"), Sym("r"))))
	assert.False(t, f.Equal(f.Add(gm, Sym("r")), f.Add(Sym("r"), gm)))
	assert.False(t, f.IsZero(gm))
	assert.True(t, f.IsZero(f.Sub(gm, gm)))
}

func TestEval(t *testing.T) {
	f := Field{}
	gm := Sym("gm")
	r := Sym("r")

	// gm*r / (1 + gm*r)
	gain := f.Div(f.Mul(gm, r), f.Add(f.One(), f.Mul(gm, r)))

	v, err := gain.Eval(map[string]float64{"gm": 20e-3, "r": 1e3})
	require.NoError(t, err)
	assert.InDelta(t, 20.0/21.0, v, 1e-12)

	assert.Equal(t, []string{"gm", "r"}, gain.Symbols())

	_, err = gain.Eval(map[string]float64{"gm": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnbound))

	v, err = f.Exp(f.Div(Sym("v"), Sym("vt"))).Eval(map[string]float64{"v": 0.6, "vt": 0.025})
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(24), v, 1e-3)
}

func TestString(t *testing.T) {
	f := Field{}
	e := f.Sub(f.Mul(Sym("a"), Sym("b")), Num(2))
	assert.Equal(t, "(a*b + -2)", e.String())

	e = f.Sub(Sym("a"), Sym("b"))
	assert.Equal(t, "(a - b)", e.String())
}
