package device

import (
	"math"

	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var bjtTerminals = []string{"c", "b", "e"}

// Bjt is a transport Ebers-Moll transistor with forward Early effect:
//
//	iF = Is·(exp(vbe/(nf·Vt)) - 1)
//	iR = Is·(exp(vbc/(nr·Vt)) - 1)
//	ic = iF·(1 - vbc/vaf) - iR·(1 + 1/br)
//	ib = iF/bf + iR/br
//
// A polarity of -1 makes it a PNP. A zero vaf means no Early effect.
type Bjt[T any] struct {
	circuit.Base[T]
}

// Model parameters and their defaults.
var bjtDefaults = map[string]float64{
	"polarity": 1,
	"is":       1e-16, // Transport saturation current
	"bf":       100,   // Ideal maximum forward beta
	"br":       1,     // Ideal maximum reverse beta
	"nf":       1,     // Forward emission coefficient
	"nr":       1,     // Reverse emission coefficient
	"vaf":      100,   // Forward Early voltage
	"cje":      0,     // B-E zero-bias depletion capacitance
	"cjc":      0,     // B-C zero-bias depletion capacitance
	"tf":       0,     // Ideal forward transit time
	"xtb":      0,     // Beta temperature exponent
	"eg":       1.11,  // Energy gap in eV
	"xti":      3,     // Is temperature exponent
}

// BjtParams lists the model parameter names a Bjt accepts.
func BjtParams() []string {
	names := make([]string, 0, len(bjtDefaults))
	for name := range bjtDefaults {
		names = append(names, name)
	}
	return names
}

func NewBJT[T any](a *circuit.Arena, f scalar.Field[T], params map[string]T) *Bjt[T] {
	return newBJT(a, f, params)
}

func newBJT[T any](a *circuit.Arena, f scalar.Field[T], params map[string]T) *Bjt[T] {
	p := make(map[string]T, len(bjtDefaults))
	for name, v := range bjtDefaults {
		p[name] = f.FromFloat(v)
	}
	for name, v := range params {
		p[name] = v
	}
	return &Bjt[T]{Base: circuit.NewBase("Q", a, f, bjtTerminals, p)}
}

func (q *Bjt[T]) Copy() circuit.Device[T] {
	return &Bjt[T]{Base: q.Base.Clone()}
}

func (q *Bjt[T]) IsNonlinear() bool { return true }

// bjtState is the large-signal solution at one bias point. Derivatives are
// with respect to the polarity-corrected junction voltages.
type bjtState[T any] struct {
	idx     []int
	pol     T
	ic, ib  T
	gF, gR  T // diF/dvbe, diR/dvbc
	dicDvbe T
	dicDvbc T
	dibDvbe T
	dibDvbc T
}

// temperature returns Is, bf and br at the environment temperature, measured
// against the default temperature.
func (q *Bjt[T]) temperature(env *circuit.Env) (is, bf, br T) {
	f := q.Field()
	temp := env.Temperature()
	ratio := temp / consts.DEFAULT_TEMP
	vt := thermalVoltage(env)

	lr := f.FromFloat(math.Log(ratio))
	is = f.Mul(q.Param("is"), f.Exp(f.Mul(q.Param("xti"), lr)))
	is = f.Mul(is, f.Exp(f.Mul(q.Param("eg"), f.FromFloat((ratio-1)/vt))))

	beta := f.Exp(f.Mul(q.Param("xtb"), lr))
	return is, f.Mul(q.Param("bf"), beta), f.Mul(q.Param("br"), beta)
}

func (q *Bjt[T]) state(x []T, env *circuit.Env) (*bjtState[T], error) {
	f := q.Field()
	idx, err := q.TerminalIndices(bjtTerminals...)
	if err != nil {
		return nil, err
	}
	if err := circuit.CheckState[T](q, x); err != nil {
		return nil, err
	}

	pol := q.Param("polarity")
	vc, vb, ve := at(f, x, idx[0]), at(f, x, idx[1]), at(f, x, idx[2])
	vbe := f.Mul(pol, f.Sub(vb, ve))
	vbc := f.Mul(pol, f.Sub(vb, vc))

	is, bf, br := q.temperature(env)
	vt := f.FromFloat(thermalVoltage(env))
	nfVt := f.Mul(q.Param("nf"), vt)
	nrVt := f.Mul(q.Param("nr"), vt)

	exF := f.Exp(f.Div(vbe, nfVt))
	exR := f.Exp(f.Div(vbc, nrVt))
	iF := f.Mul(is, f.Sub(exF, f.One()))
	iR := f.Mul(is, f.Sub(exR, f.One()))
	gF := f.Div(f.Mul(is, exF), nfVt)
	gR := f.Div(f.Mul(is, exR), nrVt)

	early := f.One()
	dEarly := f.Zero() // d(early)/dvbc
	if vaf := q.Param("vaf"); !f.IsZero(vaf) {
		dEarly = f.Neg(f.Div(f.One(), vaf))
		early = f.Add(f.One(), f.Mul(dEarly, vbc))
	}
	reverse := f.Add(f.One(), f.Div(f.One(), br))

	s := &bjtState[T]{idx: idx, pol: pol, gF: gF, gR: gR}
	s.ic = f.Sub(f.Mul(iF, early), f.Mul(iR, reverse))
	s.ib = f.Add(f.Div(iF, bf), f.Div(iR, br))
	s.dicDvbe = f.Mul(gF, early)
	s.dicDvbc = f.Sub(f.Mul(iF, dEarly), f.Mul(gR, reverse))
	s.dibDvbe = f.Div(gF, bf)
	s.dibDvbc = f.Div(gR, br)
	return s, nil
}

// G is the Jacobian of I. The polarity appears twice, once in the junction
// voltages and once in the terminal currents, so it cancels.
func (q *Bjt[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	s, err := q.state(x, env)
	if err != nil {
		return nil, err
	}

	f := q.Field()
	c, b, e := s.idx[0], s.idx[1], s.idx[2]
	m := q.Zeros()

	// vbe = vb - ve and vbc = vb - vc.
	row := func(i int, dVbe, dVbc T) {
		m.AddAt(i, b, f.Add(dVbe, dVbc))
		m.AddAt(i, e, f.Neg(dVbe))
		m.AddAt(i, c, f.Neg(dVbc))
	}
	row(c, s.dicDvbe, s.dicDvbc)
	row(b, s.dibDvbe, s.dibDvbc)
	row(e, f.Neg(f.Add(s.dicDvbe, s.dibDvbe)), f.Neg(f.Add(s.dicDvbc, s.dibDvbc)))
	return m, nil
}

// I holds the currents flowing into the collector, base and emitter.
func (q *Bjt[T]) I(x []T, env *circuit.Env) ([]T, error) {
	s, err := q.state(x, env)
	if err != nil {
		return nil, err
	}

	f := q.Field()
	i := matrix.Zeros(f, q.N())
	ic := f.Mul(s.pol, s.ic)
	ib := f.Mul(s.pol, s.ib)
	i[s.idx[0]] = f.Add(i[s.idx[0]], ic)
	i[s.idx[1]] = f.Add(i[s.idx[1]], ib)
	i[s.idx[2]] = f.Sub(i[s.idx[2]], f.Add(ic, ib))
	return i, nil
}

// C holds the junction capacitances, with the forward diffusion
// capacitance tf·gF added to the base-emitter junction.
func (q *Bjt[T]) C(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	s, err := q.state(x, env)
	if err != nil {
		return nil, err
	}

	f := q.Field()
	m := q.Zeros()
	cbe := f.Add(q.Param("cje"), f.Mul(q.Param("tf"), s.gF))
	stampConductance(f, m, s.idx[1], s.idx[2], cbe)
	stampConductance(f, m, s.idx[1], s.idx[0], q.Param("cjc"))
	return m, nil
}

// CY is the shot noise of the collector and base currents, 2·q·I each,
// returning through the emitter.
func (q *Bjt[T]) CY(x []T, kT T, env *circuit.Env) (*matrix.Dense[T], error) {
	s, err := q.state(x, env)
	if err != nil {
		return nil, err
	}

	f := q.Field()
	twoQ := f.FromFloat(2 * consts.CHARGE)
	m := q.Zeros()
	stampConductance(f, m, s.idx[0], s.idx[2], f.Mul(twoQ, s.ic))
	stampConductance(f, m, s.idx[1], s.idx[2], f.Mul(twoQ, s.ib))
	return m, nil
}
