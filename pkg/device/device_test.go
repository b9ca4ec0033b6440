package device_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/device"
	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
	"github.com/edp1096/toy-circuit/pkg/symbolic"
)

var real64 = scalar.Real{}

func rows(t *testing.T, data [][]float64) *matrix.Dense[float64] {
	t.Helper()
	m, err := matrix.FromRows[float64](real64, data)
	require.NoError(t, err)
	return m
}

func assertDense(t *testing.T, want, got *matrix.Dense[float64]) {
	t.Helper()
	require.Equal(t, want.Rows(), got.Rows(), "rows")
	require.Equal(t, want.Cols(), got.Cols(), "cols")
	for i := 0; i < want.Rows(); i++ {
		for j := 0; j < want.Cols(); j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-15+1e-12*math.Abs(want.At(i, j)), "(%d,%d)", i, j)
		}
	}
}

func TestResistor(t *testing.T) {
	a := circuit.NewArena()
	n1 := a.NewNode("1")
	r := device.NewResistor(a, real64, 1e3)
	require.NoError(t, circuit.Bind[float64](r, n1, a.Ground()))

	g, err := r.G(nil, nil)
	require.NoError(t, err)
	assertDense(t, rows(t, [][]float64{{1e-3, -1e-3}, {-1e-3, 1e-3}}), g)

	kT := consts.BOLTZMANN * 300
	cy, err := r.CY(nil, kT, nil)
	require.NoError(t, err)
	psd := 4 * kT / 1e3
	assertDense(t, rows(t, [][]float64{{psd, -psd}, {-psd, psd}}), cy)

	c, err := r.C(nil, nil)
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	i, err := r.I([]float64{2, 0}, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2e-3, -2e-3}, i, 1e-15)
}

func TestResistorTemperatureCoefficient(t *testing.T) {
	a := circuit.NewArena()
	r, err := device.New[float64]("R", a, real64, []circuit.NodeID{a.NewNode("1"), a.Ground()},
		map[string]float64{"r": 1e3, "tc1": 1e-3})
	require.NoError(t, err)

	g, err := r.G(nil, &circuit.Env{Temp: consts.DEFAULT_TEMP + 100})
	require.NoError(t, err)
	assert.InDelta(t, 1/1100.0, g.At(0, 0), 1e-12)

	g, err = r.G(nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, g.At(0, 0), 1e-15)
}

func TestCapacitor(t *testing.T) {
	a := circuit.NewArena()
	c := device.NewCapacitor(a, real64, 1e-12)
	require.NoError(t, circuit.Bind[float64](c, a.NewNode("1"), a.Ground()))

	g, err := c.G(nil, nil)
	require.NoError(t, err)
	assert.True(t, g.IsZero())

	cm, err := c.C(nil, nil)
	require.NoError(t, err)
	assertDense(t, rows(t, [][]float64{{1e-12, -1e12}, {-1e12, 1e12}}), cm)
}

func TestInductorAndVoltageSource(t *testing.T) {
	a := circuit.NewArena()
	n1 := a.NewNode("1")
	incidence := rows(t, [][]float64{{0, 0, 1}, {0, 0, -1}, {1, -1, 0}})

	l := device.NewInductor(a, real64, 1e-9)
	require.NoError(t, circuit.Bind[float64](l, n1, a.Ground()))
	g, err := l.G(nil, nil)
	require.NoError(t, err)
	assertDense(t, incidence, g)
	c, err := l.C(nil, nil)
	require.NoError(t, err)
	assertDense(t, rows(t, [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 1e-9}}), c)

	vs := device.NewVoltageSource(a, real64, 1.5)
	require.NoError(t, circuit.Bind[float64](vs, n1, a.Ground()))
	g, err = vs.G(nil, nil)
	require.NoError(t, err)
	assertDense(t, incidence, g)
	u, err := vs.U(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, -1.5}, u)
}

func TestBranchEndsFollowBindings(t *testing.T) {
	a := circuit.NewArena()
	n1, n2 := a.NewNode("1"), a.NewNode("2")
	vs := device.NewVoltageSource(a, real64, 1)
	require.NoError(t, circuit.Bind[float64](vs, n1, n2))
	br := vs.Branches()[0]

	cp := vs.Copy().(*device.VoltageSource[float64])
	require.NoError(t, cp.ConnectTerminals(map[string]circuit.NodeID{"plus": n2, "minus": n1}))

	plus, minus, err := cp.BranchEnds(br)
	require.NoError(t, err)
	assert.Equal(t, n2, plus)
	assert.Equal(t, n1, minus)

	// The original keeps its own bindings.
	plus, minus, err = vs.BranchEnds(br)
	require.NoError(t, err)
	assert.Equal(t, n1, plus)
	assert.Equal(t, n2, minus)

	other := device.NewVoltageSource(a, real64, 1)
	_, _, err = vs.BranchEnds(other.Branches()[0])
	assert.True(t, errors.Is(err, circuit.ErrNotFound))
}

func TestCurrentSource(t *testing.T) {
	a := circuit.NewArena()
	is := device.NewCurrentSource(a, real64, 1e-3)
	require.NoError(t, circuit.Bind[float64](is, a.Ground(), a.NewNode("1")))

	u, err := is.U(0, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-3, -1e-3}, u)
	assert.Equal(t, 2, is.N())
}

func TestVCVS(t *testing.T) {
	a := circuit.NewArena()
	n1, n2 := a.NewNode("1"), a.NewNode("2")
	e := device.NewVCVS(a, real64, 2.0)
	require.NoError(t, circuit.Bind[float64](e, n1, a.Ground(), n2, a.Ground()))

	assert.Equal(t, []circuit.NodeID{n1, a.Ground(), n2}, e.Nodes())
	require.Len(t, e.Branches(), 1)
	plus, minus, err := e.BranchEnds(e.Branches()[0])
	require.NoError(t, err)
	assert.Equal(t, n2, plus)
	assert.Equal(t, a.Ground(), minus)

	g, err := e.G(nil, nil)
	require.NoError(t, err)
	assertDense(t, rows(t, [][]float64{
		{0, 0, 0, 0},
		{0, 0, 0, -1},
		{0, 0, 0, 1},
		{2, -1, -1, 0},
	}), g)
}

func TestVCCS(t *testing.T) {
	a := circuit.NewArena()
	g, s := a.NewNode("g"), a.NewNode("s")
	vccs := device.NewVCCS(a, real64, 20e-3)
	require.NoError(t, circuit.Bind[float64](vccs, g, s, a.Ground(), s))

	// Output minus shares the node with input minus.
	assert.Equal(t, []circuit.NodeID{g, s, a.Ground()}, vccs.Nodes())

	m, err := vccs.G(nil, nil)
	require.NoError(t, err)
	assertDense(t, rows(t, [][]float64{
		{0, 0, 0},
		{-20e-3, 20e-3, 0},
		{20e-3, -20e-3, 0},
	}), m)
}

func TestDiode(t *testing.T) {
	a := circuit.NewArena()
	d := device.NewDiode(a, real64, 1e-14)
	require.NoError(t, circuit.Bind[float64](d, a.NewNode("a"), a.Ground()))
	assert.True(t, d.IsNonlinear())

	vt := consts.BOLTZMANN * 300 / consts.CHARGE
	x := []float64{0.6, 0}

	g, err := d.G(x, nil)
	require.NoError(t, err)
	want := 1e-14 * math.Exp(0.6/vt) / vt
	assert.InDelta(t, want, g.At(0, 0), want*1e-12)
	assert.InDelta(t, -want, g.At(0, 1), want*1e-12)

	i, err := d.I(x, nil)
	require.NoError(t, err)
	id := 1e-14 * (math.Exp(0.6/vt) - 1)
	assert.InDelta(t, id, i[0], id*1e-12)
	assert.InDelta(t, -id, i[1], id*1e-12)

	i, err = d.I(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, i)

	_, err = d.G([]float64{1}, nil)
	assert.True(t, errors.Is(err, matrix.ErrShape))
}

func TestSymbolicDiode(t *testing.T) {
	f := symbolic.Field{}
	a := circuit.NewArena()
	d := device.NewDiode[*symbolic.Expr](a, f, symbolic.Sym("IS"))
	require.NoError(t, circuit.Bind[*symbolic.Expr](d, a.NewNode("a"), a.Ground()))

	x := []*symbolic.Expr{symbolic.Sym("VD"), f.Zero()}
	g, err := d.G(x, nil)
	require.NoError(t, err)

	vt := consts.BOLTZMANN * 300 / consts.CHARGE
	v, err := g.At(0, 0).Eval(map[string]float64{"IS": 1e-12, "VD": 0.5})
	require.NoError(t, err)
	want := 1e-12 * math.Exp(0.5/vt) / vt
	assert.InDelta(t, want, v, want*1e-9)
	assert.ElementsMatch(t, []string{"IS", "VD"}, g.At(1, 0).Symbols())
}

func bjt(t *testing.T, polarity float64) circuit.Device[float64] {
	t.Helper()
	a := circuit.NewArena()
	nodes := []circuit.NodeID{a.NewNode("c"), a.NewNode("b"), a.NewNode("e")}
	q, err := device.New[float64]("Q", a, real64, nodes, map[string]float64{"polarity": polarity, "vaf": 50})
	require.NoError(t, err)
	require.True(t, q.IsNonlinear())
	require.Equal(t, 3, q.N())
	return q
}

func TestBJTJacobian(t *testing.T) {
	q := bjt(t, 1)
	// Forward active: vbe = 0.65, vbc = -2.35.
	x := []float64{3, 0.65, 0}

	g, err := q.G(x, nil)
	require.NoError(t, err)
	i0, err := q.I(x, nil)
	require.NoError(t, err)

	const h = 1e-7
	for j := range x {
		xh := append([]float64(nil), x...)
		xh[j] += h
		ih, err := q.I(xh, nil)
		require.NoError(t, err)
		for i := range i0 {
			fd := (ih[i] - i0[i]) / h
			assert.InDelta(t, fd, g.At(i, j), math.Abs(fd)*1e-4+1e-12, "dI%d/dx%d", i, j)
		}
	}

	// Currents sum to zero and the collector carries beta times the base.
	assert.InDelta(t, 0, i0[0]+i0[1]+i0[2], 1e-18)
	ratio := i0[0] / i0[1]
	early := 1 + 2.35/50
	assert.InDelta(t, 100*early, ratio, 1e-6)
}

func TestBJTPolarity(t *testing.T) {
	npn := bjt(t, 1)
	pnp := bjt(t, -1)

	x := []float64{3, 0.65, 0}
	mirror := []float64{-3, -0.65, 0}

	in, err := npn.I(x, nil)
	require.NoError(t, err)
	ip, err := pnp.I(mirror, nil)
	require.NoError(t, err)
	for k := range in {
		assert.InDelta(t, -in[k], ip[k], math.Abs(in[k])*1e-12)
	}

	gn, err := npn.G(x, nil)
	require.NoError(t, err)
	gp, err := pnp.G(mirror, nil)
	require.NoError(t, err)
	assertDense(t, gn, gp)
}

func TestBJTTemperature(t *testing.T) {
	q := bjt(t, 1)
	x := []float64{3, 0.65, 0}

	nominal, err := q.I(x, nil)
	require.NoError(t, err)
	same, err := q.I(x, &circuit.Env{Temp: consts.DEFAULT_TEMP})
	require.NoError(t, err)
	assert.Equal(t, nominal, same)

	hot, err := q.I(x, &circuit.Env{Temp: consts.DEFAULT_TEMP + 50})
	require.NoError(t, err)
	assert.Greater(t, hot[0], nominal[0])
}

func TestNewCopiesParams(t *testing.T) {
	a := circuit.NewArena()
	nodes := []circuit.NodeID{a.NewNode("p"), a.Ground()}

	params := map[string]float64{"is": 1e-12}
	d, err := device.New[float64]("D", a, real64, nodes, params)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"is": 1e-12}, params)
	assert.Equal(t, 1.0, d.Params()["n"])

	coupled := map[string]float64{"l1": 1e-3, "l2": 1e-3, "k": 0.5}
	k, err := device.New[float64]("K", a, real64, append(nodes, a.NewNode("q"), a.Ground()), coupled)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"l1": 1e-3, "l2": 1e-3, "k": 0.5}, coupled)
	assert.InDelta(t, 0.5e-3, k.Params()["m"], 1e-15)
	assert.NotContains(t, k.Params(), "k")
}

func TestCoupledInductors(t *testing.T) {
	a := circuit.NewArena()
	nodes := []circuit.NodeID{a.NewNode("p1"), a.Ground(), a.NewNode("p2"), a.Ground()}
	k, err := device.New[float64]("K", a, real64, nodes, map[string]float64{"l1": 1e-3, "l2": 4e-3, "k": 0.5})
	require.NoError(t, err)

	require.Equal(t, 5, k.N())
	c, err := k.C(nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, c.At(3, 3), 1e-15)
	assert.InDelta(t, 1e-3, c.At(3, 4), 1e-15)
	assert.InDelta(t, 1e-3, c.At(4, 3), 1e-15)
	assert.InDelta(t, 4e-3, c.At(4, 4), 1e-15)

	g, err := k.G(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.At(0, 3))
	assert.Equal(t, 1.0, g.At(2, 4))
	assert.Equal(t, -1.0, g.At(3, 1))

	name, ok := k.BranchName(k.Branches()[1])
	assert.True(t, ok)
	assert.Equal(t, "l2", name)

	_, err = device.New[float64]("K", a, real64, nodes, map[string]float64{"l1": 1e-3})
	assert.Error(t, err)
}

func TestNewErrors(t *testing.T) {
	a := circuit.NewArena()

	data := []struct {
		name  string
		kind  string
		nodes []circuit.NodeID
		want  error
	}{
		{"unknown kind", "Z", []circuit.NodeID{a.Ground()}, device.ErrUnknownKind},
		{"too few nodes", "R", []circuit.NodeID{a.Ground()}, circuit.ErrArityMismatch},
		{"too many nodes", "E", []circuit.NodeID{a.Ground(), a.Ground()}, circuit.ErrArityMismatch},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := device.New[float64](d.kind, a, real64, d.nodes, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, d.want), "got %v", err)
		})
	}

	r, err := device.New[float64]("r", a, real64, []circuit.NodeID{a.NewNode("x"), a.Ground()}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"r": 1e3}, r.Params())
}

func TestUnknownTerminal(t *testing.T) {
	a := circuit.NewArena()
	r := device.NewResistor(a, real64, 1e3)

	err := r.ConnectTerminals(map[string]circuit.NodeID{"drain": a.Ground()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuit.ErrUnknownTerminal))

	var ute *circuit.UnknownTerminalError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "drain", ute.Terminal)
}
