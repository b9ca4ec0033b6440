package analysis_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-circuit/internal/consts"
	"github.com/edp1096/toy-circuit/pkg/analysis"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/device"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var real64 = scalar.Real{}

func add(t *testing.T, top *circuit.SubCircuit[float64], name string, d circuit.Device[float64], nodes ...circuit.NodeID) {
	t.Helper()
	require.NoError(t, circuit.Bind(d, nodes...))
	require.NoError(t, top.SetInstance(name, d))
}

// divider builds vs(in, gnd) = v with r1(in, out) and r2(out, gnd).
func divider(t *testing.T, v, r1, r2 float64) *circuit.SubCircuit[float64] {
	t.Helper()
	a := circuit.NewArena()
	top := circuit.NewSubCircuit[float64](a, real64)
	in, out := top.AddNode("in"), top.AddNode("out")
	add(t, top, "vs", device.NewVoltageSource(a, real64, v), in, a.Ground())
	add(t, top, "r1", device.NewResistor(a, real64, r1), in, out)
	add(t, top, "r2", device.NewResistor(a, real64, r2), out, a.Ground())
	return top
}

func TestOperatingPoint(t *testing.T) {
	a := circuit.NewArena()
	top := circuit.NewSubCircuit[float64](a, real64)
	n1 := top.AddNode("1")
	add(t, top, "vs", device.NewVoltageSource(a, real64, 1.5), n1, a.Ground())
	add(t, top, "r", device.NewResistor(a, real64, 1e3), n1, a.Ground())

	op := analysis.NewOP()
	require.NoError(t, op.Setup(top))
	require.NoError(t, op.Execute())

	x := op.Solution()
	require.Len(t, x, 3)
	assert.InDelta(t, 1.5, x[0], 1e-12)
	assert.Equal(t, 0.0, x[1])
	assert.InDelta(t, -1.5e-3, x[2], 1e-15)

	res := op.GetResults()
	assert.InDelta(t, 1.5, res["V(1)"][0], 1e-12)
	assert.InDelta(t, -1.5e-3, res["I(vs)"][0], 1e-15)
	assert.NotContains(t, res, "V(gnd)")
}

func TestOperatingPointDivider(t *testing.T) {
	top := divider(t, 3, 1e3, 2e3)

	op := analysis.NewOP()
	require.NoError(t, op.Setup(top))
	require.NoError(t, op.Execute())

	res := op.GetResults()
	assert.InDelta(t, 3.0, res["V(in)"][0], 1e-12)
	assert.InDelta(t, 2.0, res["V(out)"][0], 1e-12)
	assert.InDelta(t, -1e-3, res["I(vs)"][0], 1e-15)
}

func TestOperatingPointDiode(t *testing.T) {
	a := circuit.NewArena()
	top := circuit.NewSubCircuit[float64](a, real64)
	in, anode := top.AddNode("in"), top.AddNode("a")
	add(t, top, "vs", device.NewVoltageSource(a, real64, 5), in, a.Ground())
	add(t, top, "r", device.NewResistor(a, real64, 1e3), in, anode)
	add(t, top, "d", device.NewDiode(a, real64, 1e-14), anode, a.Ground())

	op := analysis.NewOP()
	require.NoError(t, op.Setup(top))
	require.NoError(t, op.Execute())

	vd := op.GetResults()["V(a)"][0]
	assert.Greater(t, vd, 0.5)
	assert.Less(t, vd, 0.8)

	vt := consts.BOLTZMANN * consts.DEFAULT_TEMP / consts.CHARGE
	iR := (5 - vd) / 1e3
	iD := 1e-14 * (math.Exp(vd/vt) - 1)
	assert.InDelta(t, iR, iD, 1e-9)
}

func TestOperatingPointNotSet(t *testing.T) {
	op := analysis.NewOP()
	assert.True(t, errors.Is(op.Execute(), analysis.ErrCircuitNotSet))
	assert.True(t, errors.Is(op.Setup(nil), analysis.ErrCircuitNotSet))
}

func TestOperatingPointUnknownReference(t *testing.T) {
	top := divider(t, 1, 1e3, 1e3)
	op := analysis.NewOP(analysis.WithRefNode("nope"))
	require.NoError(t, op.Setup(top))
	err := op.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, circuit.ErrNotFound))
}

func TestDCSweep(t *testing.T) {
	top := divider(t, 1, 1e3, 2e3)

	dc, err := analysis.NewDCSweep([]string{"vs"}, []float64{0}, []float64{2}, []float64{0.5})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(top))
	require.NoError(t, dc.Execute())

	res := dc.GetResults()
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, res["SWEEP1"])
	require.Len(t, res["V(out)"], 5)
	for i, v := range res["SWEEP1"] {
		assert.InDelta(t, v*2/3, res["V(out)"][i], 1e-12)
	}

	// The swept circuit itself is untouched.
	vs, err := top.Instance("vs")
	require.NoError(t, err)
	assert.Equal(t, 1.0, vs.Params()["v"])
}

func TestDCSweepNested(t *testing.T) {
	top := divider(t, 1, 1e3, 1e3)

	dc, err := analysis.NewDCSweep([]string{"vs", "r2"}, []float64{1, 1e3}, []float64{2, 3e3}, []float64{1, 2e3})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(top))
	require.NoError(t, dc.Execute())

	res := dc.GetResults()
	assert.Equal(t, []float64{1, 1, 2, 2}, res["SWEEP1"])
	assert.Equal(t, []float64{1e3, 3e3, 1e3, 3e3}, res["SWEEP2"])
	want := []float64{0.5, 0.75, 1, 1.5}
	for i := range want {
		assert.InDelta(t, want[i], res["V(out)"][i], 1e-12)
	}
}

func TestDCSweepSharedTerminalNodes(t *testing.T) {
	// e1 senses in against ground and drives out against ground, so two of
	// its terminals share the ground node.
	a := circuit.NewArena()
	top := circuit.NewSubCircuit[float64](a, real64)
	in, out := top.AddNode("in"), top.AddNode("out")
	add(t, top, "vs", device.NewVoltageSource(a, real64, 0.5), in, a.Ground())
	add(t, top, "e1", device.NewVCVS(a, real64, 2), in, a.Ground(), out, a.Ground())
	add(t, top, "rl", device.NewResistor(a, real64, 1e3), out, a.Ground())

	dc, err := analysis.NewDCSweep([]string{"e1"}, []float64{1}, []float64{3}, []float64{1})
	require.NoError(t, err)
	require.NoError(t, dc.Setup(top))
	require.NoError(t, dc.Execute())

	res := dc.GetResults()
	assert.Equal(t, []float64{1, 2, 3}, res["SWEEP1"])
	require.Len(t, res["V(out)"], 3)
	for i, g := range res["SWEEP1"] {
		assert.InDelta(t, 0.5*g, res["V(out)"][i], 1e-12)
		assert.InDelta(t, 0.5, res["V(in)"][i], 1e-12)
	}
}

func TestDCSweepErrors(t *testing.T) {
	_, err := analysis.NewDCSweep([]string{"vs"}, []float64{0, 1}, []float64{1}, []float64{1})
	assert.Error(t, err)

	_, err = analysis.NewDCSweep([]string{"vs"}, []float64{0}, []float64{1}, []float64{-1})
	assert.Error(t, err)

	dc, err := analysis.NewDCSweep([]string{"vx"}, []float64{0}, []float64{1}, []float64{1})
	require.NoError(t, err)
	err = dc.Setup(divider(t, 1, 1, 1))
	assert.True(t, errors.Is(err, circuit.ErrDeviceNotFound))
}

func TestAC(t *testing.T) {
	// Series L into a load R: |V(out)| = R/|R + jωL| drops by √2 at R/(2πL).
	a := circuit.NewArena()
	top := circuit.NewSubCircuit[float64](a, real64)
	in, out := top.AddNode("in"), top.AddNode("out")
	add(t, top, "vs", device.NewVoltageSource(a, real64, 1), in, a.Ground())
	add(t, top, "l", device.NewInductor(a, real64, 1e-3), in, out)
	add(t, top, "r", device.NewResistor(a, real64, 1e3), out, a.Ground())

	corner := 1e3 / (2 * math.Pi * 1e-3)
	ac, err := analysis.NewAC(analysis.Sweep{StartFreq: corner / 100, StopFreq: corner, NumPoints: 3, PointsType: "DEC"})
	require.NoError(t, err)
	require.NoError(t, ac.Setup(top))
	require.NoError(t, ac.Execute())

	res := ac.GetResults()
	require.Len(t, res["FREQ"], 3)
	assert.InEpsilon(t, corner/10, res["FREQ"][1], 1e-9)
	assert.InDelta(t, 1, res["V(in)_MAG"][2], 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, res["V(out)_MAG"][2], 1e-9)
	assert.InDelta(t, 45, math.Abs(res["V(out)_PHASE"][2]), 1e-6)
	assert.InDelta(t, 1, res["V(out)_MAG"][0], 1e-3)
}

func TestACBadSweep(t *testing.T) {
	_, err := analysis.NewAC(analysis.Sweep{StartFreq: 0, StopFreq: 10, NumPoints: 3, PointsType: "DEC"})
	assert.Error(t, err)
	_, err = analysis.NewAC(analysis.Sweep{StartFreq: 1, StopFreq: 10, NumPoints: 3, PointsType: "XYZ"})
	assert.Error(t, err)
}

func TestNoise(t *testing.T) {
	top := divider(t, 0, 1e3, 1e3)

	na, err := analysis.NewNoise("out", "vs", analysis.Sweep{StartFreq: 1, StopFreq: 1e3, NumPoints: 2, PointsType: "LIN"})
	require.NoError(t, err)
	require.NoError(t, na.Setup(top))
	require.NoError(t, na.Execute())

	// Both resistors see 500 Ω at the output.
	want := 4 * consts.BOLTZMANN * consts.DEFAULT_TEMP * 500
	res := na.GetResults()
	require.Len(t, res["ONOISE"], 2)
	for i := range res["ONOISE"] {
		assert.InEpsilon(t, want, res["ONOISE"][i], 1e-9)
		assert.InDelta(t, 0.5, res["GAIN"][i], 1e-12)
		assert.InEpsilon(t, want/0.25, res["INOISE"][i], 1e-9)
	}
}

func TestNoiseTemperature(t *testing.T) {
	top := divider(t, 0, 1e3, 1e3)

	na, err := analysis.NewNoise("out", "", analysis.Sweep{StartFreq: 10, StopFreq: 10, NumPoints: 1, PointsType: "LIN"},
		analysis.WithEnv(&circuit.Env{Temp: 600}))
	require.NoError(t, err)
	require.NoError(t, na.Setup(top))
	require.NoError(t, na.Execute())

	res := na.GetResults()
	assert.InEpsilon(t, 4*consts.BOLTZMANN*600*500, res["ONOISE"][0], 1e-9)
	assert.NotContains(t, res, "INOISE")
}

func TestNoiseBadOutput(t *testing.T) {
	na, err := analysis.NewNoise("zz", "", analysis.Sweep{StartFreq: 1, StopFreq: 1, NumPoints: 1, PointsType: "LIN"})
	require.NoError(t, err)
	err = na.Setup(divider(t, 0, 1, 1))
	assert.True(t, errors.Is(err, circuit.ErrNotFound))
}

func TestPrintSystem(t *testing.T) {
	top := divider(t, 3, 1e3, 2e3)
	op := analysis.NewOP()
	require.NoError(t, op.Setup(top))

	var buf bytes.Buffer
	require.NoError(t, op.PrintSystem(&buf, nil, 0))
	out := buf.String()
	assert.Contains(t, out, "Circuit Equations (3x3):")
	assert.Contains(t, out, "V(out)")
	assert.Contains(t, out, "I(vs)")

	buf.Reset()
	require.NoError(t, op.PrintSystem(&buf, nil, 1e3))
	assert.Contains(t, buf.String(), "Circuit Equations (3x3):")

	assert.ErrorIs(t, analysis.NewOP().PrintSystem(&buf, nil, 0), analysis.ErrCircuitNotSet)
}
