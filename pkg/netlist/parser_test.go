package netlist_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-circuit/pkg/netlist"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1k", 1e3},
		{"4.7u", 4.7e-6},
		{"10meg", 10e6},
		{"2.2e-3", 2.2e-3},
		{"-5", -5},
		{"100p", 100e-12},
		{"3ns", 3e-9},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := netlist.ParseValue(tt.in)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want, got, 1e-12)
		})
	}

	_, err := netlist.ParseValue("abc")
	assert.True(t, errors.Is(err, netlist.ErrSyntax))
}

const ampNetlist = `* inverting stage
.subckt amp in out
G1 out 0 in 0 {gm}
RL out 0 10k
.ends

V1 n1 0 DC 1
R1 n1 x 1k ; input resistor
X1 x y amp
Rf y x
+ 100k
.loopgain X1.G1 dec 10 1 1meg
.temp 27
.end
`

func TestParse(t *testing.T) {
	nd, err := netlist.Parse(ampNetlist)
	require.NoError(t, err)

	assert.Equal(t, "inverting stage", nd.Title)
	require.Len(t, nd.Elements, 4)
	assert.Equal(t, []string{"n1", "x"}, nd.Elements[1].Nodes)
	assert.Equal(t, 1e3, nd.Elements[1].Value)
	assert.Equal(t, "amp", nd.Elements[2].Params["subckt"])
	assert.Equal(t, 100e3, nd.Elements[3].Value)

	def, ok := nd.Subckts["amp"]
	require.True(t, ok)
	assert.Equal(t, []string{"in", "out"}, def.Ports)
	require.Len(t, def.Elements, 2)
	assert.Equal(t, "gm", def.Elements[0].Symbol)

	assert.Equal(t, netlist.AnalysisLoopGain, nd.Analysis)
	assert.Equal(t, "X1.G1", nd.LoopGainParam.Target)
	assert.Equal(t, [4]string{"inp", "inn", "outp", "outn"}, nd.LoopGainParam.Port)
	assert.True(t, nd.LoopGainParam.Swept)
	assert.Equal(t, 10, nd.LoopGainParam.Points)
	assert.InDelta(t, 300.15, nd.Temp, 1e-9)
}

func TestParseAnalyses(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		check func(t *testing.T, nd *netlist.NetlistData)
	}{
		{"op", ".op", func(t *testing.T, nd *netlist.NetlistData) {
			assert.Equal(t, netlist.AnalysisOP, nd.Analysis)
		}},
		{"ac", ".ac oct 5 10 10k", func(t *testing.T, nd *netlist.NetlistData) {
			assert.Equal(t, netlist.AnalysisAC, nd.Analysis)
			assert.Equal(t, netlist.SweepParam{Sweep: "OCT", Points: 5, FStart: 10, FStop: 10e3}, nd.ACParam)
		}},
		{"dc nested", ".dc V1 0 1 0.5 R1 1k 2k 1k", func(t *testing.T, nd *netlist.NetlistData) {
			assert.Equal(t, netlist.AnalysisDC, nd.Analysis)
			assert.Equal(t, "V1", nd.DCParam.Source1)
			assert.Equal(t, 0.5, nd.DCParam.Increment1)
			assert.Equal(t, "R1", nd.DCParam.Source2)
			assert.Equal(t, 2e3, nd.DCParam.Stop2)
		}},
		{"noise", ".noise v(out) V1 dec 10 1 1k", func(t *testing.T, nd *netlist.NetlistData) {
			assert.Equal(t, netlist.AnalysisNoise, nd.Analysis)
			assert.Equal(t, "out", nd.NoiseParam.Output)
			assert.Equal(t, "V1", nd.NoiseParam.Source)
			assert.Equal(t, "DEC", nd.NoiseParam.Sweep)
		}},
		{"loopgain port", ".loopgain E1 a b c d", func(t *testing.T, nd *netlist.NetlistData) {
			assert.Equal(t, [4]string{"a", "b", "c", "d"}, nd.LoopGainParam.Port)
			assert.False(t, nd.LoopGainParam.Swept)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nd, err := netlist.Parse("title\nR1 1 0 1k\n" + tt.line + "\n")
			require.NoError(t, err)
			tt.check(t, nd)
		})
	}
}

func TestParseModel(t *testing.T) {
	nd, err := netlist.Parse("title\nD1 a 0 dmod\n.model DMOD D(is=1e-12 n=2)\n")
	require.NoError(t, err)
	m, ok := nd.Models["dmod"]
	require.True(t, ok)
	assert.Equal(t, 1e-12, m.Params["is"])
	assert.Equal(t, 2.0, m.Params["n"])
	assert.Equal(t, "dmod", nd.Elements[0].Params["model"])

	nd, err = netlist.Parse("title\nQ1 c b 0 qn\nQ2 c b 0 qp\n.model qn NPN(bf=200 vaf=50)\n.model QP pnp\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "0"}, nd.Elements[0].Nodes)
	assert.Equal(t, "qn", nd.Elements[0].Params["model"])

	qn := nd.Models["qn"]
	assert.Equal(t, "NPN", qn.Type)
	assert.Equal(t, map[string]float64{"polarity": 1, "bf": 200, "vaf": 50}, qn.Params)
	assert.Equal(t, "PNP", nd.Models["qp"].Type)
	assert.Equal(t, -1.0, nd.Models["qp"].Params["polarity"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"transient", "t\n.tran 1n 1u\n", netlist.ErrUnsupported},
		{"sin source", "t\nV1 1 0 SIN(0 1 1k)\n", netlist.ErrUnsupported},
		{"unknown element", "t\nM1 d g s b mod\n", netlist.ErrUnsupported},
		{"bjt without model", "t\nQ1 c b e\n", netlist.ErrSyntax},
		{"missing ends", "t\n.subckt a p\nR1 p 0 1\n", netlist.ErrSyntax},
		{"stray ends", "t\n.ends\n", netlist.ErrSyntax},
		{"bad value", "t\nR1 1 0 xyz\n", netlist.ErrSyntax},
		{"coupling range", "t\nK1 L1 L2 1.5\n", netlist.ErrSyntax},
		{"bad sweep", "t\n.ac foo 10 1 1k\n", netlist.ErrSyntax},
		{"core model", "t\n.model c1 CORE(ms=1)\n", netlist.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := netlist.Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
