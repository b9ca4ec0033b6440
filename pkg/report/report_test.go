package report_test

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-circuit/pkg/report"
)

func TestFprint(t *testing.T) {
	tests := []struct {
		name    string
		results map[string][]float64
		want    []string
	}{
		{
			name:    "operating point",
			results: map[string][]float64{"V(out)": {2}, "V(in)": {3}, "I(V1)": {-1e-3}},
			want:    []string{"Node Voltages:", "V(in) = 3.000 V", "V(out) = 2.000 V", "I(V1) = -1.000 mA"},
		},
		{
			name: "dc sweep",
			results: map[string][]float64{
				"SWEEP1": {0, 1},
				"V(out)": {0, 0.5},
			},
			want: []string{"DC Sweep Analysis Results (2 points)", "S=1", "V(out)=500.000 mV"},
		},
		{
			name: "ac",
			results: map[string][]float64{
				"FREQ":         {1e3},
				"V(out)_MAG":   {0.5},
				"V(out)_PHASE": {-90},
			},
			want: []string{"AC Analysis Results (1 frequency points)", "1.000 kHz", "V(out)=     0.5< -90.0deg"},
		},
		{
			name: "noise",
			results: map[string][]float64{
				"FREQ":   {10},
				"ONOISE": {16e-18},
				"GAIN":   {0.5},
				"INOISE": {64e-18},
			},
			want: []string{"Noise Analysis Results", "Input noise", "4.000 nV/rtHz", "8.000 nV/rtHz"},
		},
		{
			name:    "loop gain",
			results: map[string][]float64{"LOOPGAIN": {-20}, "F": {21}, "T": {20}},
			want:    []string{"Loop gain         = -20 (26.0 dB)", "Return difference = 21", "Return ratio      = 20"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			report.Fprint(&buf, tt.results)
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func sweep() map[string][]float64 {
	return map[string][]float64{
		"FREQ":           {10, 100, 1000},
		"V(out)_MAG":     {1, 0.7, 0.1},
		"V(out)_PHASE":   {-5, -45, -85},
		"LOOPGAIN_MAG":   {20, 10, 1},
		"LOOPGAIN_PHASE": {180, 150, 100},
		"I(V1)_MAG":      {1e-3, 1e-3, 0},
		"I(V1)_PHASE":    {0, 0, 0},
	}
}

func TestBodeWriteTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.NewBode("test", "V(out)", "LOOPGAIN").WriteTo(&buf, sweep()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestBodeSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bode.png")
	require.NoError(t, report.NewBode("all").Save(path, sweep()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestBodeErrors(t *testing.T) {
	var buf bytes.Buffer
	err := report.NewBode("op").WriteTo(&buf, map[string][]float64{"V(out)": {1}})
	assert.True(t, errors.Is(err, report.ErrNoSweep))

	err = report.NewBode("missing", "V(nope)").WriteTo(&buf, sweep())
	assert.Error(t, err)
}
