package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValueFactor(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  string
	}{
		{0, "V", "0.000 V"},
		{1.5, "V", "1.500 V"},
		{-2e-3, "A", "-2.000 mA"},
		{4.7e-6, "A", "4.700 uA"},
		{3.3e-9, "V", "3.300 nV"},
		{1e-12, "A", "1.000 pA"},
		{2.2e3, "Ohm", "2.200 kOhm"},
		{1e6, "Hz", "1.000 MHz"},
		{5e-15, "A", "5.000e-15 A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValueFactor(tt.value, tt.unit))
	}
}

func TestFormatFrequency(t *testing.T) {
	assert.Equal(t, " 10.000 Hz ", FormatFrequency(10))
	assert.Equal(t, "  1.500 kHz", FormatFrequency(1500))
	assert.Equal(t, "  2.000 MHz", FormatFrequency(2e6))
}

func TestFormatMagnitudePhase(t *testing.T) {
	assert.Equal(t, "V(out)=   0.707< -45.0deg", FormatMagnitudePhase("V(out)", 0.7071, -45))
	assert.Equal(t, "1.00e+03", FormatMagnitude(1000))
	assert.Equal(t, "5.43e-05", FormatMagnitude(5.43e-5))
}

func TestFormatDecibel(t *testing.T) {
	assert.Equal(t, "  20.0 dB", FormatDecibel(10))
	assert.Equal(t, "  -6.0 dB", FormatDecibel(0.5))
	assert.Equal(t, "  -inf dB", FormatDecibel(0))
}

func TestFormatNoiseDensity(t *testing.T) {
	assert.Equal(t, "4.000 nV/rtHz", FormatNoiseDensity(16e-18))
	assert.Equal(t, "0.000 V/rtHz", FormatNoiseDensity(-1))
}

func TestUnit(t *testing.T) {
	assert.Equal(t, "V", Unit("V(X1.mid)"))
	assert.Equal(t, "A", Unit("I(vs)"))
	assert.Equal(t, "", Unit("LOOPGAIN"))
}
