package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-circuit/pkg/scalar"
)

func TestSolveReal(t *testing.T) {
	f := scalar.Real{}
	// 1V source between two 1k resistors to ground.
	a, _ := FromRows[float64](f, [][]float64{
		{1e-3, 0, 1},
		{0, 1e-3, -1},
		{1, -1, 0},
	})
	x, err := SolveReal(a, []float64{0, 0, 1})
	require.NoError(t, err)
	require.Len(t, x, 3)
	assert.InDelta(t, 0.5, x[0], 1e-9)
	assert.InDelta(t, -0.5, x[1], 1e-9)
	assert.InDelta(t, -0.5e-3, x[2], 1e-12)
}

func TestSolveComplex(t *testing.T) {
	f := scalar.Complex{}
	a, _ := FromRows[complex128](f, [][]complex128{
		{2, 0},
		{0, 1i},
	})
	x, err := SolveComplex(a, []complex128{4, 1})
	require.NoError(t, err)
	require.Len(t, x, 2)
	assert.InDelta(t, 2.0, real(x[0]), 1e-12)
	assert.InDelta(t, 0.0, imag(x[0]), 1e-12)
	assert.InDelta(t, 0.0, real(x[1]), 1e-12)
	assert.InDelta(t, -1.0, imag(x[1]), 1e-12)
}

func TestCircuitMatrixBounds(t *testing.T) {
	m, err := NewMatrix(2, false)
	require.NoError(t, err)
	defer m.Destroy()

	assert.Error(t, m.LoadGmin(1e-3, 3))
	assert.Error(t, m.LoadGmin(1e-3, -1))

	_, err = NewMatrix(0, false)
	assert.Error(t, err)

	f := scalar.Real{}
	assert.Error(t, m.LoadReal(NewSquare[float64](f, 3), []float64{0, 0, 0}))
	assert.Error(t, m.LoadComplex(NewSquare[complex128](scalar.Complex{}, 2), []complex128{0, 0}))
}

func TestLoadGmin(t *testing.T) {
	f := scalar.Real{}
	m, err := NewMatrix(3, false)
	require.NoError(t, err)
	defer m.Destroy()

	// Node 2 floats: its row is empty until gmin ties it to the reference.
	// Row 3 is a 1V source branch on node 1.
	a, _ := FromRows[float64](f, [][]float64{
		{1e-3, 0, 1},
		{0, 0, 0},
		{1, 0, 0},
	})
	b := []float64{0, 1e-6, 1}

	require.NoError(t, m.LoadReal(a, b))
	require.NoError(t, m.LoadGmin(1e-6, 2))
	require.NoError(t, m.Solve())

	x := m.Solution()
	assert.InDelta(t, 1.0, x[0], 1e-9)
	assert.InDelta(t, 1.0, x[1], 1e-9)
	assert.InDelta(t, -1e-3-1e-6, x[2], 1e-12)
}
