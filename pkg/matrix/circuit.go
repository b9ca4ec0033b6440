package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
	"github.com/pkg/errors"
)

// CircuitMatrix is the numeric solver behind the analyses. It wraps a sparse
// matrix with MNA ordering and 1-based indexing; dense stamps assembled by the
// circuit are loaded into it with LoadReal or LoadComplex.
type CircuitMatrix struct {
	Size         int
	matrix       *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	config       *sparse.Configuration
}

func NewMatrix(size int, isComplex bool) (*CircuitMatrix, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrShape, "matrix size %d", size)
	}

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 isComplex,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, errors.Wrap(err, "creating sparse matrix")
	}

	vectorSize := size + 1 // rhs, solution size
	vectorSizeImag := size + 1
	if isComplex && !config.SeparatedComplexVectors {
		vectorSize *= 2
		vectorSizeImag = 1
	}

	return &CircuitMatrix{
		Size:         size,
		matrix:       mat,
		rhs:          make([]float64, vectorSize), // 1-based indexing
		rhsImag:      make([]float64, vectorSizeImag),
		solution:     make([]float64, vectorSize),
		solutionImag: make([]float64, vectorSizeImag),
		config:       config,
	}, nil
}

func (m *CircuitMatrix) inRange(i int) bool {
	return i > 0 && i <= m.Size
}

func (m *CircuitMatrix) AddComplexRHS(i int, real, imag float64) error {
	if !m.inRange(i) {
		return errors.Wrapf(ErrIndex, "rhs %d of size %d", i, m.Size)
	}

	if m.config.SeparatedComplexVectors {
		m.rhs[i] += real
		m.rhsImag[i] += imag
	} else {
		m.rhs[2*i] += real
		m.rhs[2*i+1] += imag
	}
	return nil
}

// LoadReal clears the matrix and loads a (0-based) dense system a·x = b.
func (m *CircuitMatrix) LoadReal(a *Dense[float64], b []float64) error {
	if m.config.Complex {
		return errors.New("matrix: real load into complex matrix")
	}
	if a.rows != m.Size || a.cols != m.Size || len(b) != m.Size {
		return errors.Wrapf(ErrShape, "load %dx%d with rhs %d into size %d", a.rows, a.cols, len(b), m.Size)
	}

	m.Clear()
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			if v := a.At(i, j); v != 0 {
				m.matrix.GetElement(int64(i+1), int64(j+1)).Real += v
			}
		}
		m.rhs[i+1] = b[i]
	}
	return nil
}

// LoadComplex clears the matrix and loads a (0-based) dense system a·x = b.
func (m *CircuitMatrix) LoadComplex(a *Dense[complex128], b []complex128) error {
	if !m.config.Complex {
		return errors.New("matrix: complex load into real matrix")
	}
	if a.rows != m.Size || a.cols != m.Size || len(b) != m.Size {
		return errors.Wrapf(ErrShape, "load %dx%d with rhs %d into size %d", a.rows, a.cols, len(b), m.Size)
	}

	m.Clear()
	for i := 0; i < m.Size; i++ {
		for j := 0; j < m.Size; j++ {
			if v := a.At(i, j); v != 0 {
				element := m.matrix.GetElement(int64(i+1), int64(j+1))
				element.Real += real(v)
				element.Imag += imag(v)
			}
		}
		if err := m.AddComplexRHS(i+1, real(b[i]), imag(b[i])); err != nil {
			return err
		}
	}
	return nil
}

// LoadGmin adds gmin to the diagonal of the first rows equations, the node
// rows in MNA order. Call it after LoadReal.
func (m *CircuitMatrix) LoadGmin(gmin float64, rows int) error {
	if rows < 0 || rows > m.Size {
		return errors.Wrapf(ErrIndex, "gmin on %d rows of size %d", rows, m.Size)
	}
	if gmin == 0 {
		return nil
	}
	for i := 1; i <= rows; i++ {
		m.matrix.GetElement(int64(i), int64(i)).Real += gmin
	}
	return nil
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i := range m.rhsImag {
		m.rhsImag[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	var err error

	err = m.matrix.Factor()
	if err != nil {
		return errors.Wrap(err, "matrix factorization failed")
	}

	if m.config.Complex {
		m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	} else {
		m.solution, err = m.matrix.Solve(m.rhs)
	}

	if err != nil {
		return errors.Wrap(err, "matrix solve failed")
	}

	return nil
}

// Solution returns the real solution as a 0-based vector.
func (m *CircuitMatrix) Solution() []float64 {
	out := make([]float64, m.Size)
	copy(out, m.solution[1:m.Size+1])
	return out
}

// ComplexSolution returns the complex solution as a 0-based vector.
func (m *CircuitMatrix) ComplexSolution() []complex128 {
	out := make([]complex128, m.Size)
	for i := 1; i <= m.Size; i++ {
		re, im := m.GetComplexSolution(i)
		out[i-1] = complex(re, im)
	}
	return out
}

func (m *CircuitMatrix) GetComplexSolution(i int) (float64, float64) {
	if !m.config.Complex || !m.inRange(i) {
		return 0, 0
	}
	return m.solution[i], m.solution[i+m.Size]
}

// Fprint writes the loaded equations, one row per unknown. It must be called
// before Solve, which factors the matrix in place.
func (m *CircuitMatrix) Fprint(w io.Writer, labels []string) {
	label := func(j int) string {
		if j-1 < len(labels) && labels[j-1] != "" {
			return labels[j-1]
		}
		return fmt.Sprintf("x%d", j)
	}

	fmt.Fprintf(w, "Circuit Equations (%dx%d):\n", m.Size, m.Size)
	for i := 1; i <= m.Size; i++ {
		fmt.Fprintf(w, "Equation %d:", i)
		for j := 1; j <= m.Size; j++ {
			element := m.matrix.GetElement(int64(i), int64(j))
			switch {
			case element.Real == 0 && element.Imag == 0:
			case element.Imag == 0:
				fmt.Fprintf(w, "  %+g*%s", element.Real, label(j))
			default:
				fmt.Fprintf(w, "  (%g%+gj)*%s", element.Real, element.Imag, label(j))
			}
		}
		if m.config.Complex {
			fmt.Fprintf(w, " = %g%+gj\n", m.rhs[2*i], m.rhs[2*i+1])
		} else {
			fmt.Fprintf(w, " = %g\n", m.rhs[i])
		}
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}

// SolveReal solves a·x = b on a throwaway sparse matrix.
func SolveReal(a *Dense[float64], b []float64) ([]float64, error) {
	m, err := NewMatrix(a.rows, false)
	if err != nil {
		return nil, err
	}
	defer m.Destroy()

	if err := m.LoadReal(a, b); err != nil {
		return nil, err
	}
	if err := m.Solve(); err != nil {
		return nil, err
	}
	return m.Solution(), nil
}

// SolveComplex solves a·x = b on a throwaway sparse matrix.
func SolveComplex(a *Dense[complex128], b []complex128) ([]complex128, error) {
	m, err := NewMatrix(a.rows, true)
	if err != nil {
		return nil, err
	}
	defer m.Destroy()

	if err := m.LoadComplex(a, b); err != nil {
		return nil, err
	}
	if err := m.Solve(); err != nil {
		return nil, err
	}
	return m.ComplexSolution(), nil
}
