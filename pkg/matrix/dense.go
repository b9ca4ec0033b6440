package matrix

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var (
	ErrShape = errors.New("matrix: dimension mismatch")
	ErrIndex = errors.New("matrix: index out of range")
)

// Dense is a row-major matrix over an arbitrary scalar field. Indices are
// 0-based.
type Dense[T any] struct {
	field      scalar.Field[T]
	rows, cols int
	data       []T
}

// NewDense returns a rows×cols matrix filled with f.Zero().
func NewDense[T any](f scalar.Field[T], rows, cols int) *Dense[T] {
	data := make([]T, rows*cols)
	z := f.Zero()
	for i := range data {
		data[i] = z
	}
	return &Dense[T]{field: f, rows: rows, cols: cols, data: data}
}

// NewSquare returns an n×n zero matrix.
func NewSquare[T any](f scalar.Field[T], n int) *Dense[T] {
	return NewDense(f, n, n)
}

// FromRows builds a matrix from row slices of equal length.
func FromRows[T any](f scalar.Field[T], rows [][]T) (*Dense[T], error) {
	if len(rows) == 0 {
		return NewDense(f, 0, 0), nil
	}
	m := NewDense(f, len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, errors.Wrapf(ErrShape, "row %d has %d columns, want %d", i, len(row), m.cols)
		}
		copy(m.data[i*m.cols:(i+1)*m.cols], row)
	}
	return m, nil
}

func (m *Dense[T]) Field() scalar.Field[T] { return m.field }
func (m *Dense[T]) Rows() int              { return m.rows }
func (m *Dense[T]) Cols() int              { return m.cols }

func (m *Dense[T]) At(i, j int) T {
	return m.data[i*m.cols+j]
}

func (m *Dense[T]) Set(i, j int, v T) {
	m.data[i*m.cols+j] = v
}

// AddAt accumulates v into (i, j).
func (m *Dense[T]) AddAt(i, j int, v T) {
	k := i*m.cols + j
	m.data[k] = m.field.Add(m.data[k], v)
}

func (m *Dense[T]) Clone() *Dense[T] {
	data := make([]T, len(m.data))
	copy(data, m.data)
	return &Dense[T]{field: m.field, rows: m.rows, cols: m.cols, data: data}
}

// Add returns m + o.
func (m *Dense[T]) Add(o *Dense[T]) (*Dense[T], error) {
	if m.rows != o.rows || m.cols != o.cols {
		return nil, errors.Wrapf(ErrShape, "%dx%d + %dx%d", m.rows, m.cols, o.rows, o.cols)
	}
	out := m.Clone()
	for i, v := range o.data {
		out.data[i] = m.field.Add(out.data[i], v)
	}
	return out, nil
}

// MulVec returns m·x.
func (m *Dense[T]) MulVec(x []T) ([]T, error) {
	if len(x) != m.cols {
		return nil, errors.Wrapf(ErrShape, "%dx%d times vector of %d", m.rows, m.cols, len(x))
	}
	out := Zeros(m.field, m.rows)
	for i := 0; i < m.rows; i++ {
		acc := m.field.Zero()
		for j := 0; j < m.cols; j++ {
			a := m.data[i*m.cols+j]
			if m.field.IsZero(a) || m.field.IsZero(x[j]) {
				continue
			}
			acc = m.field.Add(acc, m.field.Mul(a, x[j]))
		}
		out[i] = acc
	}
	return out, nil
}

// Transpose returns mᵀ.
func (m *Dense[T]) Transpose() *Dense[T] {
	out := NewDense(m.field, m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return out
}

// Equal reports element-wise equality under the field.
func (m *Dense[T]) Equal(o *Dense[T]) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if !m.field.Equal(m.data[i], o.data[i]) {
			return false
		}
	}
	return true
}

// IsZero reports whether every entry is zero.
func (m *Dense[T]) IsZero() bool {
	for _, v := range m.data {
		if !m.field.IsZero(v) {
			return false
		}
	}
	return true
}

func (m *Dense[T]) String() string {
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		sb.WriteByte('[')
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(m.field.Format(m.data[i*m.cols+j]))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// Zeros returns a vector of n zeros.
func Zeros[T any](f scalar.Field[T], n int) []T {
	v := make([]T, n)
	z := f.Zero()
	for i := range v {
		v[i] = z
	}
	return v
}

// Gather returns x[idx[0]], x[idx[1]], ...
func Gather[T any](x []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = x[i]
	}
	return out
}

// Scatter adds the square block sub into m at rows and columns idx.
func Scatter[T any](m, sub *Dense[T], idx []int) error {
	if sub.rows != len(idx) || sub.cols != len(idx) {
		return errors.Wrapf(ErrShape, "block %dx%d for %d indices", sub.rows, sub.cols, len(idx))
	}
	for a, i := range idx {
		for b, j := range idx {
			v := sub.data[a*sub.cols+b]
			if m.field.IsZero(v) {
				continue
			}
			m.AddAt(i, j, v)
		}
	}
	return nil
}

// ScatterVec adds sub into v at positions idx.
func ScatterVec[T any](f scalar.Field[T], v, sub []T, idx []int) error {
	if len(sub) != len(idx) {
		return errors.Wrapf(ErrShape, "vector of %d for %d indices", len(sub), len(idx))
	}
	for a, i := range idx {
		if f.IsZero(sub[a]) {
			continue
		}
		v[i] = f.Add(v[i], sub[a])
	}
	return nil
}

// RemoveRowCol returns copies of ms with row and column idx removed.
func RemoveRowCol[T any](idx int, ms ...*Dense[T]) ([]*Dense[T], error) {
	out := make([]*Dense[T], len(ms))
	for k, m := range ms {
		if idx < 0 || idx >= m.rows || idx >= m.cols {
			return nil, errors.Wrapf(ErrIndex, "remove %d from %dx%d", idx, m.rows, m.cols)
		}
		r := NewDense(m.field, m.rows-1, m.cols-1)
		for i, ri := 0, 0; i < m.rows; i++ {
			if i == idx {
				continue
			}
			for j, rj := 0, 0; j < m.cols; j++ {
				if j == idx {
					continue
				}
				r.data[ri*r.cols+rj] = m.data[i*m.cols+j]
				rj++
			}
			ri++
		}
		out[k] = r
	}
	return out, nil
}

// RemoveEntry returns a copy of v without v[idx].
func RemoveEntry[T any](idx int, v []T) ([]T, error) {
	if idx < 0 || idx >= len(v) {
		return nil, errors.Wrapf(ErrIndex, "remove %d from vector of %d", idx, len(v))
	}
	out := make([]T, 0, len(v)-1)
	out = append(out, v[:idx]...)
	return append(out, v[idx+1:]...), nil
}

// InsertEntry returns a copy of v with z inserted at idx.
func InsertEntry[T any](idx int, v []T, z T) []T {
	out := make([]T, 0, len(v)+1)
	out = append(out, v[:idx]...)
	out = append(out, z)
	return append(out, v[idx:]...)
}
