package matrix

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// Det returns the determinant of a square matrix.
//
// float64 matrices go through gonum's LU. Fields that implement
// scalar.Magnitude use Gaussian elimination with partial pivoting. Other
// fields, where a pivot cannot be proven non-zero, use the division-free
// Berkowitz algorithm.
func Det[T any](f scalar.Field[T], m *Dense[T]) (T, error) {
	if m.rows != m.cols {
		return f.Zero(), errors.Wrapf(ErrShape, "determinant of %dx%d", m.rows, m.cols)
	}
	if m.rows == 0 {
		return f.One(), nil
	}

	if dm, ok := any(m).(*Dense[float64]); ok {
		data := make([]float64, len(dm.data))
		copy(data, dm.data)
		d := mat.Det(mat.NewDense(dm.rows, dm.cols, data))
		return any(d).(T), nil
	}

	if mag, ok := f.(scalar.Magnitude[T]); ok {
		return eliminate(f, mag, m), nil
	}
	return berkowitz(f, m), nil
}

func eliminate[T any](f scalar.Field[T], mag scalar.Magnitude[T], m *Dense[T]) T {
	n := m.rows
	a := m.Clone().data

	det := f.One()
	for k := 0; k < n; k++ {
		p := -1
		best := 0.0
		for i := k; i < n; i++ {
			if v := mag.Abs(a[i*n+k]); v > best {
				best, p = v, i
			}
		}
		if p < 0 {
			return f.Zero()
		}

		if p != k {
			for j := 0; j < n; j++ {
				a[k*n+j], a[p*n+j] = a[p*n+j], a[k*n+j]
			}
			det = f.Neg(det)
		}

		pivot := a[k*n+k]
		det = f.Mul(det, pivot)

		for i := k + 1; i < n; i++ {
			if f.IsZero(a[i*n+k]) {
				continue
			}
			factor := f.Div(a[i*n+k], pivot)
			for j := k + 1; j < n; j++ {
				if f.IsZero(a[k*n+j]) {
					continue
				}
				a[i*n+j] = f.Sub(a[i*n+j], f.Mul(factor, a[k*n+j]))
			}
			a[i*n+k] = f.Zero()
		}
	}
	return det
}

// berkowitz builds the characteristic polynomial det(λI - A) one leading
// principal submatrix at a time and returns (-1)^n times its constant term.
// p holds the coefficients, highest power first.
func berkowitz[T any](f scalar.Field[T], m *Dense[T]) T {
	n := m.rows
	p := []T{f.One()}
	for k := 1; k <= n; k++ {
		// A_k = [[A_{k-1}, col], [row, a]].
		last := k - 1
		col := make([]T, last)
		row := make([]T, last)
		for i := 0; i < last; i++ {
			col[i] = m.At(i, last)
			row[i] = m.At(last, i)
		}

		// First column of the Toeplitz matrix:
		// 1, -a, -row·col, -row·A_{k-1}·col, ...
		t := make([]T, k+1)
		t[0] = f.One()
		t[1] = f.Neg(m.At(last, last))
		v := col
		for j := 2; j <= k; j++ {
			t[j] = f.Neg(dot(f, row, v))
			if j < k {
				v = leadingMulVec(f, m, last, v)
			}
		}

		next := make([]T, k+1)
		for i := 0; i <= k; i++ {
			s := f.Zero()
			for j := 0; j <= i && j < len(p); j++ {
				s = f.Add(s, f.Mul(t[i-j], p[j]))
			}
			next[i] = s
		}
		p = next
	}

	if n%2 == 1 {
		return f.Neg(p[n])
	}
	return p[n]
}

func dot[T any](f scalar.Field[T], a, b []T) T {
	s := f.Zero()
	for i := range a {
		s = f.Add(s, f.Mul(a[i], b[i]))
	}
	return s
}

// leadingMulVec returns A_k·v for the leading k×k block of m.
func leadingMulVec[T any](f scalar.Field[T], m *Dense[T], k int, v []T) []T {
	out := make([]T, k)
	for i := 0; i < k; i++ {
		s := f.Zero()
		for j := 0; j < k; j++ {
			s = f.Add(s, f.Mul(m.At(i, j), v[j]))
		}
		out[i] = s
	}
	return out
}
