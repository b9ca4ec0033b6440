// Package scalar defines the arithmetic used by every stamp and matrix
// routine. Device and assembly code never touch numbers directly; they go
// through a Field so the same engine runs on float64, complex128 or
// symbolic expressions.
package scalar

import (
	"fmt"
	"math"
	"math/cmplx"
)

type Field[T any] interface {
	Zero() T
	One() T
	FromFloat(v float64) T

	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	Div(a, b T) T
	Neg(a T) T
	Exp(a T) T
	Sqrt(a T) T

	IsZero(a T) bool
	Equal(a, b T) bool
	Format(a T) string
}

// Magnitude is implemented by fields with a total order on |a|. Elimination
// routines use it for partial pivoting; fields without it get the first
// non-zero pivot.
type Magnitude[T any] interface {
	Abs(a T) float64
}

// Sum folds values with f.Add.
func Sum[T any](f Field[T], values ...T) T {
	acc := f.Zero()
	for _, v := range values {
		acc = f.Add(acc, v)
	}
	return acc
}

// Real is the float64 field.
type Real struct{}

func (Real) Zero() float64               { return 0 }
func (Real) One() float64                { return 1 }
func (Real) FromFloat(v float64) float64 { return v }
func (Real) Add(a, b float64) float64    { return a + b }
func (Real) Sub(a, b float64) float64    { return a - b }
func (Real) Mul(a, b float64) float64    { return a * b }
func (Real) Div(a, b float64) float64    { return a / b }
func (Real) Neg(a float64) float64       { return -a }
func (Real) Exp(a float64) float64       { return math.Exp(a) }
func (Real) Sqrt(a float64) float64      { return math.Sqrt(a) }
func (Real) IsZero(a float64) bool       { return a == 0 }
func (Real) Equal(a, b float64) bool     { return a == b }
func (Real) Abs(a float64) float64       { return math.Abs(a) }
func (Real) Format(a float64) string     { return fmt.Sprintf("%g", a) }

// Complex is the complex128 field used by AC, noise and loop gain sweeps.
type Complex struct{}

func (Complex) Zero() complex128               { return 0 }
func (Complex) One() complex128                { return 1 }
func (Complex) FromFloat(v float64) complex128 { return complex(v, 0) }
func (Complex) Add(a, b complex128) complex128 { return a + b }
func (Complex) Sub(a, b complex128) complex128 { return a - b }
func (Complex) Mul(a, b complex128) complex128 { return a * b }
func (Complex) Div(a, b complex128) complex128 { return a / b }
func (Complex) Neg(a complex128) complex128    { return -a }
func (Complex) Exp(a complex128) complex128    { return cmplx.Exp(a) }
func (Complex) Sqrt(a complex128) complex128   { return cmplx.Sqrt(a) }
func (Complex) IsZero(a complex128) bool       { return a == 0 }
func (Complex) Equal(a, b complex128) bool     { return a == b }
func (Complex) Abs(a complex128) float64       { return cmplx.Abs(a) }
func (Complex) Format(a complex128) string     { return fmt.Sprintf("%g", a) }
