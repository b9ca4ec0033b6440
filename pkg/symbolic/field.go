package symbolic

import "math"

// Field implements scalar.Field[*Expr].
type Field struct{}

func (Field) Zero() *Expr               { return zero }
func (Field) One() *Expr                { return one }
func (Field) FromFloat(v float64) *Expr { return Num(v) }

func (Field) Add(a, b *Expr) *Expr {
	switch {
	case a.kind == Const && b.kind == Const:
		return Num(a.value + b.value)
	case a.isConst(0):
		return b
	case b.isConst(0):
		return a
	case b.kind == Negate && b.args[0].Equal(a), a.kind == Negate && a.args[0].Equal(b):
		return zero
	}
	return &Expr{kind: Sum, args: []*Expr{a, b}}
}

func (f Field) Sub(a, b *Expr) *Expr {
	return f.Add(a, f.Neg(b))
}

func (f Field) Mul(a, b *Expr) *Expr {
	switch {
	case a.kind == Const && b.kind == Const:
		return Num(a.value * b.value)
	case a.isConst(0), b.isConst(0):
		return zero
	case a.isConst(1):
		return b
	case b.isConst(1):
		return a
	case a.isConst(-1):
		return f.Neg(b)
	case b.isConst(-1):
		return f.Neg(a)
	case a.kind == Negate:
		return f.Neg(f.Mul(a.args[0], b))
	case b.kind == Negate:
		return f.Neg(f.Mul(a, b.args[0]))
	}
	return &Expr{kind: Product, args: []*Expr{a, b}}
}

func (f Field) Div(a, b *Expr) *Expr {
	switch {
	case a.kind == Const && b.kind == Const:
		return Num(a.value / b.value)
	case a.isConst(0) && !b.isConst(0):
		return zero
	case b.isConst(1):
		return a
	case a.Equal(b):
		return one
	case a.kind == Negate:
		return f.Neg(f.Div(a.args[0], b))
	case b.kind == Negate:
		return f.Neg(f.Div(a, b.args[0]))
	}
	return &Expr{kind: Quotient, args: []*Expr{a, b}}
}

func (Field) Neg(a *Expr) *Expr {
	switch a.kind {
	case Const:
		return Num(-a.value)
	case Negate:
		return a.args[0]
	}
	return &Expr{kind: Negate, args: []*Expr{a}}
}

func (Field) Exp(a *Expr) *Expr {
	if a.kind == Const {
		return Num(math.Exp(a.value))
	}
	return &Expr{kind: Exponential, args: []*Expr{a}}
}

func (Field) Sqrt(a *Expr) *Expr {
	if a.kind == Const {
		return Num(math.Sqrt(a.value))
	}
	return &Expr{kind: SquareRoot, args: []*Expr{a}}
}

func (Field) IsZero(a *Expr) bool   { return a.isConst(0) }
func (Field) Equal(a, b *Expr) bool { return a.Equal(b) }
func (Field) Format(a *Expr) string { return a.String() }
