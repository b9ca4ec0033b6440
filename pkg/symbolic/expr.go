// Package symbolic is a small expression backend for closed-form stamps.
//
// Expressions are immutable trees built through Field, which folds constants
// and applies the handful of rewrites the stamping and elimination code relies
// on (x+0, x*1, -(-x), x-x). It is not a computer algebra system: equality is
// structural, so two expressions that are only mathematically equal compare
// unequal.
package symbolic

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Kind int

const (
	Const Kind = iota
	Symbol
	Sum
	Product
	Quotient
	Negate
	Exponential
	SquareRoot
)

// Expr is a node of an expression tree. The zero value is not valid; use Num
// or Sym.
type Expr struct {
	kind  Kind
	value float64
	name  string
	args  []*Expr
}

var (
	zero = &Expr{kind: Const, value: 0}
	one  = &Expr{kind: Const, value: 1}
)

// ErrUnbound is returned by Eval when a symbol has no binding.
var ErrUnbound = errors.New("symbolic: unbound symbol")

func Num(v float64) *Expr {
	switch v {
	case 0:
		return zero
	case 1:
		return one
	}
	return &Expr{kind: Const, value: v}
}

func Sym(name string) *Expr {
	return &Expr{kind: Symbol, name: name}
}

func (e *Expr) Kind() Kind { return e.kind }

// Value returns the constant value and true for constant expressions.
func (e *Expr) Value() (float64, bool) {
	if e.kind != Const {
		return 0, false
	}
	return e.value, true
}

func (e *Expr) isConst(v float64) bool {
	return e.kind == Const && e.value == v
}

// Equal reports structural equality.
func (e *Expr) Equal(o *Expr) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil || e.kind != o.kind {
		return false
	}
	switch e.kind {
	case Const:
		return e.value == o.value
	case Symbol:
		return e.name == o.name
	}
	if len(e.args) != len(o.args) {
		return false
	}
	for i := range e.args {
		if !e.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

// Symbols returns the sorted free symbol names of e.
func (e *Expr) Symbols() []string {
	seen := make(map[string]struct{})
	var walk func(*Expr)
	walk = func(x *Expr) {
		if x.kind == Symbol {
			seen[x.name] = struct{}{}
		}
		for _, a := range x.args {
			walk(a)
		}
	}
	walk(e)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Eval evaluates e with the given symbol bindings.
func (e *Expr) Eval(bindings map[string]float64) (float64, error) {
	switch e.kind {
	case Const:
		return e.value, nil
	case Symbol:
		v, ok := bindings[e.name]
		if !ok {
			return 0, errors.Wrapf(ErrUnbound, "%q", e.name)
		}
		return v, nil
	}

	vals := make([]float64, len(e.args))
	for i, a := range e.args {
		v, err := a.Eval(bindings)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}

	switch e.kind {
	case Sum:
		return vals[0] + vals[1], nil
	case Product:
		return vals[0] * vals[1], nil
	case Quotient:
		return vals[0] / vals[1], nil
	case Negate:
		return -vals[0], nil
	case Exponential:
		return math.Exp(vals[0]), nil
	case SquareRoot:
		return math.Sqrt(vals[0]), nil
	}
	return 0, errors.Errorf("symbolic: unknown expression kind %d", e.kind)
}

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder) {
	switch e.kind {
	case Const:
		sb.WriteString(strconv.FormatFloat(e.value, 'g', -1, 64))
	case Symbol:
		sb.WriteString(e.name)
	case Sum:
		sb.WriteByte('(')
		e.args[0].write(sb)
		if e.args[1].kind == Negate {
			sb.WriteString(" - ")
			e.args[1].args[0].write(sb)
		} else {
			sb.WriteString(" + ")
			e.args[1].write(sb)
		}
		sb.WriteByte(')')
	case Product:
		e.args[0].write(sb)
		sb.WriteByte('*')
		e.args[1].write(sb)
	case Quotient:
		e.args[0].write(sb)
		sb.WriteByte('/')
		e.args[1].write(sb)
	case Negate:
		sb.WriteByte('-')
		e.args[0].write(sb)
	case Exponential:
		sb.WriteString("exp(")
		e.args[0].write(sb)
		sb.WriteByte(')')
	case SquareRoot:
		sb.WriteString("sqrt(")
		e.args[0].write(sb)
		sb.WriteByte(')')
	}
}
