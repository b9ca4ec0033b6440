// Package feedback implements the loop-breaking proxy used for return
// difference and loop gain calculations.
package feedback

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
)

var ErrLoopBreakDetection = errors.New("loop break detection failed")

// LoopBreakDetectionError means the G block at the chosen port is not a
// transconductance stamp.
type LoopBreakDetectionError struct {
	Port   [4]string // inp, inn, outp, outn
	Values [4]string // G at (outp,inp), (outp,inn), (outn,inp), (outn,inn)
}

func (e *LoopBreakDetectionError) Error() string {
	return fmt.Sprintf("no transconductance between (%s, %s) and (%s, %s): G block is [%s %s; %s %s]",
		e.Port[0], e.Port[1], e.Port[2], e.Port[3], e.Values[0], e.Values[1], e.Values[2], e.Values[3])
}

func (e *LoopBreakDetectionError) Is(target error) bool { return target == ErrLoopBreakDetection }

// LoopBreaker wraps a device and removes the controlled-source contribution
// between an input port (inp, inn) and an output port (outp, outn) from its G
// matrix. Everything else is delegated to the wrapped device.
type LoopBreaker[T any] struct {
	circuit.Device[T]

	port [4]string
	idx  [4]int
	rev  uint64
}

func NewLoopBreaker[T any](dev circuit.Device[T], inp, inn, outp, outn string) (*LoopBreaker[T], error) {
	l := &LoopBreaker[T]{Device: dev, port: [4]string{inp, inn, outp, outn}}
	if err := l.resolve(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LoopBreaker[T]) resolve() error {
	for k, name := range l.port {
		id, err := l.Device.Node(name)
		if err != nil {
			return err
		}
		if l.idx[k], err = l.Device.NodeIndex(id); err != nil {
			return err
		}
	}
	l.rev = l.Device.Revision()
	return nil
}

// Unwrap returns the wrapped device.
func (l *LoopBreaker[T]) Unwrap() circuit.Device[T] { return l.Device }

func (l *LoopBreaker[T]) Copy() circuit.Device[T] {
	return &LoopBreaker[T]{Device: l.Device.Copy(), port: l.port, idx: l.idx, rev: l.rev}
}

func (l *LoopBreaker[T]) G(x []T, env *circuit.Env) (*matrix.Dense[T], error) {
	if l.Device.Revision() != l.rev {
		if err := l.resolve(); err != nil {
			return nil, err
		}
	}

	g, err := l.Device.G(x, env)
	if err != nil {
		return nil, err
	}

	f := g.Field()
	inp, inn, outp, outn := l.idx[0], l.idx[1], l.idx[2], l.idx[3]
	cells := [4][2]int{{outp, inp}, {outp, inn}, {outn, inp}, {outn, inn}}
	gm := g.At(outp, inp)

	if !f.Equal(gm, f.Neg(g.At(outp, inn))) ||
		!f.Equal(gm, f.Neg(g.At(outn, inp))) ||
		!f.Equal(gm, g.At(outn, inn)) {
		e := &LoopBreakDetectionError{Port: l.port}
		for k, c := range cells {
			e.Values[k] = f.Format(g.At(c[0], c[1]))
		}
		return nil, e
	}

	for _, c := range cells {
		g.Set(c[0], c[1], f.Zero())
	}
	return g, nil
}
