// Package device implements the primitive circuit elements. Every element is
// generic over the scalar field so the same stamps serve numeric and symbolic
// analyses.
package device

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

var ErrUnknownKind = errors.New("unknown device kind")

// Kind describes a primitive: its netlist letter, terminals, the parameter
// that carries its value and that parameter's default.
type Kind struct {
	Letter    string
	Terminals []string
	Value     string
	Default   float64
}

// Defaults follow the usual SPICE values where one exists.
var kinds = map[string]Kind{
	"R": {"R", twoTerminals, "r", 1e3},
	"C": {"C", twoTerminals, "c", 0},
	"L": {"L", twoTerminals, "l", 0},
	"V": {"V", twoTerminals, "v", 0},
	"I": {"I", twoTerminals, "i", 0},
	"E": {"E", fourTerminals, "g", 1},
	"G": {"G", fourTerminals, "gm", 1e-3},
	"D": {"D", twoTerminals, "is", 1e-14},
	"K": {"K", []string{"p1", "n1", "p2", "n2"}, "k", 0},
	"Q": {"Q", bjtTerminals, "is", bjtDefaults["is"]},
}

// Lookup returns the kind registered under a netlist letter.
func Lookup(letter string) (Kind, bool) {
	k, ok := kinds[strings.ToUpper(letter)]
	return k, ok
}

// Kinds returns the registered letters, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New creates a primitive of the given kind and binds its terminals to nodes
// positionally. Missing value parameters take their defaults.
func New[T any](kind string, a *circuit.Arena, f scalar.Field[T], nodes []circuit.NodeID, params map[string]T) (circuit.Device[T], error) {
	k, ok := Lookup(kind)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	if len(nodes) != len(k.Terminals) {
		return nil, &circuit.ArityMismatchError{Want: len(k.Terminals), Got: len(nodes)}
	}

	p := make(map[string]T, len(params)+1)
	for name, v := range params {
		p[name] = v
	}
	if _, ok := p[k.Value]; !ok {
		p[k.Value] = f.FromFloat(k.Default)
	}

	var d circuit.Device[T]
	switch k.Letter {
	case "R":
		d = newResistor(a, f, p)
	case "C":
		d = NewCapacitor(a, f, p["c"])
	case "L":
		d = NewInductor(a, f, p["l"])
	case "V":
		d = NewVoltageSource(a, f, p["v"])
	case "I":
		d = NewCurrentSource(a, f, p["i"])
	case "E":
		d = NewVCVS(a, f, p["g"])
	case "G":
		d = NewVCCS(a, f, p["gm"])
	case "D":
		d = newDiode(a, f, p)
	case "Q":
		d = newBJT(a, f, p)
	case "K":
		for _, name := range []string{"l1", "l2"} {
			if _, ok := p[name]; !ok {
				return nil, errors.Errorf("coupled inductors need parameter %q", name)
			}
		}
		d = newCoupledInductors(a, f, p)
	}

	if err := circuit.Bind(d, nodes...); err != nil {
		return nil, err
	}
	return d, nil
}
