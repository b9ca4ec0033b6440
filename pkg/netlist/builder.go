package netlist

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/device"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// maxDepth bounds subcircuit nesting, which also catches recursive
// definitions.
const maxDepth = 64

var ErrSymbolicValue = errors.New("symbolic value needs a symbol resolver")

// Builder turns parsed netlist data into a circuit tree over the field T.
// Node "0" and "gnd" are the ground at every level.
type Builder[T any] struct {
	field  scalar.Field[T]
	symbol func(name string) (T, error) // resolves {name} values, nil rejects them
	arena  *circuit.Arena
	data   *NetlistData
}

func NewBuilder[T any](f scalar.Field[T], symbol func(name string) (T, error)) *Builder[T] {
	return &Builder[T]{field: f, symbol: symbol}
}

// Build creates the numeric circuit described by nd.
func Build(nd *NetlistData) (*circuit.SubCircuit[float64], error) {
	return NewBuilder[float64](scalar.Real{}, nil).Build(nd)
}

func (b *Builder[T]) Build(nd *NetlistData) (*circuit.SubCircuit[T], error) {
	b.arena = circuit.NewArena()
	b.data = nd

	top := circuit.NewSubCircuit[T](b.arena, b.field)
	if err := b.buildScope(top, nd.Elements, nil, 0); err != nil {
		return nil, err
	}
	return top, nil
}

type scope[T any] struct {
	sc    *circuit.SubCircuit[T]
	nodes map[string]circuit.NodeID
}

func (s *scope[T]) node(name string) (circuit.NodeID, error) {
	if name == "0" || strings.EqualFold(name, circuit.GroundName) {
		return s.sc.Arena().Ground(), nil
	}
	if strings.Contains(name, ".") {
		return 0, errors.Wrapf(ErrSyntax, "node name %q contains a dot", name)
	}
	if id, ok := s.nodes[name]; ok {
		return id, nil
	}
	id := s.sc.AddNode(name)
	s.nodes[name] = id
	return id, nil
}

func (s *scope[T]) resolve(names []string) ([]circuit.NodeID, error) {
	ids := make([]circuit.NodeID, len(names))
	for i, name := range names {
		id, err := s.node(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// buildScope adds elems as instances of sc. ports are the subcircuit's
// terminal names, nil at top level.
func (b *Builder[T]) buildScope(sc *circuit.SubCircuit[T], elems []Element, ports []string, depth int) error {
	if depth > maxDepth {
		return errors.Wrapf(ErrSyntax, "subcircuit nesting deeper than %d", maxDepth)
	}

	s := &scope[T]{sc: sc, nodes: make(map[string]circuit.NodeID)}
	for _, port := range ports {
		id, err := sc.Node(port)
		if err != nil {
			return err
		}
		s.nodes[port] = id
	}

	coupled, err := couplings(elems)
	if err != nil {
		return err
	}
	byName := make(map[string]Element, len(elems))
	for _, e := range elems {
		byName[strings.ToLower(e.Name)] = e
	}

	for _, e := range elems {
		if _, ok := coupled[strings.ToLower(e.Name)]; ok {
			continue
		}

		var d circuit.Device[T]
		switch e.Type {
		case "X":
			d, err = b.instantiate(s, e, depth)
		case "K":
			d, err = b.coupling(s, e, byName)
		default:
			d, err = b.primitive(s, e)
		}
		if err != nil {
			return errors.Wrapf(err, "element %s", e.Name)
		}

		if _, err := sc.Instance(e.Name); err == nil {
			return errors.Wrapf(ErrSyntax, "duplicate element %s", e.Name)
		}
		if err := sc.SetInstance(e.Name, d); err != nil {
			return err
		}
	}
	return nil
}

// couplings returns the lower-case names of inductors absorbed by K
// elements.
func couplings(elems []Element) (map[string]string, error) {
	coupled := make(map[string]string)
	for _, e := range elems {
		if e.Type != "K" {
			continue
		}
		for _, key := range []string{"ind1", "ind2"} {
			name := strings.ToLower(e.Params[key])
			if other, ok := coupled[name]; ok {
				return nil, errors.Wrapf(ErrUnsupported, "inductor %s coupled by both %s and %s", e.Params[key], other, e.Name)
			}
			coupled[name] = e.Name
		}
	}
	return coupled, nil
}

func (b *Builder[T]) value(e Element) (T, error) {
	if e.Symbol == "" {
		return b.field.FromFloat(e.Value), nil
	}
	if b.symbol == nil {
		return b.field.Zero(), errors.Wrapf(ErrSymbolicValue, "{%s}", e.Symbol)
	}
	return b.symbol(e.Symbol)
}

// extra parses name=value parameters of an element.
func (b *Builder[T]) extra(e Element, params map[string]T, names ...string) error {
	for _, name := range names {
		raw, ok := e.Params[name]
		if !ok {
			continue
		}
		v, err := ParseValue(raw)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", name)
		}
		params[name] = b.field.FromFloat(v)
	}
	return nil
}

func (b *Builder[T]) primitive(s *scope[T], e Element) (circuit.Device[T], error) {
	k, ok := device.Lookup(e.Type)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupported, "element type %s, want one of %s", e.Type, strings.Join(device.Kinds(), ""))
	}

	nodes := e.Nodes
	if e.Type == "E" || e.Type == "G" {
		// Netlist order is out+ out- in+ in-.
		nodes = []string{e.Nodes[2], e.Nodes[3], e.Nodes[0], e.Nodes[1]}
	}
	ids, err := s.resolve(nodes)
	if err != nil {
		return nil, err
	}

	params := make(map[string]T)
	switch e.Type {
	case "D":
		if name, ok := e.Params["model"]; ok {
			model, err := b.model(name, "D")
			if err != nil {
				return nil, err
			}
			params["is"] = b.field.FromFloat(model.Params["is"])
			params["n"] = b.field.FromFloat(model.Params["n"])
		}
	case "Q":
		model, err := b.model(e.Params["model"], "NPN", "PNP")
		if err != nil {
			return nil, err
		}
		// Parameters the device does not model (rb, ikf, ...) are ignored.
		for _, name := range device.BjtParams() {
			if v, ok := model.Params[name]; ok {
				params[name] = b.field.FromFloat(v)
			}
		}
	case "R":
		if err := b.extra(e, params, "tc1", "tc2"); err != nil {
			return nil, err
		}
		fallthrough
	default:
		v, err := b.value(e)
		if err != nil {
			return nil, err
		}
		params[k.Value] = v
	}

	return device.New(k.Letter, b.arena, b.field, ids, params)
}

func (b *Builder[T]) model(name string, types ...string) (ModelParam, error) {
	model, ok := b.data.Models[strings.ToLower(name)]
	if !ok {
		return ModelParam{}, errors.Wrapf(ErrSyntax, "undefined model %s", name)
	}
	for _, t := range types {
		if model.Type == t {
			return model, nil
		}
	}
	return ModelParam{}, errors.Wrapf(ErrSyntax, "model %s is a %s, want %s", name, model.Type, strings.Join(types, " or "))
}

func (b *Builder[T]) coupling(s *scope[T], e Element, byName map[string]Element) (circuit.Device[T], error) {
	var nodes []string
	params := make(map[string]T)
	for i, key := range []string{"ind1", "ind2"} {
		l, ok := byName[strings.ToLower(e.Params[key])]
		if !ok || l.Type != "L" {
			return nil, errors.Wrapf(ErrSyntax, "%s is not an inductor in this scope", e.Params[key])
		}
		v, err := b.value(l)
		if err != nil {
			return nil, err
		}
		params["l"+strconv.Itoa(i+1)] = v
		nodes = append(nodes, l.Nodes...)
	}
	ids, err := s.resolve(nodes)
	if err != nil {
		return nil, err
	}
	params["k"] = b.field.FromFloat(e.Value)
	return device.New("K", b.arena, b.field, ids, params)
}

func (b *Builder[T]) instantiate(s *scope[T], e Element, depth int) (circuit.Device[T], error) {
	name := e.Params["subckt"]
	def, ok := b.data.Subckts[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrSyntax, "undefined subcircuit %s", name)
	}
	if len(e.Nodes) != len(def.Ports) {
		return nil, &circuit.ArityMismatchError{Want: len(def.Ports), Got: len(e.Nodes)}
	}

	child := circuit.NewSubCircuit[T](b.arena, b.field, def.Ports...)
	if err := b.buildScope(child, def.Elements, def.Ports, depth+1); err != nil {
		return nil, errors.Wrapf(err, "in subcircuit %s", def.Name)
	}

	ids, err := s.resolve(e.Nodes)
	if err != nil {
		return nil, err
	}
	conn := make(map[string]circuit.NodeID, len(ids))
	for i, port := range def.Ports {
		conn[port] = ids[i]
	}
	if err := child.ConnectTerminals(conn); err != nil {
		return nil, err
	}
	return child, nil
}
