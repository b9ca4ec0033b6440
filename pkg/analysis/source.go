package analysis

import (
	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/device"
)

var ErrNotComposite = errors.New("analysis needs a subcircuit")

func asSubCircuit[T any](d circuit.Device[T]) (*circuit.SubCircuit[T], error) {
	s, ok := d.(*circuit.SubCircuit[T])
	if !ok {
		return nil, errors.Wrapf(ErrNotComposite, "got %s device", d.Kind())
	}
	return s, nil
}

// sourceValue returns the value parameter of the primitive at path.
func sourceValue(ckt circuit.Device[float64], path string) (float64, error) {
	top, err := asSubCircuit(ckt)
	if err != nil {
		return 0, err
	}
	d, err := top.Instance(path)
	if err != nil {
		return 0, err
	}
	k, ok := device.Lookup(d.Kind())
	if !ok {
		return 0, errors.Wrapf(device.ErrUnknownKind, "instance %s is a %s", path, d.Kind())
	}
	return d.Params()[k.Value], nil
}

// withValue returns a structural copy of ckt in which the primitive at path is
// rebuilt with its value parameter set to v. Node handles are shared with
// ckt, so the copy has the same unknown layout.
func withValue(ckt circuit.Device[float64], path string, v float64) (*circuit.SubCircuit[float64], error) {
	top, err := asSubCircuit(ckt.Copy())
	if err != nil {
		return nil, err
	}
	d, err := top.Instance(path)
	if err != nil {
		return nil, err
	}
	k, ok := device.Lookup(d.Kind())
	if !ok {
		return nil, errors.Wrapf(device.ErrUnknownKind, "instance %s is a %s", path, d.Kind())
	}

	params := d.Params()
	params[k.Value] = v
	if k.Letter == "K" {
		delete(params, "m")
	}
	// Terminals may share a node, so bind by terminal name rather than by
	// the device's node list.
	nodes := make([]circuit.NodeID, len(k.Terminals))
	for i, term := range k.Terminals {
		if nodes[i], err = d.Node(term); err != nil {
			return nil, errors.Wrapf(err, "rebuilding %s", path)
		}
	}
	nd, err := device.New(k.Letter, d.Arena(), d.Field(), nodes, params)
	if err != nil {
		return nil, errors.Wrapf(err, "rebuilding %s", path)
	}
	if err := top.ReplaceInstance(path, nd); err != nil {
		return nil, err
	}
	return top, nil
}
