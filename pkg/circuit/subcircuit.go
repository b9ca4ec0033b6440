package circuit

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// SubCircuit is a device built from named child instances. Its unknowns are
// its own nodes, then the children's nodes (deduplicated by handle), then
// the children's branches in instance order.
type SubCircuit[T any] struct {
	Base[T]

	order     []string
	instances map[string]Device[T]

	// Index map state. seen holds each child's revision at the last rebuild
	// and builtAt the Base revision; any mismatch triggers a rebuild.
	allNodes    []NodeID
	allBranches []BranchID
	indexMap    map[string][]int
	seen        map[string]uint64
	builtAt     uint64
	built       bool
	builds      uint64
}

func NewSubCircuit[T any](a *Arena, f scalar.Field[T], terminals ...string) *SubCircuit[T] {
	return &SubCircuit[T]{
		Base:      NewBase[T]("X", a, f, terminals, nil),
		instances: make(map[string]Device[T]),
	}
}

// SetInstance adds or replaces the named child instance.
func (s *SubCircuit[T]) SetInstance(name string, d Device[T]) error {
	if name == "" || strings.Contains(name, ".") {
		return errors.Wrapf(ErrInvalidInstance, "instance name %q", name)
	}
	if d.Arena() != s.arena {
		return errors.Wrapf(ErrInvalidInstance, "instance %q belongs to another arena", name)
	}
	if _, ok := s.instances[name]; !ok {
		s.order = append(s.order, name)
	}
	s.instances[name] = d
	s.RebuildIndexMap()
	return nil
}

// Instance resolves a possibly dotted instance path.
func (s *SubCircuit[T]) Instance(path string) (Device[T], error) {
	head, rest, nested := strings.Cut(path, ".")
	d, ok := s.instances[head]
	if !ok {
		return nil, &DeviceNotFoundError{Instance: head}
	}
	if !nested {
		return d, nil
	}
	sub, ok := d.(*SubCircuit[T])
	if !ok {
		return nil, &DeviceNotFoundError{Instance: path}
	}
	return sub.Instance(rest)
}

// ReplaceInstance swaps the device at an existing, possibly dotted, path.
func (s *SubCircuit[T]) ReplaceInstance(path string, d Device[T]) error {
	head, rest, nested := strings.Cut(path, ".")
	cur, ok := s.instances[head]
	if !ok {
		return &DeviceNotFoundError{Instance: head}
	}
	if !nested {
		return s.SetInstance(head, d)
	}
	sub, ok := cur.(*SubCircuit[T])
	if !ok {
		return &DeviceNotFoundError{Instance: path}
	}
	return sub.ReplaceInstance(rest, d)
}

// Instances returns the instance names in insertion order.
func (s *SubCircuit[T]) Instances() []string {
	return append([]string(nil), s.order...)
}

// IndexMap returns the parent indices the named child's unknowns map onto.
func (s *SubCircuit[T]) IndexMap(name string) ([]int, error) {
	s.refresh()
	idx, ok := s.indexMap[name]
	if !ok {
		return nil, &DeviceNotFoundError{Instance: name}
	}
	return append([]int(nil), idx...), nil
}

// RebuildIndexMap recomputes the node and branch lists and every child's
// index map.
func (s *SubCircuit[T]) RebuildIndexMap() {
	seen := make(map[string]uint64, len(s.order))
	all := append([]NodeID(nil), s.Base.nodes...)
	var branches []BranchID
	for _, name := range s.order {
		d := s.instances[name]
		seen[name] = d.Revision()
		for _, n := range d.Nodes() {
			if !containsNode(all, n) {
				all = append(all, n)
			}
		}
		branches = append(branches, d.Branches()...)
	}

	nodePos := make(map[NodeID]int, len(all))
	for i, n := range all {
		nodePos[n] = i
	}
	branchPos := make(map[BranchID]int, len(branches))
	for i, b := range branches {
		if _, dup := branchPos[b]; !dup {
			branchPos[b] = len(all) + i
		}
	}

	indexMap := make(map[string][]int, len(s.order))
	for _, name := range s.order {
		d := s.instances[name]
		idx := make([]int, 0, d.N())
		for _, n := range d.Nodes() {
			idx = append(idx, nodePos[n])
		}
		for _, b := range d.Branches() {
			idx = append(idx, branchPos[b])
		}
		indexMap[name] = idx
	}

	s.allNodes = all
	s.allBranches = branches
	s.indexMap = indexMap
	s.seen = seen
	s.builtAt = s.Base.rev
	s.built = true
	s.builds++
}

func (s *SubCircuit[T]) stale() bool {
	if !s.built || s.builtAt != s.Base.rev {
		return true
	}
	for _, name := range s.order {
		if s.instances[name].Revision() != s.seen[name] {
			return true
		}
	}
	return false
}

func (s *SubCircuit[T]) refresh() {
	if s.stale() {
		s.RebuildIndexMap()
	}
}

// Revision changes whenever this subcircuit or any descendant changes
// structure.
func (s *SubCircuit[T]) Revision() uint64 {
	s.refresh()
	return s.Base.rev + s.builds
}

func (s *SubCircuit[T]) Nodes() []NodeID {
	s.refresh()
	return s.allNodes
}

func (s *SubCircuit[T]) Branches() []BranchID {
	s.refresh()
	return s.allBranches
}

func (s *SubCircuit[T]) N() int {
	s.refresh()
	return len(s.allNodes) + len(s.allBranches)
}

func (s *SubCircuit[T]) IsNonlinear() bool {
	for _, name := range s.order {
		if s.instances[name].IsNonlinear() {
			return true
		}
	}
	return false
}

func (s *SubCircuit[T]) NodeIndex(id NodeID) (int, error) {
	s.refresh()
	return indexOfNode(s.arena, s.allNodes, id)
}

func (s *SubCircuit[T]) BranchIndex(id BranchID) (int, error) {
	s.refresh()
	for i, b := range s.allBranches {
		if b == id {
			return len(s.allNodes) + i, nil
		}
	}
	return 0, &NotFoundError{Name: s.arena.Branch(id).Name}
}

// Node resolves a hierarchical name such as "I1.I2.net1".
func (s *SubCircuit[T]) Node(name string) (NodeID, error) {
	head, rest, nested := strings.Cut(name, ".")
	if !nested {
		return s.Base.Node(name)
	}
	d, ok := s.instances[head]
	if !ok {
		return 0, &NotFoundError{Name: head}
	}
	return d.Node(rest)
}

// NodeName is the inverse of Node: the returned name resolves back to id.
func (s *SubCircuit[T]) NodeName(id NodeID) (string, bool) {
	if own := s.arena.NodeName(id); own != "" {
		if n, err := s.Base.Node(own); err == nil && n == id {
			return own, true
		}
	}
	for _, name := range s.localNames() {
		if s.local[name] == id {
			return name, true
		}
	}
	for _, inst := range s.order {
		if name, ok := s.instances[inst].NodeName(id); ok {
			return inst + "." + name, true
		}
	}
	if containsNode(s.Base.nodes, id) {
		return s.arena.NodeLabel(id), true
	}
	return "", false
}

// BranchName labels a branch by the instance path that owns it.
func (s *SubCircuit[T]) BranchName(id BranchID) (string, bool) {
	for _, inst := range s.order {
		name, ok := s.instances[inst].BranchName(id)
		if !ok {
			continue
		}
		if name == "" {
			return inst, true
		}
		return inst + "." + name, true
	}
	return "", false
}

// ConnectTerminals rebinds the subcircuit's terminals and every child
// terminal that was attached to the replaced node.
func (s *SubCircuit[T]) ConnectTerminals(conn map[string]NodeID) error {
	olds := make(map[string]NodeID, len(conn))
	for term := range conn {
		if id, ok := s.local[term]; ok {
			olds[term] = id
		}
	}
	if err := s.Base.ConnectTerminals(conn); err != nil {
		return err
	}

	for _, term := range s.terminals {
		ext, ok := conn[term]
		if !ok || olds[term] == ext {
			continue
		}
		for _, inst := range s.order {
			d := s.instances[inst]
			child := make(map[string]NodeID)
			for _, ct := range d.Terminals() {
				if n, err := d.Node(ct); err == nil && n == olds[term] {
					child[ct] = ext
				}
			}
			if len(child) == 0 {
				continue
			}
			if err := d.ConnectTerminals(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Copy returns a structural copy: every container in the tree is new, node
// and branch handles are shared.
func (s *SubCircuit[T]) Copy() Device[T] {
	c := &SubCircuit[T]{
		Base:      s.Base.Clone(),
		order:     append([]string(nil), s.order...),
		instances: make(map[string]Device[T], len(s.instances)),
	}
	for name, d := range s.instances {
		c.instances[name] = d.Copy()
	}
	c.RebuildIndexMap()
	return c
}

func (s *SubCircuit[T]) assemble(stamp func(d Device[T], sub []T) (*matrix.Dense[T], error), x []T) (*matrix.Dense[T], error) {
	s.refresh()
	if err := CheckState[T](s, x); err != nil {
		return nil, err
	}
	out := matrix.NewSquare(s.field, s.N())
	for _, name := range s.order {
		idx := s.indexMap[name]
		var sub []T
		if x != nil {
			sub = matrix.Gather(x, idx)
		}
		m, err := stamp(s.instances[name], sub)
		if err != nil {
			return nil, err
		}
		if err := matrix.Scatter(out, m, idx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SubCircuit[T]) assembleVec(stamp func(d Device[T], sub []T) ([]T, error), x []T) ([]T, error) {
	s.refresh()
	if err := CheckState[T](s, x); err != nil {
		return nil, err
	}
	out := matrix.Zeros(s.field, s.N())
	for _, name := range s.order {
		idx := s.indexMap[name]
		var sub []T
		if x != nil {
			sub = matrix.Gather(x, idx)
		}
		v, err := stamp(s.instances[name], sub)
		if err != nil {
			return nil, err
		}
		if err := matrix.ScatterVec(s.field, out, v, idx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SubCircuit[T]) G(x []T, env *Env) (*matrix.Dense[T], error) {
	return s.assemble(func(d Device[T], sub []T) (*matrix.Dense[T], error) { return d.G(sub, env) }, x)
}

func (s *SubCircuit[T]) C(x []T, env *Env) (*matrix.Dense[T], error) {
	return s.assemble(func(d Device[T], sub []T) (*matrix.Dense[T], error) { return d.C(sub, env) }, x)
}

func (s *SubCircuit[T]) U(t float64, env *Env) ([]T, error) {
	return s.assembleVec(func(d Device[T], _ []T) ([]T, error) { return d.U(t, env) }, nil)
}

func (s *SubCircuit[T]) I(x []T, env *Env) ([]T, error) {
	return s.assembleVec(func(d Device[T], sub []T) ([]T, error) { return d.I(sub, env) }, x)
}

// CY assumes the noise sources of different instances are uncorrelated.
func (s *SubCircuit[T]) CY(x []T, kT T, env *Env) (*matrix.Dense[T], error) {
	return s.assemble(func(d Device[T], sub []T) (*matrix.Dense[T], error) { return d.CY(sub, kT, env) }, x)
}

// NameStateVector maps a state vector to node names and branch labels.
// Branches are labelled i(<owner>) when the owner is known and
// i<analysis><k> otherwise.
func NameStateVector[T any](d Device[T], x []T, analysis string) (map[string]T, error) {
	if len(x) != d.N() {
		return nil, errors.Wrapf(matrix.ErrShape, "state vector of %d for %d unknowns", len(x), d.N())
	}
	nodes := d.Nodes()
	out := make(map[string]T, len(x))
	for i, n := range nodes {
		name, ok := d.NodeName(n)
		if !ok {
			name = d.Arena().NodeLabel(n)
		}
		out[name] = x[i]
	}
	for k, b := range d.Branches() {
		label := "i" + analysis + strconv.Itoa(k)
		if name, ok := d.BranchName(b); ok && name != "" {
			label = "i(" + name + ")"
		}
		out[label] = x[len(nodes)+k]
	}
	return out, nil
}
