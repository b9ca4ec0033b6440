package circuit

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/matrix"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

// Device is anything that can stamp itself into MNA matrices: primitives,
// subcircuits and proxies. All matrices and vectors are sized N() and
// indexed in the device's local unknown order: nodes first, then branches.
//
// A nil x is treated as the all-zero state vector.
type Device[T any] interface {
	Kind() string
	Arena() *Arena
	Field() scalar.Field[T]
	Terminals() []string
	Nodes() []NodeID
	Branches() []BranchID
	N() int
	Params() map[string]T
	Revision() uint64
	IsNonlinear() bool

	Node(name string) (NodeID, error)
	NodeName(id NodeID) (string, bool)
	BranchName(id BranchID) (string, bool)
	NodeIndex(id NodeID) (int, error)
	BranchIndex(id BranchID) (int, error)
	ConnectTerminals(conn map[string]NodeID) error
	Copy() Device[T]

	G(x []T, env *Env) (*matrix.Dense[T], error)
	C(x []T, env *Env) (*matrix.Dense[T], error)
	U(t float64, env *Env) ([]T, error)
	I(x []T, env *Env) ([]T, error)
	CY(x []T, kT T, env *Env) (*matrix.Dense[T], error)
}

// Base carries the bookkeeping shared by every device. Concrete devices embed
// it and override the stamps they contribute to; the defaults are zero.
type Base[T any] struct {
	kind      string
	arena     *Arena
	field     scalar.Field[T]
	terminals []string
	nodes     []NodeID
	branches  []BranchID
	local     map[string]NodeID
	params    map[string]T
	rev       uint64
}

// NewBase creates a fresh node for each terminal, named after the terminal.
func NewBase[T any](kind string, a *Arena, f scalar.Field[T], terminals []string, params map[string]T) Base[T] {
	b := Base[T]{
		kind:      kind,
		arena:     a,
		field:     f,
		terminals: terminals,
		local:     make(map[string]NodeID),
		params:    make(map[string]T, len(params)),
	}
	for k, v := range params {
		b.params[k] = v
	}
	for _, term := range terminals {
		b.AddNode(term)
	}
	return b
}

// Clone returns a structural copy: new containers, same arena handles.
func (b *Base[T]) Clone() Base[T] {
	c := *b
	c.terminals = append([]string(nil), b.terminals...)
	c.nodes = append([]NodeID(nil), b.nodes...)
	c.branches = append([]BranchID(nil), b.branches...)
	c.local = make(map[string]NodeID, len(b.local))
	for k, v := range b.local {
		c.local[k] = v
	}
	c.params = make(map[string]T, len(b.params))
	for k, v := range b.params {
		c.params[k] = v
	}
	return c
}

func (b *Base[T]) Kind() string           { return b.kind }
func (b *Base[T]) Arena() *Arena          { return b.arena }
func (b *Base[T]) Field() scalar.Field[T] { return b.field }
func (b *Base[T]) Terminals() []string    { return b.terminals }
func (b *Base[T]) Nodes() []NodeID        { return b.nodes }
func (b *Base[T]) Branches() []BranchID   { return b.branches }
func (b *Base[T]) N() int                 { return len(b.nodes) + len(b.branches) }
func (b *Base[T]) Revision() uint64       { return b.rev }
func (b *Base[T]) IsNonlinear() bool      { return false }
func (b *Base[T]) bump()                  { b.rev++ }
func (b *Base[T]) Param(name string) T    { return b.params[name] }

func (b *Base[T]) Params() map[string]T {
	out := make(map[string]T, len(b.params))
	for k, v := range b.params {
		out[k] = v
	}
	return out
}

// AddNode creates an internal node. An empty name makes it anonymous.
func (b *Base[T]) AddNode(name string) NodeID {
	id := b.arena.NewNode(name)
	b.nodes = append(b.nodes, id)
	if name != "" {
		b.local[name] = id
	}
	b.bump()
	return id
}

// AddBranch creates a branch between two local node names.
func (b *Base[T]) AddBranch(plus, minus, name string) (BranchID, error) {
	for _, n := range []string{plus, minus} {
		if _, err := b.Node(n); err != nil {
			return 0, err
		}
	}
	id := b.arena.NewBranch(plus, minus, name)
	b.branches = append(b.branches, id)
	b.bump()
	return id, nil
}

// BranchEnds returns the nodes an own branch currently connects.
func (b *Base[T]) BranchEnds(id BranchID) (plus, minus NodeID, err error) {
	if _, err := b.BranchIndex(id); err != nil {
		return 0, 0, err
	}
	br := b.arena.Branch(id)
	if plus, err = b.Node(br.Plus); err != nil {
		return 0, 0, err
	}
	if minus, err = b.Node(br.Minus); err != nil {
		return 0, 0, err
	}
	return plus, minus, nil
}

func (b *Base[T]) Node(name string) (NodeID, error) {
	if name == GroundName {
		return b.arena.Ground(), nil
	}
	if id, ok := b.local[name]; ok {
		return id, nil
	}
	return 0, &NotFoundError{Name: name}
}

// localNames returns the local names with terminals first, in declaration
// order, then internal names sorted.
func (b *Base[T]) localNames() []string {
	names := append([]string(nil), b.terminals...)
	var internal []string
	for name := range b.local {
		if !contains(b.terminals, name) {
			internal = append(internal, name)
		}
	}
	sort.Strings(internal)
	return append(names, internal...)
}

func (b *Base[T]) NodeName(id NodeID) (string, bool) {
	if own := b.arena.NodeName(id); own != "" {
		if n, err := b.Node(own); err == nil && n == id {
			return own, true
		}
	}
	for _, name := range b.localNames() {
		if b.local[name] == id {
			return name, true
		}
	}
	if containsNode(b.nodes, id) {
		return b.arena.NodeLabel(id), true
	}
	return "", false
}

func (b *Base[T]) BranchName(id BranchID) (string, bool) {
	for _, br := range b.branches {
		if br == id {
			return b.arena.Branch(id).Name, true
		}
	}
	return "", false
}

func (b *Base[T]) NodeIndex(id NodeID) (int, error) {
	return indexOfNode(b.arena, b.nodes, id)
}

func (b *Base[T]) BranchIndex(id BranchID) (int, error) {
	for i, br := range b.branches {
		if br == id {
			return len(b.nodes) + i, nil
		}
	}
	return 0, &NotFoundError{Name: b.arena.Branch(id).Name}
}

// TerminalIndices returns the local index of each named node.
func (b *Base[T]) TerminalIndices(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		id, err := b.Node(name)
		if err != nil {
			return nil, err
		}
		if idx[k], err = b.NodeIndex(id); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// ConnectTerminals binds terminals to external nodes. The node a terminal
// was bound to is replaced in place, or dropped when the external node is
// already present.
func (b *Base[T]) ConnectTerminals(conn map[string]NodeID) error {
	for term := range conn {
		if !contains(b.terminals, term) {
			return &UnknownTerminalError{Terminal: term, Terminals: b.terminals}
		}
	}

	changed := false
	for _, term := range b.terminals {
		ext, ok := conn[term]
		if !ok {
			continue
		}
		old := b.local[term]
		if old == ext {
			continue
		}
		b.local[term] = ext
		b.rebind(old, ext)
		changed = true
	}
	if changed {
		b.bump()
	}
	return nil
}

func (b *Base[T]) rebind(old, ext NodeID) {
	stillUsed := false
	for _, id := range b.local {
		if id == old {
			stillUsed = true
			break
		}
	}
	present := containsNode(b.nodes, ext)

	switch {
	case !stillUsed && !present:
		for i, id := range b.nodes {
			if id == old {
				b.nodes[i] = ext
			}
		}
	case !stillUsed && present:
		kept := b.nodes[:0]
		for _, id := range b.nodes {
			if id != old {
				kept = append(kept, id)
			}
		}
		b.nodes = kept
	case stillUsed && !present:
		b.nodes = append(b.nodes, ext)
	}
}

// Zeros returns an N×N zero matrix.
func (b *Base[T]) Zeros() *matrix.Dense[T] {
	return matrix.NewSquare(b.field, b.N())
}

func (b *Base[T]) G(x []T, env *Env) (*matrix.Dense[T], error) { return b.Zeros(), nil }
func (b *Base[T]) C(x []T, env *Env) (*matrix.Dense[T], error) { return b.Zeros(), nil }

func (b *Base[T]) U(t float64, env *Env) ([]T, error) {
	return matrix.Zeros(b.field, b.N()), nil
}

func (b *Base[T]) CY(x []T, kT T, env *Env) (*matrix.Dense[T], error) {
	return b.Zeros(), nil
}

// LinearI is the current vector of a linear device, G(x)·x.
func LinearI[T any](d Device[T], x []T, env *Env) ([]T, error) {
	g, err := d.G(x, env)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return matrix.Zeros(d.Field(), d.N()), nil
	}
	return g.MulVec(x)
}

// Bind connects d's terminals positionally.
func Bind[T any](d Device[T], nodes ...NodeID) error {
	terms := d.Terminals()
	if len(nodes) != len(terms) {
		return &ArityMismatchError{Want: len(terms), Got: len(nodes)}
	}
	conn := make(map[string]NodeID, len(nodes))
	for i, n := range nodes {
		conn[terms[i]] = n
	}
	return d.ConnectTerminals(conn)
}

// CheckState validates the length of a state vector.
func CheckState[T any](d Device[T], x []T) error {
	if x != nil && len(x) != d.N() {
		return errors.Wrapf(matrix.ErrShape, "state vector of %d for %d unknowns", len(x), d.N())
	}
	return nil
}

func indexOfNode(a *Arena, nodes []NodeID, id NodeID) (int, error) {
	for i, n := range nodes {
		if n == id {
			return i, nil
		}
	}
	return 0, &NotFoundError{Name: a.NodeLabel(id)}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsNode(list []NodeID, id NodeID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
