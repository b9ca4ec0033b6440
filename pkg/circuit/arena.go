package circuit

import (
	"fmt"

	"github.com/edp1096/toy-circuit/internal/consts"
)

// GroundName is the reserved node name that resolves to the ground node at
// every hierarchy level.
const GroundName = "gnd"

// NodeID is a stable handle to a node in an Arena. Node identity is handle
// equality.
type NodeID int

// BranchID is a stable handle to a branch in an Arena.
type BranchID int

// Branch is an unknown current. Positive current flows from Plus to Minus,
// the local node names of the owning device. Arena entries never change, so
// copies of a device share them; the nodes they resolve to depend on the
// owner's terminal bindings (see Base.BranchEnds).
type Branch struct {
	Plus  string
	Minus string
	Name  string
}

// Arena owns every node and branch of a circuit tree. Devices hold handles
// into it, so copies of a circuit share node identity.
type Arena struct {
	nodes    []string
	branches []Branch
}

func NewArena() *Arena {
	return &Arena{nodes: []string{GroundName}}
}

func (a *Arena) Ground() NodeID { return 0 }

func (a *Arena) NewNode(name string) NodeID {
	a.nodes = append(a.nodes, name)
	return NodeID(len(a.nodes) - 1)
}

// NodeName returns the name the node was created with, possibly empty.
func (a *Arena) NodeName(id NodeID) string {
	if int(id) < 0 || int(id) >= len(a.nodes) {
		return ""
	}
	return a.nodes[id]
}

// NodeLabel is NodeName with a fallback for anonymous nodes.
func (a *Arena) NodeLabel(id NodeID) string {
	if name := a.NodeName(id); name != "" {
		return name
	}
	return fmt.Sprintf("n%d", int(id))
}

func (a *Arena) NewBranch(plus, minus, name string) BranchID {
	a.branches = append(a.branches, Branch{Plus: plus, Minus: minus, Name: name})
	return BranchID(len(a.branches) - 1)
}

func (a *Arena) Branch(id BranchID) Branch {
	return a.branches[id]
}

func (a *Arena) NumNodes() int    { return len(a.nodes) }
func (a *Arena) NumBranches() int { return len(a.branches) }

// Env carries the environment parameters passed to every stamp.
type Env struct {
	Temp float64 // Kelvin
}

func DefaultEnv() *Env {
	return &Env{Temp: consts.DEFAULT_TEMP}
}

// Temperature returns the temperature in Kelvin; a nil or zero Env means the
// default temperature.
func (e *Env) Temperature() float64 {
	if e == nil || e.Temp <= 0 {
		return consts.DEFAULT_TEMP
	}
	return e.Temp
}

// KT returns Boltzmann's constant times the temperature.
func (e *Env) KT() float64 {
	return consts.BOLTZMANN * e.Temperature()
}
