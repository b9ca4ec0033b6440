// Package analysis contains the drivers that consume assembled MNA matrices:
// DC operating point and sweep, AC, noise and loop gain.
package analysis

import (
	"log/slog"
	"math"
	"math/cmplx"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
)

const (
	OP  = "op"
	DC  = "dc"
	AC  = "ac"
	NZ  = "noise"
	LG  = "loopgain"
	LGA = "loopgain_ac"
)

var ErrCircuitNotSet = errors.New("circuit not set")

type Analysis interface {
	Setup(ckt circuit.Device[float64]) error
	Execute() error
	GetResults() map[string][]float64
}

type Convergence struct {
	MaxIter int
	Abstol  float64
	Reltol  float64
	// Gmin is the starting conductance for gmin stepping.
	Gmin float64
	// MaxStep limits the node voltage update per Newton iteration on
	// nonlinear circuits. Zero disables it.
	MaxStep float64
}

func DefaultConvergence() Convergence {
	return Convergence{
		MaxIter: 100,
		Abstol:  1e-12,
		Reltol:  1e-6,
		Gmin:    1e-2,
		MaxStep: 0.5,
	}
}

type Option func(*BaseAnalysis)

func WithLogger(l *slog.Logger) Option {
	return func(a *BaseAnalysis) { a.logger = l }
}

func WithEnv(env *circuit.Env) Option {
	return func(a *BaseAnalysis) { a.env = env }
}

func WithConvergence(c Convergence) Option {
	return func(a *BaseAnalysis) { a.convergence = c }
}

// WithRefNode sets the reference node whose row and column are removed
// before solving.
func WithRefNode(name string) Option {
	return func(a *BaseAnalysis) { a.refNode = name }
}

type BaseAnalysis struct {
	Circuit     circuit.Device[float64]
	RunID       string
	logger      *slog.Logger
	env         *circuit.Env
	refNode     string
	results     map[string][]float64 // key: variable name, value: result by sweep point
	convergence Convergence
}

func NewBaseAnalysis(opts ...Option) *BaseAnalysis {
	ba := &BaseAnalysis{
		RunID:       uuid.NewString(),
		logger:      slog.Default(),
		env:         circuit.DefaultEnv(),
		refNode:     circuit.GroundName,
		results:     make(map[string][]float64),
		convergence: DefaultConvergence(),
	}
	for _, opt := range opts {
		opt(ba)
	}
	ba.logger = ba.logger.With("run_id", ba.RunID)
	return ba
}

func (a *BaseAnalysis) Setup(ckt circuit.Device[float64]) error {
	if ckt == nil {
		return ErrCircuitNotSet
	}
	a.Circuit = ckt
	return nil
}

func (a *BaseAnalysis) Env() *circuit.Env { return a.env }

// refIndex returns the local index of the reference node.
func (a *BaseAnalysis) refIndex(ckt circuit.Device[float64]) (int, error) {
	return refIndex(ckt, a.refNode)
}

func (a *BaseAnalysis) CheckConvergence(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := range oldSol {
		diff := math.Abs(newSol[i] - oldSol[i])
		tol := a.convergence.Reltol*math.Max(math.Abs(newSol[i]), math.Abs(oldSol[i])) + a.convergence.Abstol
		if diff > tol {
			return false
		}
	}
	return true
}

// solutionKeys names every unknown of ckt as V(node) or I(branch owner). The
// reference node gets an empty key.
func (a *BaseAnalysis) solutionKeys(ckt circuit.Device[float64]) []string {
	nodes := ckt.Nodes()
	keys := make([]string, 0, ckt.N())
	for _, n := range nodes {
		name, ok := ckt.NodeName(n)
		if !ok {
			name = ckt.Arena().NodeLabel(n)
		}
		if name == a.refNode {
			keys = append(keys, "")
			continue
		}
		keys = append(keys, "V("+name+")")
	}
	for k, b := range ckt.Branches() {
		name, ok := ckt.BranchName(b)
		if !ok || name == "" {
			name = "branch" + strconv.Itoa(k)
		}
		keys = append(keys, "I("+name+")")
	}
	return keys
}

func (a *BaseAnalysis) StoreResult(keys []string, solution []float64) {
	for i, key := range keys {
		if key == "" {
			continue
		}
		a.results[key] = append(a.results[key], solution[i])
	}
}

func (a *BaseAnalysis) StoreACResult(freq float64, keys []string, solution []complex128) {
	a.results["FREQ"] = append(a.results["FREQ"], freq)

	for i, name := range keys {
		if name == "" {
			continue
		}
		value := solution[i]

		// Magnitude
		magName := name + "_MAG"
		a.results[magName] = append(a.results[magName], cmplx.Abs(value))

		// Phase - degree
		phaseName := name + "_PHASE"
		a.results[phaseName] = append(a.results[phaseName], cmplx.Phase(value)*180.0/math.Pi)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
