package analysis

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/matrix"
)

var ErrNoConvergence = errors.New("failed to converge")

type OperatingPoint struct {
	BaseAnalysis
	solution []float64
}

func NewOP(opts ...Option) *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(opts...),
	}
}

func (op *OperatingPoint) Execute() (err error) {
	if op.Circuit == nil {
		return ErrCircuitNotSet
	}
	defer func(start time.Time) { observeRun(OP, start, err) }(time.Now())

	x, err := op.solveDC(op.Circuit, nil)
	if err != nil {
		return err
	}
	op.solution = x
	op.StoreResult(op.solutionKeys(op.Circuit), x)
	op.logger.Info("operating point solved", "unknowns", len(x))
	return nil
}

// Solution returns the converged state vector in the circuit's local order,
// including the reference node.
func (op *OperatingPoint) Solution() []float64 {
	return append([]float64(nil), op.solution...)
}

// solveDC finds x with i(x) + U = 0, starting from x0 (zero when nil). When
// plain Newton fails it retries with gmin stepping.
func (a *BaseAnalysis) solveDC(ckt circuit.Device[float64], x0 []float64) ([]float64, error) {
	ref, err := a.refIndex(ckt)
	if err != nil {
		return nil, err
	}

	n := ckt.N()
	if n < 2 {
		return make([]float64, n), nil
	}
	mat, err := matrix.NewMatrix(n-1, false)
	if err != nil {
		return nil, err
	}
	defer mat.Destroy()

	x := make([]float64, n)
	if x0 != nil {
		if len(x0) != n {
			return nil, errors.Wrapf(matrix.ErrShape, "initial state of %d for %d unknowns", len(x0), n)
		}
		copy(x, x0)
		x[ref] = 0
	}

	sol, iters, err := a.doNRiter(ckt, mat, ref, x, 0)
	if err == nil {
		newtonIterations.Observe(float64(iters))
		return sol, nil
	}
	a.logger.Debug("newton failed, stepping gmin", "error", err)
	gminSteppingTotal.Inc()

	// Gmin stepping: each stage starts from the previous stage's solution.
	for gmin := a.convergence.Gmin; gmin >= 1e-12; gmin /= 10 {
		x, _, err = a.doNRiter(ckt, mat, ref, x, gmin)
		if err != nil {
			return nil, errors.Wrapf(err, "gmin stepping failed at %g", gmin)
		}
	}

	sol, iters, err = a.doNRiter(ckt, mat, ref, x, 0)
	if err != nil {
		return nil, errors.Wrap(err, "final solution failed with zero gmin")
	}
	newtonIterations.Observe(float64(iters))
	return sol, nil
}

// doNRiter runs Newton iterations on the reduced system. gmin is added from
// every node to the reference.
func (a *BaseAnalysis) doNRiter(ckt circuit.Device[float64], mat *matrix.CircuitMatrix, ref int, x []float64, gmin float64) ([]float64, int, error) {
	numNodes := len(ckt.Nodes())
	limit := ckt.IsNonlinear() && a.convergence.MaxStep > 0

	x = append([]float64(nil), x...)
	for iter := range a.convergence.MaxIter {
		g, r, err := a.residual(ckt, x)
		if err != nil {
			return nil, iter, err
		}
		for k := 0; k < numNodes; k++ {
			if k != ref {
				r[k] += gmin * x[k]
			}
		}

		reduced, err := matrix.RemoveRowCol(ref, g)
		if err != nil {
			return nil, iter, err
		}
		rhs, err := matrix.RemoveEntry(ref, r)
		if err != nil {
			return nil, iter, err
		}
		for i := range rhs {
			rhs[i] = -rhs[i]
		}

		if err := mat.LoadReal(reduced[0], rhs); err != nil {
			return nil, iter, err
		}
		// The reference is a node, so the reduced system has numNodes-1
		// node rows ahead of the branch rows.
		if err := mat.LoadGmin(gmin, numNodes-1); err != nil {
			return nil, iter, err
		}
		if err := mat.Solve(); err != nil {
			return nil, iter, errors.Wrap(err, "matrix solve error")
		}
		dx := matrix.InsertEntry(ref, mat.Solution(), 0)

		next := make([]float64, len(x))
		for i := range x {
			step := dx[i]
			if limit && i < numNodes && math.Abs(step) > a.convergence.MaxStep {
				step = math.Copysign(a.convergence.MaxStep, step)
			}
			next[i] = x[i] + step
		}
		a.logger.Debug("newton iteration", "iteration", iter+1, "gmin", gmin)

		if a.CheckConvergence(x, next) {
			return next, iter + 1, nil
		}
		x = next
	}

	return nil, a.convergence.MaxIter, errors.Wrapf(ErrNoConvergence, "in %d iterations", a.convergence.MaxIter)
}

// residual returns the Jacobian G(x) and i(x) + U.
func (a *BaseAnalysis) residual(ckt circuit.Device[float64], x []float64) (*matrix.Dense[float64], []float64, error) {
	g, err := ckt.G(x, a.env)
	if err != nil {
		return nil, nil, err
	}
	i, err := ckt.I(x, a.env)
	if err != nil {
		return nil, nil, err
	}
	u, err := ckt.U(0, a.env)
	if err != nil {
		return nil, nil, err
	}
	r := make([]float64, len(i))
	for k := range i {
		r[k] = i[k] + u[k]
	}
	return g, r, nil
}
