package solver

import (
	"context"
	"errors"
)

// Error taxonomy. Both outcomes are reported to the caller, never
// retried within a cycle.
var (
	// ErrInfeasible means the solver found no feasible point.
	ErrInfeasible = errors.New("optimization infeasible")

	// ErrTimeout means the solver exceeded its wall-clock budget.
	ErrTimeout = errors.New("solver timed out")
)

// Bound limits one decision variable.
type Bound struct {
	Min float64
	Max float64
}

// Problem describes one optimization: minimize Objective over X subject
// to per-variable bounds, starting from Initial.
type Problem struct {
	// Objective evaluates the cost at x. Evaluation failures are
	// signalled through Err, checked after the solve returns.
	Objective func(x []float64) float64

	// Err, when non-nil after a solve, reports the first evaluation
	// failure raised inside Objective. The objective should set it and
	// return +Inf.
	Err error

	Initial []float64
	Bounds  []Bound
}

// Solution is a feasible minimizer found by the solver.
type Solution struct {
	X          []float64
	Value      float64
	Iterations int
}

// Solver runs nonlinear optimizations.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (Solution, error)
}
