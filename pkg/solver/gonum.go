package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
)

// penaltyWeight scales the quadratic penalty applied outside bounds.
// The objective stays continuous across the boundary, which derivative-
// free methods need to walk back into the feasible region.
const penaltyWeight = 1e6

// NumericSolver solves bounded problems with gonum's Nelder-Mead
// method, enforcing bounds by penalty and clamping the final point.
type NumericSolver struct {
	// Timeout bounds each solve's wall clock. A context deadline that
	// is sooner wins.
	Timeout time.Duration

	// MaxIterations bounds the method's major iterations.
	MaxIterations int
}

// NewNumericSolver creates a solver with the given budget.
func NewNumericSolver(timeout time.Duration, maxIterations int) *NumericSolver {
	return &NumericSolver{Timeout: timeout, MaxIterations: maxIterations}
}

// Solve minimizes p.Objective within p.Bounds starting from p.Initial.
func (s *NumericSolver) Solve(ctx context.Context, p *Problem) (Solution, error) {
	if len(p.Initial) == 0 {
		return Solution{}, fmt.Errorf("%w: no decision variables", ErrInfeasible)
	}
	if len(p.Bounds) != len(p.Initial) {
		return Solution{}, fmt.Errorf("%d bounds for %d decision variables", len(p.Bounds), len(p.Initial))
	}
	for i, b := range p.Bounds {
		if b.Min > b.Max {
			return Solution{}, fmt.Errorf("%w: bound %d inverted [%g, %g]", ErrInfeasible, i, b.Min, b.Max)
		}
	}

	budget := s.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); budget <= 0 || remaining < budget {
			budget = remaining
		}
	}
	if budget <= 0 && s.Timeout > 0 {
		return Solution{}, fmt.Errorf("cycle budget exhausted before solve: %w", ErrTimeout)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return p.Objective(clamp(x, p.Bounds)) + penalty(x, p.Bounds)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		Runtime:         budget,
	}

	result, err := optimize.Minimize(problem, append([]float64(nil), p.Initial...), settings, &optimize.NelderMead{})
	if p.Err != nil {
		return Solution{}, p.Err
	}
	if result != nil && result.Status == optimize.RuntimeLimit {
		return Solution{}, fmt.Errorf("solve exceeded %s: %w", budget, ErrTimeout)
	}
	if err != nil {
		return Solution{}, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return Solution{}, fmt.Errorf("%w: objective unbounded at solution", ErrInfeasible)
	}

	x := clamp(result.X, p.Bounds)
	return Solution{
		X:          x,
		Value:      p.Objective(x),
		Iterations: result.Stats.MajorIterations,
	}, nil
}

func clamp(x []float64, bounds []Bound) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, bounds[i].Min), bounds[i].Max)
	}
	return out
}

func penalty(x []float64, bounds []Bound) float64 {
	var p float64
	for i, v := range x {
		if v < bounds[i].Min {
			d := bounds[i].Min - v
			p += d * d
		} else if v > bounds[i].Max {
			d := v - bounds[i].Max
			p += d * d
		}
	}
	return penaltyWeight * p
}
