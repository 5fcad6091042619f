// Package solver wraps nonlinear optimization behind a narrow contract.
//
// Callers describe one minimization (an objective, per-variable
// bounds, an initial guess) and receive either a Solution or one of
// two terminal outcomes: ErrInfeasible or ErrTimeout. The numerical
// method is an implementation detail; nothing above this package knows
// which algorithm ran.
//
// Key Components:
//
//   - Problem: one bounded minimization, with an error side channel
//     for objective evaluation failures
//   - Solver: the abstract solve interface
//   - NumericSolver: gonum Nelder-Mead with bound penalties
//
// Example usage:
//
//	s := solver.NewNumericSolver(30*time.Second, 1000)
//	sol, err := s.Solve(ctx, &solver.Problem{
//	    Objective: cost,
//	    Initial:   []float64{900},
//	    Bounds:    []solver.Bound{{Min: 850, Max: 950}},
//	})
//	if errors.Is(err, solver.ErrTimeout) {
//	    // report, do not retry within this cycle
//	}
//
// The solver is designed to be:
//   - Bounded: every solve respects a wall-clock budget and the
//     caller's context deadline, whichever is sooner
//   - Deterministic: same problem, same starting point, same result
//   - Opaque: callers never see gonum types
package solver
