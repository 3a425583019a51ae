// Package dae integrates implicit differential-algebraic systems
// F(t, y, y') = 0 with backward-differentiation formulas.
//
// The package defines the evaluator capability and the solver driving it:
//
//   - [ResidJacEval]: supplies residuals and (optionally) Jacobians
//   - [Solver]: BDF integrator with a Newton corrector and banded direct
//     linear solves through [github.com/avereen/kinsim/internal/linalg]
//
// # Example
//
//	eval := reactor.NewDecay(1.0)
//	s := dae.NewSolver(eval, errlog.New())
//	s.SetTolerances(1e-6, 1e-10)
//	if err := s.Init(0, nil, nil); err != nil { ... }
//	err := s.Solve(ctx, 1.0)
//
// # Failure handling
//
// Transient numerical trouble (a singular iteration matrix, a stalled
// Newton iteration, an error-test rejection) is retried internally with a
// reduced step size. Only exhausting the bounded retries, or driving the
// step below its floor, surfaces as a terminal error and moves the solver
// to [Failed]. Structural problems (dimension mismatches, invalid
// bandwidths) fail immediately at [Solver.Init].
//
// # Thread safety
//
// Solver instances are NOT thread-safe. Independent instances owning
// disjoint evaluators and reporters may run concurrently.
package dae
