package dae

import (
	"errors"
	"fmt"
)

// Domain errors for DAE integration.
var (
	// ErrInvalidProblem indicates a setup mismatch between the evaluator
	// and the supplied problem (dimensions, bandwidths, tolerances).
	// Structural and fatal: the solver never enters Stepping.
	ErrInvalidProblem = errors.New("dae: invalid problem setup")

	// ErrConvergence indicates Newton iteration failed to converge after
	// exhausting the step-size retries.
	ErrConvergence = errors.New("dae: corrector failed to converge")

	// ErrStepTooSmall indicates the adapted step size reached its floor.
	ErrStepTooSmall = errors.New("dae: step size below minimum")

	// ErrMaxSteps indicates the step budget was exhausted before reaching
	// the requested output time. The solver remains resumable.
	ErrMaxSteps = errors.New("dae: maximum number of steps taken")

	// ErrNotInitialized indicates a solve was requested before Init.
	ErrNotInitialized = errors.New("dae: solver is not initialized")
)

// StepError carries the integration state at a terminal failure.
type StepError struct {
	Time    float64
	Step    float64 // attempted step size
	Iters   int     // Newton iterations in the last attempt
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v (t=%g, h=%g, %d newton iterations)", e.Wrapped, e.Time, e.Step, e.Iters)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
