package dae

import (
	"math"

	"github.com/avereen/kinsim/internal/linalg"
)

// ResidJacEval supplies residuals and, optionally, Jacobians for an
// implicit DAE system F(t, y, y') = 0.
//
// Implementations must be evaluable repeatedly at trial states without
// mutating solver-owned state: the solver passes borrowed slices and may
// call Residual many times per step at different trial points.
type ResidJacEval interface {
	// NumEquations returns the system dimension.
	NumEquations() int

	// Bandwidths returns the lower and upper Jacobian half-bandwidths.
	Bandwidths() (kl, ku int)

	// InitialConditions fills y and yp with the state at t0.
	InitialConditions(t0 float64, y, yp []float64) error

	// Residual evaluates F(t, y, yp) into res.
	Residual(t float64, y, yp, res []float64) error

	// Jacobian fills m with dF/dy + alpha*dF/dyp, where alpha is the
	// time-discretization coefficient supplied by the solver. Returning
	// ok=false declines; the solver then falls back to a banded
	// finite-difference approximation.
	Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (ok bool, err error)
}

// State is the solver life-cycle state.
type State int

const (
	Uninitialized State = iota
	Initialized
	Stepping
	Converged
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Stepping:
		return "stepping"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Stats counts the work performed since Init.
type Stats struct {
	Steps        int // accepted steps
	ResidEvals   int
	JacEvals     int
	NewtonIters  int
	ErrTestFails int
	ConvFails    int // corrector failures, including singular Jacobians
}

// wrmsNorm returns the weighted root-mean-square norm of v under the
// error weights w.
func wrmsNorm(v, w []float64) float64 {
	sum := 0.0
	for i := range v {
		e := v[i] * w[i]
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(v)))
}

// errorWeights fills w with 1/(rtol*|y| + atol_i). atol may be a single
// scalar applied to every component or a per-component vector.
func errorWeights(y []float64, rtol float64, atol []float64, w []float64) {
	for i := range y {
		a := atol[0]
		if len(atol) > 1 {
			a = atol[i]
		}
		w[i] = 1.0 / (rtol*math.Abs(y[i]) + a)
	}
}
