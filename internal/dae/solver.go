package dae

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/avereen/kinsim/internal/errlog"
	"github.com/avereen/kinsim/internal/linalg"
)

// Fixed-coefficient backward-differentiation formulas, orders 1-5:
//
//	y'_{n+1} = (y_{n+1} - sum a_i*y_{n+1-i}) / (beta*h)
var bdfTable = [5]struct {
	a    []float64
	beta float64
}{
	{[]float64{1.0}, 1.0},
	{[]float64{4.0 / 3.0, -1.0 / 3.0}, 2.0 / 3.0},
	{[]float64{18.0 / 11.0, -9.0 / 11.0, 2.0 / 11.0}, 6.0 / 11.0},
	{[]float64{48.0 / 25.0, -36.0 / 25.0, 16.0 / 25.0, -3.0 / 25.0}, 12.0 / 25.0},
	{[]float64{300.0 / 137.0, -300.0 / 137.0, 200.0 / 137.0, -75.0 / 137.0, 12.0 / 137.0}, 60.0 / 137.0},
}

const (
	defaultRtol      = 1.0e-6
	defaultAtol      = 1.0e-10
	defaultMaxOrder  = 5
	defaultMaxSteps  = 20000
	defaultMaxNewton = 6

	// newtonTol is the WRMS correction size accepted as converged; the
	// factor keeps the corrector error well below the step error test.
	newtonTol = 0.33

	// maxConvFails bounds consecutive corrector failures (including
	// singular iteration matrices) before the solver gives up.
	maxConvFails = 10

	// maxErrFails bounds consecutive error-test rejections per step.
	maxErrFails = 10

	// hRaiseThreshold: only grow the step when the error estimate is this
	// far below the acceptance limit. Growing resets the BDF history, so
	// it has to pay for itself.
	hRaiseThreshold = 0.02
)

// Solver integrates an implicit DAE system F(t, y, y') = 0 with
// backward-differentiation formulas of orders 1-5, a Newton corrector, and
// a banded direct linear solver. The solver owns its working vectors and
// iteration matrix outright; the evaluator is referenced, never owned.
//
// A Solver is not safe for concurrent use. Independent Solver instances
// with disjoint evaluators and reporters may run concurrently.
type Solver struct {
	eval ResidJacEval
	rep  *errlog.Reporter

	n     int
	state State
	mat   *linalg.BandMatrix

	rtol      float64
	atol      []float64
	maxOrder  int
	h0        float64
	hmin      float64
	hmax      float64
	tstop     float64
	maxSteps  int
	maxNewton int

	t     float64
	h     float64
	order int
	nseq  int // accepted steps since the last step-size change

	y, yp []float64
	hist  [][]float64 // hist[0] = y_n, hist[1] = y_{n-1}, ...
	nhist int

	ewt    []float64
	res    []float64
	delta  []float64
	ypred  []float64
	bterm  []float64
	ypsave []float64

	jacOK    bool
	jacAlpha float64
	fd       *fdScratch

	stats Stats
}

// NewSolver creates a solver for eval, reporting diagnostics to rep.
// A nil rep is replaced with an unconnected reporter.
func NewSolver(eval ResidJacEval, rep *errlog.Reporter) *Solver {
	if rep == nil {
		rep = errlog.New()
	}
	return &Solver{
		eval:      eval,
		rep:       rep,
		state:     Uninitialized,
		rtol:      defaultRtol,
		atol:      []float64{defaultAtol},
		maxOrder:  defaultMaxOrder,
		maxSteps:  defaultMaxSteps,
		maxNewton: defaultMaxNewton,
	}
}

// SetTolerances sets the relative tolerance and a scalar absolute
// tolerance applied to every component.
func (s *Solver) SetTolerances(rtol, atol float64) {
	s.rtol = rtol
	s.atol = []float64{atol}
}

// SetVectorTolerances sets the relative tolerance and per-component
// absolute tolerances.
func (s *Solver) SetVectorTolerances(rtol float64, atol []float64) {
	s.rtol = rtol
	s.atol = append([]float64(nil), atol...)
}

// SetMaxOrder caps the BDF order (1-5).
func (s *Solver) SetMaxOrder(k int) {
	if k < 1 {
		k = 1
	}
	if k > 5 {
		k = 5
	}
	s.maxOrder = k
}

// SetInitialStepSize sets the first attempted step size. Zero selects a
// heuristic based on the integration interval.
func (s *Solver) SetInitialStepSize(h0 float64) { s.h0 = h0 }

// SetMinStepSize sets the floor below which step reduction becomes fatal.
func (s *Solver) SetMinStepSize(hmin float64) { s.hmin = hmin }

// SetMaxStepSize caps the adapted step size. Zero means unbounded.
func (s *Solver) SetMaxStepSize(hmax float64) { s.hmax = hmax }

// SetStopTime sets a hard time the integrator will not step past.
func (s *Solver) SetStopTime(tstop float64) { s.tstop = tstop }

// SetMaxSteps bounds the number of accepted steps per Solve call.
func (s *Solver) SetMaxSteps(n int) { s.maxSteps = n }

// SetMaxNewtonIterations caps the corrector iterations per attempt.
func (s *Solver) SetMaxNewtonIterations(n int) {
	if n < 1 {
		n = 1
	}
	s.maxNewton = n
}

// Init validates the problem and prepares the solver at t0. If y0 is nil
// the evaluator's InitialConditions supplies the starting state; otherwise
// y0 and yp0 are copied in and must match the evaluator's dimension.
// Structural mismatches fail with ErrInvalidProblem and leave the solver
// unable to step.
func (s *Solver) Init(t0 float64, y0, yp0 []float64) error {
	n := s.eval.NumEquations()
	if n < 1 {
		return fmt.Errorf("%w: evaluator reports %d equations", ErrInvalidProblem, n)
	}
	if y0 != nil && len(y0) != n {
		return fmt.Errorf("%w: initial state has %d components, evaluator expects %d", ErrInvalidProblem, len(y0), n)
	}
	if yp0 != nil && len(yp0) != n {
		return fmt.Errorf("%w: initial derivative has %d components, evaluator expects %d", ErrInvalidProblem, len(yp0), n)
	}
	if len(s.atol) > 1 && len(s.atol) != n {
		return fmt.Errorf("%w: %d absolute tolerances for %d equations", ErrInvalidProblem, len(s.atol), n)
	}
	kl, ku := s.eval.Bandwidths()
	if kl < 0 || ku < 0 || kl >= n || ku >= n {
		return fmt.Errorf("%w: bandwidths kl=%d ku=%d for n=%d", ErrInvalidProblem, kl, ku, n)
	}

	s.n = n
	s.mat = linalg.New(n, kl, ku)
	s.y = make([]float64, n)
	s.yp = make([]float64, n)
	s.ewt = make([]float64, n)
	s.res = make([]float64, n)
	s.delta = make([]float64, n)
	s.ypred = make([]float64, n)
	s.bterm = make([]float64, n)
	s.ypsave = make([]float64, n)
	s.fd = newFDScratch(n)

	s.hist = make([][]float64, s.maxOrder+1)
	for i := range s.hist {
		s.hist[i] = make([]float64, n)
	}

	if y0 != nil {
		copy(s.y, y0)
		if yp0 != nil {
			copy(s.yp, yp0)
		}
	} else {
		if err := s.eval.InitialConditions(t0, s.y, s.yp); err != nil {
			return fmt.Errorf("%w: initial conditions: %v", ErrInvalidProblem, err)
		}
	}

	s.t = t0
	s.h = 0
	s.order = 1
	s.nseq = 0
	copy(s.hist[0], s.y)
	s.nhist = 1
	s.jacOK = false
	s.stats = Stats{}
	s.state = Initialized
	return nil
}

// State returns the solver life-cycle state.
func (s *Solver) State() State { return s.state }

// Time returns the current integration time.
func (s *Solver) Time() float64 { return s.t }

// Order returns the current BDF order.
func (s *Solver) Order() int { return s.order }

// StepSize returns the current step size.
func (s *Solver) StepSize() float64 { return s.h }

// Stats returns the work counters accumulated since Init.
func (s *Solver) Stats() Stats { return s.stats }

// Solution returns component k of the current solution.
func (s *Solver) Solution(k int) float64 { return s.y[k] }

// SolutionVector returns a copy of the current solution.
func (s *Solver) SolutionVector() []float64 {
	return append([]float64(nil), s.y...)
}

// Derivative returns component k of the current derivative.
func (s *Solver) Derivative(k int) float64 { return s.yp[k] }

// DerivativeVector returns a copy of the current derivative.
func (s *Solver) DerivativeVector() []float64 {
	return append([]float64(nil), s.yp...)
}

// Solve advances the integration to tout. On success the solver state is
// Converged; it may be re-entered with a later tout. Cancellation through
// ctx or exhaustion of the step budget returns an error but leaves the
// solver resumable in Stepping. Terminal numerical failures move the
// solver to Failed after reporting the last attempted state.
func (s *Solver) Solve(ctx context.Context, tout float64) error {
	switch s.state {
	case Uninitialized:
		return ErrNotInitialized
	case Failed:
		return fmt.Errorf("%w: solver has failed; call Init to restart", ErrNotInitialized)
	}
	if tout <= s.t {
		return fmt.Errorf("%w: tout=%g is not past t=%g", ErrInvalidProblem, tout, s.t)
	}

	s.state = Stepping
	if s.h == 0 {
		s.h = s.initialStep(tout)
	}

	steps := 0
	for s.t < tout {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= s.maxSteps {
			return fmt.Errorf("%w: %d steps before reaching t=%g", ErrMaxSteps, steps, tout)
		}
		if err := s.stepTo(tout); err != nil {
			return err
		}
		steps++
	}
	s.state = Converged
	return nil
}

// Step takes a single accepted step. The stop time, if set, caps the step.
func (s *Solver) Step(ctx context.Context) error {
	switch s.state {
	case Uninitialized:
		return ErrNotInitialized
	case Failed:
		return fmt.Errorf("%w: solver has failed; call Init to restart", ErrNotInitialized)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = Stepping
	if s.h == 0 {
		horizon := s.tstop
		if horizon <= s.t {
			horizon = s.t + 1.0
		}
		s.h = s.initialStep(horizon)
	}
	return s.stepTo(math.Inf(1))
}

func (s *Solver) initialStep(tout float64) float64 {
	h := (tout - s.t) * 1e-3
	if s.h0 > 0 {
		h = s.h0
	}
	if s.hmax > 0 && h > s.hmax {
		h = s.hmax
	}
	if h <= 0 {
		h = 1e-6
	}
	return h
}

// floorH is the effective minimum step size.
func (s *Solver) floorH() float64 {
	if s.hmin > 0 {
		return s.hmin
	}
	return 1e-14 * math.Max(1.0, math.Abs(s.t))
}

// stepTo attempts steps at the current (h, order) until one is accepted,
// adapting the step size on corrector or error-test failures. The step is
// clamped so it does not pass tout or the stop time.
func (s *Solver) stepTo(tout float64) error {
	convFails := 0
	errFails := 0

	for {
		h := s.h
		limit := tout
		if s.tstop > s.t && s.tstop < limit {
			limit = s.tstop
		}
		if s.t+h > limit {
			h = limit - s.t
		}

		accepted, est, iters, err := s.attemptStep(h)
		if err != nil {
			// Corrector failure: singular iteration matrix or Newton
			// stagnation. Retry with a smaller step and a fresh Jacobian.
			convFails++
			s.stats.ConvFails++
			s.jacOK = false
			if convFails > maxConvFails {
				return s.fail(&StepError{Time: s.t, Step: h, Iters: iters, Wrapped: err})
			}
			if !s.reduceStep(0.25, h, iters, err) {
				return s.fail(&StepError{Time: s.t, Step: s.h, Iters: iters, Wrapped: errors.Join(ErrStepTooSmall, err)})
			}
			continue
		}
		if !accepted {
			errFails++
			s.stats.ErrTestFails++
			if errFails > maxErrFails {
				return s.fail(&StepError{Time: s.t, Step: h, Iters: iters, Wrapped: ErrConvergence})
			}
			// Shrink by the usual tolerance-ratio rule, clamped.
			fac := 0.9 * math.Pow(est, -1.0/float64(s.order+1))
			if fac < 0.2 {
				fac = 0.2
			}
			if fac > 0.9 {
				fac = 0.9
			}
			if !s.reduceStep(fac, h, iters, ErrConvergence) {
				return s.fail(&StepError{Time: s.t, Step: s.h, Iters: iters, Wrapped: ErrStepTooSmall})
			}
			continue
		}

		s.acceptStep(h, est)
		return nil
	}
}

// reduceStep scales the working step by fac, resetting the BDF order
// because the history is only valid at a fixed step size. Returns false
// if the reduced step would fall below the floor.
func (s *Solver) reduceStep(fac, hAttempt float64, iters int, cause error) bool {
	s.h = s.h * fac
	s.order = 1
	s.nhist = 1
	copy(s.hist[0], s.y)
	s.nseq = 0
	s.jacOK = false
	if s.h < s.floorH() {
		return false
	}
	s.rep.Reportf("Solver.step", "step reduced to h=%g at t=%g after %v (h was %g, %d newton iterations)",
		s.h, s.t, cause, hAttempt, iters)
	return true
}

func (s *Solver) fail(err *StepError) error {
	s.state = Failed
	s.rep.Reportf("Solver.step", "terminal failure: %v", err)
	return err
}

// attemptStep runs one predictor-corrector cycle of size h at the current
// order. It returns whether the error test passed, the error estimate,
// and the Newton iterations used. A non-nil error means the corrector
// failed (singular matrix or no convergence); the caller decides on retry.
// On any non-accepted outcome y and yp are restored to the step start.
func (s *Solver) attemptStep(h float64) (accepted bool, est float64, iters int, err error) {
	k := s.order
	bdf := bdfTable[k-1]
	c0 := 1.0 / (bdf.beta * h)
	tNew := s.t + h

	errorWeights(s.hist[0], s.rtol, s.atol, s.ewt)

	// History term of the BDF formula.
	for i := 0; i < s.n; i++ {
		sum := 0.0
		for j := 0; j < k; j++ {
			sum += bdf.a[j] * s.hist[j][i]
		}
		s.bterm[i] = sum
	}

	// Explicit-Euler predictor; the corrector supplies the accuracy.
	ySave := s.hist[0]
	for i := 0; i < s.n; i++ {
		s.ypred[i] = ySave[i] + h*s.yp[i]
	}
	copy(s.ypsave, s.yp)
	copy(s.y, s.ypred)
	for i := 0; i < s.n; i++ {
		s.yp[i] = c0 * (s.y[i] - s.bterm[i])
	}

	restore := func() {
		copy(s.y, ySave)
		copy(s.yp, s.ypsave)
	}

	for iters = 0; iters < s.maxNewton; iters++ {
		if err := s.eval.Residual(tNew, s.y, s.yp, s.res); err != nil {
			restore()
			return false, 0, iters, fmt.Errorf("residual evaluation: %w", err)
		}
		s.stats.ResidEvals++

		if !s.jacOK || s.jacAlpha != c0 {
			if err := s.refreshJacobian(tNew, c0, h); err != nil {
				restore()
				return false, 0, iters, err
			}
		}

		for i := 0; i < s.n; i++ {
			s.delta[i] = -s.res[i]
		}
		if err := s.mat.Solve(s.delta); err != nil {
			restore()
			return false, 0, iters, err
		}

		for i := 0; i < s.n; i++ {
			s.y[i] += s.delta[i]
			s.yp[i] += c0 * s.delta[i]
		}
		s.stats.NewtonIters++

		if wrmsNorm(s.delta, s.ewt) < newtonTol {
			// Converged; run the step error test against the predictor.
			for i := 0; i < s.n; i++ {
				s.delta[i] = s.y[i] - s.ypred[i]
			}
			est = wrmsNorm(s.delta, s.ewt) / float64(k+1)
			if est > 1.0 {
				restore()
				return false, est, iters + 1, nil
			}
			return true, est, iters + 1, nil
		}
	}

	restore()
	return false, 0, iters, ErrConvergence
}

// refreshJacobian rebuilds and factors the iteration matrix
// dF/dy + c0*dF/dyp at the current trial state. The residual in s.res
// must correspond to (tNew, y, yp); the finite-difference path reuses it.
func (s *Solver) refreshJacobian(tNew, c0, h float64) error {
	s.mat.Zero()
	ok, err := s.eval.Jacobian(tNew, s.y, s.yp, c0, s.mat)
	if err != nil {
		return fmt.Errorf("jacobian evaluation: %w", err)
	}
	if !ok {
		evals, err := fdJacobian(s.eval, tNew, s.y, s.yp, s.res, c0, h, s.ewt, s.mat, s.fd)
		s.stats.ResidEvals += evals
		if err != nil {
			return fmt.Errorf("fd jacobian: %w", err)
		}
	}
	s.stats.JacEvals++

	if err := s.mat.Factor(); err != nil {
		if errors.Is(err, linalg.ErrSingular) {
			row, small := s.mat.CheckRows()
			s.rep.Reportf("Solver.jacobian", "singular iteration matrix at t=%g: %v (weakest row %d, max |a|=%g)",
				tNew, err, row, small)
		}
		return err
	}
	s.jacOK = true
	s.jacAlpha = c0
	return nil
}

// acceptStep commits an accepted step: advances time, shifts the BDF
// history, and adapts the order and step size for the next step.
func (s *Solver) acceptStep(h, est float64) {
	s.t += h
	s.stats.Steps++

	// Rotate the history buffers; the oldest is overwritten at the front.
	if s.nhist < len(s.hist) {
		s.nhist++
	}
	for i := len(s.hist) - 1; i > 0; i-- {
		s.hist[i], s.hist[i-1] = s.hist[i-1], s.hist[i]
	}
	copy(s.hist[0], s.y)

	if h != s.h {
		// Clamped step (output or stop time): history is non-uniform.
		s.order = 1
		s.nhist = 1
		s.nseq = 0
		return
	}
	s.nseq++

	// Raise the order once enough uniform history has accumulated.
	if s.order < s.maxOrder && s.nseq > s.order && s.nhist > s.order {
		s.order++
		return
	}

	// Grow the step only when the error estimate leaves a wide margin;
	// growing discards the history and restarts at order one.
	if est < hRaiseThreshold && s.order == s.maxOrder {
		hNew := 2 * s.h
		if s.hmax > 0 && hNew > s.hmax {
			hNew = s.hmax
		}
		if hNew > s.h {
			s.h = hNew
			s.order = 1
			s.nhist = 1
			s.nseq = 0
			s.jacOK = false
		}
	}
}
