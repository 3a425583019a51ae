package dae

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/avereen/kinsim/internal/errlog"
	"github.com/avereen/kinsim/internal/linalg"
)

// decayEval is the scalar test system y' = -k*y in implicit form
// F = y' + k*y, with y(0) = 1.
type decayEval struct {
	k        float64
	analytic bool
}

func (d *decayEval) NumEquations() int      { return 1 }
func (d *decayEval) Bandwidths() (int, int) { return 0, 0 }

func (d *decayEval) InitialConditions(t0 float64, y, yp []float64) error {
	y[0] = 1.0
	yp[0] = -d.k
	return nil
}

func (d *decayEval) Residual(t float64, y, yp, res []float64) error {
	res[0] = yp[0] + d.k*y[0]
	return nil
}

func (d *decayEval) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	if !d.analytic {
		return false, nil
	}
	return true, m.Set(0, 0, d.k+alpha)
}

func TestSolveScalarDecay(t *testing.T) {
	for _, tc := range []struct {
		name     string
		analytic bool
	}{
		{"analytic jacobian", true},
		{"fd jacobian", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			eval := &decayEval{k: 1.0, analytic: tc.analytic}
			s := NewSolver(eval, errlog.New())
			s.SetTolerances(1e-8, 1e-8)

			if err := s.Init(0, nil, nil); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if s.State() != Initialized {
				t.Fatalf("state after Init = %v, want initialized", s.State())
			}

			if err := s.Solve(context.Background(), 1.0); err != nil {
				t.Fatalf("Solve: %v", err)
			}

			if s.State() != Converged {
				t.Errorf("state = %v, want converged", s.State())
			}
			want := math.Exp(-1.0)
			if got := s.Solution(0); math.Abs(got-want) > 1e-6 {
				t.Errorf("y(1) = %v, want %v (err %e)", got, want, got-want)
			}
			if math.Abs(s.Time()-1.0) > 1e-12 {
				t.Errorf("t = %v, want 1", s.Time())
			}
			if s.Stats().Steps == 0 {
				t.Error("no steps recorded")
			}
		})
	}
}

func TestSolveResumable(t *testing.T) {
	eval := &decayEval{k: 1.0, analytic: true}
	s := NewSolver(eval, errlog.New())
	s.SetTolerances(1e-6, 1e-8)
	if err := s.Init(0, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Solve(context.Background(), 0.5); err != nil {
		t.Fatalf("Solve to 0.5: %v", err)
	}
	if err := s.Solve(context.Background(), 1.0); err != nil {
		t.Fatalf("Solve to 1.0: %v", err)
	}
	want := math.Exp(-1.0)
	if got := s.Solution(0); math.Abs(got-want) > 1e-4 {
		t.Errorf("y(1) = %v, want %v", got, want)
	}
}

func TestSolveCancellation(t *testing.T) {
	eval := &decayEval{k: 1.0, analytic: true}
	s := NewSolver(eval, errlog.New())
	if err := s.Init(0, nil, nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Solve(ctx, 1.0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Solve = %v, want context.Canceled", err)
	}
	if s.State() != Stepping {
		t.Errorf("state = %v, want stepping (resumable)", s.State())
	}

	// The interrupted integration continues cleanly.
	if err := s.Solve(context.Background(), 1.0); err != nil {
		t.Fatalf("resumed Solve: %v", err)
	}
	if s.State() != Converged {
		t.Errorf("state = %v, want converged", s.State())
	}
}

func TestInitDimensionMismatch(t *testing.T) {
	eval := &decayEval{k: 1.0}
	s := NewSolver(eval, errlog.New())

	err := s.Init(0, []float64{1, 2}, nil)
	if !errors.Is(err, ErrInvalidProblem) {
		t.Fatalf("Init = %v, want ErrInvalidProblem", err)
	}
	if s.State() != Uninitialized {
		t.Errorf("state = %v, want uninitialized", s.State())
	}
	if err := s.Solve(context.Background(), 1.0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Solve after failed Init = %v, want ErrNotInitialized", err)
	}
}

// singularEval reports a Jacobian that is identically zero, so every
// factorization fails.
type singularEval struct {
	decayEval
	jacCalls int
}

func (e *singularEval) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	e.jacCalls++
	return true, nil // leave the matrix zero
}

func TestRepeatedSingularFails(t *testing.T) {
	eval := &singularEval{decayEval: decayEval{k: 1.0}}
	rep := errlog.New()
	s := NewSolver(eval, rep)
	if err := s.Init(0, nil, nil); err != nil {
		t.Fatal(err)
	}

	err := s.Solve(context.Background(), 1.0)
	if err == nil {
		t.Fatal("Solve succeeded with a singular Jacobian")
	}
	if !errors.Is(err, linalg.ErrSingular) {
		t.Errorf("error = %v, want to wrap ErrSingular", err)
	}
	if s.State() != Failed {
		t.Errorf("state = %v, want failed", s.State())
	}

	// Retries are bounded: one attempt plus maxConvFails reductions.
	if eval.jacCalls > maxConvFails+1 {
		t.Errorf("jacobian evaluated %d times, retry bound is %d", eval.jacCalls, maxConvFails+1)
	}

	// The terminal failure reports the last attempted state.
	if rep.Len() == 0 {
		t.Error("terminal failure left no diagnostic records")
	}
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatal("error does not carry StepError detail")
	}
	if se.Step <= 0 {
		t.Errorf("StepError.Step = %v, want > 0", se.Step)
	}
}

func TestSolveBeforeInit(t *testing.T) {
	s := NewSolver(&decayEval{k: 1.0}, nil)
	if err := s.Solve(context.Background(), 1.0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Solve = %v, want ErrNotInitialized", err)
	}
}

func TestStepAdvancesTime(t *testing.T) {
	eval := &decayEval{k: 1.0, analytic: true}
	s := NewSolver(eval, errlog.New())
	if err := s.Init(0, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if s.Time() <= 0 {
		t.Errorf("t = %v after one step, want > 0", s.Time())
	}
	if s.Stats().Steps != 1 {
		t.Errorf("Steps = %d, want 1", s.Stats().Steps)
	}
}

func TestMaxStepsBudget(t *testing.T) {
	eval := &decayEval{k: 1.0, analytic: true}
	s := NewSolver(eval, errlog.New())
	s.SetTolerances(1e-8, 1e-10)
	s.SetMaxStepSize(1e-5)
	s.SetMaxSteps(10)
	if err := s.Init(0, nil, nil); err != nil {
		t.Fatal(err)
	}

	err := s.Solve(context.Background(), 1.0)
	if !errors.Is(err, ErrMaxSteps) {
		t.Fatalf("Solve = %v, want ErrMaxSteps", err)
	}
	if s.State() != Stepping {
		t.Errorf("state = %v, want stepping (resumable)", s.State())
	}
}

func TestWRMSNorm(t *testing.T) {
	v := []float64{3, 4}
	w := []float64{1, 1}
	want := math.Sqrt((9.0 + 16.0) / 2.0)
	if got := wrmsNorm(v, w); math.Abs(got-want) > 1e-15 {
		t.Errorf("wrmsNorm = %v, want %v", got, want)
	}
}

func TestErrorWeights(t *testing.T) {
	y := []float64{2, -4}
	w := make([]float64, 2)

	errorWeights(y, 0.1, []float64{0.5}, w)
	if math.Abs(w[0]-1.0/0.7) > 1e-15 {
		t.Errorf("w[0] = %v, want %v", w[0], 1.0/0.7)
	}

	errorWeights(y, 0.1, []float64{0.5, 0.1}, w)
	if math.Abs(w[1]-2.0) > 1e-15 {
		t.Errorf("w[1] = %v, want 2", w[1])
	}
}
