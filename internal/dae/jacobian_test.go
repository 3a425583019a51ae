package dae

import (
	"math"
	"testing"

	"github.com/avereen/kinsim/internal/linalg"
)

// linearEval is F = yp - A*y for a fixed tridiagonal A, so the exact
// iteration matrix is alpha*I - A.
type linearEval struct {
	n int
	a *linalg.BandMatrix
}

func newLinearEval(n int) *linearEval {
	a := linalg.New(n, 1, 1)
	for i := 0; i < n; i++ {
		must(a.Set(i, i, -2.0-0.1*float64(i)))
		if i > 0 {
			must(a.Set(i, i-1, 0.7))
		}
		if i < n-1 {
			must(a.Set(i, i+1, 1.3))
		}
	}
	return &linearEval{n: n, a: a}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func (l *linearEval) NumEquations() int      { return l.n }
func (l *linearEval) Bandwidths() (int, int) { return 1, 1 }

func (l *linearEval) InitialConditions(t0 float64, y, yp []float64) error {
	for i := range y {
		y[i] = 1.0
	}
	return l.a.Mult(y, yp)
}

func (l *linearEval) Residual(t float64, y, yp, res []float64) error {
	if err := l.a.Mult(y, res); err != nil {
		return err
	}
	for i := range res {
		res[i] = yp[i] - res[i]
	}
	return nil
}

func (l *linearEval) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	return false, nil
}

func TestFDJacobianMatchesAnalytic(t *testing.T) {
	n := 8
	eval := newLinearEval(n)
	alpha := 2.5
	h := 0.1

	y := make([]float64, n)
	yp := make([]float64, n)
	if err := eval.InitialConditions(0, y, yp); err != nil {
		t.Fatal(err)
	}
	// Move off the consistent state so the residual is nonzero.
	for i := range y {
		y[i] += 0.01 * float64(i)
	}

	res := make([]float64, n)
	if err := eval.Residual(0, y, yp, res); err != nil {
		t.Fatal(err)
	}

	ewt := make([]float64, n)
	errorWeights(y, 1e-6, []float64{1e-8}, ewt)

	m := linalg.New(n, 1, 1)
	evals, err := fdJacobian(eval, 0, y, yp, res, alpha, h, ewt, m, newFDScratch(n))
	if err != nil {
		t.Fatalf("fdJacobian: %v", err)
	}
	if evals != 3 {
		t.Errorf("residual evaluations = %d, want 3 (one per band group)", evals)
	}

	for i := 0; i < n; i++ {
		for j := i - 1; j <= i+1; j++ {
			if j < 0 || j >= n {
				continue
			}
			want := -eval.a.Get(i, j)
			if i == j {
				want += alpha
			}
			got := m.Get(i, j)
			if math.Abs(got-want) > 1e-6*math.Abs(want)+1e-6 {
				t.Errorf("J(%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestFDJacobianRestoresState(t *testing.T) {
	n := 5
	eval := newLinearEval(n)

	y := make([]float64, n)
	yp := make([]float64, n)
	if err := eval.InitialConditions(0, y, yp); err != nil {
		t.Fatal(err)
	}
	ySave := append([]float64(nil), y...)
	ypSave := append([]float64(nil), yp...)

	res := make([]float64, n)
	if err := eval.Residual(0, y, yp, res); err != nil {
		t.Fatal(err)
	}
	ewt := make([]float64, n)
	errorWeights(y, 1e-6, []float64{1e-8}, ewt)

	m := linalg.New(n, 1, 1)
	if _, err := fdJacobian(eval, 0, y, yp, res, 1.0, 0.1, ewt, m, newFDScratch(n)); err != nil {
		t.Fatal(err)
	}

	for i := range y {
		if y[i] != ySave[i] || yp[i] != ypSave[i] {
			t.Fatalf("state perturbed after fdJacobian: y=%v yp=%v", y, yp)
		}
	}
}
