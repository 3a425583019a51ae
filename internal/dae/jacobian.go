package dae

import (
	"math"

	"github.com/avereen/kinsim/internal/linalg"
)

// sqrtUround is the square root of the double-precision unit roundoff,
// the standard perturbation scale for one-sided difference quotients.
const sqrtUround = 1.4901161193847656e-08

// fdScratch holds the working vectors for finite-difference Jacobians so
// repeated approximations reuse buffers.
type fdScratch struct {
	ySave  []float64
	ypSave []float64
	inc    []float64
	rpert  []float64
}

func newFDScratch(n int) *fdScratch {
	return &fdScratch{
		ySave:  make([]float64, n),
		ypSave: make([]float64, n),
		inc:    make([]float64, n),
		rpert:  make([]float64, n),
	}
}

// fdJacobian approximates dF/dy + alpha*dF/dyp by banded difference
// quotients and assembles it into m. Columns a full bandwidth apart cannot
// share a row, so they are perturbed together; the whole band costs
// kl+ku+1 residual evaluations regardless of n. Each column j is perturbed
// by sigma_j in y and alpha*sigma_j in yp, which probes the combined
// iteration matrix in one evaluation.
//
// res must hold the residual at (t, y, yp). Returns the number of residual
// evaluations performed.
func fdJacobian(eval ResidJacEval, t float64, y, yp, res []float64, alpha, h float64, ewt []float64, m *linalg.BandMatrix, s *fdScratch) (int, error) {
	n := m.N()
	kl, ku := m.KL(), m.KU()
	width := kl + ku + 1
	if width > n {
		width = n
	}

	copy(s.ySave, y)
	copy(s.ypSave, yp)

	evals := 0
	for g := 0; g < width; g++ {
		// Perturb every column in this group.
		for j := g; j < n; j += width {
			inc := sqrtUround * math.Max(math.Abs(y[j]), math.Max(math.Abs(h*yp[j]), 1.0/ewt[j]))
			if inc == 0 {
				inc = sqrtUround
			}
			if y[j]+inc == y[j] {
				inc = sqrtUround * math.Abs(y[j])
			}
			s.inc[j] = inc
			y[j] += inc
			yp[j] += alpha * inc
		}

		if err := eval.Residual(t, y, yp, s.rpert); err != nil {
			copy(y, s.ySave)
			copy(yp, s.ypSave)
			return evals, err
		}
		evals++

		// Scatter the difference quotients into the band, then restore.
		for j := g; j < n; j += width {
			lo, hi := j-ku, j+kl
			if lo < 0 {
				lo = 0
			}
			if hi > n-1 {
				hi = n - 1
			}
			for i := lo; i <= hi; i++ {
				if err := m.Set(i, j, (s.rpert[i]-res[i])/s.inc[j]); err != nil {
					copy(y, s.ySave)
					copy(yp, s.ypSave)
					return evals, err
				}
			}
			y[j] = s.ySave[j]
			yp[j] = s.ypSave[j]
		}
	}
	return evals, nil
}
