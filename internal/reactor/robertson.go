package reactor

import "github.com/avereen/kinsim/internal/linalg"

// Robertson is the classic stiff autocatalytic reaction network
//
//	A -> B           (k1, slow)
//	B + B -> C + B   (k2, very fast)
//	B + C -> A + C   (k3, fast)
//
// posed as a genuine DAE: the first two equations are kinetic and the
// third is the algebraic mass balance y1 + y2 + y3 = 1. Rate constants
// span nine orders of magnitude, which is what makes the system a
// standard stress test for implicit integrators.
//
// Robertson declines the analytic Jacobian on purpose, so it exercises
// the solver's finite-difference fallback.
type Robertson struct {
	K1, K2, K3 float64
}

// NewRobertson returns the network with its canonical rate constants.
func NewRobertson() *Robertson {
	return &Robertson{K1: 0.04, K2: 3.0e7, K3: 1.0e4}
}

func (r *Robertson) NumEquations() int      { return 3 }
func (r *Robertson) Bandwidths() (int, int) { return 2, 2 }

func (r *Robertson) InitialConditions(t0 float64, y, yp []float64) error {
	y[0], y[1], y[2] = 1.0, 0.0, 0.0
	yp[0] = -r.K1
	yp[1] = r.K1
	yp[2] = 0.0
	return nil
}

func (r *Robertson) Residual(t float64, y, yp, res []float64) error {
	res[0] = yp[0] + r.K1*y[0] - r.K3*y[1]*y[2]
	res[1] = yp[1] - r.K1*y[0] + r.K3*y[1]*y[2] + r.K2*y[1]*y[1]
	res[2] = y[0] + y[1] + y[2] - 1.0
	return nil
}

func (r *Robertson) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	return false, nil
}
