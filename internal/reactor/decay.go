package reactor

import "github.com/avereen/kinsim/internal/linalg"

// Decay is the scalar first-order decomposition A -> products with rate
// constant K, in implicit form F = y' + K*y, y(0) = C0.
type Decay struct {
	K  float64
	C0 float64
}

// NewDecay returns a decay reactor with unit initial concentration.
func NewDecay(k float64) *Decay {
	return &Decay{K: k, C0: 1.0}
}

func (d *Decay) NumEquations() int      { return 1 }
func (d *Decay) Bandwidths() (int, int) { return 0, 0 }

func (d *Decay) InitialConditions(t0 float64, y, yp []float64) error {
	y[0] = d.C0
	yp[0] = -d.K * d.C0
	return nil
}

func (d *Decay) Residual(t float64, y, yp, res []float64) error {
	res[0] = yp[0] + d.K*y[0]
	return nil
}

func (d *Decay) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	return true, m.Set(0, 0, d.K+alpha)
}
