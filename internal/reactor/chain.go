package reactor

import (
	"fmt"

	"github.com/avereen/kinsim/internal/linalg"
	"github.com/avereen/kinsim/internal/thermo"
)

// Chain models the linear reaction chain
//
//	A1 -> A2 -> ... -> An
//
// of first-order steps with rate constants K[i] for step i. State y holds
// the species concentrations; the first species starts at C0 and the rest
// at zero. The Jacobian is lower-bidiagonal, so the system exercises the
// banded solver with kl=1, ku=0.
type Chain struct {
	K  []float64
	C0 float64
}

// NewChain builds a chain of len(rates)+1 species.
func NewChain(rates []float64) (*Chain, error) {
	if len(rates) == 0 {
		return nil, fmt.Errorf("reactor: chain needs at least one rate constant")
	}
	for i, k := range rates {
		if k < 0 {
			return nil, fmt.Errorf("reactor: negative rate constant k[%d]=%g", i, k)
		}
	}
	return &Chain{K: append([]float64(nil), rates...), C0: 1.0}, nil
}

// NewChainArrhenius builds a chain of n species whose step rates follow
// thermo.ArrheniusRate at the fixed temperature T, with each successive
// step's prefactor halved.
func NewChainArrhenius(n int, T, prefactor, ea float64) (*Chain, error) {
	if n < 2 {
		return nil, fmt.Errorf("reactor: chain needs at least two species, got %d", n)
	}
	rates := make([]float64, n-1)
	a := prefactor
	for i := range rates {
		rates[i] = thermo.ArrheniusRate(a, 0, ea, T)
		a *= 0.5
	}
	return NewChain(rates)
}

func (c *Chain) NumEquations() int      { return len(c.K) + 1 }
func (c *Chain) Bandwidths() (int, int) { return 1, 0 }

func (c *Chain) InitialConditions(t0 float64, y, yp []float64) error {
	for i := range y {
		y[i] = 0
		yp[i] = 0
	}
	y[0] = c.C0
	yp[0] = -c.K[0] * c.C0
	yp[1] = c.K[0] * c.C0
	return nil
}

func (c *Chain) Residual(t float64, y, yp, res []float64) error {
	n := len(y)
	for i := 0; i < n; i++ {
		rate := 0.0
		if i > 0 {
			rate += c.K[i-1] * y[i-1]
		}
		if i < n-1 {
			rate -= c.K[i] * y[i]
		}
		res[i] = yp[i] - rate
	}
	return nil
}

func (c *Chain) Jacobian(t float64, y, yp []float64, alpha float64, m *linalg.BandMatrix) (bool, error) {
	n := len(y)
	for i := 0; i < n; i++ {
		diag := alpha
		if i < n-1 {
			diag += c.K[i]
		}
		if err := m.Set(i, i, diag); err != nil {
			return true, err
		}
		if i > 0 {
			if err := m.Set(i, i-1, -c.K[i-1]); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

// Pressure returns the ideal-gas pressure of the mixture at temperature T
// for concentrations y in kmol/m^3.
func (c *Chain) Pressure(T float64, y []float64) float64 {
	total := 0.0
	for _, v := range y {
		total += v
	}
	if total <= 0 {
		return 0
	}
	return thermo.IdealGasPressure(T, 1.0/total)
}
