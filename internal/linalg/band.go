package linalg

import (
	"fmt"
	"math"
	"strings"
)

// pivotFloor is the smallest pivot magnitude accepted during factorization.
// Comparing against a small positive floor instead of exact zero catches
// factorizations that are unstable without being exactly degenerate.
const pivotFloor = 1.0e-300

// BandMatrix is an n-by-n double-precision matrix whose nonzero entries are
// confined to kl sub-diagonals and ku super-diagonals. Storage is the
// column-major LAPACK band layout: entry (i,j) lives at row kl+ku+i-j of
// column j in a (2*kl+ku+1)-row buffer. The extra kl top rows hold fill-in
// produced by partial pivoting during factorization.
//
// Factor snapshots the coefficients into a separate buffer, so Mult and
// LeftMult keep operating on the original matrix after factorization.
type BandMatrix struct {
	n, kl, ku int
	ldab      int

	data []float64 // original coefficients
	lu   []float64 // LU factors after a successful Factor
	ipiv []int

	factored bool
}

// New creates an n-by-n band matrix with kl sub- and ku super-diagonals,
// initialized to zero.
func New(n, kl, ku int) *BandMatrix {
	m := &BandMatrix{}
	m.Resize(n, kl, ku, 0.0)
	return m
}

// Resize reshapes the matrix and fills every stored entry with v.
// Any previous factorization is discarded.
func (m *BandMatrix) Resize(n, kl, ku int, v float64) {
	if n < 1 || kl < 0 || ku < 0 {
		panic(fmt.Sprintf("linalg: invalid band shape n=%d kl=%d ku=%d", n, kl, ku))
	}
	m.n, m.kl, m.ku = n, kl, ku
	m.ldab = 2*kl + ku + 1
	m.data = make([]float64, m.ldab*n)
	m.lu = make([]float64, m.ldab*n)
	m.ipiv = make([]int, n)
	m.factored = false
	if v != 0 {
		m.Fill(v)
	}
}

// N returns the matrix dimension.
func (m *BandMatrix) N() int { return m.n }

// KL returns the number of sub-diagonals.
func (m *BandMatrix) KL() int { return m.kl }

// KU returns the number of super-diagonals.
func (m *BandMatrix) KU() int { return m.ku }

// Factored reports whether the matrix currently holds a valid factorization.
func (m *BandMatrix) Factored() bool { return m.factored }

// index maps (i,j) to the flat storage offset. Valid only inside the band.
func (m *BandMatrix) index(i, j int) int {
	return m.ldab*j + m.kl + m.ku + i - j
}

func (m *BandMatrix) inBand(i, j int) bool {
	return j >= i-m.kl && j <= i+m.ku
}

// Zero clears every stored coefficient and drops the factorization.
func (m *BandMatrix) Zero() {
	for i := range m.data {
		m.data[i] = 0
	}
	m.factored = false
}

// Fill sets every in-band coefficient to v and drops the factorization.
// The fill-in rows stay zero so factorization starts from a clean buffer.
func (m *BandMatrix) Fill(v float64) {
	for j := 0; j < m.n; j++ {
		for i := j - m.ku; i <= j+m.kl; i++ {
			if i >= 0 && i < m.n {
				m.data[m.index(i, j)] = v
			}
		}
	}
	m.factored = false
}

// Set stores v at (i,j). It fails with ErrOutOfBand for positions outside
// the band or outside the matrix, and with ErrFactored if the matrix holds
// a factorization: factoring invalidates raw-coefficient semantics, so
// mutations are rejected until Zero or Fill resets the matrix.
func (m *BandMatrix) Set(i, j int, v float64) error {
	if err := m.checkStore(i, j); err != nil {
		return err
	}
	m.data[m.index(i, j)] = v
	return nil
}

// Add accumulates v into (i,j) under the same rules as Set. Jacobian
// assembly uses this to sum contributions from multiple terms.
func (m *BandMatrix) Add(i, j int, v float64) error {
	if err := m.checkStore(i, j); err != nil {
		return err
	}
	m.data[m.index(i, j)] += v
	return nil
}

func (m *BandMatrix) checkStore(i, j int) error {
	if i < 0 || i >= m.n || j < 0 || j >= m.n || !m.inBand(i, j) {
		return fmt.Errorf("%w: (%d,%d) with n=%d kl=%d ku=%d", ErrOutOfBand, i, j, m.n, m.kl, m.ku)
	}
	if m.factored {
		return ErrFactored
	}
	return nil
}

// Get returns the coefficient at (i,j). Positions inside the matrix but
// outside the band are structurally zero and return 0.0, as do positions
// outside the matrix.
func (m *BandMatrix) Get(i, j int) float64 {
	if i < 0 || i >= m.n || j < 0 || j >= m.n || !m.inBand(i, j) {
		return 0.0
	}
	return m.data[m.index(i, j)]
}

// Factor performs an in-place banded LU decomposition with partial pivoting
// on a snapshot of the coefficients (the dgbtf2 algorithm). Pivoting is
// restricted to the kl rows reachable within the band. A pivot magnitude
// at or below pivotFloor fails with a SingularError wrapping ErrSingular.
func (m *BandMatrix) Factor() error {
	copy(m.lu, m.data)
	// Clear the fill-in rows; elimination assumes they start at zero.
	for j := 0; j < m.n; j++ {
		for r := 0; r < m.kl; r++ {
			m.lu[m.ldab*j+r] = 0
		}
	}
	m.factored = false

	at := func(i, j int) float64 { return m.lu[m.index(i, j)] }
	set := func(i, j int, v float64) { m.lu[m.index(i, j)] = v }

	ju := 0
	for j := 0; j < m.n; j++ {
		km := m.kl
		if r := m.n - 1 - j; r < km {
			km = r
		}
		// Partial pivot search over the km reachable sub-diagonal rows.
		jp := j
		amax := math.Abs(at(j, j))
		for i := j + 1; i <= j+km; i++ {
			if a := math.Abs(at(i, j)); a > amax {
				amax, jp = a, i
			}
		}
		m.ipiv[j] = jp
		if amax <= pivotFloor {
			return &SingularError{Col: j, Pivot: amax}
		}
		// Last column touched by this elimination step.
		if u := j + m.ku + (jp - j); u > ju {
			ju = u
		}
		if ju > m.n-1 {
			ju = m.n - 1
		}
		if jp != j {
			for c := j; c <= ju; c++ {
				m.lu[m.index(j, c)], m.lu[m.index(jp, c)] = at(jp, c), at(j, c)
			}
		}
		if km > 0 {
			piv := at(j, j)
			for i := j + 1; i <= j+km; i++ {
				set(i, j, at(i, j)/piv)
			}
			for c := j + 1; c <= ju; c++ {
				f := at(j, c)
				if f == 0 {
					continue
				}
				for i := j + 1; i <= j+km; i++ {
					set(i, c, at(i, c)-at(i, j)*f)
				}
			}
		}
	}
	m.factored = true
	return nil
}

// Solve solves A*x = b in place, overwriting b with the solution.
// The matrix must have been factored; otherwise ErrNotFactored.
func (m *BandMatrix) Solve(b []float64) error {
	if !m.factored {
		return ErrNotFactored
	}
	if len(b) != m.n {
		return fmt.Errorf("%w: got %d, want %d", ErrShape, len(b), m.n)
	}
	at := func(i, j int) float64 { return m.lu[m.index(i, j)] }

	// Forward: apply row interchanges and the L multipliers.
	if m.kl > 0 {
		for j := 0; j < m.n-1; j++ {
			lm := m.kl
			if r := m.n - 1 - j; r < lm {
				lm = r
			}
			if l := m.ipiv[j]; l != j {
				b[l], b[j] = b[j], b[l]
			}
			for i := 1; i <= lm; i++ {
				b[j+i] -= at(j+i, j) * b[j]
			}
		}
	}
	// Backward substitution with the U factor (bandwidth kl+ku).
	for j := m.n - 1; j >= 0; j-- {
		b[j] /= at(j, j)
		lm := m.kl + m.ku
		if j < lm {
			lm = j
		}
		for i := 1; i <= lm; i++ {
			b[j-i] -= at(j-i, j) * b[j]
		}
	}
	return nil
}

// SolveTo solves A*x = b, leaving b untouched and writing the solution to x.
func (m *BandMatrix) SolveTo(b, x []float64) error {
	if len(b) != m.n || len(x) != m.n {
		return fmt.Errorf("%w: got %d/%d, want %d", ErrShape, len(b), len(x), m.n)
	}
	copy(x, b)
	return m.Solve(x)
}

// Mult computes prod = A*x using the original coefficients, before or after
// factorization.
func (m *BandMatrix) Mult(x, prod []float64) error {
	if len(x) != m.n || len(prod) != m.n {
		return fmt.Errorf("%w: got %d/%d, want %d", ErrShape, len(x), len(prod), m.n)
	}
	for i := 0; i < m.n; i++ {
		sum := 0.0
		lo, hi := i-m.kl, i+m.ku
		if lo < 0 {
			lo = 0
		}
		if hi > m.n-1 {
			hi = m.n - 1
		}
		for j := lo; j <= hi; j++ {
			sum += m.data[m.index(i, j)] * x[j]
		}
		prod[i] = sum
	}
	return nil
}

// LeftMult computes prod = x*A using the original coefficients.
func (m *BandMatrix) LeftMult(x, prod []float64) error {
	if len(x) != m.n || len(prod) != m.n {
		return fmt.Errorf("%w: got %d/%d, want %d", ErrShape, len(x), len(prod), m.n)
	}
	for j := 0; j < m.n; j++ {
		sum := 0.0
		lo, hi := j-m.ku, j+m.kl
		if lo < 0 {
			lo = 0
		}
		if hi > m.n-1 {
			hi = m.n - 1
		}
		for i := lo; i <= hi; i++ {
			sum += m.data[m.index(i, j)] * x[i]
		}
		prod[j] = sum
	}
	return nil
}

// OneNorm returns the maximum absolute column sum of the coefficients.
func (m *BandMatrix) OneNorm() float64 {
	norm := 0.0
	for j := 0; j < m.n; j++ {
		sum := 0.0
		for i := j - m.ku; i <= j+m.kl; i++ {
			if i >= 0 && i < m.n {
				sum += math.Abs(m.data[m.index(i, j)])
			}
		}
		if sum > norm {
			norm = sum
		}
	}
	return norm
}

// CheckRows returns the row whose largest absolute coefficient is smallest,
// along with that value. A zero value identifies an identically zero row,
// which is useful when diagnosing a singular factorization.
func (m *BandMatrix) CheckRows() (row int, small float64) {
	row, small = -1, math.MaxFloat64
	for i := 0; i < m.n; i++ {
		rowMax := 0.0
		for j := i - m.kl; j <= i+m.ku; j++ {
			if j >= 0 && j < m.n {
				if v := math.Abs(m.data[m.index(i, j)]); v > rowMax {
					rowMax = v
				}
			}
		}
		if rowMax < small {
			row, small = i, rowMax
			if small == 0.0 {
				return row, small
			}
		}
	}
	return row, small
}

// String renders the dense equivalent, row by row. Intended for diagnostics
// on small systems.
func (m *BandMatrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			fmt.Fprintf(&sb, "% .6e", m.Get(i, j))
			if j < m.n-1 {
				sb.WriteString(", ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
