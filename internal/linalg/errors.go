package linalg

import (
	"errors"
	"fmt"
)

// Domain errors for banded matrix operations.
var (
	// ErrOutOfBand indicates a write to a position outside the stored band.
	ErrOutOfBand = errors.New("linalg: index outside the stored band")

	// ErrSingular indicates a zero or near-zero pivot during factorization.
	ErrSingular = errors.New("linalg: matrix is singular")

	// ErrNotFactored indicates a solve was requested before factorization.
	ErrNotFactored = errors.New("linalg: matrix is not factored")

	// ErrFactored indicates a coefficient mutation on a factored matrix.
	ErrFactored = errors.New("linalg: matrix is factored; call Zero or Fill before modifying coefficients")

	// ErrShape indicates a vector whose length does not match the matrix.
	ErrShape = errors.New("linalg: vector length does not match matrix dimension")
)

// SingularError carries the pivot column that triggered ErrSingular.
type SingularError struct {
	Col   int
	Pivot float64
}

func (e *SingularError) Error() string {
	return fmt.Sprintf("linalg: matrix is singular (pivot %.3e in column %d)", e.Pivot, e.Col)
}

func (e *SingularError) Unwrap() error {
	return ErrSingular
}
