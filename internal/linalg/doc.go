// Package linalg provides banded-matrix storage and factorization for the
// implicit integrators.
//
// [BandMatrix] stores an n-by-n system confined to kl sub-diagonals and ku
// super-diagonals in the compact LAPACK band layout, and supports:
//
//   - element access with strict band checking ([BandMatrix.Set], [BandMatrix.Get])
//   - in-place LU factorization with partial pivoting ([BandMatrix.Factor])
//   - forward/backward substitution ([BandMatrix.Solve])
//   - banded matrix-vector products on the original coefficients ([BandMatrix.Mult])
//
// Factorization snapshots the coefficients, so products remain available
// after [BandMatrix.Factor]. Coefficient mutations on a factored matrix are
// rejected with [ErrFactored]; reset with [BandMatrix.Zero] or
// [BandMatrix.Fill] before reassembling.
package linalg
