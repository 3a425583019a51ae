// Package reactor provides zero-dimensional reacting-system models for
// the DAE integrator.
//
// Each model implements [github.com/avereen/kinsim/internal/dae.ResidJacEval],
// expressing its kinetics in implicit residual form F(t, y, y') = 0:
//
//   - [Decay]: single first-order decomposition
//   - [Chain]: linear chain of first-order reactions with a banded
//     analytic Jacobian
//   - [Robertson]: the classic stiff autocatalytic network, closed by an
//     algebraic mass balance
//
// Models are constructed directly or by name through [Registry], which
// maps model identifiers to constructors taking a parameter map.
package reactor
