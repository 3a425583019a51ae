// Package thermo provides pure equation-of-state property functions.
// Every function is deterministic in its scalar inputs and carries no
// state, so the reactor models consume them as plain collaborators.
package thermo

import "math"

// GasConstant is the universal gas constant in J/(kmol*K).
const GasConstant = 8314.3

// IdealGasPressure returns the pressure of an ideal gas at temperature T
// (K) and molar volume vm (m^3/kmol).
func IdealGasPressure(T, vm float64) float64 {
	return GasConstant * T / vm
}

// RedlichKwong holds the attraction and covolume constants of the
// Redlich-Kwong equation of state:
//
//	p = R*T/(V-b) - a/(sqrt(T)*V*(V+b))
type RedlichKwong struct {
	A float64 // Pa*m^6*K^0.5/kmol^2
	B float64 // m^3/kmol
}

// RKFromCritical derives the Redlich-Kwong constants from the critical
// temperature (K) and pressure (Pa).
func RKFromCritical(tc, pc float64) RedlichKwong {
	return RedlichKwong{
		A: 0.42748 * GasConstant * GasConstant * math.Pow(tc, 2.5) / pc,
		B: 0.08664 * GasConstant * tc / pc,
	}
}

// Pressure returns the Redlich-Kwong pressure at temperature T (K) and
// molar volume vm (m^3/kmol).
func (rk RedlichKwong) Pressure(T, vm float64) float64 {
	return GasConstant*T/(vm-rk.B) - rk.A/(math.Sqrt(T)*vm*(vm+rk.B))
}

// Compressibility returns z = p*V/(R*T) at the given state.
func (rk RedlichKwong) Compressibility(T, vm float64) float64 {
	return rk.Pressure(T, vm) * vm / (GasConstant * T)
}

// SatPressureAntoine returns the saturation pressure (Pa) from Antoine
// coefficients in log10/mmHg form at temperature T (K).
func SatPressureAntoine(a, b, c, T float64) float64 {
	const mmHg = 133.322
	return mmHg * math.Pow(10, a-b/(c+T))
}

// ArrheniusRate returns the rate coefficient k = A * T^b * exp(-Ea/(R*T))
// with the activation energy Ea in J/kmol.
func ArrheniusRate(A, b, Ea, T float64) float64 {
	return A * math.Pow(T, b) * math.Exp(-Ea/(GasConstant*T))
}
