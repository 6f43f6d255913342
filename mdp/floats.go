package mdp

import "gonum.org/v1/gonum/floats/scalar"

// Epsilon is single precision machine epsilon. Learning rates below it are
// treated as exhausted and discounts are kept at least this far below 1.
const Epsilon = 1.1920929e-07

// ProbabilityTolerance bounds how far a successor list may sum away from 1.
const ProbabilityTolerance = 1e-7

// NearlyEqual reports whether a and b agree within the absolute tolerance or,
// failing that, within the relative tolerance.
func NearlyEqual(a, b, absTol, relTol float64) bool {
	if a == b {
		return true
	}
	return scalar.EqualWithinAbsOrRel(a, b, absTol, relTol)
}

// ClampDiscount keeps a discount factor inside [0, 1-Epsilon].
func ClampDiscount(gamma float64) float64 {
	if gamma < 0 {
		return 0
	}
	if gamma > 1-Epsilon {
		return 1 - Epsilon
	}
	return gamma
}

func clampUnit(x float64) float64 {
	return min(max(x, 0), 1)
}
