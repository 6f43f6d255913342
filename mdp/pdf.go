package mdp

import "math/rand/v2"

// Sample picks one successor by cumulative probability. Rounding slack at the
// top of the distribution falls to the last successor.
func Sample[S Ordered[S]](successors []Successor[S], rng *rand.Rand) (S, bool) {
	var last S
	if len(successors) == 0 {
		return last, false
	}
	v := rng.Float64()
	cumulative := 0.0
	for _, succ := range successors {
		cumulative += succ.P
		if cumulative >= v {
			return succ.State, true
		}
		last = succ.State
	}
	return last, true
}
