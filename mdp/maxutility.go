package mdp

import (
	"iter"

	"github.com/pkg/errors"
)

type ActionValue[A Ordered[A]] struct {
	Action A
	Value  float64
}

// ExpectedUtility sums p * U(next) over the successors of (s, a). The bool
// is false when a is not applicable in s. A successor list whose
// probabilities do not sum to 1 yields ErrProbabilitySum.
func ExpectedUtility[S Ordered[S], A Ordered[A]](u UtilityModel[S], t TransitionModel[S, A], s S, a A) (float64, bool, error) {
	succ, ok := t.Successors(s, a)
	if !ok {
		return 0, false, nil
	}
	var value, total float64
	for _, next := range succ {
		value += next.P * u.Utility(next.State)
		total += next.P
	}
	if !NearlyEqual(total, 1, ProbabilityTolerance, ProbabilityTolerance) {
		return 0, true, errors.Wrapf(ErrProbabilitySum, "state %s action %s sums to %.10f", s, a, total)
	}
	return value, true, nil
}

// MaxUtilityAction returns the action with the greatest expected utility in
// s. The first applicable action seeds the maximum and only a strictly
// greater value replaces it, so ties keep the earlier action. The bool is
// false when no action is applicable.
func MaxUtilityAction[S Ordered[S], A Ordered[A]](u UtilityModel[S], t TransitionModel[S, A], s S, actions iter.Seq[A]) (ActionValue[A], bool, error) {
	var best ActionValue[A]
	found := false
	for a := range actions {
		v, ok, err := ExpectedUtility(u, t, s, a)
		if err != nil {
			return ActionValue[A]{}, false, err
		}
		if !ok {
			continue
		}
		if !found || v > best.Value {
			best = ActionValue[A]{Action: a, Value: v}
			found = true
		}
	}
	return best, found, nil
}
