package mdp

import (
	"iter"
	"math"

	"github.com/pkg/errors"
)

// RewardModel assigns each state a scalar reward. OptimisticReward is an
// upper bound on every reward the model hands out.
type RewardModel[S Ordered[S]] interface {
	Reward(s S) float64
	OptimisticReward() float64
}

// SelectedReward returns a default reward for every state except the ones
// given an explicit override.
type SelectedReward[S Ordered[S]] struct {
	def       float64
	overrides map[S]float64
}

func NewSelectedReward[S Ordered[S]](def float64) *SelectedReward[S] {
	return &SelectedReward[S]{def: def, overrides: make(map[S]float64)}
}

func (r *SelectedReward[S]) AddReward(s S, reward float64) error {
	if old, ok := r.overrides[s]; ok {
		return errors.Wrapf(ErrDuplicateReward, "%s already has %g", s, old)
	}
	r.overrides[s] = reward
	return nil
}

func (r *SelectedReward[S]) Reward(s S) float64 {
	if v, ok := r.overrides[s]; ok {
		return v
	}
	return r.def
}

func (r *SelectedReward[S]) Default() float64 { return r.def }

// OptimisticReward overestimates the best reward by a tenth of its magnitude.
func (r *SelectedReward[S]) OptimisticReward() float64 {
	best := r.def
	for _, v := range r.overrides {
		best = max(best, v)
	}
	return best + 0.1*math.Abs(best)
}

func (r *SelectedReward[S]) Len() int { return len(r.overrides) }

// All yields the overrides in state order.
func (r *SelectedReward[S]) All() iter.Seq2[S, float64] {
	return func(yield func(S, float64) bool) {
		for _, s := range SortedKeys(r.overrides) {
			if !yield(s, r.overrides[s]) {
				return
			}
		}
	}
}
