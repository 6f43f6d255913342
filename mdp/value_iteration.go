package mdp

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type ValueIterationOptions struct {
	// Discount is clamped into [0, 1-Epsilon].
	Discount float64
	// MaxError bounds the distance of the result from the true utility.
	MaxError float64
	// MaxSweeps aborts with ErrNotConverged once reached. Zero means no limit.
	MaxSweeps int

	Logger   logrus.FieldLogger
	Recorder Recorder
}

type SweepStats struct {
	Sweeps int
	Delta  float64
	// Deltas holds the largest utility change of every sweep.
	Deltas []float64
}

// ValueIteration sweeps U(s) = R(s) + γ max_a Σ p U(s') over every state
// until the largest change of a sweep is at most MaxError(1-γ)/γ. Each sweep
// reads only the previous sweep's utilities. Terminal states take their
// reward. The passed utility seeds the iteration and is not modified.
func ValueIteration[S Ordered[S], A Ordered[A]](d Domain[S, A], initial UtilityModel[S], opts ValueIterationOptions) (UtilityModel[S], SweepStats, error) {
	log := loggerOr(opts.Logger).WithField("algorithm", AlgorithmValueIteration)
	rec := recorderOr(opts.Recorder)

	gamma := ClampDiscount(opts.Discount)
	bound := math.Inf(1)
	if gamma > 0 {
		bound = opts.MaxError * (1 - gamma) / gamma
	}
	log.WithFields(logrus.Fields{"discount": gamma, "bound": bound}).Info("starting value iteration")

	var stats SweepStats
	next := initial.Clone()
	for {
		current := next.Clone()
		delta := 0.0
		for s := range d.StateGenerator().States() {
			v, err := backup(d, current, s, gamma)
			if err != nil {
				log.WithError(err).Error("value iteration aborted")
				return nil, stats, err
			}
			next.Experience(s, v)
			delta = max(delta, math.Abs(v-current.Utility(s)))
		}
		stats.Sweeps++
		stats.Delta = delta
		stats.Deltas = append(stats.Deltas, delta)
		rec.Sweep(AlgorithmValueIteration, delta)
		log.WithFields(logrus.Fields{"sweep": stats.Sweeps, "delta": delta}).Debug("sweep done")

		if delta <= bound {
			break
		}
		if opts.MaxSweeps > 0 && stats.Sweeps >= opts.MaxSweeps {
			return next, stats, errors.Wrapf(ErrNotConverged, "delta %g after %d sweeps", delta, stats.Sweeps)
		}
	}
	log.WithFields(logrus.Fields{"sweeps": stats.Sweeps, "delta": stats.Delta}).Info("value iteration converged")
	return next, stats, nil
}

func backup[S Ordered[S], A Ordered[A]](d Domain[S, A], u UtilityModel[S], s S, gamma float64) (float64, error) {
	r := d.Reward().Reward(s)
	if d.IsTerminal(s) {
		return r, nil
	}
	best, ok, err := MaxUtilityAction(u, d.Transition(), s, d.ActionGenerator().Actions())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Wrapf(ErrNoApplicableAction, "state %s", s)
	}
	return r + gamma*best.Value, nil
}

// DerivePolicy picks the utility maximising action for every non-terminal
// state.
func DerivePolicy[S Ordered[S], A Ordered[A]](d Domain[S, A], u UtilityModel[S]) (*LookupPolicy[S, A], error) {
	policy := NewLookupPolicy[S, A]()
	for s := range d.StateGenerator().States() {
		if d.IsTerminal(s) {
			continue
		}
		best, ok, err := MaxUtilityAction(u, d.Transition(), s, d.ActionGenerator().Actions())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(ErrNoApplicableAction, "state %s", s)
		}
		policy.SetAction(s, best.Action)
	}
	return policy, nil
}
