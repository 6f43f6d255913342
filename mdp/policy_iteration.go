package mdp

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultEvaluationSweeps is the number of fixed-policy sweeps run before
// each improvement step.
const DefaultEvaluationSweeps = 5

type PolicyIterationOptions struct {
	Discount         float64
	EvaluationSweeps int
	// MaxIterations aborts with ErrNotConverged once reached. Zero means no limit.
	MaxIterations int
	// Rand draws the initial action of states the policy does not cover yet.
	Rand *rand.Rand

	Logger   logrus.FieldLogger
	Recorder Recorder
}

type PolicyIterationResult[S Ordered[S]] struct {
	Utility    UtilityModel[S]
	Iterations int
}

// PolicyIteration runs modified policy iteration. Non-terminal states without
// an entry in policy get a random action; then a bounded evaluation and a
// strict improvement step alternate until no action changes. policy is
// updated in place.
func PolicyIteration[S Ordered[S], A Ordered[A]](d Domain[S, A], initial UtilityModel[S], policy Policy[S, A], opts PolicyIterationOptions) (PolicyIterationResult[S], error) {
	log := loggerOr(opts.Logger).WithField("algorithm", AlgorithmPolicyIteration)
	rec := recorderOr(opts.Recorder)
	gamma := ClampDiscount(opts.Discount)
	sweeps := opts.EvaluationSweeps
	if sweeps <= 0 {
		sweeps = DefaultEvaluationSweeps
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	for s := range d.StateGenerator().States() {
		if d.IsTerminal(s) {
			continue
		}
		if _, ok := policy.Action(s); !ok {
			policy.SetAction(s, d.ActionGenerator().RandomAction(rng))
		}
	}
	log.WithFields(logrus.Fields{"discount": gamma, "evaluation_sweeps": sweeps}).Info("starting policy iteration")

	res := PolicyIterationResult[S]{Utility: initial.Clone()}
	for {
		var err error
		res.Utility, err = evaluatePolicy(d, res.Utility, policy, gamma, sweeps)
		if err != nil {
			log.WithError(err).Error("policy evaluation aborted")
			return res, err
		}
		changed, err := improvePolicy(d, res.Utility, policy)
		if err != nil {
			log.WithError(err).Error("policy improvement aborted")
			return res, err
		}
		res.Iterations++
		rec.PolicyChanges(AlgorithmPolicyIteration, changed)
		log.WithFields(logrus.Fields{"iteration": res.Iterations, "changed": changed}).Debug("improvement done")

		if changed == 0 {
			break
		}
		if opts.MaxIterations > 0 && res.Iterations >= opts.MaxIterations {
			return res, errors.Wrapf(ErrNotConverged, "%d actions still changing after %d iterations", changed, res.Iterations)
		}
	}
	log.WithField("iterations", res.Iterations).Info("policy iteration converged")
	return res, nil
}

// evaluatePolicy runs fixed-policy sweeps. An action that is not applicable
// contributes no future utility.
func evaluatePolicy[S Ordered[S], A Ordered[A]](d Domain[S, A], u UtilityModel[S], policy Policy[S, A], gamma float64, sweeps int) (UtilityModel[S], error) {
	next := u.Clone()
	for range sweeps {
		current := next.Clone()
		for s := range d.StateGenerator().States() {
			r := d.Reward().Reward(s)
			if d.IsTerminal(s) {
				next.Experience(s, r)
				continue
			}
			a, ok := policy.Action(s)
			if !ok {
				return nil, errors.Wrapf(ErrMissingPolicyEntry, "state %s", s)
			}
			v, _, err := ExpectedUtility(current, d.Transition(), s, a)
			if err != nil {
				return nil, err
			}
			next.Experience(s, r+gamma*v)
		}
	}
	return next, nil
}

func improvePolicy[S Ordered[S], A Ordered[A]](d Domain[S, A], u UtilityModel[S], policy Policy[S, A]) (int, error) {
	changed := 0
	for s := range d.StateGenerator().States() {
		if d.IsTerminal(s) {
			continue
		}
		best, ok, err := MaxUtilityAction(u, d.Transition(), s, d.ActionGenerator().Actions())
		if err != nil {
			return changed, err
		}
		if !ok {
			return changed, errors.Wrapf(ErrNoApplicableAction, "state %s", s)
		}
		a, ok := policy.Action(s)
		if !ok {
			return changed, errors.Wrapf(ErrMissingPolicyEntry, "state %s", s)
		}
		current, applicable, err := ExpectedUtility(u, d.Transition(), s, a)
		if err != nil {
			return changed, err
		}
		if !applicable {
			current = math.Inf(-1)
		}
		if best.Value > current {
			policy.SetAction(s, best.Action)
			changed++
		}
	}
	return changed, nil
}
