package mdp

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LearningStatus tells a simulation driver whether more steps can improve
// the controller.
type LearningStatus int

const (
	StatusNotInitialized LearningStatus = -2
	StatusLearning       LearningStatus = -1
	// StatusUnknown is reported by online learners, which cannot tell
	// convergence themselves.
	StatusUnknown   LearningStatus = 0
	StatusConverged LearningStatus = 1
)

func (s LearningStatus) String() string {
	switch s {
	case StatusNotInitialized:
		return "not initialized"
	case StatusLearning:
		return "learning"
	case StatusUnknown:
		return "unknown"
	case StatusConverged:
		return "converged"
	}
	return fmt.Sprintf("LearningStatus(%d)", int(s))
}

// Controller drives learning inside a simulation loop. Initialize runs any
// offline learning; UpdateAndGetAction is called once per visited state and
// returns the action to take there.
type Controller[S Ordered[S], A Ordered[A]] interface {
	Initialize(start S) error
	UpdateAndGetAction(s S) (A, error)
	// ResetStartState severs the link to the previously visited state.
	ResetStartState(start S)
	IsOnlineLearner() bool
	SetTraining(on bool)
	FinishedLearning() LearningStatus
	Policy() (*LookupPolicy[S, A], error)
	Utility() UtilityModel[S]
	WriteValues(w io.Writer) error
	Stats() string
}

// strategy is what each algorithm plugs into the shared controller
// lifecycle.
type strategy[S Ordered[S], A Ordered[A]] interface {
	initializeImpl(start S) error
	learnOffline(start S) error
	learnOnline(s S) error
	bestAction(s S) (A, error)
	bestLearnedAction(s S) (A, error)
}

type controller[S Ordered[S], A Ordered[A]] struct {
	domain      Domain[S, A]
	impl        strategy[S, A]
	log         logrus.FieldLogger
	train       bool
	initialised bool
}

func newController[S Ordered[S], A Ordered[A]](d Domain[S, A], impl strategy[S, A], log logrus.FieldLogger) controller[S, A] {
	return controller[S, A]{domain: d, impl: impl, log: loggerOr(log), train: true}
}

func (c *controller[S, A]) Initialize(start S) error {
	c.initialised = false
	if err := c.impl.initializeImpl(start); err != nil {
		c.log.WithError(err).Error("could not initialize learner")
		return errors.Wrap(err, "initialize learner")
	}
	if c.Training() {
		if err := c.impl.learnOffline(start); err != nil {
			c.log.WithError(err).Error("offline learning failed")
			return errors.Wrap(err, "offline learning")
		}
	}
	c.initialised = true
	return nil
}

// UpdateAndGetAction returns the zero action and ErrNotInitialized when
// Initialize has not succeeded.
func (c *controller[S, A]) UpdateAndGetAction(s S) (A, error) {
	if !c.Initialized() {
		var none A
		c.log.WithField("state", s.String()).Error(ErrNotInitialized)
		return none, errors.Wrapf(ErrNotInitialized, "action for %s", s)
	}
	if c.Training() {
		if err := c.impl.learnOnline(s); err != nil {
			var none A
			c.log.WithError(err).Error("could not update the learning process")
			return none, errors.Wrap(err, "online learning")
		}
		return c.impl.bestAction(s)
	}
	return c.impl.bestLearnedAction(s)
}

func (c *controller[S, A]) SetTraining(on bool) { c.train = on }

func (c *controller[S, A]) Training() bool { return c.train }

func (c *controller[S, A]) Initialized() bool { return c.initialised }

func (c *controller[S, A]) learnOnline(S) error { return nil }

func (c *controller[S, A]) learnOffline(S) error { return nil }

func (c *controller[S, A]) initializeImpl(S) error { return nil }

func writeValues(w io.Writer, policy io.WriterTo, utility any) error {
	if policy != nil {
		if _, err := fmt.Fprintln(w, "## Policy:"); err != nil {
			return err
		}
		if _, err := policy.WriteTo(w); err != nil {
			return err
		}
	}
	if wt, ok := utility.(io.WriterTo); ok {
		if _, err := fmt.Fprintln(w, "## Utility:"); err != nil {
			return err
		}
		if _, err := wt.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// ValueIterationController learns offline with ValueIteration and acts by
// maximising expected utility.
type ValueIterationController[S Ordered[S], A Ordered[A]] struct {
	controller[S, A]
	opts    ValueIterationOptions
	utility UtilityModel[S]
	stats   SweepStats
}

func NewValueIterationController[S Ordered[S], A Ordered[A]](d Domain[S, A], initial UtilityModel[S], opts ValueIterationOptions) *ValueIterationController[S, A] {
	c := &ValueIterationController[S, A]{opts: opts, utility: initial}
	c.controller = newController[S, A](d, c, opts.Logger)
	return c
}

func (c *ValueIterationController[S, A]) learnOffline(S) error {
	u, stats, err := ValueIteration(c.domain, c.utility, c.opts)
	c.stats = stats
	if err != nil {
		return err
	}
	c.utility = u
	return nil
}

func (c *ValueIterationController[S, A]) bestAction(s S) (A, error) {
	var none A
	if c.domain.IsTerminal(s) {
		return none, nil
	}
	best, ok, err := MaxUtilityAction(c.utility, c.domain.Transition(), s, c.domain.ActionGenerator().Actions())
	if err != nil {
		return none, err
	}
	if !ok {
		return none, errors.Wrapf(ErrNoApplicableAction, "state %s", s)
	}
	return best.Action, nil
}

func (c *ValueIterationController[S, A]) bestLearnedAction(s S) (A, error) { return c.bestAction(s) }

func (c *ValueIterationController[S, A]) ResetStartState(S) {}

func (c *ValueIterationController[S, A]) IsOnlineLearner() bool { return false }

func (c *ValueIterationController[S, A]) FinishedLearning() LearningStatus {
	if !c.Initialized() {
		return StatusNotInitialized
	}
	return StatusConverged
}

func (c *ValueIterationController[S, A]) Policy() (*LookupPolicy[S, A], error) {
	if !c.Initialized() {
		return nil, ErrNotInitialized
	}
	return DerivePolicy(c.domain, c.utility)
}

func (c *ValueIterationController[S, A]) Utility() UtilityModel[S] { return c.utility }

func (c *ValueIterationController[S, A]) SweepStats() SweepStats { return c.stats }

func (c *ValueIterationController[S, A]) WriteValues(w io.Writer) error {
	policy, err := c.Policy()
	if err != nil {
		return err
	}
	return writeValues(w, policy, c.utility)
}

func (c *ValueIterationController[S, A]) Stats() string {
	return fmt.Sprintf("sweeps %d, final delta %g", c.stats.Sweeps, c.stats.Delta)
}

// PolicyIterationController learns offline with PolicyIteration and follows
// the resulting policy.
type PolicyIterationController[S Ordered[S], A Ordered[A]] struct {
	controller[S, A]
	opts       PolicyIterationOptions
	utility    UtilityModel[S]
	policy     *LookupPolicy[S, A]
	iterations int
}

func NewPolicyIterationController[S Ordered[S], A Ordered[A]](d Domain[S, A], initial UtilityModel[S], opts PolicyIterationOptions) *PolicyIterationController[S, A] {
	c := &PolicyIterationController[S, A]{opts: opts, utility: initial, policy: NewLookupPolicy[S, A]()}
	c.controller = newController[S, A](d, c, opts.Logger)
	return c
}

func (c *PolicyIterationController[S, A]) learnOffline(S) error {
	res, err := PolicyIteration(c.domain, c.utility, c.policy, c.opts)
	c.iterations = res.Iterations
	if err != nil {
		return err
	}
	c.utility = res.Utility
	return nil
}

func (c *PolicyIterationController[S, A]) bestAction(s S) (A, error) {
	var none A
	if c.domain.IsTerminal(s) {
		return none, nil
	}
	a, ok := c.policy.Action(s)
	if !ok {
		return none, errors.Wrapf(ErrMissingPolicyEntry, "state %s", s)
	}
	return a, nil
}

func (c *PolicyIterationController[S, A]) bestLearnedAction(s S) (A, error) { return c.bestAction(s) }

func (c *PolicyIterationController[S, A]) ResetStartState(S) {}

func (c *PolicyIterationController[S, A]) IsOnlineLearner() bool { return false }

func (c *PolicyIterationController[S, A]) FinishedLearning() LearningStatus {
	if !c.Initialized() {
		return StatusNotInitialized
	}
	return StatusConverged
}

func (c *PolicyIterationController[S, A]) Policy() (*LookupPolicy[S, A], error) {
	if !c.Initialized() {
		return nil, ErrNotInitialized
	}
	return c.policy.Clone(), nil
}

func (c *PolicyIterationController[S, A]) Utility() UtilityModel[S] { return c.utility }

func (c *PolicyIterationController[S, A]) WriteValues(w io.Writer) error {
	return writeValues(w, c.policy, c.utility)
}

func (c *PolicyIterationController[S, A]) Stats() string {
	return fmt.Sprintf("iterations %d, policy entries %d", c.iterations, c.policy.Len())
}

// QLearningController learns online with a QLearner. Rewards are read from
// the domain's reward model.
type QLearningController[S Ordered[S], A Ordered[A]] struct {
	controller[S, A]
	learner *QLearner[S, A]
	next    A
}

func NewQLearningController[S Ordered[S], A Ordered[A]](d Domain[S, A], opts QLearningOptions) *QLearningController[S, A] {
	c := &QLearningController[S, A]{learner: NewQLearner(d, opts)}
	c.controller = newController[S, A](d, c, opts.Logger)
	return c
}

func (c *QLearningController[S, A]) learnOnline(s S) error {
	a, _, err := c.learner.Observe(s, c.domain.Reward().Reward(s))
	c.next = a
	return err
}

func (c *QLearningController[S, A]) bestAction(S) (A, error) { return c.next, nil }

func (c *QLearningController[S, A]) bestLearnedAction(s S) (A, error) {
	if c.domain.IsTerminal(s) {
		var none A
		return none, nil
	}
	a, _ := c.learner.BestLearnedAction(s)
	return a, nil
}

func (c *QLearningController[S, A]) ResetStartState(S) { c.learner.Forget() }

func (c *QLearningController[S, A]) IsOnlineLearner() bool { return true }

func (c *QLearningController[S, A]) FinishedLearning() LearningStatus {
	if !c.Initialized() {
		return StatusNotInitialized
	}
	return StatusUnknown
}

func (c *QLearningController[S, A]) Policy() (*LookupPolicy[S, A], error) {
	if !c.Initialized() {
		return nil, ErrNotInitialized
	}
	return c.learner.LearnedPolicy(), nil
}

func (c *QLearningController[S, A]) Utility() UtilityModel[S] { return c.learner.Utility() }

func (c *QLearningController[S, A]) Learner() *QLearner[S, A] { return c.learner }

func (c *QLearningController[S, A]) WriteValues(w io.Writer) error { return c.learner.WriteValues(w) }

func (c *QLearningController[S, A]) Stats() string { return c.learner.Stats() }

var (
	_ Controller[Label, Label] = (*ValueIterationController[Label, Label])(nil)
	_ Controller[Label, Label] = (*PolicyIterationController[Label, Label])(nil)
	_ Controller[Label, Label] = (*QLearningController[Label, Label])(nil)
)
