package mdp

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// DefaultAverageWindow is the number of recent Q changes averaged by
// QLearner.AverageChange.
const DefaultAverageWindow = 10000

type QLearningOptions struct {
	Discount      float64
	DefaultQ      float64
	EpsilonGreedy float64
	Exploration   Exploration
	LearningRate  LearningRate

	// LearnTransitions records every observed transition in a
	// LearnableTransitionTable.
	LearnTransitions bool
	// UsePreviousReward updates with the reward of the state the action was
	// taken in instead of the reward of the state it led to.
	UsePreviousReward bool
	// AverageWindow sizes the rolling average of Q changes. Zero disables it.
	AverageWindow int

	Rand     *rand.Rand
	Logger   logrus.FieldLogger
	Recorder Recorder
}

// QLearner is the online, model free learner. Q values exist only for pairs
// that were updated at least once; all other pairs read as DefaultQ.
type QLearner[S Ordered[S], A Ordered[A]] struct {
	domain Domain[S, A]
	opts   QLearningOptions
	gamma  float64
	rng    *rand.Rand
	log    logrus.FieldLogger
	rec    Recorder

	q       map[S]map[A]float64
	freq    map[StateAction[S, A]]int
	learned *LearnableTransitionTable[S, A]

	hasLast    bool
	lastState  S
	lastAction A
	lastReward float64

	changes   []float64
	changePos int
	changeSum float64
	updates   int
	frozen    int
}

func NewQLearner[S Ordered[S], A Ordered[A]](d Domain[S, A], opts QLearningOptions) *QLearner[S, A] {
	if opts.Exploration == nil {
		opts.Exploration = NoExploration{}
	}
	if opts.LearningRate == nil {
		opts.LearningRate = ConstantLearningRate(0.1)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	l := &QLearner[S, A]{
		domain: d,
		opts:   opts,
		gamma:  ClampDiscount(opts.Discount),
		rng:    rng,
		log:    loggerOr(opts.Logger).WithField("algorithm", AlgorithmQLearning),
		rec:    recorderOr(opts.Recorder),
		q:      make(map[S]map[A]float64),
		freq:   make(map[StateAction[S, A]]int),
	}
	if opts.LearnTransitions {
		l.learned = NewLearnableTransitionTable[S, A]()
	}
	if opts.AverageWindow > 0 {
		l.changes = make([]float64, 0, opts.AverageWindow)
	}
	return l
}

// Observe performs one learning step for the newly reached state s with
// reward r and returns the next action. The bool is false when s is terminal;
// the episode then ends and no action is chosen.
func (l *QLearner[S, A]) Observe(s S, r float64) (A, bool, error) {
	if l.hasLast {
		if err := l.learn(s, r); err != nil {
			return l.lastAction, false, err
		}
	}
	if l.domain.IsTerminal(s) {
		l.hasLast = false
		l.lastReward = 0
		var none A
		return none, false, nil
	}

	a := l.choose(s)
	l.hasLast = true
	l.lastState, l.lastAction, l.lastReward = s, a, r
	return a, true, nil
}

func (l *QLearner[S, A]) learn(s S, r float64) error {
	prev := StateAction[S, A]{l.lastState, l.lastAction}
	if l.learned != nil {
		if err := l.learned.Experience(prev.State, prev.Action, s); err != nil {
			return err
		}
	}

	l.freq[prev]++
	rate := l.opts.LearningRate.Rate(l.freq[prev] - 1)
	if rate < Epsilon {
		l.frozen++
		return nil
	}

	// A terminal state has no actions. Its own reward is the future value
	// when updating with the previous reward, and nothing otherwise.
	best := 0.0
	reward := r
	if l.opts.UsePreviousReward {
		reward = l.lastReward
	}
	switch {
	case !l.domain.IsTerminal(s):
		best = math.Inf(-1)
		for a := range l.domain.ActionGenerator().Actions() {
			best = max(best, l.QValue(s, a))
		}
	case l.opts.UsePreviousReward:
		best = r
	}

	old := l.QValue(prev.State, prev.Action)
	updated := old + rate*(reward+l.gamma*best-old)
	if l.q[prev.State] == nil {
		l.q[prev.State] = make(map[A]float64)
	}
	l.q[prev.State][prev.Action] = updated
	l.updates++

	change := math.Abs(updated - old)
	l.trackChange(change)
	l.rec.QUpdate(change)
	return nil
}

func (l *QLearner[S, A]) trackChange(change float64) {
	window := l.opts.AverageWindow
	if window <= 0 {
		return
	}
	if len(l.changes) < window {
		l.changes = append(l.changes, change)
		l.changeSum += change
		return
	}
	l.changeSum += change - l.changes[l.changePos]
	l.changes[l.changePos] = change
	l.changePos = (l.changePos + 1) % window
}

// choose is epsilon-greedy over the exploration estimates. With EpsilonGreedy
// zero no random number is drawn.
func (l *QLearner[S, A]) choose(s S) A {
	if l.opts.EpsilonGreedy > 0 && l.rng.Float64() < l.opts.EpsilonGreedy {
		return l.domain.ActionGenerator().RandomAction(l.rng)
	}
	var best A
	bestValue := math.Inf(-1)
	found := false
	for a := range l.domain.ActionGenerator().Actions() {
		v := l.opts.Exploration.EstimatedReward(l.QValue(s, a), l.Frequency(s, a))
		if !found || v > bestValue {
			best, bestValue, found = a, v, true
		}
	}
	return best
}

// BestLearnedAction returns the highest valued action recorded for s. For a
// state without entries it falls back to a random action and reports false.
func (l *QLearner[S, A]) BestLearnedAction(s S) (A, bool) {
	values := l.q[s]
	if len(values) == 0 {
		l.log.WithField("state", s.String()).Warn("no learned action, choosing randomly")
		return l.domain.ActionGenerator().RandomAction(l.rng), false
	}
	var best A
	bestValue := math.Inf(-1)
	for i, a := range SortedKeys(values) {
		if i == 0 || values[a] > bestValue {
			best, bestValue = a, values[a]
		}
	}
	return best, true
}

// LearnedPolicy builds a policy from the greedy action of every state with
// Q entries.
func (l *QLearner[S, A]) LearnedPolicy() *LookupPolicy[S, A] {
	policy := NewLookupPolicy[S, A]()
	for s := range l.q {
		a, _ := l.BestLearnedAction(s)
		policy.SetAction(s, a)
	}
	return policy
}

// Utility holds the greedy Q value of every state with Q entries.
func (l *QLearner[S, A]) Utility() *MappedUtility[S] {
	u := NewMappedUtility[S](l.opts.DefaultQ)
	for s, values := range l.q {
		best := math.Inf(-1)
		for _, v := range values {
			best = max(best, v)
		}
		u.Experience(s, best)
	}
	return u
}

// QValue returns Q(s, a), or DefaultQ when the pair was never updated.
func (l *QLearner[S, A]) QValue(s S, a A) float64 {
	if v, ok := l.q[s][a]; ok {
		return v
	}
	return l.opts.DefaultQ
}

// HasQValue reports whether Q(s, a) has been updated at least once.
func (l *QLearner[S, A]) HasQValue(s S, a A) bool {
	_, ok := l.q[s][a]
	return ok
}

func (l *QLearner[S, A]) Frequency(s S, a A) int { return l.freq[StateAction[S, A]{s, a}] }

// AverageChange is the mean absolute Q change over the last AverageWindow
// updates.
func (l *QLearner[S, A]) AverageChange() float64 {
	if len(l.changes) == 0 {
		return 0
	}
	return l.changeSum / float64(len(l.changes))
}

// LearnedTransitions is nil unless LearnTransitions is set.
func (l *QLearner[S, A]) LearnedTransitions() *LearnableTransitionTable[S, A] { return l.learned }

// Forget ends the current episode without a learning step.
func (l *QLearner[S, A]) Forget() {
	l.hasLast = false
	l.lastReward = 0
}

func (l *QLearner[S, A]) Updates() int { return l.updates }

// WriteValues prints visit counts, Q values and, when learned, transitions.
func (l *QLearner[S, A]) WriteValues(w io.Writer) error {
	if l.learned != nil {
		if _, err := fmt.Fprintln(w, "## Learned transitions:"); err != nil {
			return err
		}
		if _, err := l.learned.WriteTo(w); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "## Trials:"); err != nil {
		return err
	}
	for _, key := range SortedKeys(l.freq) {
		if _, err := fmt.Fprintf(w, "%s: %d\n", key, l.freq[key]); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "## Q values:"); err != nil {
		return err
	}
	for _, s := range SortedKeys(l.q) {
		for _, a := range SortedKeys(l.q[s]) {
			if _, err := fmt.Fprintf(w, "%s / %s: %.4f\n", s, a, l.q[s][a]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *QLearner[S, A]) Stats() string {
	return fmt.Sprintf("states %d, pairs %d, updates %d, frozen %d, avg change %.6f",
		len(l.q), len(l.freq), l.updates, l.frozen, l.AverageChange())
}
