package mdp

import (
	"fmt"
	"io"
	"slices"

	"github.com/pkg/errors"
)

// Successor is one possible outcome of taking an action: the state reached
// and its probability.
type Successor[S Ordered[S]] struct {
	State S
	P     float64
}

// TransitionModel maps a state and action to the distribution over next
// states. Successors reports false when the action is not applicable, which
// is always the case in terminal states. Callers must not modify the
// returned slice.
type TransitionModel[S Ordered[S], A Ordered[A]] interface {
	Successors(s S, a A) ([]Successor[S], bool)
	SetSuccessor(s S, a A, next S, p float64) error
}

// TransitionFunc adapts an analytic transition function. It is fixed: every
// SetSuccessor call fails with ErrImmutableTransition.
type TransitionFunc[S Ordered[S], A Ordered[A]] func(s S, a A) []Successor[S]

func (f TransitionFunc[S, A]) Successors(s S, a A) ([]Successor[S], bool) {
	succ := f(s, a)
	return succ, len(succ) > 0
}

func (f TransitionFunc[S, A]) SetSuccessor(s S, a A, next S, _ float64) error {
	return errors.Wrapf(ErrImmutableTransition, "set %s / %s -> %s", s, a, next)
}

// TransitionTable is an explicitly filled transition model. Successors keep
// the order in which they were first set.
type TransitionTable[S Ordered[S], A Ordered[A]] struct {
	entries map[StateAction[S, A]][]Successor[S]
}

func NewTransitionTable[S Ordered[S], A Ordered[A]]() *TransitionTable[S, A] {
	return &TransitionTable[S, A]{entries: make(map[StateAction[S, A]][]Successor[S])}
}

func (t *TransitionTable[S, A]) Successors(s S, a A) ([]Successor[S], bool) {
	succ, ok := t.entries[StateAction[S, A]{s, a}]
	return succ, ok && len(succ) > 0
}

// SetSuccessor inserts next as a successor of (s, a) or replaces its
// probability when already present.
func (t *TransitionTable[S, A]) SetSuccessor(s S, a A, next S, p float64) error {
	if p < 0 || p > 1 {
		return errors.Wrapf(ErrInvalidProbability, "%s / %s -> %s: %g", s, a, next, p)
	}
	key := StateAction[S, A]{s, a}
	succ := t.entries[key]
	if i := indexOf(succ, next); i >= 0 {
		succ[i].P = p
		return nil
	}
	t.entries[key] = append(succ, Successor[S]{State: next, P: p})
	return nil
}

func (t *TransitionTable[S, A]) Len() int { return len(t.entries) }

// WriteTo prints one line per successor, sorted by state and action.
func (t *TransitionTable[S, A]) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, key := range SortedKeys(t.entries) {
		for _, succ := range t.entries[key] {
			m, err := fmt.Fprintf(w, "%s:  %s / %g\n", key, succ.State, succ.P)
			n += int64(m)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func indexOf[S Ordered[S]](succ []Successor[S], s S) int {
	return slices.IndexFunc(succ, func(x Successor[S]) bool { return x.State == s })
}

type observation[S Ordered[S]] struct {
	State S
	Count int
}

// LearnableTransitionTable estimates transition probabilities from observed
// transitions. For each (state, action) it keeps a count list next to the
// probability list; both hold the same successors in the same order.
type LearnableTransitionTable[S Ordered[S], A Ordered[A]] struct {
	*TransitionTable[S, A]
	counts map[StateAction[S, A]][]observation[S]
}

func NewLearnableTransitionTable[S Ordered[S], A Ordered[A]]() *LearnableTransitionTable[S, A] {
	return &LearnableTransitionTable[S, A]{
		TransitionTable: NewTransitionTable[S, A](),
		counts:          make(map[StateAction[S, A]][]observation[S]),
	}
}

// Experience records one observed transition s --a--> next and renormalises
// the probabilities of every successor of (s, a) to count / total.
func (t *LearnableTransitionTable[S, A]) Experience(s S, a A, next S) error {
	key := StateAction[S, A]{s, a}
	probs, counts := t.entries[key], t.counts[key]
	if len(probs) != len(counts) {
		return errors.Wrapf(ErrInconsistentTransitions, "%s: %d probabilities, %d counts", key, len(probs), len(counts))
	}

	for j := range counts {
		if probs[j].State != counts[j].State {
			return errors.Wrapf(ErrInconsistentTransitions, "%s: successor %d is %s in probabilities, %s in counts",
				key, j, probs[j].State, counts[j].State)
		}
	}

	i := slices.IndexFunc(counts, func(o observation[S]) bool { return o.State == next })
	if i < 0 {
		counts = append(counts, observation[S]{State: next})
		probs = append(probs, Successor[S]{State: next})
		i = len(counts) - 1
	}
	counts[i].Count++

	total := 0
	for _, o := range counts {
		total += o.Count
	}
	for j := range counts {
		probs[j].P = float64(counts[j].Count) / float64(total)
	}

	t.entries[key] = probs
	t.counts[key] = counts
	return nil
}

// SetSuccessor overrides a probability directly. A new successor starts with
// no observations.
func (t *LearnableTransitionTable[S, A]) SetSuccessor(s S, a A, next S, p float64) error {
	if err := t.TransitionTable.SetSuccessor(s, a, next, p); err != nil {
		return err
	}
	key := StateAction[S, A]{s, a}
	counts := t.counts[key]
	if !slices.ContainsFunc(counts, func(o observation[S]) bool { return o.State == next }) {
		t.counts[key] = append(counts, observation[S]{State: next})
	}
	return nil
}

// Count returns how often s --a--> next has been observed.
func (t *LearnableTransitionTable[S, A]) Count(s S, a A, next S) int {
	for _, o := range t.counts[StateAction[S, A]{s, a}] {
		if o.State == next {
			return o.Count
		}
	}
	return 0
}

// Trials returns how often a has been taken in s.
func (t *LearnableTransitionTable[S, A]) Trials(s S, a A) int {
	total := 0
	for _, o := range t.counts[StateAction[S, A]{s, a}] {
		total += o.Count
	}
	return total
}
