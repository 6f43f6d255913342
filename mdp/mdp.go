package mdp

import (
	"cmp"
	"fmt"
	"slices"
)

// Ordered is the contract every state and action type satisfies. Values are
// used as map keys, printed in reports and sorted for deterministic output.
type Ordered[T any] interface {
	comparable
	fmt.Stringer
	Compare(T) int
}

// Label is a ready-made state or action type for small hand-built domains.
type Label string

func (l Label) String() string { return string(l) }

func (l Label) Compare(o Label) int { return cmp.Compare(l, o) }

// StateAction keys the tables indexed by a state and the action taken in it.
// Pairs order by state first, then by action.
type StateAction[S Ordered[S], A Ordered[A]] struct {
	State  S
	Action A
}

func (p StateAction[S, A]) Compare(o StateAction[S, A]) int {
	if c := p.State.Compare(o.State); c != 0 {
		return c
	}
	return p.Action.Compare(o.Action)
}

func (p StateAction[S, A]) String() string {
	return p.State.String() + " / " + p.Action.String()
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K Ordered[K], V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b K) int { return a.Compare(b) })
	return keys
}

// Domain bundles the models a solver reads. Solvers never mutate a domain;
// TransferState is for simulation drivers only.
type Domain[S Ordered[S], A Ordered[A]] interface {
	Transition() TransitionModel[S, A]
	Reward() RewardModel[S]
	StateGenerator() StateGenerator[S]
	ActionGenerator() ActionGenerator[A]
	StartState() S
	TransferState(s S, a A) S
	IsTerminal(s S) bool
}
