package mdp

import (
	"iter"
	"math/rand/v2"
	"slices"
)

type StateGenerator[S Ordered[S]] interface {
	// States enumerates every state of the domain once.
	States() iter.Seq[S]
	RandomState(rng *rand.Rand) S
}

type ActionGenerator[A Ordered[A]] interface {
	// Actions enumerates every action of the domain once.
	Actions() iter.Seq[A]
	RandomAction(rng *rand.Rand) A
}

// DiscreteStateSpace is a finite, slice backed StateGenerator.
// RandomState panics on an empty space.
type DiscreteStateSpace[S Ordered[S]] []S

func (d DiscreteStateSpace[S]) States() iter.Seq[S] { return slices.Values(d) }

func (d DiscreteStateSpace[S]) RandomState(rng *rand.Rand) S { return d[rng.IntN(len(d))] }

// DiscreteActionSpace is a finite, slice backed ActionGenerator.
type DiscreteActionSpace[A Ordered[A]] []A

func (d DiscreteActionSpace[A]) Actions() iter.Seq[A] { return slices.Values(d) }

func (d DiscreteActionSpace[A]) RandomAction(rng *rand.Rand) A { return d[rng.IntN(len(d))] }
