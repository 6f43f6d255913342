package mdp

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionFuncIsImmutable(t *testing.T) {
	f := TransitionFunc[Label, Label](func(s, a Label) []Successor[Label] {
		if s == "end" {
			return nil
		}
		return []Successor[Label]{{"end", 1}}
	})

	succ, ok := f.Successors("start", "go")
	require.True(t, ok)
	assert.Equal(t, []Successor[Label]{{"end", 1}}, succ)

	_, ok = f.Successors("end", "go")
	assert.False(t, ok)

	err := f.SetSuccessor("start", "go", "end", 0.5)
	assert.True(t, errors.Is(err, ErrImmutableTransition))
	assert.False(t, IsDomainError(err))
}

func TestTransitionTableInsertAndReplace(t *testing.T) {
	table := NewTransitionTable[Label, Label]()
	require.NoError(t, table.SetSuccessor("a", "go", "b", 0.5))
	require.NoError(t, table.SetSuccessor("a", "go", "c", 0.5))
	require.NoError(t, table.SetSuccessor("a", "go", "b", 0.25))

	succ, ok := table.Successors("a", "go")
	require.True(t, ok)
	assert.Equal(t, []Successor[Label]{{"b", 0.25}, {"c", 0.5}}, succ)

	_, ok = table.Successors("a", "stay")
	assert.False(t, ok)

	err := table.SetSuccessor("a", "go", "d", 1.5)
	assert.True(t, errors.Is(err, ErrInvalidProbability))

	var buf bytes.Buffer
	_, err = table.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "a / go:  b / 0.25\na / go:  c / 0.5\n", buf.String())
}

func TestLearnableTransitionConvergesToFrequencies(t *testing.T) {
	table := NewLearnableTransitionTable[Label, Label]()
	successors := []Label{"x", "y", "z", "w"}

	const rounds = 250
	for range rounds {
		for _, next := range successors {
			require.NoError(t, table.Experience("s", "a", next))
		}
	}

	succ, ok := table.Successors("s", "a")
	require.True(t, ok)
	require.Len(t, succ, len(successors))
	total := 0.0
	for i, x := range succ {
		assert.Equal(t, successors[i], x.State)
		assert.InDelta(t, 1.0/float64(len(successors)), x.P, 1e-9)
		total += x.P
	}
	assert.InDelta(t, 1, total, ProbabilityTolerance)
	assert.Equal(t, rounds, table.Count("s", "a", "y"))
	assert.Equal(t, rounds*len(successors), table.Trials("s", "a"))
}

func TestLearnableTransitionRenormalises(t *testing.T) {
	table := NewLearnableTransitionTable[Label, Label]()
	require.NoError(t, table.Experience("s", "a", "x"))
	require.NoError(t, table.Experience("s", "a", "x"))
	require.NoError(t, table.Experience("s", "a", "y"))

	succ, _ := table.Successors("s", "a")
	assert.InDelta(t, 2.0/3, succ[0].P, 1e-12)
	assert.InDelta(t, 1.0/3, succ[1].P, 1e-12)
}

func TestLearnableTransitionDetectsMisalignment(t *testing.T) {
	table := NewLearnableTransitionTable[Label, Label]()
	require.NoError(t, table.Experience("s", "a", "x"))

	// A probability written behind the count table's back.
	key := StateAction[Label, Label]{"s", "a"}
	table.entries[key] = append(table.entries[key], Successor[Label]{"y", 0})

	err := table.Experience("s", "a", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentTransitions))
	assert.True(t, IsDomainError(err))
}

func TestLearnableTransitionMisalignmentLeavesCountsUntouched(t *testing.T) {
	table := NewLearnableTransitionTable[Label, Label]()
	require.NoError(t, table.Experience("s", "a", "x"))
	require.NoError(t, table.Experience("s", "a", "y"))

	key := StateAction[Label, Label]{"s", "a"}
	probs := table.entries[key]
	probs[0], probs[1] = probs[1], probs[0]

	err := table.Experience("s", "a", "x")
	assert.True(t, errors.Is(err, ErrInconsistentTransitions))
	assert.Equal(t, 1, table.Count("s", "a", "x"))
	assert.Equal(t, 2, table.Trials("s", "a"))
}

func TestLearnableTransitionSetSuccessorKeepsAlignment(t *testing.T) {
	table := NewLearnableTransitionTable[Label, Label]()
	require.NoError(t, table.SetSuccessor("s", "a", "x", 1))
	require.NoError(t, table.Experience("s", "a", "y"))

	succ, _ := table.Successors("s", "a")
	assert.Equal(t, []Successor[Label]{{"x", 0}, {"y", 1}}, succ)
	assert.Equal(t, 0, table.Count("s", "a", "x"))
}
