package mdp

import (
	"fmt"
	"math/rand/v2"
)

const (
	left  Label = "left"
	right Label = "right"
)

// chainDomain is a corridor of n states. The last state is terminal and pays
// +1; every other state costs step.
type chainDomain struct {
	trans    TransitionModel[Label, Label]
	reward   *SelectedReward[Label]
	states   DiscreteStateSpace[Label]
	actions  DiscreteActionSpace[Label]
	terminal map[Label]bool
	rng      *rand.Rand
}

func chainState(i int) Label { return Label(fmt.Sprintf("s%d", i)) }

func newChain(n int, step float64, seed uint64) *chainDomain {
	d := &chainDomain{
		reward:   NewSelectedReward[Label](step),
		actions:  DiscreteActionSpace[Label]{left, right},
		terminal: map[Label]bool{chainState(n - 1): true},
		rng:      rand.New(rand.NewPCG(seed, seed+1)),
	}
	table := NewTransitionTable[Label, Label]()
	for i := range n {
		d.states = append(d.states, chainState(i))
		if i == n-1 {
			continue
		}
		_ = table.SetSuccessor(chainState(i), left, chainState(max(i-1, 0)), 1)
		_ = table.SetSuccessor(chainState(i), right, chainState(i+1), 1)
	}
	_ = d.reward.AddReward(chainState(n-1), 1)
	d.trans = table
	return d
}

func (d *chainDomain) Transition() TransitionModel[Label, Label] { return d.trans }
func (d *chainDomain) Reward() RewardModel[Label]                 { return d.reward }
func (d *chainDomain) StateGenerator() StateGenerator[Label]      { return d.states }
func (d *chainDomain) ActionGenerator() ActionGenerator[Label]    { return d.actions }
func (d *chainDomain) StartState() Label                          { return d.states[0] }
func (d *chainDomain) IsTerminal(s Label) bool                    { return d.terminal[s] }

func (d *chainDomain) TransferState(s, a Label) Label {
	succ, ok := d.trans.Successors(s, a)
	if !ok {
		return s
	}
	next, _ := Sample(succ, d.rng)
	return next
}

func (d *chainDomain) randomNonTerminal() Label {
	for {
		if s := d.states.RandomState(d.rng); !d.terminal[s] {
			return s
		}
	}
}
