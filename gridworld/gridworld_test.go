package gridworld

import (
	"bytes"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/CodeStranger-Fred/mdplearn/mdp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClassic(t *testing.T, seed uint64) *Domain {
	t.Helper()
	d, err := NewDomain(Classic(), rand.New(rand.NewPCG(seed, seed)))
	require.NoError(t, err)
	return d
}

func TestSuccessorProbabilitiesSumToOne(t *testing.T) {
	for _, side := range []float64{0, 0.1, 0.25, 0.5} {
		w := Classic()
		w.SideProbability = side
		for _, c := range w.Cells() {
			for _, m := range Moves {
				succ := w.Successors(c, m)
				if w.IsTerminal(c) {
					assert.Empty(t, succ, "terminal %s", c)
					continue
				}
				require.NotEmpty(t, succ, "cell %s move %s", c, m)
				total := 0.0
				for _, s := range succ {
					assert.True(t, w.OnBoard(s.State))
					assert.NotEqual(t, w.Block, s.State)
					total += s.P
				}
				assert.InDelta(t, 1, total, 1e-7, "cell %s move %s side %g", c, m, side)
			}
		}
	}
}

func TestSuccessorsBumpInPlace(t *testing.T) {
	w := Classic()

	// Left from the origin hits the edge, its Up slip is free and its Down
	// slip hits the edge too.
	succ := w.Successors(Cell{0, 0}, Left)
	require.Len(t, succ, 2)
	assert.Equal(t, Cell{0, 1}, succ[0].State)
	assert.InDelta(t, 0.1, succ[0].P, 1e-12)
	assert.Equal(t, Cell{0, 0}, succ[1].State)
	assert.InDelta(t, 0.9, succ[1].P, 1e-12)

	// Right from (0,1) runs into the block.
	succ = w.Successors(Cell{0, 1}, Right)
	require.Len(t, succ, 3)
	assert.Equal(t, Cell{0, 0}, succ[0].State)
	assert.Equal(t, Cell{0, 2}, succ[1].State)
	assert.Equal(t, Cell{0, 1}, succ[2].State)
	assert.InDelta(t, 0.8, succ[2].P, 1e-12)

	assert.Nil(t, w.Successors(w.Block, Up))
}

func TestCellsSkipBlock(t *testing.T) {
	w := Classic()
	cells := w.Cells()
	assert.Len(t, cells, 11)
	assert.NotContains(t, cells, w.Block)
	assert.Equal(t, Cell{0, 0}, cells[0])
	assert.Equal(t, Cell{3, 2}, cells[len(cells)-1])
}

func TestCheckRejectsBadWorlds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *World)
	}{
		{"empty", func(w *World) { w.Cols = 0 }},
		{"goal off board", func(w *World) { w.Goal = Cell{4, 0} }},
		{"pit on goal", func(w *World) { w.Pit = w.Goal }},
		{"side too large", func(w *World) { w.SideProbability = 0.6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Classic()
			tt.mutate(&w)
			err := w.Check()
			assert.True(t, errors.Is(err, ErrInvalidWorld))

			_, err = NewDomain(w, nil)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, Classic().Check())
}

func TestTransitionIsFixed(t *testing.T) {
	d := newClassic(t, 1)
	err := d.Transition().SetSuccessor(Cell{0, 0}, Up, Cell{0, 1}, 1)
	assert.True(t, errors.Is(err, mdp.ErrImmutableTransition))
}

func TestRewards(t *testing.T) {
	d := newClassic(t, 1)
	assert.Equal(t, 1.0, d.Reward().Reward(Cell{3, 2}))
	assert.Equal(t, -1.0, d.Reward().Reward(Cell{3, 1}))
	assert.Equal(t, -0.04, d.Reward().Reward(Cell{0, 0}))
	assert.GreaterOrEqual(t, d.Reward().OptimisticReward(), 1.0)
}

func TestTransferState(t *testing.T) {
	d := newClassic(t, 7)
	assert.Equal(t, Cell{3, 2}, d.TransferState(Cell{3, 2}, Left))

	counts := map[Cell]int{}
	for range 5000 {
		counts[d.TransferState(Cell{0, 0}, Up)]++
	}
	assert.InDelta(t, 0.8, float64(counts[Cell{0, 1}])/5000, 0.03)
	assert.InDelta(t, 0.1, float64(counts[Cell{1, 0}])/5000, 0.03)
	assert.InDelta(t, 0.1, float64(counts[Cell{0, 0}])/5000, 0.03)
}

func TestValueIterationClassicScenario(t *testing.T) {
	d := newClassic(t, 1)
	logger, _ := test.NewNullLogger()

	u, stats, err := mdp.ValueIteration[Cell, Move](d, mdp.NewMappedUtility[Cell](0), mdp.ValueIterationOptions{
		Discount:  1,
		MaxError:  0.01,
		MaxSweeps: 100000,
		Logger:    logger,
	})
	require.NoError(t, err)
	assert.Positive(t, stats.Sweeps)

	assert.InDelta(t, 0.705, u.Utility(Cell{0, 0}), 0.005)
	assert.InDelta(t, 0.918, u.Utility(Cell{2, 2}), 0.005)
	assert.InDelta(t, 0.660, u.Utility(Cell{2, 1}), 0.005)

	policy, err := mdp.DerivePolicy[Cell, Move](d, u)
	require.NoError(t, err)
	assert.Equal(t, 9, policy.Len())

	// Next to the pit the agent heads away from it.
	a, ok := policy.Action(Cell{2, 1})
	require.True(t, ok)
	assert.NotEqual(t, Right, a)
	assert.Equal(t, Up, a)

	a, _ = policy.Action(Cell{2, 2})
	assert.Equal(t, Right, a)
	a, _ = policy.Action(Cell{0, 0})
	assert.Equal(t, Up, a)
}

// margin is how much better the best action in c is than the runner-up.
func margin(t *testing.T, d *Domain, u mdp.UtilityModel[Cell], c Cell) float64 {
	best, second := math.Inf(-1), math.Inf(-1)
	for _, m := range Moves {
		v, ok, err := mdp.ExpectedUtility(u, d.Transition(), c, m)
		require.NoError(t, err)
		require.True(t, ok)
		if v > best {
			best, second = v, best
		} else if v > second {
			second = v
		}
	}
	return best - second
}

func TestPolicyIterationAgreesWithValueIteration(t *testing.T) {
	d := newClassic(t, 2)
	logger, _ := test.NewNullLogger()

	u, _, err := mdp.ValueIteration[Cell, Move](d, mdp.NewMappedUtility[Cell](0), mdp.ValueIterationOptions{
		Discount: 0.9,
		MaxError: 1e-9,
		Logger:   logger,
	})
	require.NoError(t, err)
	want, err := mdp.DerivePolicy[Cell, Move](d, u)
	require.NoError(t, err)

	for seed := uint64(1); seed <= 3; seed++ {
		got := mdp.NewLookupPolicy[Cell, Move]()
		res, err := mdp.PolicyIteration[Cell, Move](d, mdp.NewMappedUtility[Cell](0), got, mdp.PolicyIterationOptions{
			Discount:         0.9,
			EvaluationSweeps: 200,
			MaxIterations:    100,
			Rand:             rand.New(rand.NewPCG(seed, 5)),
			Logger:           logger,
		})
		require.NoError(t, err)
		assert.Less(t, res.Iterations, 100)

		for c, a := range want.All() {
			if margin(t, d, u, c) <= 1e-4 {
				continue
			}
			b, ok := got.Action(c)
			require.True(t, ok)
			assert.Equal(t, a, b, "seed %d cell %s", seed, c)
		}
	}
}

func TestPrinter(t *testing.T) {
	w := Classic()
	p := NewPrinter(w, false)

	var buf bytes.Buffer
	require.NoError(t, p.PrintLayout(&buf, Cell{0, 0}))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "   |   |   | G |", lines[0])
	assert.Equal(t, "   | # |   | P |", lines[1])
	assert.Equal(t, " S |   |   |   |", lines[2])

	buf.Reset()
	require.NoError(t, p.PrintLayout(&buf, Cell{2, 1}))
	lines = strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "   | # | S | P |", lines[1])
	assert.Equal(t, "   |   |   |   |", lines[2])

	policy := mdp.NewLookupPolicy[Cell, Move]()
	policy.SetAction(Cell{0, 0}, Up)
	buf.Reset()
	require.NoError(t, p.PrintPolicy(&buf, policy))
	assert.Contains(t, buf.String(), " ^ |")
	assert.Contains(t, buf.String(), " ? |")

	u := mdp.NewMappedUtility[Cell](0)
	u.Experience(Cell{3, 1}, -1)
	buf.Reset()
	require.NoError(t, p.PrintValues(&buf, u))
	assert.Contains(t, buf.String(), " -1.000|")
	assert.Contains(t, buf.String(), "  0.000|")

	buf.Reset()
	require.NoError(t, p.PrintCurrentState(&buf, Cell{1, 0}))
	assert.Contains(t, buf.String(), "  1/0 |")
}
