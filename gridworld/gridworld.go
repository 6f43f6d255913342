package gridworld

import (
	"cmp"
	"fmt"
	"math/rand/v2"

	"github.com/CodeStranger-Fred/mdplearn/mdp"
	"github.com/pkg/errors"
)

// Cell is a grid position. Y grows upwards.
type Cell struct {
	X, Y int
}

func (c Cell) String() string { return fmt.Sprintf("%d/%d", c.X, c.Y) }

func (c Cell) Compare(o Cell) int {
	if d := cmp.Compare(c.X, o.X); d != 0 {
		return d
	}
	return cmp.Compare(c.Y, o.Y)
}

type Move int

const (
	Up Move = iota
	Right
	Down
	Left
)

// Moves lists every move in enumeration order.
var Moves = []Move{Up, Right, Down, Left}

func (m Move) String() string {
	switch m {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return fmt.Sprintf("Move(%d)", int(m))
}

func (m Move) Compare(o Move) int { return cmp.Compare(m, o) }

func (m Move) Arrow() string {
	switch m {
	case Up:
		return "^"
	case Right:
		return ">"
	case Down:
		return "v"
	case Left:
		return "<"
	}
	return "?"
}

// sides are the two perpendicular slips of m, in the order they are listed
// as successors.
func (m Move) sides() [2]Move {
	if m == Up || m == Down {
		return [2]Move{Right, Left}
	}
	return [2]Move{Down, Up}
}

func (m Move) delta() (int, int) {
	switch m {
	case Up:
		return 0, 1
	case Right:
		return 1, 0
	case Down:
		return 0, -1
	default:
		return -1, 0
	}
}

// World describes a rectangular grid with one blocked cell and two terminal
// cells. An action moves in the intended direction with probability
// 1-2·SideProbability and slips to either side with SideProbability each.
// Moves into the edge or the block leave the agent in place.
type World struct {
	Cols, Rows      int
	Goal, Pit       Cell
	Block           Cell
	SideProbability float64
	DefaultReward   float64
	GoalReward      float64
	PitReward       float64
}

// Classic is the 4x3 world with a step cost of -0.04.
func Classic() World {
	return World{
		Cols:            4,
		Rows:            3,
		Goal:            Cell{3, 2},
		Pit:             Cell{3, 1},
		Block:           Cell{1, 1},
		SideProbability: 0.1,
		DefaultReward:   -0.04,
		GoalReward:      1,
		PitReward:       -1,
	}
}

var ErrInvalidWorld = errors.New("invalid grid world")

func (w World) Check() error {
	if w.Cols < 1 || w.Rows < 1 {
		return errors.Wrapf(ErrInvalidWorld, "size %dx%d", w.Cols, w.Rows)
	}
	for name, c := range map[string]Cell{"goal": w.Goal, "pit": w.Pit, "block": w.Block} {
		if !w.OnBoard(c) {
			return errors.Wrapf(ErrInvalidWorld, "%s %s off board", name, c)
		}
	}
	if w.Goal == w.Pit || w.Goal == w.Block || w.Pit == w.Block {
		return errors.Wrap(ErrInvalidWorld, "goal, pit and block must be distinct")
	}
	if w.SideProbability < 0 || w.SideProbability > 0.5 {
		return errors.Wrapf(ErrInvalidWorld, "side probability %g outside [0, 0.5]", w.SideProbability)
	}
	return nil
}

func (w World) OnBoard(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < w.Cols && c.Y < w.Rows
}

func (w World) IsTerminal(c Cell) bool { return c == w.Goal || c == w.Pit }

// Cells enumerates every cell except the block, column by column.
func (w World) Cells() []Cell {
	cells := make([]Cell, 0, w.Cols*w.Rows-1)
	for x := range w.Cols {
		for y := range w.Rows {
			if c := (Cell{x, y}); c != w.Block {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

func (w World) canMove(c Cell, m Move) bool {
	dx, dy := m.delta()
	next := Cell{c.X + dx, c.Y + dy}
	return w.OnBoard(next) && next != w.Block
}

// Successors lists where m may take the agent from c: the intended cell, the
// two side cells, and c itself carrying the probability of every bump.
// Terminal cells and the block have no successors.
func (w World) Successors(c Cell, m Move) []mdp.Successor[Cell] {
	if w.IsTerminal(c) || c == w.Block || !w.OnBoard(c) {
		return nil
	}
	pMain := 1 - 2*w.SideProbability
	side := w.SideProbability

	var succ []mdp.Successor[Cell]
	bump := 0.0
	try := func(m Move, p float64) {
		if p == 0 {
			return
		}
		if !w.canMove(c, m) {
			bump += p
			return
		}
		dx, dy := m.delta()
		succ = append(succ, mdp.Successor[Cell]{State: Cell{c.X + dx, c.Y + dy}, P: p})
	}
	try(m, pMain)
	for _, s := range m.sides() {
		try(s, side)
	}
	if !mdp.NearlyEqual(bump, 0, mdp.ProbabilityTolerance, mdp.ProbabilityTolerance) {
		succ = append(succ, mdp.Successor[Cell]{State: c, P: bump})
	}
	return succ
}

// Domain is a World bound to the models the solvers read.
type Domain struct {
	world      World
	transition mdp.TransitionFunc[Cell, Move]
	reward     *mdp.SelectedReward[Cell]
	states     mdp.DiscreteStateSpace[Cell]
	actions    mdp.DiscreteActionSpace[Move]
	rng        *rand.Rand
}

// NewDomain checks w and builds its domain. rng drives TransferState.
func NewDomain(w World, rng *rand.Rand) (*Domain, error) {
	if err := w.Check(); err != nil {
		return nil, err
	}
	reward := mdp.NewSelectedReward[Cell](w.DefaultReward)
	if err := reward.AddReward(w.Goal, w.GoalReward); err != nil {
		return nil, err
	}
	if err := reward.AddReward(w.Pit, w.PitReward); err != nil {
		return nil, err
	}
	return &Domain{
		world:      w,
		transition: w.Successors,
		reward:     reward,
		states:     w.Cells(),
		actions:    Moves,
		rng:        rng,
	}, nil
}

func (d *Domain) World() World { return d.world }

func (d *Domain) Transition() mdp.TransitionModel[Cell, Move] { return d.transition }

func (d *Domain) Reward() mdp.RewardModel[Cell] { return d.reward }

func (d *Domain) StateGenerator() mdp.StateGenerator[Cell] { return d.states }

func (d *Domain) ActionGenerator() mdp.ActionGenerator[Move] { return d.actions }

func (d *Domain) StartState() Cell { return Cell{0, 0} }

func (d *Domain) IsTerminal(c Cell) bool { return d.world.IsTerminal(c) }

// TransferState samples the cell reached by taking m in c. Terminal cells
// are never left.
func (d *Domain) TransferState(c Cell, m Move) Cell {
	if d.IsTerminal(c) {
		return c
	}
	next, ok := mdp.Sample(d.world.Successors(c, m), d.rng)
	if !ok {
		return c
	}
	return next
}

var _ mdp.Domain[Cell, Move] = (*Domain)(nil)
