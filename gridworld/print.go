package gridworld

import (
	"fmt"
	"io"

	"github.com/CodeStranger-Fred/mdplearn/mdp"
	"github.com/logrusorgru/aurora"
)

// Printer renders a World row by row, top row first.
type Printer struct {
	world World
	au    aurora.Aurora
}

func NewPrinter(w World, color bool) Printer {
	return Printer{world: w, au: aurora.NewAurora(color)}
}

func (p Printer) grid(out io.Writer, cell func(c Cell) any) error {
	for y := p.world.Rows - 1; y >= 0; y-- {
		for x := range p.world.Cols {
			if _, err := fmt.Fprintf(out, "%v%v", cell(Cell{x, y}), p.au.White("|")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	return nil
}

// PrintLayout marks the goal G, the pit P, the block # and the start S.
func (p Printer) PrintLayout(out io.Writer, start Cell) error {
	return p.grid(out, func(c Cell) any {
		switch {
		case c == p.world.Goal:
			return p.au.Green(" G ")
		case c == p.world.Pit:
			return p.au.Red(" P ")
		case c == p.world.Block:
			return p.au.Gray(12, " # ")
		case c == start:
			return p.au.Blue(" S ")
		}
		return "   "
	})
}

func (p Printer) PrintCurrentState(out io.Writer, current Cell) error {
	return p.grid(out, func(c Cell) any {
		label := fmt.Sprintf("%5s ", c)
		if c == current {
			return p.au.Green(label)
		}
		return p.au.Blue(label)
	})
}

func (p Printer) PrintValues(out io.Writer, u mdp.UtilityModel[Cell]) error {
	return p.grid(out, func(c Cell) any {
		if c == p.world.Block {
			return p.au.Gray(12, "  ####")
		}
		v := u.Utility(c)
		if v < 0 {
			return p.au.Red(formatValue(v))
		}
		return p.au.Blue(formatValue(v))
	})
}

func (p Printer) PrintPolicy(out io.Writer, policy mdp.Policy[Cell, Move]) error {
	return p.grid(out, func(c Cell) any {
		switch {
		case c == p.world.Goal:
			return p.au.Green(" + ")
		case c == p.world.Pit:
			return p.au.Red(" - ")
		case c == p.world.Block:
			return p.au.Gray(12, " # ")
		}
		if a, ok := policy.Action(c); ok {
			return p.au.Blue(" " + a.Arrow() + " ")
		}
		return " ? "
	})
}

func formatValue(x float64) string {
	if x < 0 {
		return " -" + fmt.Sprintf("%05.3f", -x)
	}
	return fmt.Sprintf("  %05.3f", x)
}
