package mdp

import (
	"fmt"
	"io"
	"iter"
	"maps"
)

// Policy recommends one action per state.
type Policy[S Ordered[S], A Ordered[A]] interface {
	Action(s S) (A, bool)
	SetAction(s S, a A)
}

// LookupPolicy is a table backed Policy.
type LookupPolicy[S Ordered[S], A Ordered[A]] struct {
	actions map[S]A
}

func NewLookupPolicy[S Ordered[S], A Ordered[A]]() *LookupPolicy[S, A] {
	return &LookupPolicy[S, A]{actions: make(map[S]A)}
}

func (p *LookupPolicy[S, A]) Action(s S) (A, bool) {
	a, ok := p.actions[s]
	return a, ok
}

func (p *LookupPolicy[S, A]) SetAction(s S, a A) { p.actions[s] = a }

func (p *LookupPolicy[S, A]) Len() int { return len(p.actions) }

func (p *LookupPolicy[S, A]) Clone() *LookupPolicy[S, A] {
	return &LookupPolicy[S, A]{actions: maps.Clone(p.actions)}
}

// All yields every entry in state order.
func (p *LookupPolicy[S, A]) All() iter.Seq2[S, A] {
	return func(yield func(S, A) bool) {
		for _, s := range SortedKeys(p.actions) {
			if !yield(s, p.actions[s]) {
				return
			}
		}
	}
}

func (p *LookupPolicy[S, A]) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for s, a := range p.All() {
		m, err := fmt.Fprintf(w, "%s -> %s\n", s, a)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
