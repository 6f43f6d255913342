package mdp

import (
	"fmt"
	"io"
	"iter"
)

// UtilityModel holds a value estimate per state. Clone returns a deep copy
// that can be changed without affecting the receiver.
type UtilityModel[S Ordered[S]] interface {
	Utility(s S) float64
	Experience(s S, v float64)
	Clone() UtilityModel[S]
}

// MappedUtility stores learned values in a map and answers a default value
// for every other state.
type MappedUtility[S Ordered[S]] struct {
	def    float64
	values map[S]float64
}

func NewMappedUtility[S Ordered[S]](def float64) *MappedUtility[S] {
	return &MappedUtility[S]{def: def, values: make(map[S]float64)}
}

func (u *MappedUtility[S]) Utility(s S) float64 {
	if v, ok := u.values[s]; ok {
		return v
	}
	return u.def
}

func (u *MappedUtility[S]) Experience(s S, v float64) { u.values[s] = v }

func (u *MappedUtility[S]) Clone() UtilityModel[S] {
	c := &MappedUtility[S]{def: u.def, values: make(map[S]float64, len(u.values))}
	for s, v := range u.values {
		c.values[s] = v
	}
	return c
}

func (u *MappedUtility[S]) Len() int { return len(u.values) }

func (u *MappedUtility[S]) All() iter.Seq2[S, float64] {
	return func(yield func(S, float64) bool) {
		for _, s := range SortedKeys(u.values) {
			if !yield(s, u.values[s]) {
				return
			}
		}
	}
}

func (u *MappedUtility[S]) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for s, v := range u.All() {
		m, err := fmt.Fprintf(w, "%s -> %.4f\n", s, v)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
