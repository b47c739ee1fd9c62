package domain

import "sort"

// ChunkSet is the set of received chunk indices of a session.
type ChunkSet map[int]struct{}

// NewChunkSet builds a set from the given indices.
func NewChunkSet(indices ...int) ChunkSet {
	s := make(ChunkSet, len(indices))
	for _, idx := range indices {
		s[idx] = struct{}{}
	}
	return s
}

// Add inserts idx and reports whether it was not present before.
func (s ChunkSet) Add(idx int) bool {
	if _, ok := s[idx]; ok {
		return false
	}
	s[idx] = struct{}{}
	return true
}

func (s ChunkSet) Has(idx int) bool {
	_, ok := s[idx]
	return ok
}

func (s ChunkSet) Len() int {
	return len(s)
}

// Sorted returns the indices in ascending order.
func (s ChunkSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Missing returns the indices in [0,total) that are not in the set.
func (s ChunkSet) Missing(total int) []int {
	var out []int
	for i := 0; i < total; i++ {
		if !s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s ChunkSet) Clone() ChunkSet {
	out := make(ChunkSet, len(s))
	for idx := range s {
		out[idx] = struct{}{}
	}
	return out
}
