package graph

import (
	"maps"
	"slices"
)

const (
	chunkBits = 6
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

// slot is one arena cell. Slots are immutable once written: every change
// writes a fresh slot.
type slot struct {
	hole *Hole
	out  []Edge // edges with From == hole.ID
	in   []Edge // edges with To == hole.ID
}

type chunk [chunkSize]*slot

// state is one version of the graph. A published state is never mutated;
// writers fork it, mutate the fork and publish the fork.
//
// Forking copies only the chunk table, so a fork costs O(n/64) and each
// write afterwards copies at most one 64-slot chunk. The ID index is
// shared until the first structural change (create or remove).
type state struct {
	chunks   []*chunk
	index    map[string]Ref
	next     Ref   // next unallocated slot
	seq      int64 // last assigned creation seq
	live     int
	owned    map[int]bool // chunks already copied into this state
	ownIndex bool
}

func newState() *state {
	return &state{
		index:    make(map[string]Ref),
		owned:    make(map[int]bool),
		ownIndex: true,
	}
}

func (s *state) fork() *state {
	return &state{
		chunks: slices.Clone(s.chunks),
		index:  s.index,
		next:   s.next,
		seq:    s.seq,
		live:   s.live,
		owned:  make(map[int]bool),
	}
}

func (s *state) slot(r Ref) *slot {
	if r < 0 || r >= s.next {
		return nil
	}
	return s.chunks[r>>chunkBits][r&chunkMask]
}

func (s *state) setSlot(r Ref, sl *slot) {
	ci := int(r >> chunkBits)
	for ci >= len(s.chunks) {
		s.chunks = append(s.chunks, new(chunk))
		s.owned[len(s.chunks)-1] = true
	}
	if !s.owned[ci] {
		c := *s.chunks[ci]
		s.chunks[ci] = &c
		s.owned[ci] = true
	}
	s.chunks[ci][r&chunkMask] = sl
}

func (s *state) writableIndex() map[string]Ref {
	if !s.ownIndex {
		s.index = maps.Clone(s.index)
		s.ownIndex = true
	}
	return s.index
}

func (s *state) lookup(id string) (*slot, bool) {
	r, ok := s.index[id]
	if !ok {
		return nil, false
	}
	sl := s.slot(r)
	return sl, sl != nil && sl.hole != nil
}

// alloc reserves a new slot for h and indexes it.
func (s *state) alloc(h *Hole) {
	h.Ref = s.next
	s.next++
	s.insertAt(h)
}

// insertAt places h at h.Ref, which must be a free slot.
func (s *state) insertAt(h *Hole) {
	s.setSlot(h.Ref, &slot{hole: h})
	s.writableIndex()[h.ID] = h.Ref
	s.live++
}

func (s *state) free(id string) {
	r := s.index[id]
	s.setSlot(r, nil)
	delete(s.writableIndex(), id)
	s.live--
}

// replaceHole swaps the hole record, keeping edges.
func (s *state) replaceHole(h *Hole) {
	old := s.slot(h.Ref)
	s.setSlot(h.Ref, &slot{hole: h, out: old.out, in: old.in})
}

func (s *state) addEdge(e Edge) {
	from, _ := s.lookup(e.From)
	to, _ := s.lookup(e.To)
	s.setSlot(from.hole.Ref, &slot{hole: from.hole, out: append(slices.Clip(from.out), e), in: from.in})
	// Re-read in case From == To shares the slot.
	to = s.slot(to.hole.Ref)
	s.setSlot(to.hole.Ref, &slot{hole: to.hole, out: to.out, in: append(slices.Clip(to.in), e)})
}

func (s *state) removeEdge(e Edge) {
	if from, ok := s.lookup(e.From); ok {
		s.setSlot(from.hole.Ref, &slot{hole: from.hole, out: without(from.out, e), in: from.in})
	}
	if to, ok := s.lookup(e.To); ok {
		s.setSlot(to.hole.Ref, &slot{hole: to.hole, out: to.out, in: without(to.in, e)})
	}
}

func without(edges []Edge, e Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, x := range edges {
		if x != e {
			out = append(out, x)
		}
	}
	return out
}

func (s *state) hasEdge(e Edge) bool {
	from, ok := s.lookup(e.From)
	return ok && slices.Contains(from.out, e)
}
