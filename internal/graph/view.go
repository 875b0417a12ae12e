package graph

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/roach88/hollow/internal/ir"
)

// View is a read-only snapshot of the graph. Views obtained from a Store
// never change; the View embedded in a Tx reflects the transaction's
// uncommitted writes.
type View struct {
	st *state
}

// Len returns the number of live holes.
func (v View) Len() int { return v.st.live }

// Hole returns the hole with the given ID.
func (v View) Hole(id string) (Hole, error) {
	sl, ok := v.st.lookup(id)
	if !ok {
		return Hole{}, NewNotFoundError(id)
	}
	return *sl.hole, nil
}

// Has reports whether a hole with the given ID exists.
func (v View) Has(id string) bool {
	_, ok := v.st.lookup(id)
	return ok
}

// Resolve maps a hole ID to its arena reference.
func (v View) Resolve(id string) (Ref, bool) {
	sl, ok := v.st.lookup(id)
	if !ok {
		return NoRef, false
	}
	return sl.hole.Ref, true
}

// At returns the hole stored at r.
func (v View) At(r Ref) (Hole, bool) {
	sl := v.st.slot(r)
	if sl == nil || sl.hole == nil {
		return Hole{}, false
	}
	return *sl.hole, true
}

// Holes returns every live hole in creation order.
func (v View) Holes() []Hole {
	out := make([]Hole, 0, v.st.live)
	for r := Ref(0); r < v.st.next; r++ {
		if sl := v.st.slot(r); sl != nil && sl.hole != nil {
			out = append(out, *sl.hole)
		}
	}
	slices.SortFunc(out, func(a, b Hole) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

// Edges returns every edge, ordered by the creation order of From, then
// To, then kind.
func (v View) Edges() []Edge {
	var out []Edge
	for _, h := range v.Holes() {
		sl, _ := v.st.lookup(h.ID)
		out = append(out, sl.out...)
	}
	v.sortEdges(out)
	if out == nil {
		out = []Edge{}
	}
	return out
}

func (v View) seqOf(id string) int64 {
	if sl, ok := v.st.lookup(id); ok {
		return sl.hole.Seq
	}
	return -1
}

func (v View) sortEdges(edges []Edge) {
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(v.seqOf(a.From), v.seqOf(b.From)); c != 0 {
			return c
		}
		if c := cmp.Compare(v.seqOf(a.To), v.seqOf(b.To)); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
}

// HasEdge reports whether e is present.
func (v View) HasEdge(e Edge) bool { return v.st.hasEdge(e) }

// Out returns the edges leaving id.
func (v View) Out(id string) []Edge {
	sl, ok := v.st.lookup(id)
	if !ok {
		return nil
	}
	out := slices.Clone(sl.out)
	v.sortEdges(out)
	return out
}

// In returns the edges entering id.
func (v View) In(id string) []Edge {
	sl, ok := v.st.lookup(id)
	if !ok {
		return nil
	}
	in := slices.Clone(sl.in)
	v.sortEdges(in)
	return in
}

// Dependents returns the holes that depend on id through Blocking or
// Informing edges, in creation order.
func (v View) Dependents(id string) []string {
	sl, ok := v.st.lookup(id)
	if !ok {
		return nil
	}
	var ids []string
	for _, e := range sl.out {
		if e.Kind.Propagates() && !slices.Contains(ids, e.To) {
			ids = append(ids, e.To)
		}
	}
	v.sortIDs(ids)
	return ids
}

// Dependencies returns the holes id depends on through Blocking or
// Informing edges, in creation order.
func (v View) Dependencies(id string) []string {
	sl, ok := v.st.lookup(id)
	if !ok {
		return nil
	}
	var ids []string
	for _, e := range sl.in {
		if e.Kind.Propagates() && !slices.Contains(ids, e.From) {
			ids = append(ids, e.From)
		}
	}
	v.sortIDs(ids)
	return ids
}

// ConflictPeers returns the holes joined to id by a Conflicting edge in
// either direction, in creation order.
func (v View) ConflictPeers(id string) []string {
	sl, ok := v.st.lookup(id)
	if !ok {
		return nil
	}
	var ids []string
	for _, e := range sl.out {
		if e.Kind == ir.EdgeConflicting && !slices.Contains(ids, e.To) {
			ids = append(ids, e.To)
		}
	}
	for _, e := range sl.in {
		if e.Kind == ir.EdgeConflicting && !slices.Contains(ids, e.From) {
			ids = append(ids, e.From)
		}
	}
	v.sortIDs(ids)
	return ids
}

func (v View) sortIDs(ids []string) {
	slices.SortFunc(ids, func(a, b string) int { return cmp.Compare(v.seqOf(a), v.seqOf(b)) })
}

// pathBetween returns a propagation path src -> ... -> dst, or nil.
func (v View) pathBetween(src, dst string) []string {
	if src == dst {
		return []string{src}
	}
	prev := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range v.Dependents(cur) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == dst {
				path := []string{dst}
				for at := cur; at != ""; at = prev[at] {
					path = append(path, at)
				}
				slices.Reverse(path)
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// seqHeap is a min-heap of hole IDs by creation order.
type seqHeap struct {
	ids []string
	seq func(string) int64
}

func (h *seqHeap) Len() int           { return len(h.ids) }
func (h *seqHeap) Less(i, j int) bool { return h.seq(h.ids[i]) < h.seq(h.ids[j]) }
func (h *seqHeap) Swap(i, j int)      { h.ids[i], h.ids[j] = h.ids[j], h.ids[i] }
func (h *seqHeap) Push(x any)         { h.ids = append(h.ids, x.(string)) }
func (h *seqHeap) Pop() any {
	last := h.ids[len(h.ids)-1]
	h.ids = h.ids[:len(h.ids)-1]
	return last
}

// TopologicalOrder returns every hole ordered so that each hole comes after
// the holes it depends on through Blocking or Informing edges. Among
// ready holes the earliest created comes first.
func (v View) TopologicalOrder() []string {
	holes := v.Holes()
	indeg := make(map[string]int, len(holes))
	ready := &seqHeap{seq: v.seqOf}
	for _, h := range holes {
		indeg[h.ID] = len(v.Dependencies(h.ID))
		if indeg[h.ID] == 0 {
			ready.ids = append(ready.ids, h.ID)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(holes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for _, dep := range v.Dependents(id) {
			indeg[dep]--
			if indeg[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}
	return order
}

// Depths returns each hole's topological depth: 0 for holes without
// dependencies, otherwise one more than the deepest dependency.
func (v View) Depths() map[string]int {
	depth := make(map[string]int, v.st.live)
	for _, id := range v.TopologicalOrder() {
		d := 0
		for _, dep := range v.Dependencies(id) {
			d = max(d, depth[dep]+1)
		}
		depth[id] = d
	}
	return depth
}

// CriticalPath returns the longest chain of Blocking edges, computed by
// dynamic programming over the topological order. Among equally long
// chains the one ending, and then continuing backwards, at the earliest
// created hole wins. A graph without Blocking edges yields its first hole.
func (v View) CriticalPath() []string {
	order := v.TopologicalOrder()
	if len(order) == 0 {
		return []string{}
	}
	length := make(map[string]int, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		length[id] = 1
		var blockers []string
		for _, e := range v.In(id) {
			if e.Kind == ir.EdgeBlocking {
				blockers = append(blockers, e.From)
			}
		}
		v.sortIDs(blockers)
		for _, b := range blockers {
			if length[b]+1 > length[id] {
				length[id] = length[b] + 1
				prev[id] = b
			}
		}
	}

	end := ""
	for _, id := range order {
		if end == "" || length[id] > length[end] ||
			(length[id] == length[end] && v.seqOf(id) < v.seqOf(end)) {
			end = id
		}
	}
	path := []string{end}
	for at := prev[end]; at != ""; at = prev[at] {
		path = append(path, at)
	}
	slices.Reverse(path)
	return path
}
