package graph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// HoleDiff records one hole's state before and after a change. A nil
// Before means the hole was created; a nil After means it was removed.
type HoleDiff struct {
	ID     string `json:"id"`
	Before *Hole  `json:"before"`
	After  *Hole  `json:"after"`
}

// EdgeDiff records an edge insertion or removal.
type EdgeDiff struct {
	Edge  Edge `json:"edge"`
	Added bool `json:"added"`
}

// ChangeSet is everything one transaction changed, coalesced per hole in
// first-touch order.
type ChangeSet struct {
	Holes []HoleDiff `json:"holes"`
	Edges []EdgeDiff `json:"edges"`
}

// Empty reports whether the change set changes nothing.
func (c ChangeSet) Empty() bool { return len(c.Holes) == 0 && len(c.Edges) == 0 }

// Touched returns the IDs of changed holes in first-touch order.
func (c ChangeSet) Touched() []string {
	ids := make([]string, len(c.Holes))
	for i, d := range c.Holes {
		ids[i] = d.ID
	}
	return ids
}

// Diff returns the diff for id.
func (c ChangeSet) Diff(id string) (HoleDiff, bool) {
	for _, d := range c.Holes {
		if d.ID == id {
			return d, true
		}
	}
	return HoleDiff{}, false
}

// Invert returns the change set that undoes c.
func (c ChangeSet) Invert() ChangeSet {
	out := ChangeSet{
		Holes: make([]HoleDiff, len(c.Holes)),
		Edges: make([]EdgeDiff, len(c.Edges)),
	}
	for i, d := range c.Holes {
		out.Holes[len(c.Holes)-1-i] = HoleDiff{ID: d.ID, Before: d.After, After: d.Before}
	}
	for i, d := range c.Edges {
		out.Edges[len(c.Edges)-1-i] = EdgeDiff{Edge: d.Edge, Added: !d.Added}
	}
	return out
}

type changeLog struct {
	holes []HoleDiff
	pos   map[string]int
	edges []EdgeDiff
}

func (l *changeLog) hole(id string, before, after *Hole) {
	if i, ok := l.pos[id]; ok {
		l.holes[i].After = after
		return
	}
	l.pos[id] = len(l.holes)
	l.holes = append(l.holes, HoleDiff{ID: id, Before: before, After: after})
}

func (l *changeLog) edge(e Edge, added bool) {
	for i := len(l.edges) - 1; i >= 0; i-- {
		if l.edges[i].Edge != e {
			continue
		}
		if l.edges[i].Added != added {
			l.edges = slices.Delete(l.edges, i, i+1)
			return
		}
		break
	}
	l.edges = append(l.edges, EdgeDiff{Edge: e, Added: added})
}

func (l *changeLog) changeSet() ChangeSet {
	cs := ChangeSet{Holes: []HoleDiff{}, Edges: slices.Clone(l.edges)}
	for _, d := range l.holes {
		switch {
		case d.Before == nil && d.After == nil:
			continue
		case d.Before != nil && d.After != nil && d.Before.Equal(*d.After):
			continue
		}
		cs.Holes = append(cs.Holes, d)
	}
	if cs.Edges == nil {
		cs.Edges = []EdgeDiff{}
	}
	return cs
}

// Tx is a write transaction over a private copy of the graph. Reads
// through the embedded View see the transaction's own writes.
type Tx struct {
	View
	log changeLog
}

func newTx(st *state) *Tx {
	return &Tx{View: View{st: st}, log: changeLog{pos: make(map[string]int)}}
}

// Changes returns what the transaction has changed so far.
func (tx *Tx) Changes() ChangeSet { return tx.log.changeSet() }

func cloneHole(h Hole) *Hole { return &h }

// Create registers a new hole. Predicates mentioning self are rewritten to
// the hole's ID. A type of the form ?T links T to the new hole with an
// Informing edge, and existing holes typed ?ID are linked from it.
func (tx *Tx) Create(spec HoleSpec) (Hole, error) {
	if !spec.Kind.Valid() {
		return Hole{}, NewValidationError(spec.ID, "", "invalid hole kind %d", spec.Kind)
	}
	id := spec.ID
	if id == "" {
		id = tx.nextID()
	}
	if !constraint.IsIdentifier(id) {
		return Hole{}, NewValidationError(id, "", "hole id %q is not a valid identifier", id)
	}
	if tx.Has(id) {
		return Hole{}, NewValidationError(id, "", "hole %s already exists", id)
	}

	prov := spec.Provenance
	if prov.Cause == "" {
		prov.Cause = ir.CauseProducer
	}
	tx.st.seq++
	h := &Hole{
		ID:          id,
		Kind:        spec.Kind,
		Type:        spec.Type,
		Constraints: spec.Constraints.Rename(constraint.SelfName, id),
		Status:      ir.StatusOpen,
		Provenance:  prov,
		Seq:         tx.st.seq,
	}
	tx.st.alloc(h)
	tx.log.hole(id, nil, cloneHole(*h))

	if ref, ok := spec.Type.HoleRef(); ok && ref != id && tx.Has(ref) {
		if err := tx.Link(ref, id, ir.EdgeInforming); err != nil {
			return Hole{}, err
		}
	}
	for _, other := range tx.Holes() {
		if ref, ok := other.Type.HoleRef(); ok && ref == id && other.ID != id {
			if err := tx.Link(id, other.ID, ir.EdgeInforming); err != nil {
				return Hole{}, err
			}
		}
	}
	return *h, nil
}

func (tx *Tx) nextID() string {
	for n := tx.st.seq + 1; ; n++ {
		id := "h" + strconv.FormatInt(n, 10)
		if !tx.Has(id) {
			return id
		}
	}
}

// Put replaces an existing hole's record. The ID, Ref and Seq are kept.
func (tx *Tx) Put(h Hole) error {
	sl, ok := tx.st.lookup(h.ID)
	if !ok {
		return NewNotFoundError(h.ID)
	}
	before := *sl.hole
	h.Ref = before.Ref
	h.Seq = before.Seq
	tx.st.replaceHole(cloneHole(h))
	tx.log.hole(h.ID, cloneHole(before), cloneHole(h))
	return nil
}

// Remove deletes a hole and every edge touching it.
func (tx *Tx) Remove(id string) error {
	sl, ok := tx.st.lookup(id)
	if !ok {
		return NewNotFoundError(id)
	}
	for _, e := range slices.Concat(sl.out, sl.in) {
		if tx.st.hasEdge(e) {
			tx.st.removeEdge(e)
			tx.log.edge(e, false)
		}
	}
	before := *sl.hole
	tx.st.free(id)
	tx.log.hole(id, cloneHole(before), nil)
	return nil
}

// Link adds an edge. Blocking and Informing edges that would close a cycle
// through Blocking and Informing edges are rejected with a CycleError.
// Linking an existing edge is a no-op.
func (tx *Tx) Link(from, to string, kind ir.EdgeKind) error {
	if !tx.Has(from) {
		return NewNotFoundError(from)
	}
	if !tx.Has(to) {
		return NewNotFoundError(to)
	}
	if from == to {
		return NewValidationError(from, "", "self edge on %s", from)
	}
	e := Edge{From: from, To: to, Kind: kind}
	if tx.st.hasEdge(e) {
		return nil
	}
	if kind.Propagates() {
		if path := tx.pathBetween(to, from); path != nil {
			return NewCycleError(from, to, append(path, to))
		}
	}
	tx.st.addEdge(e)
	tx.log.edge(e, true)
	return nil
}

// Unlink removes an edge.
func (tx *Tx) Unlink(from, to string, kind ir.EdgeKind) error {
	e := Edge{From: from, To: to, Kind: kind}
	if !tx.st.hasEdge(e) {
		return &Error{Code: CodeNotFound, HoleID: to, Message: fmt.Sprintf("edge %s not found", e)}
	}
	tx.st.removeEdge(e)
	tx.log.edge(e, false)
	return nil
}

// Apply replays a recorded change set: edges removed first, then hole
// records restored or removed, then edges added. Removed holes come back at
// their original arena slot. Apply performs no validation; it exists to
// restore states that were valid when recorded.
func (tx *Tx) Apply(cs ChangeSet) error {
	for _, d := range cs.Edges {
		if !d.Added && tx.st.hasEdge(d.Edge) {
			tx.st.removeEdge(d.Edge)
			tx.log.edge(d.Edge, false)
		}
	}
	for _, d := range cs.Holes {
		if d.After == nil {
			continue
		}
		if err := tx.restore(*d.After); err != nil {
			return err
		}
	}
	for _, d := range cs.Holes {
		if d.After != nil || !tx.Has(d.ID) {
			continue
		}
		if err := tx.Remove(d.ID); err != nil {
			return err
		}
	}
	for _, d := range cs.Edges {
		if !d.Added || tx.st.hasEdge(d.Edge) {
			continue
		}
		if !tx.Has(d.Edge.From) || !tx.Has(d.Edge.To) {
			return NewStateError(d.Edge.To, "cannot restore edge %s: endpoint missing", d.Edge)
		}
		tx.st.addEdge(d.Edge)
		tx.log.edge(d.Edge, true)
	}
	return nil
}

func (tx *Tx) restore(h Hole) error {
	if sl, ok := tx.st.lookup(h.ID); ok {
		before := *sl.hole
		h.Ref = before.Ref
		tx.st.replaceHole(cloneHole(h))
		tx.log.hole(h.ID, cloneHole(before), cloneHole(h))
		return nil
	}
	rec := cloneHole(h)
	if h.Ref >= 0 && h.Ref < tx.st.next && tx.st.slot(h.Ref) == nil {
		tx.st.insertAt(rec)
	} else {
		tx.st.alloc(rec)
		h.Ref = rec.Ref
	}
	tx.st.seq = max(tx.st.seq, h.Seq)
	tx.log.hole(h.ID, nil, cloneHole(h))
	return nil
}

// Insert adds a fully specified hole record, as read back from a
// serialized document. The record's Seq is kept.
func (tx *Tx) Insert(h Hole) error {
	if !h.Kind.Valid() {
		return NewValidationError(h.ID, "", "invalid hole kind %d", h.Kind)
	}
	if !constraint.IsIdentifier(h.ID) {
		return NewValidationError(h.ID, "", "hole id %q is not a valid identifier", h.ID)
	}
	if tx.Has(h.ID) {
		return NewValidationError(h.ID, "", "hole %s already exists", h.ID)
	}
	h.Ref = NoRef
	return tx.restore(h)
}
