package eval

import (
	"slices"
	"sort"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// DefaultTraceLimit is the per-hole trace capacity.
const DefaultTraceLimit = 1000

// Entry records one operation an open hole took part in.
type Entry struct {
	Seq int64  `json:"seq"`
	Op  string `json:"op"`
	// Inputs are the operation's arguments. Arguments still waiting on a
	// hole are written as "?id".
	Inputs []ir.IRValue `json:"inputs"`
	// Outputs is set once the operation's result becomes concrete.
	Outputs    []ir.IRValue `json:"outputs,omitempty"`
	Discovered []string     `json:"discovered,omitempty"`
}

// Trace is a snapshot of one hole's trace.
type Trace struct {
	HoleID  string  `json:"hole_id"`
	Entries []Entry `json:"entries"`
	// Dropped counts entries evicted to stay within the limit. A non-zero
	// value means Entries is partial.
	Dropped    int      `json:"dropped,omitempty"`
	Discovered []string `json:"discovered,omitempty"`
}

// Partial reports whether entries were evicted.
func (t Trace) Partial() bool { return t.Dropped > 0 }

// traceBuf is a bounded ring of entries. Discovered predicates outlive
// eviction.
type traceBuf struct {
	holeID     string
	limit      int
	ring       []Entry
	start      int
	dropped    int
	discovered constraint.Set
}

func newTraceBuf(holeID string, limit int) *traceBuf {
	return &traceBuf{holeID: holeID, limit: limit}
}

func (b *traceBuf) add(e Entry) {
	if len(b.ring) < b.limit {
		b.ring = append(b.ring, e)
		return
	}
	b.ring[b.start] = e
	b.start = (b.start + 1) % b.limit
	b.dropped++
}

// find returns the live entry with seq, if it has not been evicted.
func (b *traceBuf) find(seq int64) *Entry {
	n := len(b.ring)
	i := sort.Search(n, func(i int) bool { return b.ring[(b.start+i)%n].Seq >= seq })
	if i == n {
		return nil
	}
	e := &b.ring[(b.start+i)%n]
	if e.Seq != seq {
		return nil
	}
	return e
}

func (b *traceBuf) discover(seq int64, p constraint.Predicate) {
	b.discovered = b.discovered.Add(p)
	if e := b.find(seq); e != nil && !slices.Contains(e.Discovered, p.String()) {
		e.Discovered = append(e.Discovered, p.String())
	}
}

func (b *traceBuf) snapshot() Trace {
	t := Trace{
		HoleID:     b.holeID,
		Entries:    make([]Entry, 0, len(b.ring)),
		Dropped:    b.dropped,
		Discovered: b.discovered.Strings(),
	}
	n := len(b.ring)
	for i := range n {
		e := b.ring[(b.start+i)%n]
		e.Inputs = slices.Clone(e.Inputs)
		e.Outputs = slices.Clone(e.Outputs)
		e.Discovered = slices.Clone(e.Discovered)
		t.Entries = append(t.Entries, e)
	}
	return t
}
