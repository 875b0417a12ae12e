package engine

import "sync/atomic"

// Clock is the engine's monotonic logical clock.
//
// Revision steps and events are stamped from it instead of wall time, so
// the same sequence of calls always produces the same seqs and therefore
// the same revision IDs. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1. Used when a
// session is restored from a document.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Advance moves the clock forward to at least seq. It never moves back.
func (c *Clock) Advance(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
