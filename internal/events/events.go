// Package events carries the ordered stream of hole updates that engine
// passes emit to rendering and notification layers.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/roach88/hollow/internal/ir"
)

// Event reports one hole mutated by one engine call.
type Event struct {
	// Seq orders events across a session. Events of one pass have
	// consecutive seqs in worklist-processing order.
	Seq      int64         `json:"seq"`
	Revision string        `json:"revision"`
	Action   ir.Action     `json:"action"`
	HoleID   string        `json:"hole_id"`
	Status   ir.HoleStatus `json:"status"`
	// Removed is set when the hole no longer exists after the call.
	Removed     bool     `json:"removed,omitempty"`
	Value       string   `json:"value,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Conflict    []string `json:"conflict,omitempty"`
	AutoFilled  bool     `json:"auto_filled,omitempty"`
	Unverified  bool     `json:"unverified,omitempty"`
}

func (e Event) String() string {
	switch {
	case e.Removed:
		return fmt.Sprintf("#%d %s removed", e.Seq, e.HoleID)
	case e.AutoFilled:
		return fmt.Sprintf("#%d %s auto-filled %s", e.Seq, e.HoleID, e.Value)
	case len(e.Conflict) > 0:
		return fmt.Sprintf("#%d %s conflicted %v", e.Seq, e.HoleID, e.Conflict)
	default:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.HoleID, e.Status)
	}
}

// Handler receives events. Handlers run on the publishing goroutine and
// must not call back into the engine.
type Handler func(Event)

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu    sync.Mutex
	next  int
	subs  map[int]Handler
	order []int
}

// NewBus returns a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
		b.order = slices.DeleteFunc(b.order, func(x int) bool { return x == id })
	}
}

// Publish delivers evs, in order, to every subscriber. Publishing holds
// the bus lock so batches from different calls never interleave.
func (b *Bus) Publish(evs ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range evs {
		for _, id := range b.order {
			b.subs[id](ev)
		}
	}
}

// Recorder is a Handler that keeps every event it sees.
type Recorder struct {
	mu  sync.Mutex
	evs []Event
}

// Handle records ev.
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.evs)
}

// Sink writes events as JSON lines.
type Sink struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewSink returns a sink writing to w.
func NewSink(w io.Writer) *Sink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Sink{enc: enc}
}

// Handle writes ev. After the first write error the sink drops events and
// reports the error from Err.
func (s *Sink) Handle(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.enc.Encode(ev); err != nil {
		s.err = fmt.Errorf("write event %d: %w", ev.Seq, err)
	}
}

// Err returns the first write error, if any.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
