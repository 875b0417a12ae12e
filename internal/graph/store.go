package graph

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// Store is the authoritative holder of one session's holes and edges.
//
// Readers get immutable snapshots through View and never block. Writers
// go through Update, which runs against a copy-on-write shadow and
// publishes it atomically only if the callback succeeds, so a failed or
// cancelled update leaves the published graph exactly as it was.
type Store struct {
	cur atomic.Pointer[state]
	wmu sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(newState())
	return s
}

// View returns the current snapshot.
func (s *Store) View() View { return View{st: s.cur.Load()} }

// Update runs fn in a write transaction. Writers are serialized.
func (s *Store) Update(fn func(*Tx) error) (ChangeSet, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	shadow := s.cur.Load().fork()
	tx := newTx(shadow)
	if err := fn(tx); err != nil {
		return ChangeSet{}, err
	}
	s.cur.Store(shadow)
	return tx.Changes(), nil
}

// Fork returns an independent store starting from the current snapshot.
// Nothing is copied until one side writes.
func (s *Store) Fork() *Store {
	f := &Store{}
	f.cur.Store(s.cur.Load().fork())
	return f
}

// CreateHole registers a hole and returns its ID.
func (s *Store) CreateHole(spec HoleSpec) (string, error) {
	var id string
	_, err := s.Update(func(tx *Tx) error {
		h, err := tx.Create(spec)
		id = h.ID
		return err
	})
	return id, err
}

// Link adds an edge; see Tx.Link.
func (s *Store) Link(from, to string, kind ir.EdgeKind) error {
	_, err := s.Update(func(tx *Tx) error { return tx.Link(from, to, kind) })
	return err
}

// Unlink removes an edge.
func (s *Store) Unlink(from, to string, kind ir.EdgeKind) error {
	_, err := s.Update(func(tx *Tx) error { return tx.Unlink(from, to, kind) })
	return err
}

// Split replaces a hole with children; see Tx.Split.
func (s *Store) Split(id string, children []ChildSpec, mapping EdgeMapping) ([]string, error) {
	var ids []string
	_, err := s.Update(func(tx *Tx) error {
		var err error
		ids, err = tx.Split(id, children, mapping)
		return err
	})
	return ids, err
}

// Merge replaces holes with their union; see Tx.Merge.
func (s *Store) Merge(ids []string, spec MergeSpec, verify func(constraint.Set) error) (string, error) {
	var merged string
	_, err := s.Update(func(tx *Tx) error {
		var err error
		merged, err = tx.Merge(ids, spec, verify)
		return err
	})
	return merged, err
}

// AttachSuggestions replaces a hole's suggestions. It touches nothing else
// and is the one write allowed outside the propagation engine.
func (s *Store) AttachSuggestions(id string, suggestions []ir.Suggestion) error {
	_, err := s.Update(func(tx *Tx) error {
		h, err := tx.Hole(id)
		if err != nil {
			return err
		}
		h.Suggestions = suggestions
		return tx.Put(h)
	})
	return err
}

// Hole returns the hole with the given ID from the current snapshot.
func (s *Store) Hole(id string) (Hole, error) { return s.View().Hole(id) }

// Holes returns every hole in creation order.
func (s *Store) Holes() []Hole { return s.View().Holes() }

// Edges returns every edge.
func (s *Store) Edges() []Edge { return s.View().Edges() }

// Resolve maps a hole ID to its arena reference.
func (s *Store) Resolve(id string) (Ref, bool) { return s.View().Resolve(id) }

// At returns the hole stored at r.
func (s *Store) At(r Ref) (Hole, bool) { return s.View().At(r) }

// TopologicalOrder returns hole IDs dependencies-first.
func (s *Store) TopologicalOrder() []string { return s.View().TopologicalOrder() }

// CriticalPath returns the longest Blocking chain.
func (s *Store) CriticalPath() []string { return s.View().CriticalPath() }
