// Package revlog is the append-only revision history of a session.
//
// Steps are never deleted. Undo appends a Revert step and remembers the
// undone step on a redo stack; Redo appends a step that re-applies the
// undone step's changes. Any new user action clears the redo stack.
package revlog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/hollow/internal/ir"
)

// ErrNotFound is returned when no step matches an ID or prefix.
var ErrNotFound = errors.New("revision not found")

// ErrAmbiguous is returned when a prefix matches more than one step.
var ErrAmbiguous = errors.New("ambiguous revision prefix")

// ErrBadParent is returned when an appended step does not extend the head.
var ErrBadParent = errors.New("step parent is not the log head")

// Journal receives every appended step for durable storage.
type Journal interface {
	AppendStep(ctx context.Context, sessionID string, step Step) error
}

// Log is a session's revision history. It is safe for concurrent use.
type Log struct {
	mu        sync.RWMutex
	sessionID string
	steps     []Step
	byID      map[string]int
	reverted  map[string]string // step ID -> ID of the Revert step that undid it
	undone    []string          // redo stack, most recent last
	journal   Journal
}

// Option configures a Log.
type Option func(*Log)

// WithJournal mirrors appended steps to j.
func WithJournal(sessionID string, j Journal) Option {
	return func(l *Log) {
		l.sessionID = sessionID
		l.journal = j
	}
}

// New returns an empty log.
func New(opts ...Option) *Log {
	l := &Log{
		byID:     make(map[string]int),
		reverted: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load rebuilds a log from stored steps, checking the parent chain.
func Load(steps []Step, opts ...Option) (*Log, error) {
	l := New(opts...)
	for i, st := range steps {
		if err := l.check(st); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		l.add(st)
	}
	return l, nil
}

// Head returns the ID of the latest step, or "" for an empty log.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head()
}

func (l *Log) head() string {
	if len(l.steps) == 0 {
		return ""
	}
	return l.steps[len(l.steps)-1].ID
}

// Len returns the number of steps.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.steps)
}

// Append adds a step at the head. The journal, if any, is written first so
// a step is never visible in memory without being durable.
func (l *Log) Append(ctx context.Context, st Step) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(st); err != nil {
		return err
	}
	if l.journal != nil {
		if err := l.journal.AppendStep(ctx, l.sessionID, st); err != nil {
			return fmt.Errorf("journal step %s: %w", st.Short(), err)
		}
	}
	l.add(st)
	return nil
}

func (l *Log) check(st Step) error {
	if st.Parent != l.head() {
		return fmt.Errorf("%w: parent %q, head %q", ErrBadParent, st.Parent, l.head())
	}
	if _, dup := l.byID[st.ID]; dup {
		return fmt.Errorf("duplicate step %s", st.Short())
	}
	if st.Action == ir.ActionRevert {
		if _, ok := l.byID[st.Reverts]; !ok {
			return fmt.Errorf("%w: revert target %q", ErrNotFound, st.Reverts)
		}
	}
	return nil
}

func (l *Log) add(st Step) {
	l.byID[st.ID] = len(l.steps)
	l.steps = append(l.steps, st)
	if st.Action == ir.ActionRevert {
		l.reverted[st.Reverts] = st.ID
	}
}

// Steps returns a copy of every step in order.
func (l *Log) Steps() []Step {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.steps)
}

// Get returns the step with the given ID.
func (l *Log) Get(id string) (Step, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Step{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.steps[i], nil
}

// Resolve finds the step whose ID starts with prefix.
func (l *Log) Resolve(prefix string) (Step, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if prefix == "" {
		return Step{}, fmt.Errorf("%w: empty prefix", ErrNotFound)
	}
	if i, ok := l.byID[prefix]; ok {
		return l.steps[i], nil
	}
	var match *Step
	for i := range l.steps {
		if strings.HasPrefix(l.steps[i].ID, prefix) {
			if match != nil {
				return Step{}, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
			}
			match = &l.steps[i]
		}
	}
	if match == nil {
		return Step{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	return *match, nil
}

// RevertedBy returns the ID of the Revert step that undid id, if any.
func (l *Log) RevertedBy(id string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reverted[id]
	return r, ok
}

// Effective reports whether id is a non-Revert step that has not been
// reverted.
func (l *Log) Effective(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effective(id)
}

func (l *Log) effective(id string) bool {
	i, ok := l.byID[id]
	if !ok || l.steps[i].Action == ir.ActionRevert {
		return false
	}
	_, gone := l.reverted[id]
	return !gone
}

// LastEffective returns the most recent effective step.
func (l *Log) LastEffective() (Step, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.steps) - 1; i >= 0; i-- {
		if l.effective(l.steps[i].ID) {
			return l.steps[i], true
		}
	}
	return Step{}, false
}

// EffectiveAfter returns the effective steps appended after id, oldest
// first.
func (l *Log) EffectiveAfter(id string) ([]Step, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var out []Step
	for _, st := range l.steps[i+1:] {
		if l.effective(st.ID) {
			out = append(out, st)
		}
	}
	return out, nil
}

// PushUndone records that id was undone and may be redone.
func (l *Log) PushUndone(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undone = append(l.undone, id)
}

// PopUndone returns the most recently undone step.
func (l *Log) PopUndone() (Step, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.undone) == 0 {
		return Step{}, false
	}
	id := l.undone[len(l.undone)-1]
	l.undone = l.undone[:len(l.undone)-1]
	return l.steps[l.byID[id]], true
}

// CanRedo reports whether the redo stack is non-empty.
func (l *Log) CanRedo() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.undone) > 0
}

// Undone returns the redo stack, most recent last.
func (l *Log) Undone() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.undone)
}

// ClearRedo empties the redo stack.
func (l *Log) ClearRedo() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undone = nil
}

// Truncate returns a new log holding the steps up to and including id,
// with an empty redo stack and no journal.
func (l *Log) Truncate(id string) (*Log, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Load(slices.Clone(l.steps[:i+1]))
}
