// Package solver defines the decision-procedure interface the propagation
// engine consumes and a bounded reference implementation.
//
// The engine treats an Oracle as a black box: it hands over a constraint
// set and a timeout and gets back Sat with a model, Unsat with a core, or
// Unknown. Unknown is never treated as Unsat.
package solver

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/hollow/internal/constraint"
)

// Status is the outcome of a satisfiability query.
type Status uint8

const (
	StatusSat Status = iota + 1
	StatusUnsat
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusSat:
		return "sat"
	case StatusUnsat:
		return "unsat"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Reasons reported with StatusUnknown.
const (
	ReasonTimeout    = "timeout"
	ReasonBudget     = "step budget exhausted"
	ReasonIncomplete = "search domain not exhaustive"
)

// Result is the answer to one Check.
type Result struct {
	Status Status
	// Model assigns every free identifier of the set (Sat only).
	Model constraint.Env
	// Core is a minimal unsatisfiable subset of the checked set (Unsat only).
	Core constraint.Set
	// Reason explains StatusUnknown.
	Reason string
}

// Sat is shorthand for r.Status == StatusSat.
func (r Result) Sat() bool { return r.Status == StatusSat }

// Unsat is shorthand for r.Status == StatusUnsat.
func (r Result) Unsat() bool { return r.Status == StatusUnsat }

// TimedOut reports whether the query hit its time budget.
func (r Result) TimedOut() bool { return r.Status == StatusUnknown && r.Reason == ReasonTimeout }

// Oracle decides satisfiability of constraint sets.
type Oracle interface {
	// Check decides set within timeout. A zero timeout means no budget
	// beyond ctx.
	Check(ctx context.Context, set constraint.Set, timeout time.Duration) Result
	// NewContext returns a fresh incremental context. Contexts are owned by
	// a single caller and are not safe for concurrent use.
	NewContext() Context
}

// Context is an incremental assertion stack.
type Context interface {
	// Push opens a trial frame.
	Push()
	// Pop discards the most recent frame and its assertions.
	Pop() error
	// Assert adds predicates to the current frame.
	Assert(preds ...constraint.Predicate)
	// Assertions returns every predicate asserted in live frames, in order.
	Assertions() constraint.Set
	// Check decides the conjunction of live assertions.
	Check(ctx context.Context, timeout time.Duration) Result
	// Depth returns the number of open trial frames.
	Depth() int
}

// ErrNoFrame is returned by Pop when only the base frame remains.
var ErrNoFrame = errors.New("solver: no frame to pop")

// checker is the part of an Oracle a frameContext needs.
type checker interface {
	Check(ctx context.Context, set constraint.Set, timeout time.Duration) Result
}

// frameContext implements Context over any non-incremental checker by
// re-checking the whole live assertion stack.
type frameContext struct {
	oracle checker
	frames [][]constraint.Predicate
}

// NewFrameContext wraps a checker in a push/pop assertion stack.
func NewFrameContext(o checker) Context {
	return &frameContext{oracle: o, frames: make([][]constraint.Predicate, 1)}
}

func (c *frameContext) Push() { c.frames = append(c.frames, nil) }

func (c *frameContext) Pop() error {
	if len(c.frames) <= 1 {
		return ErrNoFrame
	}
	c.frames = c.frames[:len(c.frames)-1]
	return nil
}

func (c *frameContext) Assert(preds ...constraint.Predicate) {
	top := len(c.frames) - 1
	c.frames[top] = append(c.frames[top], preds...)
}

func (c *frameContext) Assertions() constraint.Set {
	var all []constraint.Predicate
	for _, f := range c.frames {
		all = append(all, f...)
	}
	return constraint.NewSet(all...)
}

func (c *frameContext) Check(ctx context.Context, timeout time.Duration) Result {
	return c.oracle.Check(ctx, c.Assertions(), timeout)
}

func (c *frameContext) Depth() int { return len(c.frames) - 1 }
