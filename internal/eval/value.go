package eval

import (
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

// value is a runtime value: a concrete IR value, a function, or a
// reference into the run's closure arena.
type value interface{ isValue() }

type lit struct{ v ir.IRValue }

type lambda struct {
	params []string
	body   Node
	env    *env
}

type builtin string

// ClosureRef indexes a run's closure arena.
type ClosureRef int32

func (lit) isValue()        {}
func (*lambda) isValue()    {}
func (builtin) isValue()    {}
func (ClosureRef) isValue() {}

// ClosureKind says what a closure is waiting for.
type ClosureKind uint8

const (
	// ClosureHole stands for an open hole.
	ClosureHole ClosureKind = iota
	// ClosureOp is a builtin applied to at least one pending argument.
	ClosureOp
	// ClosureCall is an application whose callee is still pending.
	ClosureCall
	// ClosureBranch is an if whose condition is still pending. Its
	// environment is the checkpoint the chosen branch resumes from.
	ClosureBranch
)

func (k ClosureKind) String() string {
	switch k {
	case ClosureHole:
		return "hole"
	case ClosureOp:
		return "op"
	case ClosureCall:
		return "call"
	case ClosureBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// Closure is one arena entry. A hole closure pairs an arena reference to
// the hole with the lexical environment it was reached in; the other
// kinds are residual computations over pending values.
type Closure struct {
	Kind   ClosureKind
	Hole   graph.Ref
	HoleID string
	Op     string

	env      *env
	fn       value
	args     []value
	branches [2]Node

	// subject names the hole a discovered constraint is about, and
	// returns is set when it is about that Function hole's result.
	subject  string
	returns  bool
	traceSeq int64

	resolved value
}

// env is an immutable lexical environment. Extending it never changes
// existing frames, so a pointer is a snapshot.
type env struct {
	name   string
	val    value
	parent *env
}

func (e *env) bind(name string, v value) *env {
	return &env{name: name, val: v, parent: e}
}

func (e *env) lookup(name string) (value, bool) {
	for f := e; f != nil; f = f.parent {
		if f.name == name {
			return f.val, true
		}
	}
	return nil, false
}

// arena owns a run's closures. Values refer to them by index.
type arena struct {
	closures []Closure
}

func (a *arena) alloc(c Closure) ClosureRef {
	a.closures = append(a.closures, c)
	return ClosureRef(len(a.closures) - 1)
}

func (a *arena) at(r ClosureRef) *Closure { return &a.closures[r] }

func (a *arena) len() int { return len(a.closures) }

// concrete unwraps a literal.
func concrete(v value) (ir.IRValue, bool) {
	l, ok := v.(lit)
	if !ok {
		return nil, false
	}
	return l.v, true
}
