package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

const (
	// DefaultMaxSteps bounds the evaluation steps of one task.
	DefaultMaxSteps = 1_000_000
	// DefaultMaxDepth bounds evaluation nesting.
	DefaultMaxDepth = 10_000
)

// Evaluator runs programs containing holes against one session.
type Evaluator struct {
	mu sync.Mutex

	engine *engine.Engine
	graph  *graph.Store
	clock  *engine.Clock
	logger *slog.Logger

	traceLimit int
	maxSteps   int
	maxDepth   int

	traces map[string]*traceBuf
	run    *run
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTraceLimit caps each hole's trace. Values below 1 are ignored.
func WithTraceLimit(n int) Option {
	return func(ev *Evaluator) {
		if n > 0 {
			ev.traceLimit = n
		}
	}
}

// WithMaxSteps bounds each task's evaluation steps. Zero disables it.
func WithMaxSteps(n int) Option {
	return func(ev *Evaluator) { ev.maxSteps = n }
}

// WithMaxDepth bounds evaluation nesting. Zero disables it.
func WithMaxDepth(n int) Option {
	return func(ev *Evaluator) { ev.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) { ev.logger = l }
}

// New creates an evaluator bound to e. It registers a revert hook so
// traces follow the engine's revert policy.
func New(e *engine.Engine, opts ...Option) *Evaluator {
	ev := &Evaluator{
		engine:     e,
		graph:      e.Graph(),
		clock:      engine.NewClock(),
		logger:     slog.Default(),
		traceLimit: DefaultTraceLimit,
		maxSteps:   DefaultMaxSteps,
		maxDepth:   DefaultMaxDepth,
		traces:     make(map[string]*traceBuf),
	}
	for _, opt := range opts {
		opt(ev)
	}
	e.OnRevert(ev.onRevert)
	return ev
}

// run is one evaluation: its closure arena and tasks.
type run struct {
	program Node
	arena   arena
	tasks   []*task
	steps   int
}

type task struct {
	input    ir.IRValue
	hasInput bool
	root     value
	err      error
}

// TaskResult is the state of one task after a run or resume.
type TaskResult struct {
	Index int
	// Input is the argument the program was applied to, if any.
	Input ir.IRValue
	// Value is the task's result once it is concrete.
	Value ir.IRValue
	// Suspended is set while the result waits on open holes.
	Suspended bool
	WaitingOn []string
	Err       error
}

// RunResult describes the tasks of a run.
type RunResult struct {
	Tasks []TaskResult
	// Closures is the size of the run's closure arena.
	Closures int
}

// Suspended returns the tasks still waiting on holes.
func (r *RunResult) Suspended() []TaskResult {
	var out []TaskResult
	for _, t := range r.Tasks {
		if t.Suspended {
			out = append(out, t)
		}
	}
	return out
}

// ResumeResult pairs the engine pass of a fill with the resumed tasks.
type ResumeResult struct {
	Pass *engine.PassResult
	RunResult
}

// Run evaluates program. With no inputs the program is one task. With
// inputs the program must evaluate to a function, and each input becomes
// a task applying it to that input. A failing task does not stop the
// others; cancellation stops the run.
//
// The run replaces the previous one. Traces and discovered constraints
// accumulate across runs.
func (ev *Evaluator) Run(ctx context.Context, program string, inputs ...ir.IRValue) (*RunResult, error) {
	prog, err := Read(program)
	if err != nil {
		return nil, err
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	rn := &run{program: prog}
	m := ev.machine(ctx, rn)
	if len(inputs) == 0 {
		t := &task{}
		t.root, t.err = m.eval(prog, nil)
		rn.tasks = append(rn.tasks, t)
	} else {
		fn, err := m.eval(prog, nil)
		if err != nil {
			return nil, err
		}
		for _, in := range inputs {
			rn.steps = 0
			t := &task{input: in, hasInput: true}
			t.root, t.err = m.apply(fn, []value{lit{v: in}}, prog.Pos)
			rn.tasks = append(rn.tasks, t)
		}
	}
	if err := cancelled(ctx, rn); err != nil {
		return nil, err
	}
	ev.run = rn

	res := ev.summarize(m)
	ev.logger.Debug("evaluation run",
		"tasks", len(res.Tasks),
		"suspended", len(res.Suspended()),
		"closures", res.Closures,
	)
	return res, nil
}

// FillAndResume fills holeID through the engine and resumes every
// suspended task of the current run from its checkpoint. Nothing is
// re-evaluated from the program's entry point.
func (ev *Evaluator) FillAndResume(ctx context.Context, holeID string, v ir.IRValue) (*ResumeResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	pass, err := ev.engine.Fill(ctx, holeID, v)
	if err != nil {
		return nil, err
	}
	res, err := ev.resume(ctx)
	if err != nil {
		return nil, err
	}
	return &ResumeResult{Pass: pass, RunResult: *res}, nil
}

// Resume re-resolves the current run against the graph as it is now.
func (ev *Evaluator) Resume(ctx context.Context) (*RunResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.resume(ctx)
}

func (ev *Evaluator) resume(ctx context.Context) (*RunResult, error) {
	if ev.run == nil {
		return &RunResult{}, nil
	}
	m := ev.machine(ctx, ev.run)
	for _, t := range ev.run.tasks {
		if t.err != nil {
			continue
		}
		ev.run.steps = 0
		if _, err := m.force(t.root); err != nil {
			t.err = err
		}
	}
	if err := cancelled(ctx, ev.run); err != nil {
		return nil, err
	}
	res := ev.summarize(m)
	ev.logger.Debug("evaluation resumed",
		"tasks", len(res.Tasks),
		"suspended", len(res.Suspended()),
	)
	return res, nil
}

func cancelled(ctx context.Context, rn *run) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("evaluation cancelled: %w", err)
	}
	for _, t := range rn.tasks {
		if errors.Is(t.err, context.Canceled) || errors.Is(t.err, context.DeadlineExceeded) {
			return t.err
		}
	}
	return nil
}

func (ev *Evaluator) machine(ctx context.Context, rn *run) *machine {
	return &machine{ev: ev, run: rn, ctx: ctx, view: ev.graph.View()}
}

func (ev *Evaluator) summarize(m *machine) *RunResult {
	res := &RunResult{Closures: m.run.arena.len()}
	for i, t := range m.run.tasks {
		tr := TaskResult{Index: i, Err: t.err}
		if t.hasInput {
			tr.Input = t.input
		}
		if t.err == nil {
			v, err := m.force(t.root)
			switch {
			case err != nil:
				t.err, tr.Err = err, err
			default:
				tr.Value, tr.Suspended, tr.WaitingOn, tr.Err = m.outcome(v)
				t.err = tr.Err
			}
		}
		res.Tasks = append(res.Tasks, tr)
	}
	return res
}

func (ev *Evaluator) trace(holeID string) *traceBuf {
	b, ok := ev.traces[holeID]
	if !ok {
		b = newTraceBuf(holeID, ev.traceLimit)
		ev.traces[holeID] = b
	}
	return b
}

func (ev *Evaluator) discover(holeID string, seq int64, p constraint.Predicate) {
	ev.trace(holeID).discover(seq, p)
}

func (ev *Evaluator) output(holeID string, seq int64, v ir.IRValue) {
	if e := ev.trace(holeID).find(seq); e != nil {
		e.Outputs = []ir.IRValue{v}
	}
}

// Trace returns a snapshot of holeID's trace.
func (ev *Evaluator) Trace(holeID string) (Trace, bool) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	b, ok := ev.traces[holeID]
	if !ok {
		return Trace{}, false
	}
	return b.snapshot(), true
}

// Traces returns every trace ordered by hole ID.
func (ev *Evaluator) Traces() []Trace {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make([]Trace, 0, len(ev.traces))
	for _, b := range ev.traces {
		out = append(out, b.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HoleID < out[j].HoleID })
	return out
}

// Discovered returns the constraints discovered per hole.
func (ev *Evaluator) Discovered() map[string]constraint.Set {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make(map[string]constraint.Set, len(ev.traces))
	for id, b := range ev.traces {
		if b.discovered.Len() > 0 {
			out[id] = b.discovered
		}
	}
	return out
}

// Submit sends discovered constraints that holes do not carry yet to the
// engine, one Constrain pass per hole in ID order. Holes that are gone or
// no longer Open or Deferred are skipped. A rejected hole does not stop
// the others; the failures are joined.
func (ev *Evaluator) Submit(ctx context.Context) ([]*engine.PassResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	ids := make([]string, 0, len(ev.traces))
	for id, b := range ev.traces {
		if b.discovered.Len() > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	view := ev.graph.View()
	var results []*engine.PassResult
	var errs []error
	for _, id := range ids {
		h, err := view.Hole(id)
		if err != nil || (h.Status != ir.StatusOpen && h.Status != ir.StatusDeferred) {
			continue
		}
		have := h.Constraints.Strings()
		var fresh []constraint.Predicate
		for _, p := range ev.traces[id].discovered.Predicates() {
			if !slices.Contains(have, p.String()) {
				fresh = append(fresh, p)
			}
		}
		if len(fresh) == 0 {
			continue
		}
		res, err := ev.engine.Constrain(ctx, id, fresh...)
		if err != nil {
			errs = append(errs, fmt.Errorf("submit constraints for %s: %w", id, err))
			continue
		}
		ev.logger.Debug("submitted discovered constraints", "hole", id, "count", len(fresh))
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// onRevert drops traces of reverted holes unless the policy keeps them,
// and forgets resolutions of the current run that depended on them.
func (ev *Evaluator) onRevert(st revlog.Step, policy engine.RevertPolicy) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	touched := st.Touched()
	if !policy.KeepTraces {
		for _, id := range touched {
			delete(ev.traces, id)
		}
	}
	if ev.run == nil {
		return
	}
	for _, c := range ev.run.arena.closures {
		if c.Kind == ClosureHole && slices.Contains(touched, c.HoleID) {
			for i := range ev.run.arena.closures {
				ev.run.arena.closures[i].resolved = nil
			}
			return
		}
	}
}
