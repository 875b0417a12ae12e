package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/hollow/internal/compiler"
	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/eval"
	"github.com/roach88/hollow/internal/events"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a fresh session with a fixed session ID.
type Harness struct {
	session  *session.Session
	recorder *events.Recorder
	seen     int
	// revisions holds the revision each flow step committed, "" if none.
	revisions []string
	logger    *slog.Logger
}

// outcome is what one op produced.
type outcome struct {
	pass  *engine.PassResult
	tasks []eval.TaskResult
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Create a session with a fixed ID
// 2. Compile and declare the scenario's CUE specs
// 3. Execute setup ops
// 4. Execute flow ops with expect validation
// 5. Evaluate assertions against the trace and final graph
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := testutil.QuietLogger()
	sess := session.New(
		session.WithIDGenerator(testutil.NewFixedIDs(scenario.SessionID)),
		session.WithLogger(logger),
	)
	defer sess.Close()

	var declared []string
	for _, path := range scenario.Specs {
		decl, err := compiler.CompileFile(path, declared...)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", path, err)
		}
		ids, err := sess.Declare(decl.Holes, decl.Edges)
		if err != nil {
			return nil, fmt.Errorf("failed to declare %s: %w", path, err)
		}
		declared = append(declared, ids...)
	}

	h := &Harness{
		session:   sess,
		recorder:  &events.Recorder{},
		revisions: make([]string, len(scenario.Flow)),
		logger:    logger,
	}
	unsubscribe := sess.Bus().Subscribe(h.recorder.Handle)
	defer unsubscribe()

	for i, op := range scenario.Setup {
		if _, err := h.apply(ctx, op); err != nil {
			return nil, fmt.Errorf("failed to execute setup step %d (%s): %w", i, op.Op, err)
		}
	}
	h.seen = len(h.recorder.Events())

	result := NewResult()
	for i, op := range scenario.Flow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.executeStep(ctx, i, op, result)
	}

	actx := &AssertionContext{Session: sess, Trace: result.Trace}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	doc, err := sess.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session: %w", err)
	}
	result.Document = doc
	return result, nil
}

// executeStep runs one flow op, traces it and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, op Op, result *Result) {
	out, err := h.apply(ctx, op)

	all := h.recorder.Events()
	emitted := all[h.seen:]
	h.seen = len(all)

	ev := TraceEvent{Seq: i, Op: op.Op, Hole: op.Hole, Outcome: "ok"}
	for _, e := range emitted {
		ev.Events = append(ev.Events, e.String())
	}
	if out.pass != nil {
		h.revisions[i] = out.pass.Revision
		ev.Revision = h.label(out.pass.Revision)
		if ev.Hole == "" {
			ev.Hole = out.pass.HoleID
		}
	}
	for _, t := range out.tasks {
		ev.Tasks = append(ev.Tasks, describeTask(t))
	}
	if err != nil {
		ev.Outcome = errorCode(err)
		var ge *graph.Error
		if errors.As(err, &ge) {
			ev.Core = slices.Clone(ge.Core)
			slices.Sort(ev.Core)
		}
	}
	result.Trace = append(result.Trace, ev)

	for _, msg := range checkExpect(op.Expect, out, err, len(emitted)) {
		result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, op.Op, msg))
	}

	h.logger.Info("flow step completed",
		"step", i,
		"op", op.Op,
		"hole", ev.Hole,
		"outcome", ev.Outcome,
		"events", len(emitted),
	)
}

// apply performs op against the session.
func (h *Harness) apply(ctx context.Context, op Op) (outcome, error) {
	e := h.session.Engine()
	ev := h.session.Evaluator()
	var (
		out outcome
		err error
	)

	switch op.Op {
	case OpFill:
		v, cerr := ir.FromGo(op.Value)
		if cerr != nil {
			return out, fmt.Errorf("value: %w", cerr)
		}
		out.pass, err = e.Fill(ctx, op.Hole, v)
	case OpConstrain:
		preds := make([]constraint.Predicate, 0, len(op.Constraints))
		for _, src := range op.Constraints {
			p, perr := constraint.ParsePredicate(src)
			if perr != nil {
				return out, perr
			}
			preds = append(preds, p)
		}
		out.pass, err = e.Constrain(ctx, op.Hole, preds...)
	case OpDefer:
		out.pass, err = e.Defer(ctx, op.Hole)
	case OpReopen:
		out.pass, err = e.Reopen(ctx, op.Hole)
	case OpRevert:
		rev := op.Revision
		if op.Step != nil {
			rev = h.revisions[*op.Step]
			if rev == "" {
				return out, fmt.Errorf("flow step %d committed no revision", *op.Step)
			}
		}
		out.pass, err = e.Revert(ctx, rev)
	case OpUndo:
		out.pass, err = e.Undo(ctx)
	case OpRedo:
		out.pass, err = e.Redo(ctx)
	case OpEval:
		inputs := make([]ir.IRValue, len(op.Inputs))
		for i, in := range op.Inputs {
			v, cerr := ir.FromGo(in)
			if cerr != nil {
				return out, fmt.Errorf("inputs[%d]: %w", i, cerr)
			}
			inputs[i] = v
		}
		var res *eval.RunResult
		res, err = ev.Run(ctx, op.Program, inputs...)
		if res != nil {
			out.tasks = res.Tasks
		}
	case OpResume:
		v, cerr := ir.FromGo(op.Value)
		if cerr != nil {
			return out, fmt.Errorf("value: %w", cerr)
		}
		var res *eval.ResumeResult
		res, err = ev.FillAndResume(ctx, op.Hole, v)
		if res != nil {
			out.pass, out.tasks = res.Pass, res.Tasks
		}
	case OpSubmit:
		var passes []*engine.PassResult
		passes, err = ev.Submit(ctx)
		if len(passes) > 0 {
			out.pass = passes[len(passes)-1]
		}
	default:
		return out, fmt.Errorf("unknown op %q", op.Op)
	}
	return out, err
}

// label names a revision by its position in the log (r1, r2, ...) so
// traces stay readable and independent of content-derived IDs.
func (h *Harness) label(revision string) string {
	for i, st := range h.session.Log().Steps() {
		if st.ID == revision {
			return fmt.Sprintf("r%d", i+1)
		}
	}
	return revision
}

// checkExpect compares an op's outcome with its expect clause.
func checkExpect(exp *Expect, out outcome, err error, emitted int) []string {
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var msgs []string
	switch {
	case exp.Error == "" && err != nil:
		msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
	case exp.Error != "" && err == nil:
		msgs = append(msgs, fmt.Sprintf("expected %s error, call succeeded", exp.Error))
	case exp.Error != "" && errorCode(err) != exp.Error:
		msgs = append(msgs, fmt.Sprintf("expected %s error, got %v", exp.Error, err))
	}

	if exp.Core != nil {
		var ge *graph.Error
		var core []string
		if errors.As(err, &ge) {
			core = ge.Core
		}
		if !sameSet(exp.Core, core) {
			msgs = append(msgs, fmt.Sprintf("unsat core: expected %v, got %v", exp.Core, core))
		}
	}

	var autoFilled, conflicted []string
	if out.pass != nil {
		autoFilled, conflicted = out.pass.AutoFilled, out.pass.Conflicted
	}
	if exp.AutoFilled != nil && !slices.Equal(exp.AutoFilled, autoFilled) {
		msgs = append(msgs, fmt.Sprintf("auto-filled: expected %v, got %v", exp.AutoFilled, autoFilled))
	}
	if exp.Conflicted != nil && !slices.Equal(exp.Conflicted, conflicted) {
		msgs = append(msgs, fmt.Sprintf("conflicted: expected %v, got %v", exp.Conflicted, conflicted))
	}
	if exp.Events != nil && *exp.Events != emitted {
		msgs = append(msgs, fmt.Sprintf("events: expected %d, got %d", *exp.Events, emitted))
	}
	return msgs
}

// errorCode maps an error to its graph code, or ERROR for anything else.
func errorCode(err error) string {
	if code, ok := graph.ErrorCode(err); ok {
		return string(code)
	}
	return "ERROR"
}

func describeTask(t eval.TaskResult) string {
	switch {
	case t.Err != nil:
		return "error: " + t.Err.Error()
	case t.Suspended:
		return "suspended on " + strings.Join(t.WaitingOn, ", ")
	default:
		return ir.Format(t.Value)
	}
}

func sameSet(a, b []string) bool {
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
