package eval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/solver"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupEvaluator(t *testing.T, engineOpts []engine.Option, opts []Option, specs ...graph.HoleSpec) (*Evaluator, *engine.Engine) {
	t.Helper()
	g := graph.NewStore()
	for _, spec := range specs {
		_, err := g.CreateHole(spec)
		require.NoError(t, err)
	}
	engineOpts = append([]engine.Option{engine.WithLogger(quietLogger())}, engineOpts...)
	e := engine.New(g, solver.NewBounded(solver.DefaultConfig()), revlog.New(), engineOpts...)
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(e, opts...), e
}

func fnHole(id string) graph.HoleSpec {
	return graph.HoleSpec{ID: id, Kind: ir.KindFunction, Type: "Fn"}
}

func termHole(id string, typ ir.TypeExpr) graph.HoleSpec {
	return graph.HoleSpec{ID: id, Kind: ir.KindTerm, Type: typ}
}

func fnValue(params []string, body, returns string) ir.IRValue {
	ps := make(ir.IRArray, len(params))
	for i, p := range params {
		ps[i] = ir.IRString(p)
	}
	return ir.Obj(
		ir.O("params", ps),
		ir.O("body", ir.IRString(body)),
		ir.O("returns", ir.IRString(returns)),
	)
}

func values(tasks []TaskResult) []ir.IRValue {
	out := make([]ir.IRValue, len(tasks))
	for i, t := range tasks {
		out[i] = t.Value
	}
	return out
}

const validateProgram = `(lambda (x) (if (?validate x) "ok" "rejected"))`

func TestRun_FunctionHoleTracesInputs(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, fnHole("validate"))
	inputs := []ir.IRValue{ir.IRInt(1), ir.IRInt(-2), ir.IRInt(3)}

	res, err := ev.Run(context.Background(), validateProgram, inputs...)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 3)
	for i, task := range res.Tasks {
		assert.True(t, task.Suspended, "task %d", i)
		assert.Equal(t, []string{"validate"}, task.WaitingOn)
		assert.Equal(t, inputs[i], task.Input)
		assert.NoError(t, task.Err)
	}

	tr, ok := ev.Trace("validate")
	require.True(t, ok)
	require.Len(t, tr.Entries, 3)
	for i, e := range tr.Entries {
		assert.Equal(t, "call", e.Op)
		assert.Equal(t, []ir.IRValue{inputs[i]}, e.Inputs)
		assert.Contains(t, e.Discovered, `validate.returns == "bool"`)
		assert.Empty(t, e.Outputs)
	}
	assert.False(t, tr.Partial())
	assert.Equal(t, []string{`validate.returns == "bool"`}, tr.Discovered)
}

func TestFillAndResume_ContinuesSuspendedBranches(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, fnHole("validate"))
	ctx := context.Background()
	_, err := ev.Run(ctx, validateProgram, ir.IRInt(1), ir.IRInt(-2), ir.IRInt(3))
	require.NoError(t, err)

	res, err := ev.FillAndResume(ctx, "validate", fnValue([]string{"x"}, "(> x 0)", "bool"))
	require.NoError(t, err)
	require.NotNil(t, res.Pass)
	assert.Empty(t, res.Suspended())
	assert.Equal(t, []ir.IRValue{ir.IRString("ok"), ir.IRString("rejected"), ir.IRString("ok")}, values(res.Tasks))

	tr, _ := ev.Trace("validate")
	require.Len(t, tr.Entries, 3, "resume does not re-run the program")
	assert.Equal(t, []ir.IRValue{ir.IRBool(true)}, tr.Entries[0].Outputs)
	assert.Equal(t, []ir.IRValue{ir.IRBool(false)}, tr.Entries[1].Outputs)
	assert.Equal(t, []ir.IRValue{ir.IRBool(true)}, tr.Entries[2].Outputs)
}

func TestRun_ResidualArithmetic(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, termHole("n", "Int"))
	ctx := context.Background()

	res, err := ev.Run(ctx, `(lambda (x) (+ x ?n))`, ir.IRInt(1), ir.IRInt(2))
	require.NoError(t, err)
	assert.Len(t, res.Suspended(), 2)

	tr, _ := ev.Trace("n")
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, "+", tr.Entries[0].Op)
	assert.Equal(t, []ir.IRValue{ir.IRInt(1), ir.IRString("?n")}, tr.Entries[0].Inputs)
	assert.Equal(t, []ir.IRValue{ir.IRInt(2), ir.IRString("?n")}, tr.Entries[1].Inputs)
	assert.Equal(t, []string{`typeof(n) == "int"`}, tr.Discovered)

	resumed, err := ev.FillAndResume(ctx, "n", ir.IRInt(10))
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{ir.IRInt(11), ir.IRInt(12)}, values(resumed.Tasks))
}

func TestRun_IndependentSubexpressionsContinue(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, termHole("flag", "Bool"))
	ctx := context.Background()

	res, err := ev.Run(ctx, `(list (+ 1 2) (if ?flag "yes" "no"))`)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.True(t, res.Tasks[0].Suspended)
	assert.Equal(t, []string{"flag"}, res.Tasks[0].WaitingOn)

	tr, _ := ev.Trace("flag")
	require.Len(t, tr.Entries, 1)
	assert.Equal(t, "if", tr.Entries[0].Op)
	assert.Equal(t, []string{`typeof(flag) == "bool"`}, tr.Discovered)

	resumed, err := ev.FillAndResume(ctx, "flag", ir.IRBool(false))
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(3), ir.IRString("no")}, resumed.Tasks[0].Value)
}

func TestRun_PartialBooleans(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, termHole("flag", "Bool"))

	res, err := ev.Run(context.Background(), `(and false ?flag)`)
	require.NoError(t, err)
	assert.False(t, res.Tasks[0].Suspended)
	assert.Equal(t, ir.IRBool(false), res.Tasks[0].Value)

	tr, _ := ev.Trace("flag")
	assert.Equal(t, []string{`typeof(flag) == "bool"`}, tr.Discovered)
}

func TestRun_DiscoveredConstraints(t *testing.T) {
	tests := []struct {
		name    string
		program string
		hole    graph.HoleSpec
		want    string
	}{
		{"comparison", `(< ?n 3)`, termHole("n", ""), `member(typeof(n), ["int", "string"])`},
		{"field access", `(get ?rec "name")`, termHole("rec", ""), `has(rec, "name")`},
		{"length", `(len ?xs)`, termHole("xs", ""), `member(typeof(xs), ["array", "string"])`},
		{"negation", `(not ?b)`, termHole("b", ""), `typeof(b) == "bool"`},
		{"function result arithmetic", `(* (?f 2) 3)`, fnHole("f"), `f.returns == "int"`},
		{"function result comparison", `(> (?f 1) 0)`, fnHole("f"), `member(f.returns, ["int", "string"])`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, _ := setupEvaluator(t, nil, nil, tt.hole)
			_, err := ev.Run(context.Background(), tt.program)
			require.NoError(t, err)

			got := ev.Discovered()
			require.Contains(t, got, tt.hole.ID)
			assert.Equal(t, []string{tt.want}, got[tt.hole.ID].Strings())
		})
	}
}

func TestRun_EqualityDiscoversNothing(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, termHole("n", ""))
	_, err := ev.Run(context.Background(), `(= ?n 3)`)
	require.NoError(t, err)

	tr, ok := ev.Trace("n")
	require.True(t, ok)
	assert.Len(t, tr.Entries, 1)
	assert.Empty(t, tr.Discovered)
	assert.Empty(t, ev.Discovered())
}

func TestSubmit_ConstrainsHoles(t *testing.T) {
	ev, e := setupEvaluator(t, nil, nil, termHole("n", "Int"), fnHole("validate"))
	ctx := context.Background()
	_, err := ev.Run(ctx, `(lambda (x) (if (?validate x) (+ x ?n) 0))`, ir.IRInt(1))
	require.NoError(t, err)

	results, err := ev.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1, "n is only used after the suspended condition")
	assert.Equal(t, "validate", results[0].HoleID)
	assert.Equal(t, ir.ActionConstrain, results[0].Action)

	h, err := e.Graph().Hole("validate")
	require.NoError(t, err)
	assert.Contains(t, h.Constraints.Strings(), `validate.returns == "bool"`)
	assert.Equal(t, ir.StatusOpen, h.Status)

	again, err := ev.Submit(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "constraints already carried are not resent")
}

func TestSubmit_SkipsFilledHoles(t *testing.T) {
	ev, e := setupEvaluator(t, nil, nil, termHole("n", "Int"))
	ctx := context.Background()
	_, err := ev.Run(ctx, `(+ 1 ?n)`)
	require.NoError(t, err)
	_, err = e.Fill(ctx, "n", ir.IRInt(2))
	require.NoError(t, err)

	results, err := ev.Submit(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubmit_ReportsRejectedHoles(t *testing.T) {
	ev, e := setupEvaluator(t, nil, nil, graph.HoleSpec{
		ID:          "n",
		Kind:        ir.KindTerm,
		Constraints: constraint.MustParseSet(`typeof(self) == "string"`),
	})
	ctx := context.Background()
	_, err := ev.Run(ctx, `(+ 1 ?n)`)
	require.NoError(t, err)

	_, err = ev.Submit(ctx)
	require.Error(t, err)
	assert.True(t, graph.IsConflictError(err), "got %v", err)
	h, _ := e.Graph().Hole("n")
	assert.Equal(t, []string{`typeof(n) == "string"`}, h.Constraints.Strings())
}

func TestTrace_Bounded(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, []Option{WithTraceLimit(2)}, termHole("n", "Int"))
	inputs := []ir.IRValue{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3), ir.IRInt(4), ir.IRInt(5)}
	_, err := ev.Run(context.Background(), `(lambda (x) (+ x ?n))`, inputs...)
	require.NoError(t, err)

	tr, _ := ev.Trace("n")
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, 3, tr.Dropped)
	assert.True(t, tr.Partial())
	assert.Equal(t, ir.IRInt(4), tr.Entries[0].Inputs[0], "oldest entries are evicted first")
	assert.Equal(t, ir.IRInt(5), tr.Entries[1].Inputs[0])
	assert.Less(t, tr.Entries[0].Seq, tr.Entries[1].Seq)
	assert.Equal(t, []string{`typeof(n) == "int"`}, tr.Discovered, "discoveries survive eviction")
}

func TestRun_Deterministic(t *testing.T) {
	run := func() []Trace {
		ev, _ := setupEvaluator(t, nil, nil, fnHole("validate"), termHole("n", "Int"))
		_, err := ev.Run(context.Background(), `(lambda (x) (if (?validate x) (+ x ?n) (- x ?n)))`,
			ir.IRInt(1), ir.IRInt(2), ir.IRInt(3))
		require.NoError(t, err)
		_, err = ev.FillAndResume(context.Background(), "validate", fnValue([]string{"x"}, "(> x 1)", "bool"))
		require.NoError(t, err)
		return ev.Traces()
	}
	first, second := run(), run()
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, "n", first[0].HoleID)
	assert.Equal(t, "validate", first[1].HoleID)
}

func TestRun_TaskErrorsAreIsolated(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil)
	res, err := ev.Run(context.Background(), `(lambda (x) (/ 10 x))`, ir.IRInt(2), ir.IRInt(0), ir.IRInt(5))
	require.NoError(t, err)

	assert.Equal(t, ir.IRInt(5), res.Tasks[0].Value)
	assert.True(t, IsRuntimeError(res.Tasks[1].Err), "got %v", res.Tasks[1].Err)
	assert.Contains(t, res.Tasks[1].Err.Error(), "division by zero")
	assert.Equal(t, ir.IRInt(2), res.Tasks[2].Value)
}

func TestRun_Errors(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, []Option{WithMaxSteps(50)}, termHole("n", "Int"))
	ctx := context.Background()

	t.Run("syntax", func(t *testing.T) {
		_, err := ev.Run(ctx, `(+ 1`)
		var se *SyntaxError
		assert.ErrorAs(t, err, &se)
	})
	t.Run("unknown hole", func(t *testing.T) {
		res, err := ev.Run(ctx, `(+ 1 ?missing)`)
		require.NoError(t, err)
		assert.True(t, graph.IsNotFoundError(res.Tasks[0].Err), "got %v", res.Tasks[0].Err)
	})
	t.Run("unbound symbol", func(t *testing.T) {
		res, err := ev.Run(ctx, `(+ 1 y)`)
		require.NoError(t, err)
		assert.True(t, IsRuntimeError(res.Tasks[0].Err))
	})
	t.Run("step budget", func(t *testing.T) {
		res, err := ev.Run(ctx, `((lambda (f) (f f)) (lambda (f) (f f)))`)
		require.NoError(t, err)
		assert.ErrorIs(t, res.Tasks[0].Err, ErrStepBudget)
	})
	t.Run("function result", func(t *testing.T) {
		res, err := ev.Run(ctx, `(lambda (x) x)`)
		require.NoError(t, err)
		assert.True(t, IsRuntimeError(res.Tasks[0].Err))
	})
	t.Run("integer overflow", func(t *testing.T) {
		for _, prog := range []string{`(lambda (x) (+ x 1))`, `(lambda (x) (* x 2))`, `(lambda (x) (- 0 x 2))`} {
			res, err := ev.Run(ctx, prog, ir.IRInt(math.MaxInt64))
			require.NoError(t, err)
			assert.True(t, IsRuntimeError(res.Tasks[0].Err), "%s: got %v", prog, res.Tasks[0].Err)
			assert.Contains(t, res.Tasks[0].Err.Error(), "integer overflow")
		}
		res, err := ev.Run(ctx, `(lambda (x) (/ x -1))`, ir.IRInt(math.MinInt64))
		require.NoError(t, err)
		assert.True(t, IsRuntimeError(res.Tasks[0].Err), "got %v", res.Tasks[0].Err)
	})
	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ev.Run(cctx, `(+ 1 ?n)`)
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

func TestFillAndResume_RejectedFillKeepsRun(t *testing.T) {
	ev, _ := setupEvaluator(t, nil, nil, termHole("n", "Int"))
	ctx := context.Background()
	_, err := ev.Run(ctx, `(+ 1 ?n)`)
	require.NoError(t, err)

	_, err = ev.FillAndResume(ctx, "n", ir.IRString("two"))
	assert.True(t, graph.IsValidationError(err), "got %v", err)

	res, err := ev.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, res.Tasks[0].Suspended)
}

func TestRevert_DropsTracesAndSuspendsAgain(t *testing.T) {
	ev, e := setupEvaluator(t, nil, nil, termHole("n", "Int"))
	ctx := context.Background()
	_, err := ev.Run(ctx, `(* 2 ?n)`)
	require.NoError(t, err)
	filled, err := ev.FillAndResume(ctx, "n", ir.IRInt(4))
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(8), filled.Tasks[0].Value)

	_, err = e.Revert(ctx, filled.Pass.Revision)
	require.NoError(t, err)

	_, ok := ev.Trace("n")
	assert.False(t, ok, "traces of reverted holes are dropped by default")
	res, err := ev.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, res.Tasks[0].Suspended)
	assert.Equal(t, []string{"n"}, res.Tasks[0].WaitingOn)
}

func TestRevert_KeepTracesPolicy(t *testing.T) {
	ev, e := setupEvaluator(t,
		[]engine.Option{engine.WithRevertPolicy(engine.RevertPolicy{KeepTraces: true})},
		nil,
		termHole("n", "Int"),
	)
	ctx := context.Background()
	_, err := ev.Run(ctx, `(* 2 ?n)`)
	require.NoError(t, err)
	filled, err := ev.FillAndResume(ctx, "n", ir.IRInt(4))
	require.NoError(t, err)

	_, err = e.Revert(ctx, filled.Pass.Revision)
	require.NoError(t, err)

	tr, ok := ev.Trace("n")
	require.True(t, ok)
	assert.Len(t, tr.Entries, 1)
}
