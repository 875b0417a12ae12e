package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestScenarios_Golden(t *testing.T) {
	names := []string{
		"fill_without_dependents",
		"conflicting_bounds",
		"auto_fill",
		"validate_traces",
		"revert_auto_fill",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadFixture(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadFixture(t, "revert_auto_fill")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, string(first.Document), string(second.Document), "documents are byte-identical")
	assert.Contains(t, string(first.Document), `"session_id":"test-session"`)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := loadFixture(t, "auto_fill")
	scenario.Flow[0].Expect = &Expect{AutoFilled: []string{"D"}, Events: intp(1)}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "auto-filled: expected [D], got [C]")
	assert.Contains(t, result.Errors[1], "events: expected 1, got 2")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := loadFixture(t, "conflicting_bounds")
	scenario.Flow[1].Expect = nil

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.Equal(t, "CONFLICT", result.Trace[1].Outcome, "the trace still records the failure")
}

func TestRun_AssertionFailuresAreCollected(t *testing.T) {
	scenario := loadFixture(t, "fill_without_dependents")
	scenario.Assertions = []Assertion{
		{Type: AssertHoleStatus, Hole: "A", Status: "Deferred"},
		{Type: AssertHoleValue, Hole: "A", Value: 6},
		{Type: AssertRevisionCount, Count: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "A is Deferred")
	assert.Contains(t, result.Errors[1], "A = 6")
}

func TestRun_SetupIsNotTraced(t *testing.T) {
	scenario := loadFixture(t, "auto_fill")
	scenario.Setup = []Op{{Op: OpConstrain, Hole: "D", Constraints: []string{"D < 10"}}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "r2", result.Trace[0].Revision, "setup committed r1")
	assert.Equal(t, []string{"#2 D Filled", "#3 C auto-filled 5"}, result.Trace[0].Events)
}

func TestRun_SetupFailureIsAnError(t *testing.T) {
	scenario := loadFixture(t, "auto_fill")
	scenario.Setup = []Op{{Op: OpFill, Hole: "missing", Value: 1}}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0")
}

func TestRun_UndoRedo(t *testing.T) {
	scenario := loadFixture(t, "auto_fill")
	scenario.Flow = append(scenario.Flow,
		Op{Op: OpUndo},
		Op{Op: OpRedo},
		Op{Op: OpRedo, Expect: &Expect{Error: "STATE"}},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertHoleValue, Hole: "C", Value: 5},
		{Type: AssertRevisionCount, Count: 3},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "r2", result.Trace[1].Revision)
	assert.Equal(t, "r3", result.Trace[2].Revision)
	assert.Equal(t, "STATE", result.Trace[3].Outcome)
}

func TestRun_EvalResumeAndSubmit(t *testing.T) {
	scenario := loadFixture(t, "validate_traces")
	scenario.Flow = []Op{
		{Op: OpEval, Program: `(lambda (x) (if (?validate x) "ok" "rejected"))`, Inputs: []any{1, -2, 3}},
		{Op: OpSubmit},
	}
	scenario.Assertions = []Assertion{
		{Type: AssertHoleConstraints, Hole: "validate", Constraints: []string{`validate.returns == "bool"`}},
		{Type: AssertRevisionCount, Count: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "r1", result.Trace[1].Revision)
	assert.Equal(t, "validate", result.Trace[1].Hole)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunContext(ctx, loadFixture(t, "auto_fill"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSuite(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, paths, 5)

	result := RunSuite(context.Background(), paths)
	assert.Equal(t, 5, result.TotalScenarios)
	assert.Equal(t, 5, result.Passed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [unterminated\n"), 0o644))

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	result := RunSuite(context.Background(), append(paths, filepath.Join("testdata", "scenarios", "auto_fill.yaml")))

	assert.Equal(t, 2, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
}
