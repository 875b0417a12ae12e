package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalResponse decodes EvalResult with plain values.
type evalResponse struct {
	Session string `json:"session"`
	Tasks   []struct {
		Index     int      `json:"index"`
		Input     any      `json:"input"`
		Value     any      `json:"value"`
		WaitingOn []string `json:"waiting_on"`
		Error     string   `json:"error"`
	} `json:"tasks"`
	Fills      []PassSummary       `json:"fills"`
	Discovered map[string][]string `json:"discovered"`
	Submitted  []PassSummary       `json:"submitted"`
}

const validateProgram = `(lambda (x) (if (?validate x) "ok" "rejected"))`

func TestEvalSuspendsOnOpenHoles(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, nil, "new", "--id", "v1", filepath.Join("testdata", "validator.cue"))

	var res evalResponse
	mustRun(t, db, &res, "eval", "v1", validateProgram, "1", "2")
	require.Len(t, res.Tasks, 2)
	for i, task := range res.Tasks {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, []string{"validate"}, task.WaitingOn)
		assert.Nil(t, task.Value)
	}
	assert.Equal(t, map[string][]string{"validate": {`validate.returns == "bool"`}}, res.Discovered)
	assert.Empty(t, res.Submitted)

	var show ShowResult
	mustRun(t, db, &show, "show", "v1", "validate")
	assert.Empty(t, show.Holes[0].Constraints, "discovered constraints are only reported without --submit")
}

func TestEvalSubmit(t *testing.T) {
	db := testDB(t)
	mustRun(t, db, nil, "new", "--id", "v1", filepath.Join("testdata", "validator.cue"))

	var res evalResponse
	mustRun(t, db, &res, "eval", "--submit", "v1", validateProgram, "1")
	require.Len(t, res.Submitted, 1)
	assert.Equal(t, "constrain", res.Submitted[0].Action)
	assert.Equal(t, "validate", res.Submitted[0].Hole)

	var show ShowResult
	mustRun(t, db, &show, "show", "v1", "validate")
	assert.Equal(t, []string{`validate.returns == "bool"`}, show.Holes[0].Constraints)

	var log LogResult
	mustRun(t, db, &log, "log", "v1")
	assert.Len(t, log.Revisions, 1)
}

func TestEvalFillAndResume(t *testing.T) {
	db := testDB(t)
	newSession(t, db, "s1")

	var res evalResponse
	mustRun(t, db, &res, "eval", "s1", "(+ ?A 1)", "--fill", "A=41")
	require.Len(t, res.Fills, 1)
	assert.Equal(t, "A", res.Fills[0].Hole)
	require.Len(t, res.Tasks, 1)
	assert.Empty(t, res.Tasks[0].WaitingOn)
	assert.EqualValues(t, 42, res.Tasks[0].Value)

	var show ShowResult
	mustRun(t, db, &show, "show", "s1", "A")
	assert.Equal(t, "41", show.Holes[0].Value, "fills made during eval are saved")
}

func TestEvalFromFile(t *testing.T) {
	db := testDB(t)
	newSession(t, db, "s1")
	prog := filepath.Join(t.TempDir(), "prog.scm")
	require.NoError(t, os.WriteFile(prog, []byte("(* 6 7)"), 0o644))

	var res evalResponse
	mustRun(t, db, &res, "eval", "-f", prog, "s1")
	require.Len(t, res.Tasks, 1)
	assert.EqualValues(t, 42, res.Tasks[0].Value)

	out, err := execute(t, db, "eval", "-f", prog, "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "task 0: 42")
}

func TestEvalErrors(t *testing.T) {
	db := testDB(t)
	newSession(t, db, "s1")

	tests := []struct {
		name string
		args []string
		exit int
	}{
		{"no program", []string{"eval", "s1"}, ExitCommandError},
		{"bad input", []string{"eval", "s1", "(lambda (x) x)", "nope"}, ExitCommandError},
		{"bad fill flag", []string{"eval", "s1", "1", "--fill", "A"}, ExitCommandError},
		{"bad fill value", []string{"eval", "s1", "1", "--fill", "A=1.5"}, ExitCommandError},
		{"unknown session", []string{"eval", "nope", "1"}, ExitCommandError},
		{"syntax error", []string{"eval", "s1", "(+ 1"}, ExitFailure},
		{"missing file", []string{"eval", "-f", "/nonexistent.scm", "s1"}, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, db, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
		})
	}
}
