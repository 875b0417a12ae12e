package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/compiler"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("CONFLICT", "fill rejected", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Equal(t, "fill rejected", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Error("NO_SESSION", "unknown session", []string{"x"}))
	assert.Equal(t, "Error [NO_SESSION]: unknown session\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("NO_SESSION", "unknown session", []string{"x"}))
	assert.Contains(t, buf.String(), "Details: [x]")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String(), "verbose output must not corrupt JSON")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	conflict := &graph.Error{Code: graph.CodeConflict, HoleID: "B", Message: "unsatisfiable", Core: []string{"A < B", "B == 1"}}
	err := formatter.Fail("fill B", fmt.Errorf("wrapped: %w", conflict))

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, conflict)

	var resp response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "fill B: ")

	var detail ConflictDetail
	raw, _ := json.Marshal(resp.Error.Details)
	require.NoError(t, json.Unmarshal(raw, &detail))
	assert.Equal(t, ConflictDetail{Hole: "B", Core: []string{"A < B", "B == 1"}}, detail)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad"), ErrCodeGeneric, ExitCommandError},
		{"missing session", fmt.Errorf("load: %w", store.ErrNotFound), ErrCodeNoSession, ExitCommandError},
		{"corrupt snapshot", store.ErrCorrupt, ErrCodeStore, ExitCommandError},
		{"bad document", fmt.Errorf("%w: missing session_id", session.ErrMalformed), ErrCodeStore, ExitCommandError},
		{"validation", compiler.ValidationErrors{{Code: compiler.ErrSelfEdge}}, ErrCodeInvalid, ExitFailure},
		{"compile", &compiler.CompileError{Field: "holes", Message: "holes is required"}, ErrCodeCompile, ExitFailure},
		{"state", graph.NewStateError("x", "nothing to redo"), "STATE", ExitFailure},
		{"not found", graph.NewNotFoundError("x"), "NOT_FOUND", ExitFailure},
		{"plain", errors.New("boom"), ErrCodeGeneric, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
		})
	}
}

func TestErrorDetails(t *testing.T) {
	errs := compiler.ValidationErrors{
		{Field: "holes.a", Code: compiler.ErrInvalidHoleID},
		{Field: "edges", Code: compiler.ErrDependencyCycle},
	}
	details, ok := errorDetails(errs).([]compiler.ValidationError)
	require.True(t, ok)
	assert.Len(t, details, 2)

	cycle := &graph.Error{Code: graph.CodeCycle, Path: []string{"a", "b", "a"}}
	assert.Equal(t, ConflictDetail{Path: []string{"a", "b", "a"}}, errorDetails(cycle))

	assert.Nil(t, errorDetails(graph.NewStateError("x", "busy")))
	assert.Nil(t, errorDetails(errors.New("boom")))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("x: %w", NewExitError(ExitCommandError, "bad"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))

	err := WrapExitError(ExitFailure, "scenarios failed", errors.New("2 failed"))
	assert.Equal(t, "scenarios failed: 2 failed", err.Error())
}
