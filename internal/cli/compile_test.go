package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/compiler"
)

func TestCompileText(t *testing.T) {
	out, err := execute(t, testDB(t), "compile", filepath.Join("testdata", "bounds.cue"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "4 hole(s), 2 edge(s)")
}

func TestCompileJSON(t *testing.T) {
	var summary DeclarationSummary
	mustRun(t, testDB(t), &summary, "compile", filepath.Join("testdata", "bounds.cue"))

	require.Len(t, summary.Holes, 4)
	ids := make([]string, len(summary.Holes))
	for i, h := range summary.Holes {
		ids[i] = h.ID
	}
	assert.Equal(t, []string{"D", "C", "A", "B"}, ids)

	c := summary.Holes[1]
	assert.Equal(t, "Term", c.Kind)
	assert.Equal(t, "Int", c.Type)
	assert.Equal(t, []string{"C == D + 1"}, c.Constraints)
	assert.Contains(t, c.Span, "bounds.cue:")

	assert.Equal(t, []EdgeSummary{
		{From: "D", To: "C", Kind: "Informing"},
		{From: "A", To: "B", Kind: "Informing"},
	}, summary.Edges)
	assert.Empty(t, summary.Warnings)
}

func TestCompileOutputFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "decl.json")
	_, err := execute(t, testDB(t), "compile", "-o", outPath, filepath.Join("testdata", "bounds.cue"))
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var summary DeclarationSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Len(t, summary.Holes, 4)
}

func TestCompileInvalid(t *testing.T) {
	resp, err := executeJSON(t, testDB(t), "compile", filepath.Join("testdata", "invalid.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)

	raw, _ := json.Marshal(resp.Error.Details)
	var details []compiler.ValidationError
	require.NoError(t, json.Unmarshal(raw, &details))
	codes := make([]string, len(details))
	for i, d := range details {
		codes[i] = d.Code
	}
	assert.ElementsMatch(t, []string{compiler.ErrUnknownReference, compiler.ErrUnknownEndpoint}, codes)
}

func TestCompileMissingFile(t *testing.T) {
	_, err := execute(t, testDB(t), "compile", "/nonexistent/holes.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("holes: {\n\ta: {kind: \"term\"\n"), 0o644))

	resp, err := executeJSON(t, testDB(t), "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var result ValidationResult
		mustRun(t, testDB(t), &result, "validate", filepath.Join("testdata", "bounds.cue"))
		assert.True(t, result.Valid)
		assert.Equal(t, 4, result.Holes)
		assert.Equal(t, 2, result.Edges)
	})

	t.Run("valid text", func(t *testing.T) {
		out, err := execute(t, testDB(t), "validate", filepath.Join("testdata", "validator.cue"))
		require.NoError(t, err)
		assert.Contains(t, out, "is valid (1 hole(s), 0 edge(s))")
	})

	t.Run("invalid", func(t *testing.T) {
		out, err := execute(t, testDB(t), "validate", filepath.Join("testdata", "invalid.cue"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Error [INVALID]")
		assert.Contains(t, out, "[E106]")
		assert.Contains(t, out, "[E104]")
	})
}
