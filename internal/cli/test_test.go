package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, testDB(t), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, testDB(t), "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestTestCommandFilter(t *testing.T) {
	var result TestResult
	mustRun(t, testDB(t), &result, "test", filepath.Join("testdata", "scenarios"), "--filter", "auto_*")
	assert.Equal(t, 1, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, []string{filepath.Join("testdata", "scenarios", "auto_fill.yaml")}, result.Scenarios)
}

func TestTestCommandFailures(t *testing.T) {
	resp, err := executeJSON(t, testDB(t), "test", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "ok", resp.Status, "the report is still printed")

	out, err := execute(t, testDB(t), "test", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Contains(t, out, "✗ wrong_value.yaml")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandSingleFile(t *testing.T) {
	var result TestResult
	mustRun(t, testDB(t), &result, "test", filepath.Join("testdata", "scenarios", "auto_fill.yaml"))
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommandEmptyFilter(t *testing.T) {
	out, err := execute(t, testDB(t), "test", filepath.Join("testdata", "scenarios"), "--filter", "nothing_*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandBadFilter(t *testing.T) {
	_, err := execute(t, testDB(t), "test", filepath.Join("testdata", "scenarios"), "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
