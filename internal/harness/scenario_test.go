package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpec writes a one-hole CUE declaration.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0o755))
	specPath := filepath.Join(specsDir, name)
	src := "holes: {x: {kind: \"term\", type: \"Int\", constraints: [\"x > 0\"]}}\n"
	require.NoError(t, os.WriteFile(specPath, []byte(src), 0o644))
	return specPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "x.cue")

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
specs:
  - specs/x.cue
flow:
  - op: fill
    hole: x
    value: 3
  - op: revert
    step: 0
    expect:
      events: 1
assertions:
  - type: hole_status
    hole: x
    status: Open
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{filepath.Join(dir, "specs", "x.cue")}, scenario.Specs, "spec paths resolve against the scenario")
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, OpFill, scenario.Flow[0].Op)
	assert.Equal(t, 3, scenario.Flow[0].Value)
	require.NotNil(t, scenario.Flow[1].Step)
	assert.Equal(t, 0, *scenario.Flow[1].Step)
	require.NotNil(t, scenario.Flow[1].Expect.Events)
	assert.Equal(t, 1, *scenario.Flow[1].Expect.Events)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "x.cue")
	path := writeScenario(t, dir, `
name: typo
description: d
specs: [specs/x.cue]
flow:
  - op: fill
    hole: x
    value: 1
assertion:
  - type: revision_count
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nspecs: [specs/x.cue]\nflow: [{op: undo}]\nassertions: [{type: revision_count}]\n",
			want: "name is required",
		},
		{
			name: "missing spec file",
			body: "name: n\ndescription: d\nspecs: [specs/gone.cue]\nflow: [{op: undo}]\nassertions: [{type: revision_count}]\n",
			want: "spec file not found",
		},
		{
			name: "fill without value",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nflow: [{op: fill, hole: x}]\nassertions: [{type: revision_count}]\n",
			want: "flow[0]: value is required for fill",
		},
		{
			name: "revert of a later step",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nflow: [{op: revert, step: 0}]\nassertions: [{type: revision_count}]\n",
			want: "must name an earlier flow step",
		},
		{
			name: "revert in setup by step",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nsetup: [{op: revert, step: 0}]\nflow: [{op: undo}]\nassertions: [{type: revision_count}]\n",
			want: "setup[0]",
		},
		{
			name: "unknown op",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nflow: [{op: explode}]\nassertions: [{type: revision_count}]\n",
			want: `unknown op "explode"`,
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nflow: [{op: undo}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "hole_status without status",
			body: "name: n\ndescription: d\nspecs: [specs/x.cue]\nflow: [{op: undo}]\nassertions: [{type: hole_status, hole: x}]\n",
			want: "hole and status are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestSpec(t, dir, "x.cue")
			_, err := LoadScenario(writeScenario(t, dir, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
