package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// response mirrors CLIResponse with the payload left undecoded.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// testDB returns a fresh database path.
func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "hollow.db")
}

// execute runs the root command against db and returns stdout.
func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// executeJSON runs a command with --format json and decodes the response.
func executeJSON(t *testing.T, db string, args ...string) (response, error) {
	t.Helper()
	out, err := execute(t, db, append([]string{"--format", "json"}, args...)...)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

// mustRun runs a command that must succeed and decodes its data into v.
func mustRun(t *testing.T, db string, v any, args ...string) {
	t.Helper()
	resp, err := executeJSON(t, db, args...)
	require.NoError(t, err, "%s", strings.Join(args, " "))
	require.Equal(t, "ok", resp.Status)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
}

// newSession creates session id in db from the bounds declaration.
func newSession(t *testing.T, db, id string) {
	t.Helper()
	mustRun(t, db, nil, "new", "--id", id, filepath.Join("testdata", "bounds.cue"))
}

func holeByID(t *testing.T, show ShowResult, id string) HoleView {
	t.Helper()
	for _, h := range show.Holes {
		if h.ID == id {
			return h
		}
	}
	require.Failf(t, "hole not shown", "%s not in %v", id, show.Holes)
	return HoleView{}
}
