package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession creates a journaled session with holes x and y, and
// y constrained by x.
func createTestSession(t *testing.T, s *Store, id string) *session.Session {
	t.Helper()
	sess := session.New(
		session.WithID(id),
		session.WithJournal(s),
		session.WithIDGenerator(testutil.NewSequentialIDs(id+"-branch")),
		session.WithLogger(testutil.QuietLogger()),
	)
	t.Cleanup(sess.Close)
	_, err := sess.Declare(
		[]graph.HoleSpec{
			{ID: "x", Kind: ir.KindTerm, Type: "Int"},
			{ID: "y", Kind: ir.KindTerm, Type: "Int", Constraints: constraint.MustParseSet("y > x")},
			{ID: "z", Kind: ir.KindTerm, Type: "Int"},
		},
		[]graph.Edge{{From: "x", To: "y", Kind: ir.EdgeInforming}},
	)
	if err != nil {
		t.Fatalf("Declare() failed: %v", err)
	}
	return sess
}
