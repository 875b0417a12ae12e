package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

func termSpec(id string, constraints ...string) HoleSpec {
	return HoleSpec{
		ID:          id,
		Kind:        ir.KindTerm,
		Type:        "Int",
		Constraints: constraint.MustParseSet(constraints...),
	}
}

func setupTestStore(t *testing.T, specs ...HoleSpec) *Store {
	t.Helper()
	s := NewStore()
	for _, spec := range specs {
		_, err := s.CreateHole(spec)
		require.NoError(t, err)
	}
	return s
}

func TestStore_CreateHole(t *testing.T) {
	s := NewStore()
	id, err := s.CreateHole(HoleSpec{
		ID:          "a",
		Kind:        ir.KindTerm,
		Type:        "Int",
		Constraints: constraint.MustParseSet("self > 0"),
		Provenance:  ir.Provenance{Span: ir.Span{File: "main.cue", StartLine: 3}, Justification: "count"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	h, err := s.Hole("a")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusOpen, h.Status)
	assert.Equal(t, []string{"a > 0"}, h.Constraints.Strings())
	assert.Equal(t, ir.CauseProducer, h.Provenance.Cause)
	assert.Equal(t, int64(1), h.Seq)
	assert.Nil(t, h.Value)
}

func TestStore_CreateHoleGeneratesIDs(t *testing.T) {
	s := NewStore()
	first, err := s.CreateHole(HoleSpec{Kind: ir.KindSpec})
	require.NoError(t, err)
	second, err := s.CreateHole(HoleSpec{Kind: ir.KindSpec})
	require.NoError(t, err)
	assert.Equal(t, "h1", first)
	assert.Equal(t, "h2", second)
}

func TestStore_CreateHoleRejects(t *testing.T) {
	s := setupTestStore(t, termSpec("a"))

	tests := []struct {
		name string
		spec HoleSpec
	}{
		{"duplicate", termSpec("a")},
		{"bad identifier", termSpec("not an id")},
		{"reserved self", termSpec("self")},
		{"invalid kind", HoleSpec{ID: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateHole(tt.spec)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
	assert.Equal(t, 1, s.View().Len())
}

func TestStore_TypeHoleAutoLink(t *testing.T) {
	s := setupTestStore(t,
		HoleSpec{ID: "x", Kind: ir.KindTerm, Type: "?T"},
		HoleSpec{ID: "T", Kind: ir.KindType},
		HoleSpec{ID: "y", Kind: ir.KindTerm, Type: "?T"},
	)
	assert.Equal(t, []Edge{
		{From: "T", To: "x", Kind: ir.EdgeInforming},
		{From: "T", To: "y", Kind: ir.EdgeInforming},
	}, s.Edges())
}

func TestStore_LinkRejectsCycle(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"), termSpec("c"))
	require.NoError(t, s.Link("a", "b", ir.EdgeBlocking))
	require.NoError(t, s.Link("b", "c", ir.EdgeInforming))

	before := s.Edges()
	err := s.Link("c", "a", ir.EdgeBlocking)
	require.True(t, IsCycleError(err), "got %v", err)

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, []string{"a", "b", "c", "a"}, ge.Path)
	assert.Equal(t, before, s.Edges())
}

func TestStore_MutuallyInformingIsPropagationCycle(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	require.NoError(t, s.Link("a", "b", ir.EdgeInforming))

	err := s.Link("b", "a", ir.EdgeInforming)
	require.True(t, IsCycleError(err), "got %v", err)
	assert.Contains(t, err.Error(), "propagation cycle (blocking and informing edges): a -> b -> a")
}

func TestStore_ConflictingEdgesExemptFromCycles(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	require.NoError(t, s.Link("a", "b", ir.EdgeBlocking))
	require.NoError(t, s.Link("b", "a", ir.EdgeConflicting))
	assert.Equal(t, []string{"b"}, s.View().ConflictPeers("a"))
	assert.Equal(t, []string{"a"}, s.View().ConflictPeers("b"))
	assert.Equal(t, []string{"b"}, s.View().Dependents("a"))
	assert.Empty(t, s.View().Dependents("b"))
}

func TestStore_LinkErrors(t *testing.T) {
	s := setupTestStore(t, termSpec("a"))
	assert.True(t, IsNotFoundError(s.Link("a", "zz", ir.EdgeBlocking)))
	assert.True(t, IsValidationError(s.Link("a", "a", ir.EdgeConflicting)))
	assert.True(t, IsNotFoundError(s.Unlink("a", "zz", ir.EdgeBlocking)))
}

func TestStore_LinkIdempotent(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	require.NoError(t, s.Link("a", "b", ir.EdgeBlocking))
	cs, err := s.Update(func(tx *Tx) error { return tx.Link("a", "b", ir.EdgeBlocking) })
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Len(t, s.Edges(), 1)
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	before := s.View()

	boom := errors.New("boom")
	_, err := s.Update(func(tx *Tx) error {
		h, err := tx.Hole("a")
		require.NoError(t, err)
		h.Status = ir.StatusFilled
		h.Value = ir.IRInt(1)
		require.NoError(t, tx.Put(h))
		require.NoError(t, tx.Link("a", "b", ir.EdgeBlocking))
		require.NoError(t, tx.Remove("b"))
		_, err = tx.Create(termSpec("c"))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assertSameGraph(t, before, s.View())
}

func TestStore_ReadersSeeStableSnapshots(t *testing.T) {
	s := setupTestStore(t, termSpec("a"))
	snap := s.View()

	_, err := s.Update(func(tx *Tx) error {
		h, _ := tx.Hole("a")
		h.Status = ir.StatusDeferred
		return tx.Put(h)
	})
	require.NoError(t, err)

	old, _ := snap.Hole("a")
	now, _ := s.Hole("a")
	assert.Equal(t, ir.StatusOpen, old.Status)
	assert.Equal(t, ir.StatusDeferred, now.Status)
}

func TestStore_ForkIsIndependent(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	f := s.Fork()

	_, err := f.CreateHole(termSpec("c"))
	require.NoError(t, err)
	require.NoError(t, f.Link("a", "b", ir.EdgeBlocking))
	_, err = s.Update(func(tx *Tx) error { return tx.Remove("a") })
	require.NoError(t, err)

	assert.Equal(t, 1, s.View().Len())
	assert.Equal(t, 3, f.View().Len())
	assert.Empty(t, s.Edges())
	assert.Len(t, f.Edges(), 1)
}

func TestStore_ForkAcrossManyChunks(t *testing.T) {
	s := NewStore()
	for range 3 * chunkSize {
		_, err := s.CreateHole(HoleSpec{Kind: ir.KindTerm})
		require.NoError(t, err)
	}
	f := s.Fork()
	_, err := f.Update(func(tx *Tx) error {
		h, _ := tx.Hole("h100")
		h.Status = ir.StatusDeferred
		return tx.Put(h)
	})
	require.NoError(t, err)

	orig, _ := s.Hole("h100")
	forked, _ := f.Hole("h100")
	assert.Equal(t, ir.StatusOpen, orig.Status)
	assert.Equal(t, ir.StatusDeferred, forked.Status)
	// Chunks not written are shared.
	assert.Same(t, s.cur.Load().chunks[0], f.cur.Load().chunks[0])
	assert.NotSame(t, s.cur.Load().chunks[1], f.cur.Load().chunks[1])
}

func TestStore_RefsAreStable(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	ra, ok := s.Resolve("a")
	require.True(t, ok)
	rb, _ := s.Resolve("b")

	_, err := s.Update(func(tx *Tx) error { return tx.Remove("a") })
	require.NoError(t, err)
	_, err = s.CreateHole(termSpec("c"))
	require.NoError(t, err)

	_, ok = s.At(ra)
	assert.False(t, ok, "removed slot is not reused")
	h, ok := s.At(rb)
	require.True(t, ok)
	assert.Equal(t, "b", h.ID)
}

func TestStore_AttachSuggestions(t *testing.T) {
	s := setupTestStore(t, termSpec("a", "a > 0"))
	sugs := []ir.Suggestion{{Value: ir.IRInt(3), Rationale: "small", Confidence: 700}}
	require.NoError(t, s.AttachSuggestions("a", sugs))

	h, _ := s.Hole("a")
	assert.Equal(t, sugs, h.Suggestions)
	assert.Equal(t, ir.StatusOpen, h.Status)
	assert.Equal(t, []string{"a > 0"}, h.Constraints.Strings())

	assert.True(t, IsNotFoundError(s.AttachSuggestions("zz", sugs)))
}

func assertSameGraph(t *testing.T, want, got View) {
	t.Helper()
	wh, gh := want.Holes(), got.Holes()
	require.Equal(t, len(wh), len(gh), "hole count")
	for i := range wh {
		assert.True(t, wh[i].Equal(gh[i]), "hole %s differs:\nwant %+v\ngot  %+v", wh[i].ID, wh[i], gh[i])
	}
	assert.Equal(t, want.Edges(), got.Edges())
}
