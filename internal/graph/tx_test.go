package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

func fill(t *testing.T, tx *Tx, id string, v ir.IRValue) {
	t.Helper()
	h, err := tx.Hole(id)
	require.NoError(t, err)
	h.Status = ir.StatusFilled
	h.Value = v
	require.NoError(t, tx.Put(h))
}

func TestTx_ChangeSetCoalescesPerHole(t *testing.T) {
	s := setupTestStore(t, termSpec("a", "a > 0"), termSpec("b"))

	cs, err := s.Update(func(tx *Tx) error {
		fill(t, tx, "b", ir.IRInt(1))
		h, _ := tx.Hole("a")
		h.Unverified = true
		require.NoError(t, tx.Put(h))
		h.Unverified = false
		h.Status = ir.StatusDeferred
		require.NoError(t, tx.Put(h))
		return tx.Link("a", "b", ir.EdgeBlocking)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a"}, cs.Touched())
	d, ok := cs.Diff("a")
	require.True(t, ok)
	assert.Equal(t, ir.StatusOpen, d.Before.Status)
	assert.Equal(t, ir.StatusDeferred, d.After.Status)
	assert.Equal(t, []EdgeDiff{{Edge: Edge{From: "a", To: "b", Kind: ir.EdgeBlocking}, Added: true}}, cs.Edges)
}

func TestTx_NoOpChangesDropOut(t *testing.T) {
	s := setupTestStore(t, termSpec("a"), termSpec("b"))
	cs, err := s.Update(func(tx *Tx) error {
		h, _ := tx.Hole("a")
		require.NoError(t, tx.Put(h))
		require.NoError(t, tx.Link("a", "b", ir.EdgeInforming))
		require.NoError(t, tx.Unlink("a", "b", ir.EdgeInforming))
		_, err := tx.Create(termSpec("tmp"))
		require.NoError(t, err)
		return tx.Remove("tmp")
	})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestTx_InvertRestoresExactly(t *testing.T) {
	s := setupTestStore(t, termSpec("a", "a > 0"), termSpec("b", "b == a + 1"), termSpec("c"))
	require.NoError(t, s.Link("a", "b", ir.EdgeBlocking))
	before := s.View()

	cs, err := s.Update(func(tx *Tx) error {
		fill(t, tx, "a", ir.IRInt(3))
		h, _ := tx.Hole("b")
		h.Constraints, _ = h.Constraints.Substitute("a", ir.IRInt(3))
		h.Status = ir.StatusFilled
		h.Value = ir.IRInt(4)
		require.NoError(t, tx.Put(h))
		require.NoError(t, tx.Remove("c"))
		_, err := tx.Create(termSpec("d", "d < a"))
		require.NoError(t, err)
		return tx.Link("a", "d", ir.EdgeInforming)
	})
	require.NoError(t, err)
	after := s.View()

	_, err = s.Update(func(tx *Tx) error { return tx.Apply(cs.Invert()) })
	require.NoError(t, err)
	assertSameGraph(t, before, s.View())

	cRef, _ := before.Resolve("c")
	got, ok := s.At(cRef)
	require.True(t, ok, "removed hole restored at its original slot")
	assert.Equal(t, "c", got.ID)

	_, err = s.Update(func(tx *Tx) error { return tx.Apply(cs) })
	require.NoError(t, err)
	assertSameGraph(t, after, s.View())
}

func TestTx_Insert(t *testing.T) {
	s := NewStore()
	_, err := s.Update(func(tx *Tx) error {
		return tx.Insert(Hole{
			ID:          "z",
			Kind:        ir.KindEntity,
			Constraints: constraint.MustParseSet(`has(z, "id")`),
			Status:      ir.StatusDeferred,
			Seq:         41,
		})
	})
	require.NoError(t, err)

	h, err := s.Hole("z")
	require.NoError(t, err)
	assert.Equal(t, int64(41), h.Seq)
	assert.Equal(t, ir.StatusDeferred, h.Status)

	id, err := s.CreateHole(HoleSpec{Kind: ir.KindTerm})
	require.NoError(t, err)
	assert.Equal(t, "h42", id)
}

func TestHole_JSONRoundTrip(t *testing.T) {
	set := constraint.MustParseSet("a < b", "b != 3")
	set, _ = set.Substitute("a", ir.IRInt(1))
	h := Hole{
		ID:          "b",
		Ref:         4,
		Kind:        ir.KindTerm,
		Type:        "Int",
		Constraints: set,
		Status:      ir.StatusFilled,
		Value:       ir.IRInt(2),
		Provenance:  ir.Provenance{Span: ir.Span{File: "x.cue", StartLine: 1}, Cause: ir.CauseProducer},
		Suggestions: []ir.Suggestion{{Value: ir.IRInt(2), Confidence: 900}},
		Seq:         2,
	}
	data, err := json.Marshal(h)
	require.NoError(t, err)

	var back Hole
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, h.Equal(back), "round trip changed hole:\n%s", data)
	assert.Equal(t, NoRef, back.Ref)
}

func TestHole_JSONOmitsAbsentValue(t *testing.T) {
	data, err := json.Marshal(Hole{ID: "a", Kind: ir.KindSpec, Status: ir.StatusOpen})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"value"`)
	assert.Contains(t, string(data), `"constraints":[]`)
	assert.Contains(t, string(data), `"kind":"Spec"`)
}
