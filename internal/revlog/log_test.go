package revlog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

func hole(id string, status ir.HoleStatus, v ir.IRValue) *graph.Hole {
	return &graph.Hole{ID: id, Kind: ir.KindTerm, Status: status, Value: v}
}

func fillChange(id string, v int64) graph.ChangeSet {
	return graph.ChangeSet{Holes: []graph.HoleDiff{{
		ID:     id,
		Before: hole(id, ir.StatusOpen, nil),
		After:  hole(id, ir.StatusFilled, ir.IRInt(v)),
	}}}
}

func appendStep(t *testing.T, l *Log, seq int64, action ir.Action, holeID string, cs graph.ChangeSet, reverts string) Step {
	t.Helper()
	st, err := NewStep(l.Head(), seq, action, holeID, cs)
	require.NoError(t, err)
	st.Reverts = reverts
	require.NoError(t, l.Append(context.Background(), st))
	return st
}

func TestNewStep_SplitsPrimaryAndPropagated(t *testing.T) {
	cs := fillChange("d", 4)
	cs.Holes = append(cs.Holes, graph.HoleDiff{ID: "c", Before: hole("c", ir.StatusOpen, nil), After: hole("c", ir.StatusFilled, ir.IRInt(5))})

	st, err := NewStep("", 1, ir.ActionFill, "d", cs)
	require.NoError(t, err)
	assert.Len(t, st.ID, 64)
	assert.Equal(t, ir.StatusOpen, st.Before.Status)
	assert.Equal(t, ir.StatusFilled, st.After.Status)
	require.Len(t, st.Propagated, 1)
	assert.Equal(t, "c", st.Propagated[0].ID)
	assert.Equal(t, []string{"d", "c"}, st.Touched())
}

func TestNewStep_IDDependsOnParentAndContent(t *testing.T) {
	a, err := NewStep("", 1, ir.ActionFill, "d", fillChange("d", 4))
	require.NoError(t, err)
	b, err := NewStep("", 1, ir.ActionFill, "d", fillChange("d", 4))
	require.NoError(t, err)
	c, err := NewStep("", 1, ir.ActionFill, "d", fillChange("d", 5))
	require.NoError(t, err)
	d, err := NewStep(a.ID, 1, ir.ActionFill, "d", fillChange("d", 4))
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, a.ID, d.ID)
}

func TestLog_AppendChecksParent(t *testing.T) {
	l := New()
	appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")

	orphan, err := NewStep("", 2, ir.ActionFill, "b", fillChange("b", 1))
	require.NoError(t, err)
	err = l.Append(context.Background(), orphan)
	assert.ErrorIs(t, err, ErrBadParent)
	assert.Equal(t, 1, l.Len())
}

func TestLog_EffectiveAndRevert(t *testing.T) {
	l := New()
	s1 := appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	s2 := appendStep(t, l, 2, ir.ActionFill, "b", fillChange("b", 2), "")

	last, ok := l.LastEffective()
	require.True(t, ok)
	assert.Equal(t, s2.ID, last.ID)

	r := appendStep(t, l, 3, ir.ActionRevert, "b", fillChange("b", 2).Invert(), s2.ID)
	assert.False(t, l.Effective(s2.ID))
	assert.False(t, l.Effective(r.ID), "revert steps are not themselves revertable")
	by, ok := l.RevertedBy(s2.ID)
	require.True(t, ok)
	assert.Equal(t, r.ID, by)

	last, ok = l.LastEffective()
	require.True(t, ok)
	assert.Equal(t, s1.ID, last.ID)

	after, err := l.EffectiveAfter(s1.ID)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestLog_RevertOfUnknownStepRejected(t *testing.T) {
	l := New()
	st, err := NewStep("", 1, ir.ActionRevert, "a", graph.ChangeSet{})
	require.NoError(t, err)
	st.Reverts = "nope"
	assert.ErrorIs(t, l.Append(context.Background(), st), ErrNotFound)
}

func TestLog_RedoStack(t *testing.T) {
	l := New()
	s1 := appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	assert.False(t, l.CanRedo())

	l.PushUndone(s1.ID)
	assert.True(t, l.CanRedo())
	got, ok := l.PopUndone()
	require.True(t, ok)
	assert.Equal(t, s1.ID, got.ID)
	_, ok = l.PopUndone()
	assert.False(t, ok)

	l.PushUndone(s1.ID)
	l.ClearRedo()
	assert.False(t, l.CanRedo())
}

func TestLog_Resolve(t *testing.T) {
	l := New()
	s1 := appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	appendStep(t, l, 2, ir.ActionFill, "b", fillChange("b", 2), "")

	got, err := l.Resolve(s1.ID[:10])
	require.NoError(t, err)
	assert.Equal(t, s1.ID, got.ID)

	_, err = l.Resolve("zzzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Resolve("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLog_Truncate(t *testing.T) {
	l := New()
	s1 := appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	appendStep(t, l, 2, ir.ActionFill, "b", fillChange("b", 2), "")
	l.PushUndone(s1.ID)

	branch, err := l.Truncate(s1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, branch.Len())
	assert.Equal(t, s1.ID, branch.Head())
	assert.False(t, branch.CanRedo())
	assert.Equal(t, 2, l.Len())
}

type failingJournal struct{ calls int }

func (j *failingJournal) AppendStep(context.Context, string, Step) error {
	j.calls++
	return errors.New("disk full")
}

type recordingJournal struct {
	session string
	steps   []Step
}

func (j *recordingJournal) AppendStep(_ context.Context, sessionID string, st Step) error {
	j.session = sessionID
	j.steps = append(j.steps, st)
	return nil
}

func TestLog_Journal(t *testing.T) {
	rec := &recordingJournal{}
	l := New(WithJournal("sess-1", rec))
	s1 := appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	assert.Equal(t, "sess-1", rec.session)
	require.Len(t, rec.steps, 1)
	assert.Equal(t, s1.ID, rec.steps[0].ID)

	fj := &failingJournal{}
	l2 := New(WithJournal("sess-2", fj))
	st, err := NewStep("", 1, ir.ActionFill, "a", fillChange("a", 1))
	require.NoError(t, err)
	assert.Error(t, l2.Append(context.Background(), st))
	assert.Equal(t, 0, l2.Len(), "step not visible when journal fails")
}

func TestLoad_RejectsBrokenChain(t *testing.T) {
	l := New()
	appendStep(t, l, 1, ir.ActionFill, "a", fillChange("a", 1), "")
	appendStep(t, l, 2, ir.ActionFill, "b", fillChange("b", 2), "")
	steps := l.Steps()
	steps[1].Parent = "bogus"

	_, err := Load(steps)
	assert.ErrorIs(t, err, ErrBadParent)

	good, err := Load(l.Steps())
	require.NoError(t, err)
	assert.Equal(t, l.Head(), good.Head())
}
