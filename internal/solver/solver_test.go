package solver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/constraint"
)

type recordingChecker struct {
	seen []constraint.Set
}

func (r *recordingChecker) Check(_ context.Context, set constraint.Set, _ time.Duration) Result {
	r.seen = append(r.seen, set)
	return Result{Status: StatusSat}
}

func TestFrameContext_PushPop(t *testing.T) {
	rc := &recordingChecker{}
	c := NewFrameContext(rc)
	assert.Equal(t, 0, c.Depth())
	assert.ErrorIs(t, c.Pop(), ErrNoFrame)

	c.Assert(constraint.MustParseSet("a < b").Predicates()...)
	c.Push()
	c.Assert(constraint.MustParseSet("b == 1").Predicates()...)
	assert.Equal(t, 1, c.Depth())
	assert.Equal(t, []string{"a < b", "b == 1"}, c.Assertions().Strings())

	c.Check(context.Background(), 0)
	require.NoError(t, c.Pop())
	c.Check(context.Background(), 0)

	require.Len(t, rc.seen, 2)
	assert.Equal(t, 2, rc.seen[0].Len())
	assert.Equal(t, []string{"a < b"}, rc.seen[1].Strings())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "sat", StatusSat.String())
	assert.Equal(t, "unsat", StatusUnsat.String())
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "invalid", Status(0).String())
}
