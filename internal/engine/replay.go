package engine

import (
	"context"
	"fmt"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/revlog"
)

// Replay re-applies a step that was recorded by an engine with the same
// history, as read back from a journal after a crash.
//
// Replay takes the same path as Redo: the graph must hold the step's
// Before side, the change set is applied as recorded and the step is
// appended unchanged, so its ID and seq survive. No propagation runs and
// no events are published; the recorded change set already holds every
// propagated effect. The redo stack is cleared since the journal does not
// record the undo cursor.
func (e *Engine) Replay(ctx context.Context, st revlog.Step) error {
	if !e.busy.TryLock() {
		return busyError(st.HoleID)
	}
	defer e.busy.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("replay %s: %w", st.Short(), err)
	}
	if head := e.log.Head(); st.Parent != head {
		return graph.NewStateError(st.HoleID, "revision %s does not extend head %q", st.Short(), head)
	}
	forward := st.ChangeSet()
	if err := matches(e.graph.View(), forward.Invert()); err != nil {
		return err
	}
	_, err := e.graph.Update(func(tx *graph.Tx) error {
		if err := tx.Apply(forward); err != nil {
			return err
		}
		return e.log.Append(ctx, st)
	})
	if err != nil {
		return fmt.Errorf("replay %s: %w", st.Short(), err)
	}
	e.clock.Advance(st.Seq)
	e.log.ClearRedo()
	e.logger.Debug("revision replayed", "revision", st.Short(), "action", st.Action, "hole", st.HoleID)
	return nil
}
