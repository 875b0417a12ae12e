package engine

import (
	"context"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

// Revert restores every hole and edge touched by a revision to the state
// recorded before it. The revision may be named by an ID prefix.
//
// A revision can be reverted only while the graph still holds exactly what
// it produced; a later change to any touched hole or edge makes the revert
// a StateError. Revert steps themselves cannot be reverted (use Redo), and
// nothing is reverted twice.
func (e *Engine) Revert(ctx context.Context, revisionID string) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError("")
	}
	defer e.busy.Unlock()

	st, err := e.log.Resolve(revisionID)
	if err != nil {
		return nil, revisionError(revisionID, err)
	}
	res, err := e.revert(ctx, st)
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// Undo reverts the most recent effective revision and makes it available
// to Redo.
func (e *Engine) Undo(ctx context.Context) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError("")
	}
	defer e.busy.Unlock()

	st, ok := e.log.LastEffective()
	if !ok {
		return nil, graph.NewStateError("", "nothing to undo")
	}
	res, err := e.revert(ctx, st)
	if err != nil {
		return nil, err
	}
	e.log.PushUndone(st.ID)
	return res, nil
}

// Redo re-applies the most recently undone revision. Any new mutation
// after an undo clears the redo history.
func (e *Engine) Redo(ctx context.Context) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError("")
	}
	defer e.busy.Unlock()

	st, ok := e.log.PopUndone()
	if !ok {
		return nil, graph.NewStateError("", "nothing to redo")
	}
	view := e.graph.View()
	forward := st.ChangeSet()
	if err := matches(view, forward.Invert()); err != nil {
		e.log.PushUndone(st.ID)
		return nil, err
	}
	forward = e.carrySuggestions(view, forward)

	res, err := e.run(ctx, st.Action, st.HoleID, func(p *pass) error {
		p.decorate = func(s *revlog.Step) { s.Redoes = st.ID }
		return p.tx.Apply(forward)
	})
	if err != nil {
		e.log.PushUndone(st.ID)
		return nil, err
	}
	return res, nil
}

func (e *Engine) revert(ctx context.Context, st revlog.Step) (*PassResult, error) {
	if st.Action == ir.ActionRevert {
		return nil, graph.NewStateError(st.HoleID, "revision %s is a revert; use redo", st.Short())
	}
	if by, ok := e.log.RevertedBy(st.ID); ok {
		return nil, graph.NewStateError(st.HoleID, "revision %s already reverted by %s", st.Short(), by[:12])
	}
	view := e.graph.View()
	if err := matches(view, st.ChangeSet()); err != nil {
		return nil, err
	}
	inverse := e.carrySuggestions(view, st.ChangeSet().Invert())

	res, err := e.run(ctx, ir.ActionRevert, st.HoleID, func(p *pass) error {
		p.decorate = func(s *revlog.Step) { s.Reverts = st.ID }
		for _, d := range inverse.Holes {
			if d.After != nil && d.After.Open() {
				p.suggest(d.ID)
			}
		}
		return p.tx.Apply(inverse)
	})
	if err != nil {
		return nil, err
	}

	e.hookMu.Lock()
	hooks := append([]RevertHook(nil), e.hooks...)
	e.hookMu.Unlock()
	for _, h := range hooks {
		h(st, e.policy)
	}
	return res, nil
}

// matches reports a StateError unless view holds exactly the After side of
// cs. Suggestions are ignored; they change outside the engine.
func matches(view graph.View, cs graph.ChangeSet) error {
	for _, d := range cs.Holes {
		cur, err := view.Hole(d.ID)
		switch {
		case d.After == nil && err == nil:
			return graph.NewStateError(d.ID, "hole %s has been recreated since the revision", d.ID)
		case d.After == nil:
			continue
		case err != nil:
			return graph.NewStateError(d.ID, "hole %s no longer exists", d.ID)
		case !sameState(cur, *d.After):
			return graph.NewStateError(d.ID, "hole %s has changed since the revision", d.ID)
		}
	}
	for _, d := range cs.Edges {
		if view.HasEdge(d.Edge) != d.Added {
			return graph.NewStateError(d.Edge.To, "edge %s has changed since the revision", d.Edge)
		}
	}
	return nil
}

func sameState(a, b graph.Hole) bool {
	a.Suggestions, b.Suggestions = nil, nil
	return a.Equal(b)
}

// carrySuggestions applies the revert policy: with KeepSuggestions the
// holes cs restores keep the suggestions they have now.
func (e *Engine) carrySuggestions(view graph.View, cs graph.ChangeSet) graph.ChangeSet {
	if !e.policy.KeepSuggestions {
		return cs
	}
	holes := make([]graph.HoleDiff, len(cs.Holes))
	for i, d := range cs.Holes {
		holes[i] = d
		if d.After == nil {
			continue
		}
		cur, err := view.Hole(d.ID)
		if err != nil {
			continue
		}
		after := *d.After
		after.Suggestions = cur.Suggestions
		holes[i].After = &after
	}
	return graph.ChangeSet{Holes: holes, Edges: cs.Edges}
}
