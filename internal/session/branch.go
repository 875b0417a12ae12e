package session

import (
	"fmt"

	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/revlog"
)

// Branch returns a new session whose graph is this session's graph as it
// was right after revisionID. revisionID may be an unambiguous prefix.
//
// The graph is forked copy-on-write and every later step is undone in
// reverse order, Revert steps included, so the cost is proportional to
// the changes since revisionID rather than to the graph. The branch log
// holds the steps up to revisionID and an empty redo stack. Holes
// declared after revisionID stay, since declarations are not revisions.
// The source session is not modified.
func (s *Session) Branch(revisionID string) (*Session, error) {
	var (
		fork  *graph.Store
		steps []revlog.Step
		at    revlog.Step
	)
	err := s.engine.Quiesced(func(graph.View) error {
		st, err := s.log.Resolve(revisionID)
		if err != nil {
			return err
		}
		at = st
		steps = s.log.Steps()
		fork = s.graph.Fork()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("branch at %s: %w", revisionID, err)
	}

	keep := len(steps)
	for i, st := range steps {
		if st.ID == at.ID {
			keep = i + 1
			break
		}
	}
	later := steps[keep:]
	_, err = fork.Update(func(tx *graph.Tx) error {
		for i := len(later) - 1; i >= 0; i-- {
			if err := tx.Apply(later[i].ChangeSet().Invert()); err != nil {
				return fmt.Errorf("rewind %s: %w", later[i].Short(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("branch at %s: %w", at.Short(), err)
	}

	id := s.opts.ids.Generate()
	log, err := revlog.Load(steps[:keep], s.opts.logOptions(id)...)
	if err != nil {
		return nil, fmt.Errorf("branch at %s: %w", at.Short(), err)
	}
	s.opts.logger.Info("session branched",
		"session", s.id,
		"branch", id,
		"revision", at.Short(),
		"rewound", len(later),
	)
	branch := build(id, fork, log, engine.NewClockAt(maxSeq(steps[:keep])), s.opts)
	branch.origin, branch.originStep = s.id, at.ID
	return branch, nil
}

func maxSeq(steps []revlog.Step) int64 {
	var m int64
	for _, st := range steps {
		m = max(m, st.Seq)
	}
	return m
}
