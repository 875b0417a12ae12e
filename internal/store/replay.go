package store

import (
	"context"
	"fmt"

	"github.com/roach88/hollow/internal/session"
)

// Load restores a session from its snapshot and replays the journaled
// steps appended after the snapshot was taken.
//
// The restored session journals into this store, so it can keep running
// where the previous process stopped. opts configure it as they would for
// session.New.
//
// Replay uses the same code path as a live Redo: each step must extend
// the log head and find the graph in its recorded Before state. A journal
// that does not line up with the snapshot is an error, never a silent
// partial restore.
func (s *Store) Load(ctx context.Context, sessionID string, opts ...session.Option) (*session.Session, error) {
	snap, err := s.readSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess, err := session.Deserialize(snap.data, append(opts, session.WithJournal(s))...)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	tail, err := s.stepsAfter(ctx, sessionID, snap.seq)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if err := sess.Replay(ctx, tail); err != nil {
		sess.Close()
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return sess, nil
}
