package store

import (
	"context"
	"fmt"

	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/session"
)

// AppendStep journals one revision step. It implements revlog.Journal.
// Uses ON CONFLICT DO NOTHING for idempotency - a step written by the
// journal and again by Save is stored once.
func (s *Store) AppendStep(ctx context.Context, sessionID string, st revlog.Step) error {
	payload, err := marshalStep(st)
	if err != nil {
		return fmt.Errorf("append step: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps
		(session_id, id, parent, seq, action, hole_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, id) DO NOTHING
	`,
		sessionID,
		st.ID,
		st.Parent,
		st.Seq,
		st.Action.String(),
		st.HoleID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("append step: %w", err)
	}
	return nil
}

// Save writes a snapshot of sess, replacing the previous one, and
// journals any of its steps the journal has not seen. Both happen in one
// transaction.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	doc, err := sess.Document()
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID(), err)
	}
	snapshot, err := doc.Canonical()
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID(), err)
	}
	var seq int64
	for _, st := range doc.RevisionLog {
		seq = max(seq, st.Seq)
	}
	origin, originRev, _ := sess.Origin()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save session %s: begin tx: %w", sess.ID(), err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, version, head, seq, snapshot, snapshot_hash, origin_session, origin_revision, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			head = excluded.head,
			seq = excluded.seq,
			snapshot = excluded.snapshot,
			snapshot_hash = excluded.snapshot_hash,
			engine_version = excluded.engine_version
	`,
		doc.SessionID,
		doc.Version,
		doc.CurrentRevisionID,
		seq,
		string(snapshot),
		ir.SnapshotHash(snapshot),
		origin,
		originRev,
		ir.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID(), err)
	}

	for _, st := range doc.RevisionLog {
		payload, err := marshalStep(st)
		if err != nil {
			return fmt.Errorf("save session %s: %w", sess.ID(), err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps
			(session_id, id, parent, seq, action, hole_id, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, id) DO NOTHING
		`, doc.SessionID, st.ID, st.Parent, st.Seq, st.Action.String(), st.HoleID, payload)
		if err != nil {
			return fmt.Errorf("save session %s: step %s: %w", sess.ID(), st.Short(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save session %s: commit: %w", sess.ID(), err)
	}
	return nil
}

// Delete removes a session's snapshot and journal. Deleting a session
// that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session %s: begin tx: %w", sessionID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return tx.Commit()
}
