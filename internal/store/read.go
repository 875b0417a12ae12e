package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

// Info summarizes a stored session.
type Info struct {
	ID             string
	Version        string
	Head           string
	Seq            int64
	Steps          int
	OriginSession  string
	OriginRevision string
	EngineVersion  string
}

// Steps returns a session's journal.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing was journaled.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]revlog.Step, error) {
	return s.stepsAfter(ctx, sessionID, 0)
}

// stepsAfter returns journaled steps with seq greater than seq.
func (s *Store) stepsAfter(ctx context.Context, sessionID string, seq int64) ([]revlog.Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM steps
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID, seq)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []revlog.Step{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st, err := unmarshalStep(payload)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// snapshot is one sessions row.
type snapshot struct {
	data []byte
	seq  int64
}

// readSnapshot returns a session's snapshot after checking its hash.
func (s *Store) readSnapshot(ctx context.Context, sessionID string) (snapshot, error) {
	var (
		data, hash string
		seq        int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot, snapshot_hash, seq
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&data, &hash, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("read snapshot %s: %w", sessionID, err)
	}
	if got := ir.SnapshotHash([]byte(data)); got != hash {
		return snapshot{}, fmt.Errorf("%w: session %s", ErrCorrupt, sessionID)
	}
	return snapshot{data: []byte(data), seq: seq}, nil
}

// Snapshot returns the stored canonical document of a session.
func (s *Store) Snapshot(ctx context.Context, sessionID string) ([]byte, error) {
	snap, err := s.readSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snap.data, nil
}

// List returns every stored session ordered by ID.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.version, s.head, s.seq, s.origin_session, s.origin_revision, s.engine_version,
			(SELECT COUNT(*) FROM steps st WHERE st.session_id = s.id)
		FROM sessions s
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []Info{}
	for rows.Next() {
		var info Info
		if err := rows.Scan(
			&info.ID,
			&info.Version,
			&info.Head,
			&info.Seq,
			&info.OriginSession,
			&info.OriginRevision,
			&info.EngineVersion,
			&info.Steps,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
