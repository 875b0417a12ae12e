// Package store provides SQLite-backed durable storage for hollow
// sessions.
//
// Two tables hold a session:
//   - sessions: the latest canonical snapshot of the session document
//   - steps: the append-only revision journal
//
// Store implements revlog.Journal, so a session opened with
// session.WithJournal(store) writes every step as it is appended. Save
// writes a snapshot; Load restores the snapshot and replays journaled
// steps recorded after it, which recovers a session whose process died
// between snapshots.
//
// # Ordering
//
// Journal reads are ordered by seq ASC, id ASC COLLATE BINARY. Seqs come
// from the engine's logical clock, never from wall time, so the order is
// the order the steps were appended.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshot hashes are computed with ir.SnapshotHash over the canonical
// document bytes.
package store
