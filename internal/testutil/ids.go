// Package testutil holds helpers shared by tests that need deterministic
// session IDs and quiet loggers.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// FixedIDs returns the same session ID every time.
//
// Golden scenarios use it so the serialized document and every event
// carry a stable session ID. Safe for concurrent use.
type FixedIDs struct {
	id string
}

// NewFixedIDs creates a generator for id. An empty id becomes
// "test-session".
func NewFixedIDs(id string) *FixedIDs {
	if id == "" {
		id = "test-session"
	}
	return &FixedIDs{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDs) Generate() string {
	return g.id
}

// SequentialIDs hands out prefix-0001, prefix-0002, and so on. Branch
// tests use it to tell sessions apart while staying deterministic.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator starting at prefix-0001.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence so a scenario can run twice with identical
// IDs.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
