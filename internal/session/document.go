package session

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

var (
	// ErrVersion is returned for documents written by an incompatible
	// schema version.
	ErrVersion = errors.New("unsupported document version")

	// ErrMalformed is returned for documents that decode but do not
	// describe a consistent session.
	ErrMalformed = errors.New("malformed session document")
)

// Document is the serialized form of a session.
type Document struct {
	Version           string        `json:"version"`
	SessionID         string        `json:"session_id"`
	Holes             []graph.Hole  `json:"holes"`
	Edges             []graph.Edge  `json:"edges"`
	RevisionLog       []revlog.Step `json:"revision_log"`
	CurrentRevisionID string        `json:"current_revision_id"`
	// Redo is the undo/redo cursor's redo stack, most recent last.
	Redo []string `json:"redo,omitempty"`
}

// Document captures the session while no mutation is in flight.
func (s *Session) Document() (Document, error) {
	var doc Document
	err := s.engine.Quiesced(func(view graph.View) error {
		doc = Document{
			Version:           ir.DocumentVersion,
			SessionID:         s.id,
			Holes:             view.Holes(),
			Edges:             view.Edges(),
			RevisionLog:       s.log.Steps(),
			CurrentRevisionID: s.log.Head(),
			Redo:              s.log.Undone(),
		}
		return nil
	})
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	if doc.RevisionLog == nil {
		doc.RevisionLog = []revlog.Step{}
	}
	return doc, err
}

// Serialize encodes the session as canonical JSON. Two sessions with the
// same holes, edges and history serialize to identical bytes.
func (s *Session) Serialize() ([]byte, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, fmt.Errorf("serialize session %s: %w", s.id, err)
	}
	return doc.Canonical()
}

// Canonical encodes the document as canonical JSON.
func (d Document) Canonical() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	v, err := ir.UnmarshalIRValue(raw)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return ir.MarshalCanonical(v)
}

// Deserialize restores a session from Serialize's output. opts configure
// the restored session as they would for New; the session ID always comes
// from the document.
func Deserialize(data []byte, opts ...Option) (*Session, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Restore(doc, opts...)
}

// Restore rebuilds a session from a decoded document.
func Restore(doc Document, opts ...Option) (*Session, error) {
	if doc.Version != ir.DocumentVersion {
		return nil, fmt.Errorf("%w: %q (want %q)", ErrVersion, doc.Version, ir.DocumentVersion)
	}
	if doc.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrMalformed)
	}
	o := buildOptions(opts)

	holes := slices.Clone(doc.Holes)
	slices.SortFunc(holes, func(a, b graph.Hole) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	g := graph.NewStore()
	_, err := g.Update(func(tx *graph.Tx) error {
		for _, h := range holes {
			if err := tx.Insert(h); err != nil {
				return err
			}
		}
		for _, e := range doc.Edges {
			if err := tx.Link(e.From, e.To, e.Kind); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	log, err := revlog.Load(doc.RevisionLog, o.logOptions(doc.SessionID)...)
	if err != nil {
		return nil, fmt.Errorf("%w: revision log: %v", ErrMalformed, err)
	}
	if log.Head() != doc.CurrentRevisionID {
		return nil, fmt.Errorf("%w: current_revision_id %q is not the log head %q",
			ErrMalformed, doc.CurrentRevisionID, log.Head())
	}
	for _, id := range doc.Redo {
		if _, err := log.Get(id); err != nil {
			return nil, fmt.Errorf("%w: redo entry: %v", ErrMalformed, err)
		}
		log.PushUndone(id)
	}

	o.logger.Debug("session restored",
		"session", doc.SessionID,
		"holes", len(holes),
		"steps", log.Len(),
	)
	return build(doc.SessionID, g, log, engine.NewClockAt(maxSeq(doc.RevisionLog)), o), nil
}
