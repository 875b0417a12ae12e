package revlog

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

// Step is one entry of the revision log.
//
// Before and After are the primary hole's records; Propagated holds the
// diffs of every other hole the action touched, in processing order. A
// nil record means the hole did not exist on that side of the step.
type Step struct {
	ID         string           `json:"id"`
	Parent     string           `json:"parent,omitempty"`
	Seq        int64            `json:"seq"`
	Action     ir.Action        `json:"action"`
	HoleID     string           `json:"hole_id"`
	Before     *graph.Hole      `json:"before"`
	After      *graph.Hole      `json:"after"`
	Propagated []graph.HoleDiff `json:"propagated"`
	Edges      []graph.EdgeDiff `json:"edges"`

	// Reverts is the ID of the step a Revert step undid.
	Reverts string `json:"reverts,omitempty"`

	// Redoes is the ID of the step whose changes this step re-applied.
	Redoes string `json:"redoes,omitempty"`
}

// NewStep builds a step from a transaction's change set and computes its
// content-addressed ID. parent must be the ID of the log's current head.
func NewStep(parent string, seq int64, action ir.Action, holeID string, cs graph.ChangeSet) (Step, error) {
	st := Step{
		Parent:     parent,
		Seq:        seq,
		Action:     action,
		HoleID:     holeID,
		Propagated: []graph.HoleDiff{},
		Edges:      cs.Edges,
	}
	if st.Edges == nil {
		st.Edges = []graph.EdgeDiff{}
	}
	for _, d := range cs.Holes {
		if d.ID == holeID && st.Before == nil && st.After == nil {
			st.Before, st.After = d.Before, d.After
			continue
		}
		st.Propagated = append(st.Propagated, d)
	}
	payload, err := json.Marshal(st.ChangeSet())
	if err != nil {
		return Step{}, fmt.Errorf("encode step payload: %w", err)
	}
	st.ID = ir.RevisionID(parent, seq, action, holeID, payload)
	return st, nil
}

// ChangeSet reassembles the step's forward change set.
func (s Step) ChangeSet() graph.ChangeSet {
	cs := graph.ChangeSet{Holes: make([]graph.HoleDiff, 0, len(s.Propagated)+1), Edges: s.Edges}
	if s.Before != nil || s.After != nil {
		cs.Holes = append(cs.Holes, graph.HoleDiff{ID: s.HoleID, Before: s.Before, After: s.After})
	}
	cs.Holes = append(cs.Holes, s.Propagated...)
	return cs
}

// Touched returns every hole ID the step changed.
func (s Step) Touched() []string { return s.ChangeSet().Touched() }

// Short returns an abbreviated ID for display.
func (s Step) Short() string {
	if len(s.ID) > 12 {
		return s.ID[:12]
	}
	return s.ID
}
