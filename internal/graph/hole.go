package graph

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// Ref is a hole's index in the store's arena. Refs are never reused, so a
// Ref to a removed hole resolves to nothing rather than to another hole.
type Ref int32

// NoRef is the zero-value sentinel for "no hole".
const NoRef Ref = -1

// Hole is one placeholder in the IR together with everything the engine
// knows about it. Holes are values: the store hands out copies and callers
// must not mutate the slices they share with it.
type Hole struct {
	ID          string
	Ref         Ref
	Kind        ir.HoleKind
	Type        ir.TypeExpr
	Constraints constraint.Set
	Status      ir.HoleStatus
	// Value is set only when Status is Filled.
	Value ir.IRValue
	// Core is the explained unsat core, set only when Status is Conflicted.
	Core []string
	// Unverified is set when the solver could not decide the hole's
	// constraints within budget.
	Unverified  bool
	Provenance  ir.Provenance
	Suggestions []ir.Suggestion
	// Seq is the creation order, used to break ties deterministically.
	Seq int64
}

// Equal compares every field except the arena Ref.
func (h Hole) Equal(o Hole) bool {
	if h.ID != o.ID || h.Kind != o.Kind || h.Type != o.Type || h.Status != o.Status ||
		h.Unverified != o.Unverified || h.Seq != o.Seq || h.Provenance != o.Provenance {
		return false
	}
	if (h.Value == nil) != (o.Value == nil) || (h.Value != nil && !ir.Equal(h.Value, o.Value)) {
		return false
	}
	if !slices.Equal(h.Core, o.Core) || !h.Constraints.Equal(o.Constraints) {
		return false
	}
	return slices.EqualFunc(h.Suggestions, o.Suggestions, func(a, b ir.Suggestion) bool {
		return a.Rationale == b.Rationale && a.Confidence == b.Confidence && ir.Equal(a.Value, b.Value)
	})
}

// Filled reports whether the hole holds a value.
func (h Hole) Filled() bool { return h.Status == ir.StatusFilled }

// Open reports whether the hole accepts a fill.
func (h Hole) Open() bool { return h.Status == ir.StatusOpen }

type holeJSON struct {
	ID          string          `json:"id"`
	Kind        ir.HoleKind     `json:"kind"`
	Type        ir.TypeExpr     `json:"type,omitempty"`
	Constraints constraint.Set  `json:"constraints"`
	Status      ir.HoleStatus   `json:"status"`
	Value       json.RawMessage `json:"value,omitempty"`
	Core        []string        `json:"core,omitempty"`
	Unverified  bool            `json:"unverified,omitempty"`
	Provenance  ir.Provenance   `json:"provenance"`
	Suggestions []ir.Suggestion `json:"suggestions,omitempty"`
	Seq         int64           `json:"seq"`
}

func (h Hole) MarshalJSON() ([]byte, error) {
	doc := holeJSON{
		ID:          h.ID,
		Kind:        h.Kind,
		Type:        h.Type,
		Constraints: h.Constraints,
		Status:      h.Status,
		Core:        h.Core,
		Unverified:  h.Unverified,
		Provenance:  h.Provenance,
		Suggestions: h.Suggestions,
		Seq:         h.Seq,
	}
	if h.Value != nil {
		raw, err := ir.MarshalIRValue(h.Value)
		if err != nil {
			return nil, fmt.Errorf("hole %s value: %w", h.ID, err)
		}
		doc.Value = raw
	}
	return json.Marshal(doc)
}

func (h *Hole) UnmarshalJSON(data []byte) error {
	var doc holeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out := Hole{
		ID:          doc.ID,
		Ref:         NoRef,
		Kind:        doc.Kind,
		Type:        doc.Type,
		Constraints: doc.Constraints,
		Status:      doc.Status,
		Core:        doc.Core,
		Unverified:  doc.Unverified,
		Provenance:  doc.Provenance,
		Suggestions: doc.Suggestions,
		Seq:         doc.Seq,
	}
	if len(doc.Value) > 0 {
		v, err := ir.UnmarshalIRValue(doc.Value)
		if err != nil {
			return fmt.Errorf("hole %s value: %w", doc.ID, err)
		}
		out.Value = v
	}
	*h = out
	return nil
}

// Edge is a directed dependency: To depends on From.
type Edge struct {
	From string      `json:"from"`
	To   string      `json:"to"`
	Kind ir.EdgeKind `json:"kind"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.From, e.Kind, e.To)
}

// HoleSpec describes a hole to create.
type HoleSpec struct {
	// ID is generated as h<seq> when empty.
	ID          string
	Kind        ir.HoleKind
	Type        ir.TypeExpr
	Constraints constraint.Set
	Provenance  ir.Provenance
}

// ChildSpec describes one hole produced by Split.
type ChildSpec struct {
	ID string
	// Kind and Type default to the parent's.
	Kind ir.HoleKind
	Type ir.TypeExpr
	// Constraints are indices into the parent's constraint set. Across all
	// children every index must appear exactly once.
	Constraints   []int
	Justification string
}

// EdgeMapping assigns each edge of a split parent to the children that
// take it over.
type EdgeMapping map[Edge][]string

// MergeSpec describes the hole produced by Merge.
type MergeSpec struct {
	// ID is generated when empty.
	ID string
	// Kind and Type default to the first source's.
	Kind          ir.HoleKind
	Type          ir.TypeExpr
	Justification string
}
