package graph

import (
	"slices"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// Split replaces an Open hole with children. Each child receives the
// parent's predicates at the indices it lists, with the parent's
// identifier renamed to the child's. Every edge of the parent must be
// assigned to at least one child by mapping; dependents' predicates follow
// their edge to the first assigned child.
func (tx *Tx) Split(id string, children []ChildSpec, mapping EdgeMapping) ([]string, error) {
	parent, err := tx.Hole(id)
	if err != nil {
		return nil, err
	}
	if !parent.Open() {
		return nil, NewStateError(id, "cannot split %s hole", parent.Status)
	}
	if len(children) == 0 {
		return nil, NewValidationError(id, "", "split needs at least one child")
	}

	childIDs := make([]string, len(children))
	for i, c := range children {
		if c.ID == "" || slices.Contains(childIDs[:i], c.ID) {
			return nil, NewValidationError(id, "", "child %d needs a unique id", i)
		}
		childIDs[i] = c.ID
	}
	if err := checkPartition(id, parent.Constraints.Len(), children); err != nil {
		return nil, err
	}
	parentEdges := slices.Concat(tx.Out(id), tx.In(id))
	for _, e := range parentEdges {
		targets := mapping[e]
		if len(targets) == 0 {
			return nil, NewValidationError(id, "", "edge %s is not mapped to any child", e)
		}
		for _, t := range targets {
			if !slices.Contains(childIDs, t) {
				return nil, NewValidationError(id, "", "edge %s mapped to unknown child %s", e, t)
			}
		}
	}
	for e := range mapping {
		if !slices.Contains(parentEdges, e) {
			return nil, NewValidationError(id, "", "mapping names %s, which is not an edge of %s", e, id)
		}
	}

	if err := tx.Remove(id); err != nil {
		return nil, err
	}
	preds := parent.Constraints.Predicates()
	for _, c := range children {
		kind := c.Kind
		if kind == 0 {
			kind = parent.Kind
		}
		typ := c.Type
		if typ == "" {
			typ = parent.Type
		}
		picked := make([]constraint.Predicate, 0, len(c.Constraints))
		for _, i := range c.Constraints {
			picked = append(picked, preds[i])
		}
		spec := HoleSpec{
			ID:          c.ID,
			Kind:        kind,
			Type:        typ,
			Constraints: constraint.NewSet(picked...).Rename(id, c.ID),
			Provenance: ir.Provenance{
				Span:          parent.Provenance.Span,
				Justification: c.Justification,
				Cause:         ir.CauseSplit,
			},
		}
		if _, err := tx.Create(spec); err != nil {
			return nil, err
		}
	}

	for _, e := range parentEdges {
		targets := mapping[e]
		for _, t := range targets {
			from, to := e.From, e.To
			if from == id {
				from = t
			} else {
				to = t
			}
			if err := tx.Link(from, to, e.Kind); err != nil {
				return nil, err
			}
		}
		if e.From == id {
			if err := tx.renameIn(e.To, id, targets[0]); err != nil {
				return nil, err
			}
		}
	}
	return childIDs, nil
}

func checkPartition(id string, n int, children []ChildSpec) error {
	seen := make([]bool, n)
	for _, c := range children {
		for _, i := range c.Constraints {
			if i < 0 || i >= n {
				return NewValidationError(id, "", "child %s: constraint index %d out of range", c.ID, i)
			}
			if seen[i] {
				return NewValidationError(id, "", "constraint %d assigned to more than one child", i)
			}
			seen[i] = true
		}
	}
	for i, ok := range seen {
		if !ok {
			return NewValidationError(id, "", "constraint %d not assigned to any child", i)
		}
	}
	return nil
}

// renameIn rewrites from to to in the constraints of hole id.
func (tx *Tx) renameIn(id, from, to string) error {
	h, err := tx.Hole(id)
	if err != nil {
		return err
	}
	if !h.Constraints.Mentions(from) {
		return nil
	}
	h.Constraints = h.Constraints.Rename(from, to)
	return tx.Put(h)
}

// Merge replaces Open holes with one hole whose constraints are the union
// of theirs, each source identifier renamed to the merged one. verify is
// called with the union before anything is written; its error aborts the
// merge. Edges are rewired to the merged hole, dropping edges between
// sources, and other holes' predicates follow the rename.
func (tx *Tx) Merge(ids []string, spec MergeSpec, verify func(constraint.Set) error) (string, error) {
	if len(ids) < 2 {
		return "", NewValidationError("", "", "merge needs at least two holes")
	}
	sources := make([]Hole, 0, len(ids))
	for _, id := range ids {
		h, err := tx.Hole(id)
		if err != nil {
			return "", err
		}
		if !h.Open() {
			return "", NewStateError(id, "cannot merge %s hole", h.Status)
		}
		if slices.ContainsFunc(sources, func(s Hole) bool { return s.ID == id }) {
			return "", NewValidationError(id, "", "hole %s listed twice", id)
		}
		sources = append(sources, h)
	}

	mergedID := spec.ID
	if mergedID == "" {
		mergedID = tx.nextID()
	}
	if tx.Has(mergedID) {
		return "", NewValidationError(mergedID, "", "hole %s already exists", mergedID)
	}

	union := constraint.Set{}
	for _, s := range sources {
		union = union.Concat(s.Constraints.Rename(s.ID, mergedID))
	}
	if verify != nil {
		if err := verify(union); err != nil {
			return "", err
		}
	}

	isSource := func(id string) bool { return slices.Contains(ids, id) }
	var rewired []Edge
	for _, s := range sources {
		for _, e := range slices.Concat(tx.Out(s.ID), tx.In(s.ID)) {
			if isSource(e.From) && isSource(e.To) {
				continue
			}
			if isSource(e.From) {
				e.From = mergedID
			} else {
				e.To = mergedID
			}
			if !slices.Contains(rewired, e) {
				rewired = append(rewired, e)
			}
		}
	}

	kind, typ := spec.Kind, spec.Type
	if kind == 0 {
		kind = sources[0].Kind
	}
	if typ == "" {
		typ = sources[0].Type
	}
	for _, s := range sources {
		if err := tx.Remove(s.ID); err != nil {
			return "", err
		}
	}
	if _, err := tx.Create(HoleSpec{
		ID:          mergedID,
		Kind:        kind,
		Type:        typ,
		Constraints: union,
		Provenance: ir.Provenance{
			Span:          sources[0].Provenance.Span,
			Justification: spec.Justification,
			Cause:         ir.CauseMerge,
		},
	}); err != nil {
		return "", err
	}
	for _, e := range rewired {
		if err := tx.Link(e.From, e.To, e.Kind); err != nil {
			return "", err
		}
	}
	for _, h := range tx.Holes() {
		if h.ID == mergedID {
			continue
		}
		for _, s := range sources {
			if err := tx.renameIn(h.ID, s.ID, mergedID); err != nil {
				return "", err
			}
		}
	}
	return mergedID, nil
}
