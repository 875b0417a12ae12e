package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidHoleID    = "E101" // hole id is not an identifier
	ErrDuplicateHole    = "E102" // hole declared twice
	ErrInvalidKind      = "E103" // hole or edge kind outside the closed set
	ErrUnknownEndpoint  = "E104" // edge endpoint not declared
	ErrSelfEdge         = "E105" // edge from a hole to itself
	ErrUnknownReference = "E106" // constraint names an undeclared hole
	ErrUnknownTypeHole  = "E107" // ?T type names an undeclared hole
	ErrDependencyCycle  = "E108" // propagating edges form a cycle
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one declaration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Validate checks a declaration's cross references. Holes named in
// existing were declared before and may be referenced but not redeclared.
// Returns all errors found (does not fail-fast).
func Validate(decl *Declaration, existing ...string) ValidationErrors {
	var errs ValidationErrors

	declared := make(map[string]int, len(decl.Holes)+len(existing))
	for _, id := range existing {
		declared[id] = 0
	}
	for _, h := range decl.Holes {
		line := h.Provenance.Span.StartLine
		field := "holes." + h.ID
		if !constraint.IsIdentifier(h.ID) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is not a valid hole id", h.ID),
				Code:    ErrInvalidHoleID,
				Line:    line,
			})
		}
		if _, dup := declared[h.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "hole declared more than once",
				Code:    ErrDuplicateHole,
				Line:    line,
			})
		}
		if !h.Kind.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("unknown hole kind %d", h.Kind),
				Code:    ErrInvalidKind,
				Line:    line,
			})
		}
		declared[h.ID] = line
	}

	for _, h := range decl.Holes {
		line := h.Provenance.Span.StartLine
		for _, name := range h.Constraints.Vars() {
			if name == constraint.SelfName {
				continue
			}
			if _, ok := declared[name]; !ok {
				errs = append(errs, ValidationError{
					Field:   "holes." + h.ID + ".constraints",
					Message: fmt.Sprintf("references undeclared hole %s", name),
					Code:    ErrUnknownReference,
					Line:    line,
				})
			}
		}
		if ref, ok := h.Type.HoleRef(); ok {
			if _, known := declared[ref]; !known {
				errs = append(errs, ValidationError{
					Field:   "holes." + h.ID + ".type",
					Message: fmt.Sprintf("type hole ?%s is not declared", ref),
					Code:    ErrUnknownTypeHole,
					Line:    line,
				})
			}
		}
	}

	errs = append(errs, validateEdges(decl.Edges, declared)...)

	for _, w := range AnalyzeCycles(decl.Edges) {
		if w.Level != LevelError {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "edges",
			Message: w.Message,
			Code:    ErrDependencyCycle,
			Line:    declared[w.Path[0]],
		})
	}
	return errs
}

func validateEdges(edges []graph.Edge, declared map[string]int) ValidationErrors {
	var errs ValidationErrors
	for _, e := range edges {
		field := "edges." + e.String()
		if !e.Kind.Valid() {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown edge kind %d", e.Kind),
				Code:    ErrInvalidKind,
			})
		}
		for _, end := range []string{e.From, e.To} {
			if _, ok := declared[end]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("endpoint %s is not declared", end),
					Code:    ErrUnknownEndpoint,
				})
			}
		}
		if e.From == e.To {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "edge from a hole to itself",
				Code:    ErrSelfEdge,
				Line:    declared[e.From],
			})
		}
	}
	return errs
}
