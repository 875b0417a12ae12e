package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

func hole(id string, cs ...string) graph.HoleSpec {
	return graph.HoleSpec{
		ID:          id,
		Kind:        ir.KindTerm,
		Type:        "Int",
		Constraints: constraint.MustParseSet(cs...),
	}
}

func codes(errs ValidationErrors) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	decl := &Declaration{
		Holes: []graph.HoleSpec{hole("a", "self > 0"), hole("b", "b > a")},
		Edges: []graph.Edge{blocking("a", "b")},
	}
	assert.Empty(t, Validate(decl), "valid declaration should have no errors")
}

func TestValidate_Holes(t *testing.T) {
	tests := []struct {
		name string
		spec graph.HoleSpec
		code string
	}{
		{"invalid id", graph.HoleSpec{ID: "not an id", Kind: ir.KindTerm}, ErrInvalidHoleID},
		{"reserved id", graph.HoleSpec{ID: constraint.SelfName, Kind: ir.KindTerm}, ErrInvalidHoleID},
		{"invalid kind", graph.HoleSpec{ID: "k", Kind: ir.HoleKind(42)}, ErrInvalidKind},
		{"unknown reference", hole("r", "r > missing"), ErrUnknownReference},
		{"unknown type hole", graph.HoleSpec{ID: "t", Kind: ir.KindTerm, Type: "?T"}, ErrUnknownTypeHole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Declaration{Holes: []graph.HoleSpec{tt.spec}})
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidate_DuplicateHole(t *testing.T) {
	errs := Validate(&Declaration{Holes: []graph.HoleSpec{hole("a"), hole("a")}})
	assert.Equal(t, []string{ErrDuplicateHole}, codes(errs))
}

func TestValidate_Edges(t *testing.T) {
	tests := []struct {
		name string
		edge graph.Edge
		code string
	}{
		{"unknown endpoint", blocking("a", "ghost"), ErrUnknownEndpoint},
		{"self edge", informing("a", "a"), ErrSelfEdge},
		{"invalid kind", graph.Edge{From: "a", To: "b", Kind: ir.EdgeKind(9)}, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&Declaration{
				Holes: []graph.HoleSpec{hole("a"), hole("b")},
				Edges: []graph.Edge{tt.edge},
			})
			assert.Equal(t, []string{tt.code}, codes(errs))
		})
	}
}

func TestValidate_Cycle(t *testing.T) {
	a := hole("a")
	a.Provenance.Span = ir.Span{File: "x.cue", StartLine: 3, EndLine: 5}
	errs := Validate(&Declaration{
		Holes: []graph.HoleSpec{a, hole("b")},
		Edges: []graph.Edge{blocking("a", "b"), blocking("b", "a")},
	})

	require.Len(t, errs, 1)
	assert.Equal(t, ErrDependencyCycle, errs[0].Code)
	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, "[E108] line 3: edges: dependency cycle: a → b → a", errs[0].Error())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	errs := Validate(&Declaration{
		Holes: []graph.HoleSpec{hole("a", "a > b"), hole("a")},
		Edges: []graph.Edge{blocking("a", "c")},
	})
	assert.ElementsMatch(t, []string{ErrDuplicateHole, ErrUnknownReference, ErrUnknownEndpoint}, codes(errs))
	assert.Contains(t, errs.Error(), "\n")
}

func TestValidate_Existing(t *testing.T) {
	decl := &Declaration{
		Holes: []graph.HoleSpec{hole("e", "e > a")},
		Edges: []graph.Edge{blocking("e", "a")},
	}
	assert.Empty(t, Validate(decl, "a"), "earlier holes may be referenced")

	errs := Validate(&Declaration{Holes: []graph.HoleSpec{hole("a")}}, "a")
	assert.Equal(t, []string{ErrDuplicateHole}, codes(errs))
}
