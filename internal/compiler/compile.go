// Package compiler turns CUE hole declarations into graph.HoleSpecs and
// edges. It is the reference IR producer: anything that can build a
// Declaration can feed a session.
//
// A declaration file looks like:
//
//	holes: {
//		threshold: {
//			kind: "term"
//			type: "Int"
//			constraints: ["self > 0", "self < 100"]
//		}
//		validate: {
//			kind:        "function"
//			type:        "Fn"
//			constraints: ["validate.returns == \"bool\""]
//			depends_on:  ["threshold"]
//		}
//	}
//	edges: [{from: "a", to: "b", kind: "informing"}]
//
// depends_on, informed_by and conflicts_with are shorthands for Blocking,
// Informing and Conflicting edges into the hole.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

// Declaration is a compiled hole file: holes in declaration order and the
// edges between them.
type Declaration struct {
	Holes []graph.HoleSpec
	Edges []graph.Edge
	// Warnings are cycle findings that do not prevent loading.
	Warnings []CycleWarning
}

// CompileFile reads and compiles a CUE declaration file. existing names
// holes declared earlier that the file may refer to.
func CompileFile(path string, existing ...string) (*Declaration, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileSource(path, src, existing...)
}

// CompileSource compiles CUE source and validates the result. filename is
// used for error positions and hole provenance.
func CompileSource(filename string, src []byte, existing ...string) (*Declaration, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	decl, err := CompileValue(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(decl, existing...); len(errs) > 0 {
		return nil, errs
	}
	decl.Warnings = AnalyzeCycles(decl.Edges)
	return decl, nil
}

// CompileValue converts an evaluated CUE value into a Declaration without
// validating cross references.
func CompileValue(v cue.Value) (*Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	decl := &Declaration{}

	holesVal := v.LookupPath(cue.ParsePath("holes"))
	if !holesVal.Exists() {
		return nil, &CompileError{Field: "holes", Message: "holes is required", Pos: v.Pos()}
	}
	iter, err := holesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, edges, err := parseHole(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		decl.Holes = append(decl.Holes, spec)
		decl.Edges = append(decl.Edges, edges...)
	}

	edgesVal := v.LookupPath(cue.ParsePath("edges"))
	if edgesVal.Exists() {
		list, err := edgesVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			e, err := parseEdge(list.Value())
			if err != nil {
				return nil, err
			}
			decl.Edges = append(decl.Edges, e)
		}
	}
	return decl, nil
}

// parseHole converts one entry of holes into a spec and the edges its
// shorthand fields declare.
func parseHole(id string, v cue.Value) (graph.HoleSpec, []graph.Edge, error) {
	spec := graph.HoleSpec{
		ID: id,
		Provenance: ir.Provenance{
			Span:  spanOf(v),
			Cause: ir.CauseProducer,
		},
	}

	kindStr, err := requiredString(v, "kind", "holes."+id)
	if err != nil {
		return spec, nil, err
	}
	spec.Kind, err = ir.ParseHoleKind(titled(kindStr))
	if err != nil {
		return spec, nil, &CompileError{Field: fieldPath(id, "kind"), Message: err.Error(), Pos: v.Pos()}
	}

	if t, ok, err := optionalString(v, "type"); err != nil {
		return spec, nil, err
	} else if ok {
		spec.Type = ir.TypeExpr(t)
	}
	if j, ok, err := optionalString(v, "justification"); err != nil {
		return spec, nil, err
	} else if ok {
		spec.Provenance.Justification = j
	}

	srcs, err := stringList(v, "constraints", id)
	if err != nil {
		return spec, nil, err
	}
	for _, src := range srcs {
		p, err := constraint.ParsePredicate(src)
		if err != nil {
			return spec, nil, &CompileError{
				Field:   fieldPath(id, "constraints"),
				Message: err.Error(),
				Pos:     v.LookupPath(cue.ParsePath("constraints")).Pos(),
			}
		}
		spec.Constraints = spec.Constraints.Add(p)
	}

	var edges []graph.Edge
	shorthands := []struct {
		field string
		kind  ir.EdgeKind
	}{
		{"depends_on", ir.EdgeBlocking},
		{"informed_by", ir.EdgeInforming},
		{"conflicts_with", ir.EdgeConflicting},
	}
	for _, sh := range shorthands {
		from, err := stringList(v, sh.field, id)
		if err != nil {
			return spec, nil, err
		}
		for _, f := range from {
			edges = append(edges, graph.Edge{From: f, To: id, Kind: sh.kind})
		}
	}
	return spec, edges, nil
}

func parseEdge(v cue.Value) (graph.Edge, error) {
	from, err := requiredString(v, "from", "edges")
	if err != nil {
		return graph.Edge{}, err
	}
	to, err := requiredString(v, "to", "edges")
	if err != nil {
		return graph.Edge{}, err
	}
	kindStr, err := requiredString(v, "kind", "edges")
	if err != nil {
		return graph.Edge{}, err
	}
	kind, err := ir.ParseEdgeKind(titled(kindStr))
	if err != nil {
		return graph.Edge{}, &CompileError{Field: "edges.kind", Message: err.Error(), Pos: v.Pos()}
	}
	return graph.Edge{From: from, To: to, Kind: kind}, nil
}

var title = cases.Title(language.Und)

// titled maps "function" and "FUNCTION" to "Function".
func titled(s string) string {
	return title.String(s)
}

func fieldPath(id, field string) string {
	return "holes." + id + "." + field
}

func requiredString(v cue.Value, field, owner string) (string, error) {
	s, ok, err := optionalString(v, field)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{Field: owner + "." + field, Message: field + " is required", Pos: v.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func stringList(v cue.Value, field, owner string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{Field: fieldPath(owner, field), Message: "must be a list of strings", Pos: fv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// spanOf locates v in its source file.
func spanOf(v cue.Value) ir.Span {
	pos := v.Pos()
	if !pos.IsValid() {
		return ir.Span{}
	}
	span := ir.Span{File: pos.Filename(), StartLine: pos.Line(), EndLine: pos.Line()}
	if n := v.Source(); n != nil {
		if end := n.End(); end.IsValid() {
			span.EndLine = end.Line()
		}
	}
	return span
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
