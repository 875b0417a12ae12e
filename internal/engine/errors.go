package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
)

// The engine reports failures with the graph package's error taxonomy so
// callers test one set of helpers (graph.IsConflictError and friends)
// whether the failure came from the store or from propagation.

func busyError(holeID string) *graph.Error {
	return graph.NewStateError(holeID, "another mutation is in flight for this session")
}

// counterexample renders a rejected fill for humans: "a = 0 violates a > 0".
func counterexample(holeID string, v ir.IRValue, core constraint.Set) string {
	declared := make([]string, 0, core.Len())
	for _, p := range core.Predicates() {
		declared = append(declared, p.Declared().String())
	}
	return fmt.Sprintf("%s = %s violates %s", holeID, ir.Format(v), strings.Join(declared, " && "))
}

func validationFromCore(holeID string, v ir.IRValue, core constraint.Set) *graph.Error {
	return graph.NewValidationError(holeID, counterexample(holeID, v, core),
		"value %s violates the constraints of %s", ir.Format(v), holeID)
}

func conflictFromCore(holeID string, core constraint.Set, format string, args ...any) *graph.Error {
	return graph.NewConflictError(holeID, core.Explain(), format, args...)
}

// revisionError maps revision log lookup failures onto the taxonomy.
func revisionError(id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, revlog.ErrNotFound):
		return &graph.Error{Code: graph.CodeNotFound, Message: fmt.Sprintf("revision %s not found", id)}
	case errors.Is(err, revlog.ErrAmbiguous):
		return graph.NewValidationError("", "", "revision prefix %s is ambiguous", id)
	default:
		return fmt.Errorf("resolve revision %s: %w", id, err)
	}
}
