package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes hole engine errors.
type Code string

const (
	// CodeValidation: a fill value violates the hole's own constraints or
	// a request is malformed.
	CodeValidation Code = "VALIDATION"

	// CodeConflict: a constraint set became unsatisfiable.
	CodeConflict Code = "CONFLICT"

	// CodeCycle: an edge would close a propagation cycle. Blocking and
	// Informing edges both count; Conflicting edges never do.
	CodeCycle Code = "CYCLE"

	// CodeTimeout: the solver exceeded its budget.
	CodeTimeout Code = "TIMEOUT"

	// CodeNotFound: unknown hole or revision.
	CodeNotFound Code = "NOT_FOUND"

	// CodeState: invalid status transition or concurrent mutation.
	CodeState Code = "STATE"
)

// Error is the structured error returned by the graph store and the
// propagation engine. Errors with codes other than CodeConflict never
// leave a mutation behind.
type Error struct {
	// Code identifies the error category.
	Code Code

	// HoleID identifies the affected hole, if any.
	HoleID string

	// Message is a human-readable description.
	Message string

	// Core is the explained unsat core for CodeConflict.
	Core []string

	// Counterexample names the violated predicates for CodeValidation.
	Counterexample string

	// Path is the closing cycle for CodeCycle, first node repeated last.
	Path []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.HoleID != "" {
		fmt.Fprintf(&b, " (hole=%s)", e.HoleID)
	}
	if len(e.Core) > 0 {
		fmt.Fprintf(&b, " core={%s}", strings.Join(e.Core, ", "))
	}
	if e.Counterexample != "" {
		fmt.Fprintf(&b, " counterexample: %s", e.Counterexample)
	}
	return b.String()
}

// ErrorCode extracts the code of a wrapped *Error.
func ErrorCode(err error) (Code, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	return "", false
}

func hasCode(err error, code Code) bool {
	c, ok := ErrorCode(err)
	return ok && c == code
}

// IsValidationError returns true if err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool { return hasCode(err, CodeValidation) }

// IsConflictError returns true if err is a conflict error.
func IsConflictError(err error) bool { return hasCode(err, CodeConflict) }

// IsCycleError returns true if err is a cycle error.
func IsCycleError(err error) bool { return hasCode(err, CodeCycle) }

// IsTimeoutError returns true if err is a timeout error.
func IsTimeoutError(err error) bool { return hasCode(err, CodeTimeout) }

// IsNotFoundError returns true if err is a not-found error.
func IsNotFoundError(err error) bool { return hasCode(err, CodeNotFound) }

// IsStateError returns true if err is a state error.
func IsStateError(err error) bool { return hasCode(err, CodeState) }

// NewValidationError creates an Error for a rejected value or request.
func NewValidationError(holeID, counterexample, format string, args ...any) *Error {
	return &Error{
		Code:           CodeValidation,
		HoleID:         holeID,
		Message:        fmt.Sprintf(format, args...),
		Counterexample: counterexample,
	}
}

// NewConflictError creates an Error carrying an explained unsat core.
func NewConflictError(holeID string, core []string, format string, args ...any) *Error {
	return &Error{
		Code:    CodeConflict,
		HoleID:  holeID,
		Message: fmt.Sprintf(format, args...),
		Core:    core,
	}
}

// NewCycleError creates an Error for an edge that would close a cycle.
func NewCycleError(from, to string, path []string) *Error {
	return &Error{
		Code:    CodeCycle,
		HoleID:  to,
		Message: fmt.Sprintf("edge %s -> %s would close a propagation cycle (blocking and informing edges): %s", from, to, strings.Join(path, " -> ")),
		Path:    path,
	}
}

// NewTimeoutError creates an Error for an exhausted solver budget.
func NewTimeoutError(holeID string, format string, args ...any) *Error {
	return &Error{Code: CodeTimeout, HoleID: holeID, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates an Error for an unknown hole.
func NewNotFoundError(holeID string) *Error {
	return &Error{Code: CodeNotFound, HoleID: holeID, Message: "hole not found"}
}

// NewStateError creates an Error for an invalid transition.
func NewStateError(holeID string, format string, args ...any) *Error {
	return &Error{Code: CodeState, HoleID: holeID, Message: fmt.Sprintf(format, args...)}
}
