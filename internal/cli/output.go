package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/hollow/internal/compiler"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The engine rejected the request (conflict, failed scenarios, invalid declaration)
	ExitCommandError = 2 // Command error (bad arguments, unknown session, unreadable files)
)

// Error codes reported in CLI responses. Engine errors report their
// graph error code instead.
const (
	ErrCodeGeneric     = "ERROR"
	ErrCodeBadArgument = "BAD_ARGUMENT"
	ErrCodeCompile     = "COMPILE"
	ErrCodeInvalid     = "INVALID"
	ErrCodeStore       = "STORE"
	ErrCodeNoSession   = "NO_SESSION"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "CONFLICT", "NO_SESSION", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Fail reports err and returns the ExitError the command should return.
// The error code and exit code are derived from the error's origin.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), errorDetails(err)); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, message, err)
}

// classify maps an error to a CLI error code and exit code.
func classify(err error) (string, int) {
	var (
		exitErr *ExitError
		valErrs compiler.ValidationErrors
		compErr *compiler.CompileError
	)
	switch {
	case errors.As(err, &exitErr):
		return ErrCodeGeneric, exitErr.Code
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNoSession, ExitCommandError
	case errors.Is(err, store.ErrCorrupt), errors.Is(err, session.ErrMalformed), errors.Is(err, session.ErrVersion):
		return ErrCodeStore, ExitCommandError
	case errors.As(err, &valErrs):
		return ErrCodeInvalid, ExitFailure
	case errors.As(err, &compErr):
		return ErrCodeCompile, ExitFailure
	}
	if code, ok := graph.ErrorCode(err); ok {
		return string(code), ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
}

// ConflictDetail carries the structured parts of an engine error.
type ConflictDetail struct {
	Hole           string   `json:"hole,omitempty"`
	Core           []string `json:"core,omitempty"`
	Path           []string `json:"path,omitempty"`
	Counterexample string   `json:"counterexample,omitempty"`
}

// errorDetails returns the structured details of err for a CLI response:
// the individual errors of a failed validation, or the core, cycle path
// or counterexample of an engine error. Other errors have no details.
func errorDetails(err error) any {
	var errs compiler.ValidationErrors
	if errors.As(err, &errs) {
		return []compiler.ValidationError(errs)
	}
	var ge *graph.Error
	if errors.As(err, &ge) && (len(ge.Core) > 0 || len(ge.Path) > 0 || ge.Counterexample != "") {
		return ConflictDetail{Hole: ge.HoleID, Core: ge.Core, Path: ge.Path, Counterexample: ge.Counterexample}
	}
	return nil
}
