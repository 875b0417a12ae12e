package eval

import (
	"errors"
	"fmt"
)

// ErrStepBudget is returned when a run exceeds its evaluation step budget.
var ErrStepBudget = errors.New("evaluation step budget exhausted")

// RuntimeError is a failure of one operation during evaluation.
type RuntimeError struct {
	Op      string
	Pos     int
	Message string
}

func (e *RuntimeError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Op, e.Pos, e.Message)
}

// IsRuntimeError reports whether err is a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// at stamps a position on runtime errors that do not carry one yet.
func at(err error, pos int) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.Pos == 0 {
		re.Pos = pos
	}
	return err
}
