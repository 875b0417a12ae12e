package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxVisits is the default cap on dependents visited in one pass.
const DefaultMaxVisits = 100_000

// VisitBudget counts worklist visits in one propagation pass and enforces
// a maximum.
//
// A pass visits each hole at most once, so on an acyclic graph the count
// is bounded by the number of holes. The budget is a hard stop for graphs
// too large to propagate through in one call.
type VisitBudget struct {
	max     int
	current int
}

// NewVisitBudget creates a budget allowing limit visits. A limit of zero
// or less means no limit.
func NewVisitBudget(limit int) *VisitBudget {
	return &VisitBudget{max: limit}
}

// Visit records one visit to holeID and fails once the budget is spent.
func (b *VisitBudget) Visit(holeID string) error {
	b.current++
	if b.max > 0 && b.current > b.max {
		return &BudgetExceededError{HoleID: holeID, Visits: b.current, Limit: b.max}
	}
	return nil
}

// Visits returns the number of visits so far.
func (b *VisitBudget) Visits() int {
	return b.current
}

// Max returns the limit.
func (b *VisitBudget) Max() int {
	return b.max
}

// BudgetExceededError aborts a pass that visited more holes than allowed.
// The pass is rolled back like any other failed pass.
type BudgetExceededError struct {
	HoleID string
	Visits int
	Limit  int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("propagation exceeded visit budget at %s: %d visits > %d limit",
		e.HoleID, e.Visits, e.Limit)
}

// IsBudgetExceeded returns true if err is a BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
