package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", event.Seq, event.Op, event.Hole, event.Outcome)
			for _, ev := range event.Events {
				fmt.Fprintf(&buf, "      %s\n", ev)
			}
		}
	}
	return buf.String()
}

// AssertionContext provides what assertions inspect.
type AssertionContext struct {
	Session *session.Session
	Trace   []TraceEvent
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. It does not stop at the first failure.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertHoleStatus:
		return assertHoleStatus(actx, a)
	case AssertHoleValue:
		return assertHoleValue(actx, a)
	case AssertHoleConstraints:
		return assertHoleConstraints(actx, a)
	case AssertEventOrder:
		return assertEventOrder(actx.Trace, a)
	case AssertRevisionCount:
		return assertRevisionCount(actx, a)
	case AssertTraceEntries:
		return assertTraceEntries(actx, a)
	case AssertTraceDiscovered:
		return assertTraceDiscovered(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertHoleStatus(actx *AssertionContext, a Assertion) error {
	h, err := actx.Session.Graph().Hole(a.Hole)
	if err != nil {
		return err
	}
	want, err := ir.ParseHoleStatus(a.Status)
	if err != nil {
		return err
	}
	if h.Status != want {
		return &AssertionError{
			Type:     AssertHoleStatus,
			Expected: fmt.Sprintf("%s is %s", a.Hole, want),
			Actual:   fmt.Sprintf("%s is %s", a.Hole, h.Status),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func assertHoleValue(actx *AssertionContext, a Assertion) error {
	h, err := actx.Session.Graph().Hole(a.Hole)
	if err != nil {
		return err
	}
	want, err := ir.FromGo(a.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if h.Value == nil || !ir.Equal(h.Value, want) {
		actual := "no value"
		if h.Value != nil {
			actual = ir.Format(h.Value)
		}
		return &AssertionError{
			Type:     AssertHoleValue,
			Expected: fmt.Sprintf("%s = %s", a.Hole, ir.Format(want)),
			Actual:   fmt.Sprintf("%s: %s", a.Hole, actual),
			Trace:    actx.Trace,
		}
	}
	return nil
}

// assertHoleConstraints compares printed constraints in order. An empty
// list asserts the hole is unconstrained.
func assertHoleConstraints(actx *AssertionContext, a Assertion) error {
	h, err := actx.Session.Graph().Hole(a.Hole)
	if err != nil {
		return err
	}
	got := h.Constraints.Strings()
	if len(got) == 0 && len(a.Constraints) == 0 {
		return nil
	}
	if !slices.Equal(got, a.Constraints) {
		return &AssertionError{
			Type:     AssertHoleConstraints,
			Expected: fmt.Sprintf("%s constrained by %q", a.Hole, a.Constraints),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

// assertEventOrder checks that the expected events appear in order.
// Events don't need to be consecutive. An expected event matches the
// first later trace event whose text ends with it, so "D Filled" matches
// "#1 D Filled".
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	var all []string
	for _, step := range trace {
		all = append(all, step.Events...)
	}

	pos := 0
	for _, want := range a.Events {
		found := false
		for pos < len(all) {
			got := all[pos]
			pos++
			if strings.HasSuffix(got, " "+want) || got == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("%q missing or out of order in %v", want, all),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertRevisionCount(actx *AssertionContext, a Assertion) error {
	if n := actx.Session.Log().Len(); n != a.Count {
		return &AssertionError{
			Type:     AssertRevisionCount,
			Expected: fmt.Sprintf("%d revisions", a.Count),
			Actual:   fmt.Sprintf("%d revisions", n),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func assertTraceEntries(actx *AssertionContext, a Assertion) error {
	tr, _ := actx.Session.Evaluator().Trace(a.Hole)
	if n := len(tr.Entries); n != a.Count {
		return &AssertionError{
			Type:     AssertTraceEntries,
			Expected: fmt.Sprintf("%d trace entries for %s", a.Count, a.Hole),
			Actual:   fmt.Sprintf("%d entries", n),
		}
	}
	return nil
}

func assertTraceDiscovered(actx *AssertionContext, a Assertion) error {
	tr, _ := actx.Session.Evaluator().Trace(a.Hole)
	for _, want := range a.Constraints {
		if !slices.Contains(tr.Discovered, want) {
			return &AssertionError{
				Type:     AssertTraceDiscovered,
				Expected: fmt.Sprintf("%s discovered %q", a.Hole, want),
				Actual:   fmt.Sprintf("discovered %q", tr.Discovered),
			}
		}
	}
	return nil
}
