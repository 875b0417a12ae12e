// Package harness provides conformance testing for hole declarations and
// the engine operations run against them.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/holes.cue
//	setup:
//	  - op: fill
//	    hole: a
//	    value: 1
//	flow:
//	  - op: fill
//	    hole: b
//	    value: 50
//	    expect:
//	      error: CONFLICT
//	      core: ["a < b", "b == 50"]
//	  - op: revert
//	    step: 0
//	assertions:
//	  - type: hole_status
//	    hole: b
//	    status: Open
//	  - type: event_order
//	    events: ["a Filled", "b auto-filled 2"]
//
// Specs are CUE declaration files compiled by the compiler package.
//
// # Operations
//
// fill, constrain, defer, reopen, revert (by flow step or revision
// prefix), undo, redo, eval (program plus inputs), resume (fill and
// resume suspended tasks) and submit (discovered constraints).
//
// # Assertion Types
//
//   - hole_status: hole has the given status
//   - hole_value: hole holds the given value
//   - hole_constraints: hole's printed constraints, in order
//   - event_order: events appear in the given order
//   - revision_count: number of revision log steps
//   - trace_entries: number of evaluation trace entries for a hole
//   - trace_discovered: constraints the evaluator discovered for a hole
//
// # Deterministic Testing
//
// Each scenario runs in a fresh session with a fixed session ID. Revision
// IDs and event seqs come from the engine's logical clock, so the same
// scenario always produces the same trace. Traces label revisions by log
// position (r1, r2, ...) and are compared against golden files in
// testdata/golden.
package harness
