// Package engine applies mutations to a session's hole graph and
// propagates their consequences.
//
// Every mutating call (Fill, Constrain, Defer, Reopen, Split, Merge,
// Revert, Undo, Redo) runs as one pass inside a single graph transaction:
//
//  1. Local checks run against the published snapshot. Validation,
//     conflict, state and not-found failures return before anything is
//     written.
//  2. The mutation is applied to a copy-on-write shadow of the graph.
//  3. Fill and Constrain then drain a worklist of dependents ordered by
//     (topological depth, creation seq). Each dependent gets the new
//     values substituted into its constraints and is re-checked in a
//     pushed solver frame: Unsat marks it Conflicted with a minimal core,
//     Sat with a unique model auto-fills it and enqueues its own
//     dependents, Unknown flags it Unverified.
//  4. The pass's change set becomes one revision step. The step is
//     appended to the revision log and the shadow is published together;
//     a cancelled context or any error discards the shadow instead.
//  5. One event per mutated hole is published in processing order and
//     suggestion requests are dispatched asynchronously.
//
// # Logical Clock
//
// Revision steps and events are stamped from Clock, never wall time, so
// the same sequence of calls yields the same revision IDs and event seqs.
//
// # Concurrency
//
// A session's engine accepts one mutation at a time. A call made while
// another is in flight fails with a StateError instead of waiting. Readers
// use graph snapshots and never block.
package engine
