// Package graph is the hole graph store: the only component that mutates
// holes and dependency edges.
//
// Holes live in an arena addressed by Ref. The arena is split into
// fixed-size chunks that are shared between versions and copied on first
// write, which makes both transactions and session branches cost
// O(changes) rather than O(graph).
//
// EDGES:
//
// An edge From -> To means To depends on From. Blocking and Informing
// edges carry propagation and together must stay acyclic; inserting an
// edge that would close a cycle fails with a CycleError and leaves the
// graph untouched. Conflicting edges mark mutually exclusive holes, are
// never traversed, and are exempt from the cycle check.
//
// TRANSACTIONS:
//
// Every mutation runs inside Store.Update. The callback's Tx sees its own
// writes; returning an error discards them all. A successful update
// returns a ChangeSet with before and after records of every touched hole,
// which the revision log keeps and Tx.Apply can replay in either
// direction.
package graph
