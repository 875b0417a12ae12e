// Package constraint implements the predicate language attached to holes.
//
// A constraint set is a conjunction of predicates over hole identifiers:
// equality and ordering, set membership (member), structural has-fields
// (has), implication (implies), boolean connectives, integer arithmetic,
// field selection and the typeof/len builtins. Source text uses CUE's
// expression syntax and is parsed with the CUE parser; String() prints
// source that parses back to the same tree.
//
// Substituting a value for an identifier simplifies the set. Each
// predicate remembers its declared form and the bindings substituted into
// it so unsat cores can be reported in the author's terms.
package constraint
