// Package eval partially evaluates programs that contain holes.
//
// Programs are S-expressions:
//
//	literal      42  "text"  true  false  null
//	symbol       x
//	hole         ?validate
//	lambda       (lambda (x y) body)
//	let          (let x expr body)
//	if           (if cond then else)
//	builtins     + - * / < <= > >= = != and or not list get len
//	application  (f arg ..)
//
// Evaluation is ordinary interpretation until a value is needed from an
// open hole. The hole then evaluates to a closure that pairs the hole's
// arena reference with the current environment. Builtins applied to a
// closure yield residual closures, and an if whose condition is a closure
// suspends that branch with its environment as the checkpoint. Other
// tasks and independent subexpressions keep evaluating.
//
// Every operation an open hole takes part in is appended to that hole's
// trace together with its arguments. The way a hole is used also yields
// discovered constraints: arithmetic implies typeof(h) == "int", boolean
// contexts imply typeof(h) == "bool", and so on. For the result of a
// Function hole the subject is h.returns. Submit hands them to the engine
// as new predicates.
//
// FillAndResume fills a hole through the engine and resolves the run's
// closures against the new graph: residuals are recomputed from their
// arguments and suspended branches continue from their checkpoints.
//
// Closures live in a per-run arena and are referred to by index. A run is
// replaced by the next Run; traces are kept until a revert drops them.
package eval
