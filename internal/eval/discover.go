package eval

import (
	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// usage is how an operation consumes a pending argument.
type usage uint8

const (
	useNone usage = iota
	useArith
	useCompare
	useBool
	useField
	useLength
)

// usageOf returns how op consumes its argument at position i.
func usageOf(op string, i int) usage {
	switch op {
	case "+", "-", "*", "/":
		return useArith
	case "<", "<=", ">", ">=":
		return useCompare
	case "and", "or", "not", "if":
		return useBool
	case "get":
		if i == 0 {
			return useField
		}
	case "len":
		return useLength
	}
	return useNone
}

// discovered builds the predicate a usage implies about a hole. For a
// Function hole's result the subject is the declared return type.
func discovered(u usage, holeID string, returns bool, field string) (constraint.Predicate, bool) {
	subject := constraint.Expr(constraint.TypeOf(constraint.V(holeID)))
	if returns {
		subject = constraint.Sel(constraint.V(holeID), "returns")
	}
	var e constraint.Expr
	switch u {
	case useArith:
		e = constraint.Eq(subject, constraint.Str("int"))
	case useCompare:
		e = constraint.In(subject, ir.IRString("int"), ir.IRString("string"))
	case useBool:
		e = constraint.Eq(subject, constraint.Str("bool"))
	case useLength:
		e = constraint.In(subject, ir.IRString("array"), ir.IRString("string"))
	case useField:
		if returns || field == "" {
			return constraint.Predicate{}, false
		}
		e = constraint.Has{X: constraint.V(holeID), Fields: []string{field}}
	default:
		return constraint.Predicate{}, false
	}
	return constraint.NewPredicate(e), true
}
