package constraint

import (
	"slices"

	"github.com/roach88/hollow/internal/ir"
)

// FreeVars returns the identifiers referenced by e, sorted.
func FreeVars(e Expr) []string {
	seen := map[string]bool{}
	Walk(e, func(n Expr) {
		if v, ok := n.(Var); ok {
			seen[v.Name] = true
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Mentions reports whether e references name.
func Mentions(e Expr, name string) bool {
	found := false
	Walk(e, func(n Expr) {
		if v, ok := n.(Var); ok && v.Name == name {
			found = true
		}
	})
	return found
}

// Substitute replaces every reference to name with value and simplifies.
func Substitute(e Expr, name string, value ir.IRValue) Expr {
	return Simplify(replace(e, func(v Var) Expr {
		if v.Name == name {
			return Lit{Value: value}
		}
		return v
	}))
}

// Rename rewrites references to from so they refer to to.
func Rename(e Expr, from, to string) Expr {
	return replace(e, func(v Var) Expr {
		if v.Name == from {
			return Var{Name: to}
		}
		return v
	})
}

func replace(e Expr, fn func(Var) Expr) Expr {
	switch x := e.(type) {
	case Var:
		return fn(x)
	case Lit:
		return x
	case Field:
		return Field{X: replace(x.X, fn), Name: x.Name}
	case Unary:
		return Unary{Op: x.Op, X: replace(x.X, fn)}
	case Binary:
		return Binary{Op: x.Op, X: replace(x.X, fn), Y: replace(x.Y, fn)}
	case Call:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = replace(a, fn)
		}
		return Call{Fn: x.Fn, Args: args}
	case List:
		elems := make([]Expr, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = replace(el, fn)
		}
		return List{Elems: elems}
	case Member:
		return Member{X: replace(x.X, fn), Set: replace(x.Set, fn)}
	case Has:
		return Has{X: replace(x.X, fn), Fields: slices.Clone(x.Fields)}
	case Implies:
		return Implies{If: replace(x.If, fn), Then: replace(x.Then, fn)}
	}
	panic("constraint: unhandled expression node")
}

// Simplify folds constant sub-expressions and applies boolean identities.
// Sub-expressions whose evaluation fails (division by zero, type errors)
// are left in place so the failure surfaces when the predicate is checked.
func Simplify(e Expr) Expr {
	switch x := e.(type) {
	case Var, Lit:
		return x
	case Field:
		return fold(Field{X: Simplify(x.X), Name: x.Name})
	case Unary:
		inner := Simplify(x.X)
		if x.Op == OpNot {
			if u, ok := inner.(Unary); ok && u.Op == OpNot {
				return u.X
			}
		}
		return fold(Unary{Op: x.Op, X: inner})
	case Binary:
		l, r := Simplify(x.X), Simplify(x.Y)
		switch x.Op {
		case OpAnd:
			if isBool(l, false) || isBool(r, false) {
				return Bool(false)
			}
			if isBool(l, true) {
				return r
			}
			if isBool(r, true) {
				return l
			}
		case OpOr:
			if isBool(l, true) || isBool(r, true) {
				return Bool(true)
			}
			if isBool(l, false) {
				return r
			}
			if isBool(r, false) {
				return l
			}
		}
		return fold(Binary{Op: x.Op, X: l, Y: r})
	case Call:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = Simplify(a)
		}
		return fold(Call{Fn: x.Fn, Args: args})
	case List:
		elems := make([]Expr, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = Simplify(el)
		}
		return foldList(elems)
	case Member:
		return fold(Member{X: Simplify(x.X), Set: Simplify(x.Set)})
	case Has:
		return fold(Has{X: Simplify(x.X), Fields: x.Fields})
	case Implies:
		cond, then := Simplify(x.If), Simplify(x.Then)
		if isBool(cond, false) || isBool(then, true) {
			return Bool(true)
		}
		if isBool(cond, true) {
			return then
		}
		return Implies{If: cond, Then: then}
	}
	panic("constraint: unhandled expression node")
}

// fold evaluates e when it has no free identifiers.
func fold(e Expr) Expr {
	if len(FreeVars(e)) > 0 {
		return e
	}
	v, err := Eval(e, nil)
	if err != nil {
		return e
	}
	return Lit{Value: v}
}

func isBool(e Expr, want bool) bool {
	lit, ok := e.(Lit)
	if !ok {
		return false
	}
	b, ok := lit.Value.(ir.IRBool)
	return ok && bool(b) == want
}

// IsTrue reports whether e is the literal true.
func IsTrue(e Expr) bool { return isBool(e, true) }

// IsFalse reports whether e is the literal false.
func IsFalse(e Expr) bool { return isBool(e, false) }
