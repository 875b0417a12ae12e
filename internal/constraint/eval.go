package constraint

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/roach88/hollow/internal/ir"
)

// Env binds identifiers to values during evaluation.
type Env map[string]ir.IRValue

// UnboundError reports a reference to an identifier with no value.
type UnboundError struct {
	Name string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("unbound identifier %s", e.Name)
}

// TypeError reports an operation applied to values of the wrong type.
type TypeError struct {
	Node    Expr
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Node, e.Message)
}

// IsUnbound reports whether err stems from an unbound identifier.
func IsUnbound(err error) bool {
	var ue *UnboundError
	return errors.As(err, &ue)
}

// Eval evaluates e under env. Boolean connectives short-circuit, so
// false && x is false even when x is unbound.
func Eval(e Expr, env Env) (ir.IRValue, error) {
	switch x := e.(type) {
	case Lit:
		return x.Value, nil

	case Var:
		v, ok := env[x.Name]
		if !ok {
			return nil, &UnboundError{Name: x.Name}
		}
		return v, nil

	case Field:
		base, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		obj, ok := base.(ir.IRObject)
		if !ok {
			return nil, typeErr(x, "selector on %s", ir.TypeName(base))
		}
		v, ok := obj[x.Name]
		if !ok {
			return nil, typeErr(x, "no field %q", x.Name)
		}
		return v, nil

	case Unary:
		v, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case OpNot:
			b, ok := v.(ir.IRBool)
			if !ok {
				return nil, typeErr(x, "! applied to %s", ir.TypeName(v))
			}
			return !b, nil
		case OpNeg:
			n, ok := v.(ir.IRInt)
			if !ok {
				return nil, typeErr(x, "- applied to %s", ir.TypeName(v))
			}
			neg, ok := ir.NegInt(n)
			if !ok {
				return nil, typeErr(x, "integer overflow")
			}
			return neg, nil
		}
		return nil, typeErr(x, "unknown unary operator %s", x.Op)

	case Binary:
		return evalBinary(x, env)

	case Call:
		return evalCall(x, env)

	case List:
		arr := make(ir.IRArray, len(x.Elems))
		for i, el := range x.Elems {
			v, err := Eval(el, env)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	case Member:
		v, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		set, err := Eval(x.Set, env)
		if err != nil {
			return nil, err
		}
		arr, ok := set.(ir.IRArray)
		if !ok {
			return nil, typeErr(x, "member set is %s, not array", ir.TypeName(set))
		}
		for _, el := range arr {
			if ir.Equal(v, el) {
				return ir.IRBool(true), nil
			}
		}
		return ir.IRBool(false), nil

	case Has:
		v, err := Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		obj, ok := v.(ir.IRObject)
		if !ok {
			return ir.IRBool(false), nil
		}
		for _, f := range x.Fields {
			if _, ok := obj[f]; !ok {
				return ir.IRBool(false), nil
			}
		}
		return ir.IRBool(true), nil

	case Implies:
		cond, err := evalBool(x.If, env)
		if err != nil {
			return nil, err
		}
		if !cond {
			return ir.IRBool(true), nil
		}
		then, err := evalBool(x.Then, env)
		if err != nil {
			return nil, err
		}
		return ir.IRBool(then), nil
	}
	return nil, fmt.Errorf("constraint: unhandled expression %T", e)
}

// Holds evaluates a predicate to a truth value. Type errors count as
// false; unbound identifiers are returned as errors.
func Holds(e Expr, env Env) (bool, error) {
	b, err := evalBool(e, env)
	if err != nil {
		var te *TypeError
		if errors.As(err, &te) {
			return false, nil
		}
		return false, err
	}
	return b, nil
}

func evalBool(e Expr, env Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, typeErr(e, "expected bool, got %s", ir.TypeName(v))
	}
	return bool(b), nil
}

func evalBinary(x Binary, env Env) (ir.IRValue, error) {
	switch x.Op {
	case OpAnd, OpOr:
		l, lerr := evalBool(x.X, env)
		if lerr == nil {
			if x.Op == OpAnd && !l {
				return ir.IRBool(false), nil
			}
			if x.Op == OpOr && l {
				return ir.IRBool(true), nil
			}
		}
		r, rerr := evalBool(x.Y, env)
		if rerr == nil {
			if x.Op == OpAnd && !r {
				return ir.IRBool(false), nil
			}
			if x.Op == OpOr && r {
				return ir.IRBool(true), nil
			}
		}
		if lerr != nil {
			return nil, lerr
		}
		if rerr != nil {
			return nil, rerr
		}
		return ir.IRBool(r), nil
	}

	l, err := Eval(x.X, env)
	if err != nil {
		return nil, err
	}
	r, err := Eval(x.Y, env)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case OpEq:
		return ir.IRBool(ir.Equal(l, r)), nil
	case OpNe:
		return ir.IRBool(!ir.Equal(l, r)), nil
	case OpLt, OpLe, OpGt, OpGe:
		c, ok := ir.Compare(l, r)
		if !ok {
			return nil, typeErr(x, "cannot order %s and %s", ir.TypeName(l), ir.TypeName(r))
		}
		switch x.Op {
		case OpLt:
			return ir.IRBool(c < 0), nil
		case OpLe:
			return ir.IRBool(c <= 0), nil
		case OpGt:
			return ir.IRBool(c > 0), nil
		default:
			return ir.IRBool(c >= 0), nil
		}
	case OpAdd:
		if ls, ok := l.(ir.IRString); ok {
			rs, ok := r.(ir.IRString)
			if !ok {
				return nil, typeErr(x, "cannot add string and %s", ir.TypeName(r))
			}
			return ls + rs, nil
		}
		fallthrough
	case OpSub, OpMul, OpDiv:
		ln, lok := l.(ir.IRInt)
		rn, rok := r.(ir.IRInt)
		if !lok || !rok {
			return nil, typeErr(x, "arithmetic on %s and %s", ir.TypeName(l), ir.TypeName(r))
		}
		var (
			n     ir.IRInt
			exact bool
		)
		switch x.Op {
		case OpAdd:
			n, exact = ir.AddInt(ln, rn)
		case OpSub:
			n, exact = ir.SubInt(ln, rn)
		case OpMul:
			n, exact = ir.MulInt(ln, rn)
		default:
			if rn == 0 {
				return nil, typeErr(x, "division by zero")
			}
			n, exact = ir.DivInt(ln, rn)
		}
		if !exact {
			return nil, typeErr(x, "integer overflow")
		}
		return n, nil
	}
	return nil, typeErr(x, "unknown operator %s", x.Op)
}

func evalCall(x Call, env Env) (ir.IRValue, error) {
	if len(x.Args) != 1 {
		return nil, typeErr(x, "%s takes 1 argument", x.Fn)
	}
	v, err := Eval(x.Args[0], env)
	if err != nil {
		return nil, err
	}
	switch x.Fn {
	case FnTypeof:
		return ir.IRString(ir.TypeName(v)), nil
	case FnLen:
		switch val := v.(type) {
		case ir.IRString:
			return ir.IRInt(utf8.RuneCountInString(string(val))), nil
		case ir.IRArray:
			return ir.IRInt(len(val)), nil
		case ir.IRObject:
			return ir.IRInt(len(val)), nil
		}
		return nil, typeErr(x, "len of %s", ir.TypeName(v))
	}
	return nil, typeErr(x, "unknown function %s", x.Fn)
}

func typeErr(e Expr, format string, args ...any) error {
	return &TypeError{Node: e, Message: fmt.Sprintf(format, args...)}
}
