package eval

import (
	"fmt"
	"unicode/utf8"

	"github.com/roach88/hollow/internal/ir"
)

var builtins = map[string]bool{
	"+": true, "-": true, "*": true, "/": true,
	"<": true, "<=": true, ">": true, ">=": true, "=": true, "!=": true,
	"and": true, "or": true, "not": true,
	"list": true, "get": true, "len": true,
}

// partial lets and/or decide from concrete arguments alone when one of
// them already fixes the result.
func partial(op string, args []value) (ir.IRValue, bool) {
	var stop bool
	switch op {
	case "and":
		stop = false
	case "or":
		stop = true
	default:
		return nil, false
	}
	for _, a := range args {
		if v, ok := concrete(a); ok {
			if b, isBool := v.(ir.IRBool); isBool && bool(b) == stop {
				return ir.IRBool(stop), true
			}
		}
	}
	return nil, false
}

// applyBuiltin applies op to concrete arguments.
func applyBuiltin(op string, args []ir.IRValue) (ir.IRValue, error) {
	switch op {
	case "+", "*":
		acc := ir.IRInt(0)
		if op == "*" {
			acc = 1
		}
		for i, a := range args {
			n, err := intArg(op, i, a)
			if err != nil {
				return nil, err
			}
			exact := true
			if op == "+" {
				acc, exact = ir.AddInt(acc, ir.IRInt(n))
			} else {
				acc, exact = ir.MulInt(acc, ir.IRInt(n))
			}
			if !exact {
				return nil, overflowError(op)
			}
		}
		return acc, nil

	case "-":
		if len(args) == 0 {
			return nil, arityError(op, "at least 1", len(args))
		}
		first, err := intArg(op, 0, args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 1 {
			neg, ok := ir.NegInt(ir.IRInt(first))
			if !ok {
				return nil, overflowError(op)
			}
			return neg, nil
		}
		acc := ir.IRInt(first)
		for i, a := range args[1:] {
			n, err := intArg(op, i+1, a)
			if err != nil {
				return nil, err
			}
			var exact bool
			if acc, exact = ir.SubInt(acc, ir.IRInt(n)); !exact {
				return nil, overflowError(op)
			}
		}
		return acc, nil

	case "/":
		if len(args) != 2 {
			return nil, arityError(op, "2", len(args))
		}
		x, err := intArg(op, 0, args[0])
		if err != nil {
			return nil, err
		}
		y, err := intArg(op, 1, args[1])
		if err != nil {
			return nil, err
		}
		if y == 0 {
			return nil, &RuntimeError{Op: op, Message: "division by zero"}
		}
		q, ok := ir.DivInt(ir.IRInt(x), ir.IRInt(y))
		if !ok {
			return nil, overflowError(op)
		}
		return q, nil

	case "<", "<=", ">", ">=":
		if len(args) != 2 {
			return nil, arityError(op, "2", len(args))
		}
		c, ok := ir.Compare(args[0], args[1])
		if !ok {
			return nil, &RuntimeError{Op: op, Message: fmt.Sprintf("cannot compare %s and %s",
				ir.TypeName(args[0]), ir.TypeName(args[1]))}
		}
		switch op {
		case "<":
			return ir.IRBool(c < 0), nil
		case "<=":
			return ir.IRBool(c <= 0), nil
		case ">":
			return ir.IRBool(c > 0), nil
		default:
			return ir.IRBool(c >= 0), nil
		}

	case "=", "!=":
		if len(args) != 2 {
			return nil, arityError(op, "2", len(args))
		}
		eq := ir.Equal(args[0], args[1])
		return ir.IRBool(eq == (op == "=")), nil

	case "and", "or":
		result := op == "and"
		for i, a := range args {
			b, err := boolArg(op, i, a)
			if err != nil {
				return nil, err
			}
			if op == "and" {
				result = result && b
			} else {
				result = result || b
			}
		}
		return ir.IRBool(result), nil

	case "not":
		if len(args) != 1 {
			return nil, arityError(op, "1", len(args))
		}
		b, err := boolArg(op, 0, args[0])
		if err != nil {
			return nil, err
		}
		return ir.IRBool(!b), nil

	case "list":
		return ir.IRArray(append([]ir.IRValue{}, args...)), nil

	case "get":
		if len(args) != 2 {
			return nil, arityError(op, "2", len(args))
		}
		switch x := args[0].(type) {
		case ir.IRObject:
			name, ok := args[1].(ir.IRString)
			if !ok {
				return nil, &RuntimeError{Op: op, Message: "field name must be a string"}
			}
			v, ok := x[string(name)]
			if !ok {
				return nil, &RuntimeError{Op: op, Message: fmt.Sprintf("no field %q", string(name))}
			}
			return v, nil
		case ir.IRArray:
			i, err := intArg(op, 1, args[1])
			if err != nil {
				return nil, err
			}
			if i < 0 || i >= int64(len(x)) {
				return nil, &RuntimeError{Op: op, Message: fmt.Sprintf("index %d out of range", i)}
			}
			return x[i], nil
		default:
			return nil, &RuntimeError{Op: op, Message: "cannot index " + ir.TypeName(args[0])}
		}

	case "len":
		if len(args) != 1 {
			return nil, arityError(op, "1", len(args))
		}
		switch x := args[0].(type) {
		case ir.IRArray:
			return ir.IRInt(len(x)), nil
		case ir.IRString:
			return ir.IRInt(utf8.RuneCountInString(string(x))), nil
		default:
			return nil, &RuntimeError{Op: op, Message: "no length for " + ir.TypeName(args[0])}
		}
	}
	return nil, &RuntimeError{Op: op, Message: "unknown builtin"}
}

func overflowError(op string) error {
	return &RuntimeError{Op: op, Message: "integer overflow"}
}

func intArg(op string, i int, v ir.IRValue) (int64, error) {
	n, ok := v.(ir.IRInt)
	if !ok {
		return 0, &RuntimeError{Op: op, Message: fmt.Sprintf("argument %d is %s, want int", i+1, ir.TypeName(v))}
	}
	return int64(n), nil
}

func boolArg(op string, i int, v ir.IRValue) (bool, error) {
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, &RuntimeError{Op: op, Message: fmt.Sprintf("argument %d is %s, want bool", i+1, ir.TypeName(v))}
	}
	return bool(b), nil
}

func arityError(op, want string, got int) error {
	return &RuntimeError{Op: op, Message: fmt.Sprintf("takes %s arguments, got %d", want, got)}
}
