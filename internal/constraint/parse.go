package constraint

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hollow/internal/ir"
)

// SelfName refers to the hole that owns a predicate. The graph store
// rewrites it to the hole's ID when the hole is created.
const SelfName = "self"

// ParseError reports a constraint that is not valid source.
type ParseError struct {
	Src     string
	Message string
	Column  int
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("constraint %q:%d: %s", e.Src, e.Column, e.Message)
	}
	return fmt.Sprintf("constraint %q: %s", e.Src, e.Message)
}

// Parse parses constraint source. The syntax is CUE's expression syntax
// restricted to the constraint language:
//
//	a < b
//	c == d + 1
//	member(kind, ["int", "string"])
//	has(record, "id", "name")
//	implies(flag, limit > 0)
//	validate.returns == "bool"
func Parse(src string) (Expr, error) {
	node, err := parser.ParseExpr("constraint", src)
	if err != nil {
		return nil, parseErrorFrom(src, err)
	}
	p := &converter{src: src}
	return p.expr(node)
}

// MustParse is like Parse but panics on error.
// Use only in tests or for constant sources.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// IsIdentifier reports whether name can be used as a hole identifier in
// constraint source.
func IsIdentifier(name string) bool {
	if name == "" || name == SelfName {
		return false
	}
	if !ast.IsValidIdent(name) {
		return false
	}
	e, err := Parse(name)
	if err != nil {
		return false
	}
	v, ok := e.(Var)
	return ok && v.Name == name
}

func parseErrorFrom(src string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ParseError{Src: src, Message: err.Error()}
	}
	first := errs[0]
	pe := &ParseError{Src: src, Message: first.Error()}
	if pos := errors.Positions(first); len(pos) > 0 {
		pe.Column = pos[0].Column()
	}
	return pe
}

type converter struct {
	src string
}

func (c *converter) fail(n ast.Node, format string, args ...any) error {
	pe := &ParseError{Src: c.src, Message: fmt.Sprintf(format, args...)}
	if n != nil && n.Pos().IsValid() {
		pe.Column = n.Pos().Column()
	}
	return pe
}

func (c *converter) expr(n ast.Expr) (Expr, error) {
	switch x := n.(type) {
	case *ast.Ident:
		switch x.Name {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Lit{Value: ir.IRNull{}}, nil
		}
		return Var{Name: x.Name}, nil

	case *ast.BasicLit:
		v, err := c.basicLit(x)
		if err != nil {
			return nil, err
		}
		return Lit{Value: v}, nil

	case *ast.ParenExpr:
		return c.expr(x.X)

	case *ast.UnaryExpr:
		operand, err := c.expr(x.X)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case token.NOT:
			return Unary{Op: OpNot, X: operand}, nil
		case token.SUB:
			if lit, ok := operand.(Lit); ok {
				if n, ok := lit.Value.(ir.IRInt); ok {
					return Int(-int64(n)), nil
				}
			}
			return Unary{Op: OpNeg, X: operand}, nil
		case token.ADD:
			return operand, nil
		}
		return nil, c.fail(x, "unsupported unary operator %s", x.Op)

	case *ast.BinaryExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			return nil, c.fail(x, "unsupported operator %s", x.Op)
		}
		l, err := c.expr(x.X)
		if err != nil {
			return nil, err
		}
		r, err := c.expr(x.Y)
		if err != nil {
			return nil, err
		}
		return Binary{Op: op, X: l, Y: r}, nil

	case *ast.SelectorExpr:
		base, err := c.expr(x.X)
		if err != nil {
			return nil, err
		}
		name, _, err := ast.LabelName(x.Sel)
		if err != nil {
			return nil, c.fail(x, "invalid field selector: %v", err)
		}
		return Field{X: base, Name: name}, nil

	case *ast.ListLit:
		elems := make([]Expr, 0, len(x.Elts))
		for _, el := range x.Elts {
			e, err := c.expr(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return foldList(elems), nil

	case *ast.StructLit:
		return c.structLit(x)

	case *ast.CallExpr:
		return c.call(x)
	}
	return nil, c.fail(n, "unsupported expression %T", n)
}

var binaryOps = map[token.Token]Op{
	token.EQL:  OpEq,
	token.NEQ:  OpNe,
	token.LSS:  OpLt,
	token.LEQ:  OpLe,
	token.GTR:  OpGt,
	token.GEQ:  OpGe,
	token.ADD:  OpAdd,
	token.SUB:  OpSub,
	token.MUL:  OpMul,
	token.QUO:  OpDiv,
	token.LAND: OpAnd,
	token.LOR:  OpOr,
}

func (c *converter) basicLit(x *ast.BasicLit) (ir.IRValue, error) {
	switch x.Kind {
	case token.INT:
		n, err := strconv.ParseInt(strings.ReplaceAll(x.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, c.fail(x, "invalid integer %s", x.Value)
		}
		return ir.IRInt(n), nil
	case token.STRING:
		s, err := literal.Unquote(x.Value)
		if err != nil {
			return nil, c.fail(x, "invalid string %s", x.Value)
		}
		return ir.IRString(s), nil
	case token.TRUE:
		return ir.IRBool(true), nil
	case token.FALSE:
		return ir.IRBool(false), nil
	case token.NULL:
		return ir.IRNull{}, nil
	case token.FLOAT:
		return nil, c.fail(x, "floats are not supported: %s", x.Value)
	}
	return nil, c.fail(x, "unsupported literal %s", x.Value)
}

// structLit accepts object literals whose fields are all constants.
func (c *converter) structLit(x *ast.StructLit) (Expr, error) {
	obj := make(ir.IRObject, len(x.Elts))
	for _, decl := range x.Elts {
		f, ok := decl.(*ast.Field)
		if !ok {
			return nil, c.fail(x, "object literals may only contain fields")
		}
		name, _, err := ast.LabelName(f.Label)
		if err != nil {
			return nil, c.fail(f, "invalid field label: %v", err)
		}
		v, err := c.expr(f.Value)
		if err != nil {
			return nil, err
		}
		lit, ok := v.(Lit)
		if !ok {
			return nil, c.fail(f, "object field %q must be a constant", name)
		}
		obj[name] = lit.Value
	}
	return Lit{Value: obj}, nil
}

func (c *converter) call(x *ast.CallExpr) (Expr, error) {
	fn, ok := x.Fun.(*ast.Ident)
	if !ok {
		return nil, c.fail(x, "only builtin functions can be called")
	}
	args := make([]Expr, 0, len(x.Args))
	for _, a := range x.Args {
		e, err := c.expr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	arity := func(n int) error {
		if len(args) != n {
			return c.fail(x, "%s takes %d arguments, got %d", fn.Name, n, len(args))
		}
		return nil
	}

	switch fn.Name {
	case "member":
		if err := arity(2); err != nil {
			return nil, err
		}
		return Member{X: args[0], Set: args[1]}, nil
	case "has":
		if len(args) < 2 {
			return nil, c.fail(x, "has takes an operand and at least one field name")
		}
		fields := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			lit, ok := a.(Lit)
			s, isStr := lit.Value.(ir.IRString)
			if !ok || !isStr {
				return nil, c.fail(x, "has field names must be string literals")
			}
			fields = append(fields, string(s))
		}
		return Has{X: args[0], Fields: fields}, nil
	case "implies":
		if err := arity(2); err != nil {
			return nil, err
		}
		return Implies{If: args[0], Then: args[1]}, nil
	case FnTypeof, FnLen:
		if err := arity(1); err != nil {
			return nil, err
		}
		return Call{Fn: fn.Name, Args: args}, nil
	}
	return nil, c.fail(x, "unknown function %s", fn.Name)
}

// foldList turns a list of constants into a single array literal.
func foldList(elems []Expr) Expr {
	arr := make(ir.IRArray, 0, len(elems))
	for _, e := range elems {
		lit, ok := e.(Lit)
		if !ok {
			return List{Elems: elems}
		}
		arr = append(arr, lit.Value)
	}
	return Lit{Value: arr}
}
