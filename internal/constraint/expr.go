package constraint

import (
	"strings"

	"github.com/roach88/hollow/internal/ir"
)

// Op is a unary or binary operator of the constraint language.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpAnd Op = "&&"
	OpOr  Op = "||"
	OpNot Op = "!"
	OpNeg Op = "-"
)

// precedence follows CUE (and Go) binary operator precedence.
func (op Op) precedence() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return 3
	case OpAdd, OpSub:
		return 4
	case OpMul, OpDiv:
		return 5
	}
	return 6
}

// IsComparison reports whether op is an equality or ordering operator.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Flip returns the operator with operands swapped: a < b == b > a.
func (op Op) Flip() Op {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// Expr is a node of the constraint language. The set of node types is
// closed.
type Expr interface {
	expr()
	String() string
}

// Var references a hole by identifier.
type Var struct{ Name string }

// Lit is a constant.
type Lit struct{ Value ir.IRValue }

// Field selects a field of an object: X.Name.
type Field struct {
	X    Expr
	Name string
}

// Unary is !X or -X.
type Unary struct {
	Op Op
	X  Expr
}

// Binary is X Op Y.
type Binary struct {
	Op   Op
	X, Y Expr
}

// Call applies a builtin: typeof(x) or len(x).
type Call struct {
	Fn   string
	Args []Expr
}

// List is a list literal with non-constant elements.
type List struct{ Elems []Expr }

// Member is set membership: member(X, Set).
type Member struct {
	X   Expr
	Set Expr
}

// Has is the structural has-fields predicate: has(X, "f", ...).
type Has struct {
	X      Expr
	Fields []string
}

// Implies is implication: implies(If, Then).
type Implies struct {
	If, Then Expr
}

func (Var) expr()     {}
func (Lit) expr()     {}
func (Field) expr()   {}
func (Unary) expr()   {}
func (Binary) expr()  {}
func (Call) expr()    {}
func (List) expr()    {}
func (Member) expr()  {}
func (Has) expr()     {}
func (Implies) expr() {}

// Builtin functions callable with Call.
const (
	FnTypeof = "typeof"
	FnLen    = "len"
)

// Convenience constructors.

func V(name string) Var                   { return Var{Name: name} }
func Int(n int64) Lit                     { return Lit{Value: ir.IRInt(n)} }
func Str(s string) Lit                    { return Lit{Value: ir.IRString(s)} }
func Bool(b bool) Lit                     { return Lit{Value: ir.IRBool(b)} }
func Val(v ir.IRValue) Lit                { return Lit{Value: v} }
func Bin(op Op, x, y Expr) Binary         { return Binary{Op: op, X: x, Y: y} }
func Eq(x, y Expr) Binary                 { return Binary{Op: OpEq, X: x, Y: y} }
func Ne(x, y Expr) Binary                 { return Binary{Op: OpNe, X: x, Y: y} }
func Not(x Expr) Unary                    { return Unary{Op: OpNot, X: x} }
func TypeOf(x Expr) Call                  { return Call{Fn: FnTypeof, Args: []Expr{x}} }
func Sel(x Expr, name string) Field       { return Field{X: x, Name: name} }
func In(x Expr, set ...ir.IRValue) Member { return Member{X: x, Set: Lit{Value: ir.IRArray(set)}} }

// String methods print source the parser accepts back.

func (v Var) String() string { return v.Name }

func (l Lit) String() string { return ir.Format(l.Value) }

func (f Field) String() string { return wrapOperand(f.X) + "." + f.Name }

func (u Unary) String() string { return string(u.Op) + wrapOperand(u.X) }

func (b Binary) String() string {
	p := b.Op.precedence()
	x := b.X.String()
	if precedenceOf(b.X) < p {
		x = "(" + x + ")"
	}
	y := b.Y.String()
	if precedenceOf(b.Y) <= p {
		y = "(" + y + ")"
	}
	return x + " " + string(b.Op) + " " + y
}

func (c Call) String() string { return c.Fn + "(" + joinExprs(c.Args) + ")" }

func (l List) String() string { return "[" + joinExprs(l.Elems) + "]" }

func (m Member) String() string { return "member(" + m.X.String() + ", " + m.Set.String() + ")" }

func (h Has) String() string {
	var sb strings.Builder
	sb.WriteString("has(")
	sb.WriteString(h.X.String())
	for _, f := range h.Fields {
		sb.WriteString(", ")
		sb.WriteString(ir.Format(ir.IRString(f)))
	}
	sb.WriteString(")")
	return sb.String()
}

func (i Implies) String() string {
	return "implies(" + i.If.String() + ", " + i.Then.String() + ")"
}

func precedenceOf(e Expr) int {
	if b, ok := e.(Binary); ok {
		return b.Op.precedence()
	}
	return 6
}

// wrapOperand parenthesises anything that is not a primary expression.
func wrapOperand(e Expr) string {
	switch x := e.(type) {
	case Binary, Unary:
		return "(" + x.String() + ")"
	case Lit:
		if n, ok := x.Value.(ir.IRInt); ok && n < 0 {
			return "(" + x.String() + ")"
		}
	}
	return e.String()
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Walk calls fn for e and every sub-expression in depth-first order.
func Walk(e Expr, fn func(Expr)) {
	fn(e)
	switch x := e.(type) {
	case Var, Lit:
	case Field:
		Walk(x.X, fn)
	case Unary:
		Walk(x.X, fn)
	case Binary:
		Walk(x.X, fn)
		Walk(x.Y, fn)
	case Call:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case List:
		for _, el := range x.Elems {
			Walk(el, fn)
		}
	case Member:
		Walk(x.X, fn)
		Walk(x.Set, fn)
	case Has:
		Walk(x.X, fn)
	case Implies:
		Walk(x.If, fn)
		Walk(x.Then, fn)
	default:
		panic("constraint: unhandled expression node")
	}
}
