package eval

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/hollow/internal/ir"
)

// NodeKind discriminates program nodes.
type NodeKind uint8

const (
	NodeLiteral NodeKind = iota
	NodeSymbol
	NodeHole
	NodeList
)

// Node is one S-expression.
type Node struct {
	Kind NodeKind
	// Value is set for literals.
	Value ir.IRValue
	// Name is the symbol, or the hole ID without its leading '?'.
	Name  string
	Elems []Node
	// Pos is the byte offset of the node in its source.
	Pos int
}

func (n Node) String() string {
	switch n.Kind {
	case NodeLiteral:
		return ir.Format(n.Value)
	case NodeSymbol:
		return n.Name
	case NodeHole:
		return "?" + n.Name
	default:
		parts := make([]string, len(n.Elems))
		for i, e := range n.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
}

// head returns the symbol in call position of a list node.
func (n Node) head() (string, bool) {
	if n.Kind != NodeList || len(n.Elems) == 0 || n.Elems[0].Kind != NodeSymbol {
		return "", false
	}
	return n.Elems[0].Name, true
}

// SyntaxError reports malformed program text.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
}

// Read parses exactly one S-expression from src. Line comments start
// with ';'.
func Read(src string) (Node, error) {
	r := &reader{src: src}
	n, err := r.node()
	if err != nil {
		return Node{}, err
	}
	r.skip()
	if r.pos < len(r.src) {
		return Node{}, r.fail("unexpected %q after expression", r.src[r.pos])
	}
	return n, nil
}

type reader struct {
	src string
	pos int
}

func (r *reader) fail(format string, args ...any) error {
	return &SyntaxError{Pos: r.pos, Message: fmt.Sprintf(format, args...)}
}

func (r *reader) skip() {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		case unicode.IsSpace(rune(c)):
			r.pos++
		default:
			return
		}
	}
}

func (r *reader) node() (Node, error) {
	r.skip()
	if r.pos >= len(r.src) {
		return Node{}, r.fail("unexpected end of input")
	}
	start := r.pos
	switch c := r.src[r.pos]; c {
	case '(':
		r.pos++
		var elems []Node
		for {
			r.skip()
			if r.pos >= len(r.src) {
				return Node{}, &SyntaxError{Pos: start, Message: "unclosed list"}
			}
			if r.src[r.pos] == ')' {
				r.pos++
				return Node{Kind: NodeList, Elems: elems, Pos: start}, nil
			}
			e, err := r.node()
			if err != nil {
				return Node{}, err
			}
			elems = append(elems, e)
		}
	case ')':
		return Node{}, r.fail("unexpected ')'")
	case '"':
		return r.str()
	default:
		return r.atom()
	}
}

func (r *reader) str() (Node, error) {
	start := r.pos
	r.pos++
	for r.pos < len(r.src) {
		switch r.src[r.pos] {
		case '\\':
			r.pos += 2
		case '"':
			r.pos++
			s, err := strconv.Unquote(r.src[start:r.pos])
			if err != nil {
				return Node{}, &SyntaxError{Pos: start, Message: "bad string literal"}
			}
			return Node{Kind: NodeLiteral, Value: ir.IRString(s), Pos: start}, nil
		default:
			r.pos++
		}
	}
	return Node{}, &SyntaxError{Pos: start, Message: "unterminated string"}
}

func (r *reader) atom() (Node, error) {
	start := r.pos
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if c == '(' || c == ')' || c == '"' || c == ';' || unicode.IsSpace(rune(c)) {
			break
		}
		r.pos++
	}
	tok := r.src[start:r.pos]
	switch tok {
	case "true", "#t":
		return Node{Kind: NodeLiteral, Value: ir.IRBool(true), Pos: start}, nil
	case "false", "#f":
		return Node{Kind: NodeLiteral, Value: ir.IRBool(false), Pos: start}, nil
	case "null":
		return Node{Kind: NodeLiteral, Value: ir.IRNull{}, Pos: start}, nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return Node{Kind: NodeLiteral, Value: ir.IRInt(n), Pos: start}, nil
	}
	if tok[0] == '?' {
		if len(tok) == 1 {
			return Node{}, &SyntaxError{Pos: start, Message: "hole reference without a name"}
		}
		return Node{Kind: NodeHole, Name: tok[1:], Pos: start}, nil
	}
	return Node{Kind: NodeSymbol, Name: tok, Pos: start}, nil
}
