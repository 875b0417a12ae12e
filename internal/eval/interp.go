package eval

import (
	"context"
	"fmt"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
)

// machine evaluates against one graph snapshot.
type machine struct {
	ev    *Evaluator
	run   *run
	ctx   context.Context
	view  graph.View
	depth int
}

func (m *machine) tick(pos int) error {
	if err := m.ctx.Err(); err != nil {
		return fmt.Errorf("evaluation cancelled: %w", err)
	}
	m.run.steps++
	if m.ev.maxSteps > 0 && m.run.steps > m.ev.maxSteps {
		return fmt.Errorf("at offset %d: %w (%d steps)", pos, ErrStepBudget, m.ev.maxSteps)
	}
	return nil
}

func (m *machine) eval(n Node, e *env) (value, error) {
	if err := m.tick(n.Pos); err != nil {
		return nil, err
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.ev.maxDepth > 0 && m.depth > m.ev.maxDepth {
		return nil, &RuntimeError{Pos: n.Pos, Message: "maximum evaluation depth exceeded"}
	}

	switch n.Kind {
	case NodeLiteral:
		return lit{v: n.Value}, nil
	case NodeSymbol:
		if v, ok := e.lookup(n.Name); ok {
			return v, nil
		}
		if builtins[n.Name] {
			return builtin(n.Name), nil
		}
		return nil, &RuntimeError{Pos: n.Pos, Message: "unbound symbol " + n.Name}
	case NodeHole:
		return m.hole(n, e)
	}

	if len(n.Elems) == 0 {
		return nil, &RuntimeError{Pos: n.Pos, Message: "empty application"}
	}
	if head, ok := n.head(); ok {
		switch head {
		case "lambda":
			return m.lambda(n, e)
		case "let":
			return m.let(n, e)
		case "if":
			return m.cond(n, e)
		}
	}

	callee, err := m.eval(n.Elems[0], e)
	if err != nil {
		return nil, err
	}
	args := make([]value, 0, len(n.Elems)-1)
	for _, a := range n.Elems[1:] {
		v, err := m.eval(a, e)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return m.apply(callee, args, n.Pos)
}

func (m *machine) lambda(n Node, e *env) (value, error) {
	if len(n.Elems) != 3 || n.Elems[1].Kind != NodeList {
		return nil, &RuntimeError{Op: "lambda", Pos: n.Pos, Message: "want (lambda (params ..) body)"}
	}
	params := make([]string, len(n.Elems[1].Elems))
	for i, p := range n.Elems[1].Elems {
		if p.Kind != NodeSymbol {
			return nil, &RuntimeError{Op: "lambda", Pos: p.Pos, Message: "parameter must be a symbol"}
		}
		params[i] = p.Name
	}
	return &lambda{params: params, body: n.Elems[2], env: e}, nil
}

func (m *machine) let(n Node, e *env) (value, error) {
	if len(n.Elems) != 4 || n.Elems[1].Kind != NodeSymbol {
		return nil, &RuntimeError{Op: "let", Pos: n.Pos, Message: "want (let name expr body)"}
	}
	v, err := m.eval(n.Elems[2], e)
	if err != nil {
		return nil, err
	}
	return m.eval(n.Elems[3], e.bind(n.Elems[1].Name, v))
}

// cond evaluates an if. A pending condition suspends the branch: the
// result is a branch closure holding the environment to resume from.
func (m *machine) cond(n Node, e *env) (value, error) {
	if len(n.Elems) != 4 {
		return nil, &RuntimeError{Op: "if", Pos: n.Pos, Message: "want (if cond then else)"}
	}
	c, err := m.eval(n.Elems[1], e)
	if err != nil {
		return nil, err
	}
	if ref, pending := c.(ClosureRef); pending {
		m.observe("if", []value{c})
		return m.run.arena.alloc(Closure{
			Kind:     ClosureBranch,
			HoleID:   m.run.arena.at(ref).HoleID,
			Op:       "if",
			env:      e,
			args:     []value{c},
			branches: [2]Node{n.Elems[2], n.Elems[3]},
		}), nil
	}
	return m.branch(c, [2]Node{n.Elems[2], n.Elems[3]}, e, n.Pos)
}

func (m *machine) branch(c value, branches [2]Node, e *env, pos int) (value, error) {
	v, _ := concrete(c)
	b, ok := v.(ir.IRBool)
	if !ok {
		return nil, &RuntimeError{Op: "if", Pos: pos, Message: "condition is not a bool"}
	}
	if b {
		return m.eval(branches[0], e)
	}
	return m.eval(branches[1], e)
}

// hole evaluates ?id: the value of a filled hole, otherwise a fresh hole
// closure over the current environment.
func (m *machine) hole(n Node, e *env) (value, error) {
	ref, ok := m.view.Resolve(n.Name)
	if !ok {
		return nil, fmt.Errorf("at offset %d: %w", n.Pos, graph.NewNotFoundError(n.Name))
	}
	h, _ := m.view.At(ref)
	if h.Filled() {
		return holeValue(h)
	}
	return m.run.arena.alloc(Closure{
		Kind:    ClosureHole,
		Hole:    ref,
		HoleID:  h.ID,
		env:     e,
		subject: h.ID,
	}), nil
}

// holeValue turns a filled hole into a runtime value. A Function hole
// holds {"params": [..], "body": "<sexpr>", "returns": "<type>"}.
func holeValue(h graph.Hole) (value, error) {
	obj, isObj := h.Value.(ir.IRObject)
	if h.Kind != ir.KindFunction || !isObj {
		return lit{v: h.Value}, nil
	}
	src, ok := obj["body"].(ir.IRString)
	if !ok {
		return nil, &RuntimeError{Message: fmt.Sprintf("function hole %s has no body", h.ID)}
	}
	body, err := Read(string(src))
	if err != nil {
		return nil, fmt.Errorf("function hole %s: %w", h.ID, err)
	}
	var params []string
	if ps, ok := obj["params"].(ir.IRArray); ok {
		for _, p := range ps {
			name, ok := p.(ir.IRString)
			if !ok {
				return nil, &RuntimeError{Message: fmt.Sprintf("function hole %s: parameter names must be strings", h.ID)}
			}
			params = append(params, string(name))
		}
	}
	return &lambda{params: params, body: body}, nil
}

func (m *machine) apply(callee value, args []value, pos int) (value, error) {
	switch f := callee.(type) {
	case builtin:
		return m.builtin(string(f), args, pos)

	case *lambda:
		if len(args) != len(f.params) {
			return nil, &RuntimeError{Pos: pos, Message: fmt.Sprintf("function takes %d arguments, got %d", len(f.params), len(args))}
		}
		e := f.env
		for i, p := range f.params {
			e = e.bind(p, args[i])
		}
		return m.eval(f.body, e)

	case ClosureRef:
		c := *m.run.arena.at(f)
		call := Closure{Kind: ClosureCall, HoleID: c.HoleID, Op: "call", fn: f, args: args}
		if c.Kind == ClosureHole {
			call.traceSeq = m.record(c.HoleID, "call", args)
			if h, ok := m.view.At(c.Hole); ok && h.Kind == ir.KindFunction {
				call.subject, call.returns = c.HoleID, true
			}
		}
		return m.run.arena.alloc(call), nil

	case lit:
		return nil, &RuntimeError{Pos: pos, Message: "cannot call " + ir.TypeName(f.v)}
	}
	return nil, &RuntimeError{Pos: pos, Message: "cannot call value"}
}

// builtin applies op. Any pending argument makes the result a residual op
// closure, recorded in the traces of the holes involved.
func (m *machine) builtin(op string, args []value, pos int) (value, error) {
	vals := make([]ir.IRValue, len(args))
	pending := ""
	for i, a := range args {
		switch x := a.(type) {
		case lit:
			vals[i] = x.v
		case ClosureRef:
			if pending == "" {
				pending = m.run.arena.at(x).HoleID
			}
		default:
			return nil, &RuntimeError{Op: op, Pos: pos, Message: fmt.Sprintf("argument %d is a function", i+1)}
		}
	}
	if pending == "" {
		v, err := applyBuiltin(op, vals)
		if err != nil {
			return nil, at(err, pos)
		}
		return lit{v: v}, nil
	}

	m.observe(op, args)
	if v, ok := partial(op, args); ok {
		return lit{v: v}, nil
	}
	return m.run.arena.alloc(Closure{Kind: ClosureOp, HoleID: pending, Op: op, args: args}), nil
}

// observe traces op on every pending argument that stands for a hole and
// records what the operation implies about it.
func (m *machine) observe(op string, args []value) {
	seen := map[string]bool{}
	for i, a := range args {
		ref, ok := a.(ClosureRef)
		if !ok {
			continue
		}
		c := *m.run.arena.at(ref)
		if c.subject == "" || seen[c.subject] {
			continue
		}
		seen[c.subject] = true

		seq := c.traceSeq
		if !c.returns {
			seq = m.record(c.subject, op, args)
		}
		field := ""
		if op == "get" && len(args) > 1 {
			if s, ok := concrete(args[1]); ok {
				if name, ok := s.(ir.IRString); ok {
					field = string(name)
				}
			}
		}
		if p, ok := discovered(usageOf(op, i), c.subject, c.returns, field); ok {
			m.ev.discover(c.subject, seq, p)
		}
	}
}

// record appends a trace entry for op to holeID and returns its seq.
func (m *machine) record(holeID, op string, args []value) int64 {
	inputs := make([]ir.IRValue, len(args))
	for i, a := range args {
		switch x := a.(type) {
		case lit:
			inputs[i] = x.v
		case ClosureRef:
			inputs[i] = ir.IRString("?" + m.run.arena.at(x).HoleID)
		default:
			inputs[i] = ir.IRString("<fn>")
		}
	}
	seq := m.ev.clock.Next()
	m.ev.trace(holeID).add(Entry{Seq: seq, Op: op, Inputs: inputs})
	return seq
}

// force resolves v as far as the current snapshot allows. Resolved
// closures cache their result, so a suspended branch is evaluated once,
// from its checkpoint, when its condition becomes known.
func (m *machine) force(v value) (value, error) {
	ref, ok := v.(ClosureRef)
	if !ok {
		return v, nil
	}
	c := *m.run.arena.at(ref)
	if c.resolved != nil {
		return m.force(c.resolved)
	}

	var out value
	var err error
	switch c.Kind {
	case ClosureHole:
		h, ok := m.view.At(c.Hole)
		if !ok || !h.Filled() {
			return ref, nil
		}
		out, err = holeValue(h)

	case ClosureOp:
		args, ready, ferr := m.forceAll(c.args)
		if ferr != nil {
			return nil, ferr
		}
		if !ready {
			pv, ok := partial(c.Op, args)
			if !ok {
				return ref, nil
			}
			out = lit{v: pv}
			break
		}
		out, err = m.builtin(c.Op, args, 0)

	case ClosureCall:
		fn, ferr := m.force(c.fn)
		if ferr != nil {
			return nil, ferr
		}
		if _, pending := fn.(ClosureRef); pending {
			return ref, nil
		}
		args, _, ferr := m.forceAll(c.args)
		if ferr != nil {
			return nil, ferr
		}
		out, err = m.apply(fn, args, 0)

	case ClosureBranch:
		cond, ferr := m.force(c.args[0])
		if ferr != nil {
			return nil, ferr
		}
		if _, pending := cond.(ClosureRef); pending {
			return ref, nil
		}
		out, err = m.branch(cond, c.branches, c.env, 0)
	}
	if err != nil {
		return nil, err
	}

	m.run.arena.at(ref).resolved = out
	final, err := m.force(out)
	if err != nil {
		return nil, err
	}
	if c.Kind == ClosureCall && c.traceSeq != 0 {
		if x, ok := concrete(final); ok {
			m.ev.output(c.HoleID, c.traceSeq, x)
		}
	}
	return final, nil
}

// forceAll forces every value and reports whether all became concrete.
func (m *machine) forceAll(vs []value) ([]value, bool, error) {
	out := make([]value, len(vs))
	ready := true
	for i, v := range vs {
		f, err := m.force(v)
		if err != nil {
			return nil, false, err
		}
		if _, pending := f.(ClosureRef); pending {
			ready = false
		}
		out[i] = f
	}
	return out, ready, nil
}

// outcome classifies a forced task result.
func (m *machine) outcome(v value) (ir.IRValue, bool, []string, error) {
	switch x := v.(type) {
	case lit:
		return x.v, false, nil, nil
	case ClosureRef:
		return nil, true, m.waitingOn(x), nil
	default:
		return nil, false, nil, &RuntimeError{Message: "result is a function, not a value"}
	}
}

// waitingOn lists the open holes v still depends on, in discovery order.
func (m *machine) waitingOn(v value) []string {
	var out []string
	seen := map[ClosureRef]bool{}
	var walk func(value)
	walk = func(v value) {
		ref, ok := v.(ClosureRef)
		if !ok || seen[ref] {
			return
		}
		seen[ref] = true
		c := m.run.arena.at(ref)
		if c.resolved != nil {
			walk(c.resolved)
			return
		}
		switch c.Kind {
		case ClosureHole:
			for _, id := range out {
				if id == c.HoleID {
					return
				}
			}
			out = append(out, c.HoleID)
		case ClosureCall:
			walk(c.fn)
			for _, a := range c.args {
				walk(a)
			}
		default:
			for _, a := range c.args {
				walk(a)
			}
		}
	}
	walk(v)
	return out
}
