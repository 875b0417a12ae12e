package solver

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/ir"
)

// Config bounds the reference solver's search.
type Config struct {
	// IntMin and IntMax are the integer window tried for variables whose
	// domain cannot be derived from the constraints.
	IntMin, IntMax int64
	// MaxDomain is the largest closed integer interval enumerated in full.
	MaxDomain int
	// MaxSteps caps assignment attempts per Check.
	MaxSteps int
	// MinimizeCores shrinks Unsat cores by deletion.
	MinimizeCores bool
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		IntMin:        -32,
		IntMax:        32,
		MaxDomain:     4096,
		MaxSteps:      1 << 18,
		MinimizeCores: true,
	}
}

// Bounded is a finite-domain backtracking solver.
//
// It derives a candidate domain for each free identifier from the shape of
// the constraints. When every domain is provably complete (pinned by
// equality or membership, or a closed integer interval) an exhausted search
// is a proof of unsatisfiability. Otherwise exhaustion yields Unknown, so
// the solver never reports Unsat for a set it has not refuted.
type Bounded struct {
	cfg Config
}

// NewBounded returns a solver with the given bounds.
func NewBounded(cfg Config) *Bounded {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.MaxDomain <= 0 {
		cfg.MaxDomain = DefaultConfig().MaxDomain
	}
	if cfg.IntMax < cfg.IntMin {
		cfg.IntMin, cfg.IntMax = cfg.IntMax, cfg.IntMin
	}
	return &Bounded{cfg: cfg}
}

// NewContext returns a push/pop context backed by b.
func (b *Bounded) NewContext() Context { return NewFrameContext(b) }

// Check decides set.
func (b *Bounded) Check(ctx context.Context, set constraint.Set, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res := b.decide(ctx, set)
	if res.Status != StatusUnsat {
		return res
	}
	res.Core = set
	if b.cfg.MinimizeCores {
		res.Core = b.minimize(ctx, set)
	}
	return res
}

// minimize drops predicates one at a time, keeping each drop that leaves
// the remainder Unsat. A trial that comes back Unknown keeps the predicate.
func (b *Bounded) minimize(ctx context.Context, set constraint.Set) constraint.Set {
	core := set
	for i := 0; i < core.Len(); {
		if ctx.Err() != nil {
			break
		}
		trial := core.Without(i)
		if b.decide(ctx, trial).Status == StatusUnsat {
			core = trial
			continue
		}
		i++
	}
	return core
}

func (b *Bounded) decide(ctx context.Context, set constraint.Set) Result {
	if ctx.Err() != nil {
		return Result{Status: StatusUnknown, Reason: ReasonTimeout}
	}
	preds := set.Predicates()
	var conjuncts []constraint.Expr
	for _, p := range preds {
		conjuncts = appendConjuncts(conjuncts, p.Expr)
	}

	// Ground predicates are decided outright.
	var open []constraint.Expr
	for _, c := range conjuncts {
		if len(constraint.FreeVars(c)) > 0 {
			open = append(open, c)
			continue
		}
		ok, err := constraint.Holds(c, nil)
		if err != nil || !ok {
			return Result{Status: StatusUnsat}
		}
	}

	vars := set.Vars()
	if len(vars) == 0 {
		return Result{Status: StatusSat, Model: constraint.Env{}}
	}

	doms := make(map[string]domain, len(vars))
	complete := true
	for _, v := range vars {
		if ctx.Err() != nil {
			return Result{Status: StatusUnknown, Reason: ReasonTimeout}
		}
		d := b.domainFor(v, open)
		doms[v] = d
		complete = complete && d.complete
	}

	order := slices.Clone(vars)
	slices.SortFunc(order, func(x, y string) int {
		if c := cmp.Compare(len(doms[x].values), len(doms[y].values)); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	pos := make(map[string]int, len(order))
	for i, v := range order {
		pos[v] = i
	}

	// Each conjunct is checked as soon as its last identifier is assigned.
	levels := make([][]constraint.Expr, len(order))
	for _, c := range open {
		lvl := 0
		for _, v := range constraint.FreeVars(c) {
			lvl = max(lvl, pos[v])
		}
		levels[lvl] = append(levels[lvl], c)
	}

	s := &search{
		ctx:      ctx,
		order:    order,
		doms:     doms,
		levels:   levels,
		env:      make(constraint.Env, len(order)),
		maxSteps: b.cfg.MaxSteps,
	}
	if s.assign(0) {
		model := make(constraint.Env, len(s.env))
		for k, v := range s.env {
			model[k] = v
		}
		return Result{Status: StatusSat, Model: model}
	}
	if s.stopped != "" {
		return Result{Status: StatusUnknown, Reason: s.stopped}
	}
	if complete {
		return Result{Status: StatusUnsat}
	}
	return Result{Status: StatusUnknown, Reason: ReasonIncomplete}
}

func appendConjuncts(out []constraint.Expr, e constraint.Expr) []constraint.Expr {
	if bin, ok := e.(constraint.Binary); ok && bin.Op == constraint.OpAnd {
		out = appendConjuncts(out, bin.X)
		return appendConjuncts(out, bin.Y)
	}
	return append(out, e)
}

type search struct {
	ctx      context.Context
	order    []string
	doms     map[string]domain
	levels   [][]constraint.Expr
	env      constraint.Env
	steps    int
	maxSteps int
	stopped  string
}

func (s *search) assign(i int) bool {
	if i == len(s.order) {
		return true
	}
	name := s.order[i]
	for _, val := range s.doms[name].values {
		s.steps++
		if s.steps > s.maxSteps {
			s.stopped = ReasonBudget
			return false
		}
		if s.steps%1024 == 0 && s.ctx.Err() != nil {
			s.stopped = ReasonTimeout
			return false
		}
		s.env[name] = val
		if s.consistent(s.levels[i]) && s.assign(i+1) {
			return true
		}
		if s.stopped != "" {
			return false
		}
	}
	delete(s.env, name)
	return false
}

func (s *search) consistent(exprs []constraint.Expr) bool {
	for _, e := range exprs {
		ok, err := constraint.Holds(e, s.env)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// domain is the ordered candidate list for one identifier. complete means
// every satisfying value is in values.
type domain struct {
	values   []ir.IRValue
	complete bool
}

// facts collects what the conjuncts say directly about one identifier.
type facts struct {
	pinned   []ir.IRValue // nil: unconstrained
	pinnedOK bool
	lo, hi   *int64
	empty    bool // an integer bound no int64 satisfies
	excluded []ir.IRValue
	types    []string // nil: unconstrained
	fields   map[string]ir.IRValue
	literals []ir.IRValue
}

func (f *facts) pin(vals []ir.IRValue) {
	if !f.pinnedOK {
		f.pinned = slices.Clone(vals)
		f.pinnedOK = true
		return
	}
	f.pinned = slices.DeleteFunc(f.pinned, func(v ir.IRValue) bool {
		return !slices.ContainsFunc(vals, func(w ir.IRValue) bool { return ir.Equal(v, w) })
	})
}

func (f *facts) restrictTypes(ts []string) {
	if f.types == nil {
		f.types = slices.Clone(ts)
		return
	}
	f.types = slices.DeleteFunc(f.types, func(t string) bool { return !slices.Contains(ts, t) })
}

func (f *facts) lower(n int64) {
	if f.lo == nil || n > *f.lo {
		f.lo = &n
	}
}

func (f *facts) upper(n int64) {
	if f.hi == nil || n < *f.hi {
		f.hi = &n
	}
}

func (f *facts) setField(name string, v ir.IRValue, override bool) {
	if f.fields == nil {
		f.fields = map[string]ir.IRValue{}
	}
	if _, ok := f.fields[name]; ok && !override {
		return
	}
	f.fields[name] = v
}

func (b *Bounded) domainFor(name string, conjuncts []constraint.Expr) domain {
	f := &facts{}
	for _, c := range conjuncts {
		collect(f, name, c)
		constraint.Walk(c, func(n constraint.Expr) {
			switch x := n.(type) {
			case constraint.Lit:
				f.literals = append(f.literals, x.Value)
				if arr, ok := x.Value.(ir.IRArray); ok {
					f.literals = append(f.literals, arr...)
				}
			case constraint.Field:
				if isVar(x.X, name) {
					f.setField(x.Name, ir.IRNull{}, false)
				}
			case constraint.Has:
				if isVar(x.X, name) {
					for _, fld := range x.Fields {
						f.setField(fld, ir.IRNull{}, false)
					}
				}
			}
		})
	}

	if f.pinnedOK {
		return domain{values: f.filter(f.pinned), complete: true}
	}
	if f.empty {
		return domain{complete: true}
	}
	if f.types != nil && len(f.types) == 0 {
		return domain{complete: true}
	}
	if len(f.types) == 1 {
		switch f.types[0] {
		case "bool":
			return domain{values: f.filter([]ir.IRValue{ir.IRBool(false), ir.IRBool(true)}), complete: true}
		case "null":
			return domain{values: f.filter([]ir.IRValue{ir.IRNull{}}), complete: true}
		}
	}
	if f.lo != nil && f.hi != nil && (f.types == nil || slices.Contains(f.types, "int")) {
		if *f.hi < *f.lo {
			return domain{complete: true}
		}
		// hi >= lo, so the uint64 difference is the exact width.
		if width := uint64(*f.hi) - uint64(*f.lo); width < uint64(b.cfg.MaxDomain) {
			vals := make([]ir.IRValue, 0, width+1)
			for i := uint64(0); i <= width; i++ {
				vals = append(vals, ir.IRInt(*f.lo+int64(i)))
			}
			return domain{values: f.filter(vals), complete: true}
		}
	}
	return domain{values: f.filter(b.candidates(f)), complete: false}
}

// collect records facts from a single conjunct.
func collect(f *facts, name string, c constraint.Expr) {
	switch x := c.(type) {
	case constraint.Var:
		if x.Name == name {
			f.pin([]ir.IRValue{ir.IRBool(true)})
		}
	case constraint.Unary:
		if x.Op == constraint.OpNot && isVar(x.X, name) {
			f.pin([]ir.IRValue{ir.IRBool(false)})
		}
	case constraint.Member:
		arr, ok := litArray(x.Set)
		if !ok {
			return
		}
		switch {
		case isVar(x.X, name):
			f.pin(arr)
		case isTypeof(x.X, name):
			f.restrictTypes(stringsOf(arr))
		case isFieldOf(x.X, name) != "" && len(arr) > 0:
			f.setField(isFieldOf(x.X, name), arr[0], false)
		}
	case constraint.Binary:
		collectBinary(f, name, x)
	}
}

func collectBinary(f *facts, name string, x constraint.Binary) {
	if !x.Op.IsComparison() {
		return
	}
	subject, lit, op := x.X, x.Y, x.Op
	if _, ok := subject.(constraint.Lit); ok {
		subject, lit, op = x.Y, x.X, x.Op.Flip()
	}
	l, ok := lit.(constraint.Lit)
	if !ok {
		return
	}

	switch {
	case isVar(subject, name):
		switch op {
		case constraint.OpEq:
			f.pin([]ir.IRValue{l.Value})
		case constraint.OpNe:
			f.excluded = append(f.excluded, l.Value)
		case constraint.OpLt, constraint.OpLe, constraint.OpGt, constraint.OpGe:
			n, isInt := l.Value.(ir.IRInt)
			if !isInt {
				if _, isStr := l.Value.(ir.IRString); isStr {
					f.restrictTypes([]string{"string"})
				}
				return
			}
			f.restrictTypes([]string{"int"})
			switch op {
			case constraint.OpLt:
				if n == math.MinInt64 {
					f.empty = true
					return
				}
				f.upper(int64(n) - 1)
			case constraint.OpLe:
				f.upper(int64(n))
			case constraint.OpGt:
				if n == math.MaxInt64 {
					f.empty = true
					return
				}
				f.lower(int64(n) + 1)
			default:
				f.lower(int64(n))
			}
		}
	case isTypeof(subject, name):
		if s, isStr := l.Value.(ir.IRString); isStr && op == constraint.OpEq {
			f.restrictTypes([]string{string(s)})
		}
	case isFieldOf(subject, name) != "":
		if op == constraint.OpEq {
			f.setField(isFieldOf(subject, name), l.Value, true)
		}
	case isFieldTypeof(subject, name) != "":
		if s, isStr := l.Value.(ir.IRString); isStr && op == constraint.OpEq {
			f.setField(isFieldTypeof(subject, name), zeroOf(string(s)), true)
		}
	}
}

// candidates builds a heuristic domain for an identifier whose values the
// constraints do not pin down.
func (b *Bounded) candidates(f *facts) []ir.IRValue {
	var out []ir.IRValue
	for _, lit := range f.literals {
		out = append(out, lit)
		if n, ok := lit.(ir.IRInt); ok {
			for d := ir.IRInt(-2); d <= 2; d++ {
				if v, exact := ir.AddInt(n, d); exact {
					out = append(out, v)
				}
			}
		}
	}
	for n := b.cfg.IntMin; ; n++ {
		out = append(out, ir.IRInt(n))
		if n >= b.cfg.IntMax {
			break
		}
	}
	if f.lo != nil {
		for d := ir.IRInt(0); d < 4; d++ {
			if v, exact := ir.AddInt(ir.IRInt(*f.lo), d); exact {
				out = append(out, v)
			}
		}
	}
	if f.hi != nil {
		for d := ir.IRInt(0); d < 4; d++ {
			if v, exact := ir.SubInt(ir.IRInt(*f.hi), d); exact {
				out = append(out, v)
			}
		}
	}
	out = append(out,
		ir.IRBool(false), ir.IRBool(true), ir.IRNull{}, ir.IRString(""),
		ir.IRArray{}, ir.IRObject{},
	)
	for _, t := range f.types {
		out = append(out, zeroOf(t))
	}
	if len(f.fields) > 0 {
		obj := make(ir.IRObject, len(f.fields))
		for k, v := range f.fields {
			obj[k] = v
		}
		out = append(out, obj)
	}
	return out
}

// filter applies exclusions, the integer interval and type restrictions,
// removes duplicates and sorts deterministically.
func (f *facts) filter(vals []ir.IRValue) []ir.IRValue {
	seen := make(map[string]bool, len(vals))
	out := make([]ir.IRValue, 0, len(vals))
	for _, v := range vals {
		if f.types != nil && !slices.Contains(f.types, ir.TypeName(v)) {
			continue
		}
		if slices.ContainsFunc(f.excluded, func(x ir.IRValue) bool { return ir.Equal(v, x) }) {
			continue
		}
		if n, ok := v.(ir.IRInt); ok {
			if (f.lo != nil && int64(n) < *f.lo) || (f.hi != nil && int64(n) > *f.hi) {
				continue
			}
		}
		key := ir.Key(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	slices.SortStableFunc(out, compareCandidates)
	return out
}

var typeRank = map[string]int{"int": 0, "string": 1, "bool": 2, "null": 3, "array": 4, "object": 5}

func compareCandidates(a, b ir.IRValue) int {
	ta, tb := ir.TypeName(a), ir.TypeName(b)
	if c := cmp.Compare(typeRank[ta], typeRank[tb]); c != 0 {
		return c
	}
	if c, ok := ir.Compare(a, b); ok {
		return c
	}
	return cmp.Compare(ir.Key(a), ir.Key(b))
}

func zeroOf(typeName string) ir.IRValue {
	switch typeName {
	case "int":
		return ir.IRInt(0)
	case "string":
		return ir.IRString("")
	case "bool":
		return ir.IRBool(false)
	case "array":
		return ir.IRArray{}
	case "object":
		return ir.IRObject{}
	default:
		return ir.IRNull{}
	}
}

func isVar(e constraint.Expr, name string) bool {
	v, ok := e.(constraint.Var)
	return ok && v.Name == name
}

func isTypeof(e constraint.Expr, name string) bool {
	c, ok := e.(constraint.Call)
	return ok && c.Fn == constraint.FnTypeof && len(c.Args) == 1 && isVar(c.Args[0], name)
}

// isFieldOf returns f when e is name.f.
func isFieldOf(e constraint.Expr, name string) string {
	fld, ok := e.(constraint.Field)
	if ok && isVar(fld.X, name) {
		return fld.Name
	}
	return ""
}

// isFieldTypeof returns f when e is typeof(name.f).
func isFieldTypeof(e constraint.Expr, name string) string {
	c, ok := e.(constraint.Call)
	if !ok || c.Fn != constraint.FnTypeof || len(c.Args) != 1 {
		return ""
	}
	return isFieldOf(c.Args[0], name)
}

func litArray(e constraint.Expr) ([]ir.IRValue, bool) {
	l, ok := e.(constraint.Lit)
	if !ok {
		return nil, false
	}
	arr, ok := l.Value.(ir.IRArray)
	return arr, ok
}

func stringsOf(vals []ir.IRValue) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(ir.IRString); ok {
			out = append(out, string(s))
		}
	}
	return out
}
