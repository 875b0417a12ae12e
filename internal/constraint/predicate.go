package constraint

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/hollow/internal/ir"
)

// Predicate is one conjunct of a hole's constraint set.
//
// Expr is the current (possibly substituted and simplified) form. Source
// is the form the predicate was declared with and Bindings the values
// substituted into it since, which lets a conflict be explained in the
// terms the author wrote: "a < b, a == 100" rather than "100 < b".
type Predicate struct {
	Expr     Expr
	Source   Expr
	Bindings ir.IRObject
}

// NewPredicate wraps a declared expression.
func NewPredicate(e Expr) Predicate {
	return Predicate{Expr: e}
}

// ParsePredicate parses declared predicate source.
func ParsePredicate(src string) (Predicate, error) {
	e, err := Parse(src)
	if err != nil {
		return Predicate{}, err
	}
	return NewPredicate(e), nil
}

func (p Predicate) String() string { return p.Expr.String() }

// Declared returns the form the predicate was declared with.
func (p Predicate) Declared() Expr {
	if p.Source != nil {
		return p.Source
	}
	return p.Expr
}

// Substituted reports whether any value has been substituted into p.
func (p Predicate) Substituted() bool { return len(p.Bindings) > 0 }

// Substitute replaces name with value. changed is false when p does not
// mention name.
func (p Predicate) Substitute(name string, value ir.IRValue) (out Predicate, changed bool) {
	if !Mentions(p.Expr, name) {
		return p, false
	}
	out = Predicate{
		Expr:     Substitute(p.Expr, name, value),
		Source:   p.Declared(),
		Bindings: maps.Clone(p.Bindings),
	}
	if out.Bindings == nil {
		out.Bindings = ir.IRObject{}
	}
	out.Bindings[name] = value
	return out, true
}

// Rename rewrites from to to in the current form, the declared form and the
// binding keys.
func (p Predicate) Rename(from, to string) Predicate {
	out := Predicate{Expr: Rename(p.Expr, from, to)}
	if p.Source != nil {
		out.Source = Rename(p.Source, from, to)
	}
	if len(p.Bindings) > 0 {
		out.Bindings = make(ir.IRObject, len(p.Bindings))
		for k, v := range p.Bindings {
			if k == from {
				k = to
			}
			out.Bindings[k] = v
		}
	}
	return out
}

// Explain expands p into its declared form followed by one equality per
// substituted binding, sorted by name.
func (p Predicate) Explain() []string {
	out := []string{p.Declared().String()}
	for _, name := range p.Bindings.SortedKeys() {
		out = append(out, Eq(V(name), Val(p.Bindings[name])).String())
	}
	return out
}

// Vars returns the free identifiers of the current form.
func (p Predicate) Vars() []string { return FreeVars(p.Expr) }

type predicateJSON struct {
	Expr     string      `json:"expr"`
	Source   string      `json:"source,omitempty"`
	Bindings ir.IRObject `json:"bindings,omitempty"`
}

func (p Predicate) MarshalJSON() ([]byte, error) {
	doc := predicateJSON{Expr: p.Expr.String(), Bindings: p.Bindings}
	if p.Source != nil {
		doc.Source = p.Source.String()
	}
	return json.Marshal(doc)
}

func (p *Predicate) UnmarshalJSON(data []byte) error {
	var doc predicateJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	e, err := Parse(doc.Expr)
	if err != nil {
		return err
	}
	out := Predicate{Expr: e, Bindings: doc.Bindings}
	if doc.Source != "" {
		if out.Source, err = Parse(doc.Source); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}
	*p = out
	return nil
}

// Set is an ordered, duplicate-free conjunction of predicates. Sets are
// values: every method returns a new Set and never mutates the receiver.
type Set struct {
	preds []Predicate
}

// NewSet builds a set, dropping duplicates and literal true.
func NewSet(preds ...Predicate) Set {
	return Set{}.Add(preds...)
}

// ParseSet parses each source as a declared predicate.
func ParseSet(srcs ...string) (Set, error) {
	preds := make([]Predicate, 0, len(srcs))
	for _, src := range srcs {
		p, err := ParsePredicate(src)
		if err != nil {
			return Set{}, err
		}
		preds = append(preds, p)
	}
	return NewSet(preds...), nil
}

// MustParseSet is like ParseSet but panics on error.
func MustParseSet(srcs ...string) Set {
	s, err := ParseSet(srcs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Set) Len() int { return len(s.preds) }

func (s Set) At(i int) Predicate { return s.preds[i] }

// Predicates returns a copy of the predicates in order.
func (s Set) Predicates() []Predicate { return slices.Clone(s.preds) }

// Add appends predicates not already present (by printed form).
func (s Set) Add(preds ...Predicate) Set {
	out := Set{preds: slices.Clone(s.preds)}
	for _, p := range preds {
		if IsTrue(p.Expr) || out.contains(p) {
			continue
		}
		out.preds = append(out.preds, p)
	}
	return out
}

// Concat returns s followed by the predicates of o.
func (s Set) Concat(o Set) Set { return s.Add(o.preds...) }

func (s Set) contains(p Predicate) bool {
	key := p.String()
	for _, q := range s.preds {
		if q.String() == key {
			return true
		}
	}
	return false
}

// Without returns s minus the predicate at index i.
func (s Set) Without(i int) Set {
	out := make([]Predicate, 0, len(s.preds)-1)
	out = append(out, s.preds[:i]...)
	out = append(out, s.preds[i+1:]...)
	return Set{preds: out}
}

// Substitute replaces name with value in every predicate. Predicates that
// simplify to true are dropped. changed reports whether any predicate
// mentioned name.
func (s Set) Substitute(name string, value ir.IRValue) (out Set, changed bool) {
	next := make([]Predicate, 0, len(s.preds))
	for _, p := range s.preds {
		q, ok := p.Substitute(name, value)
		changed = changed || ok
		next = append(next, q)
	}
	if !changed {
		return s, false
	}
	return NewSet(next...), true
}

// Rename rewrites from to to throughout the set.
func (s Set) Rename(from, to string) Set {
	next := make([]Predicate, len(s.preds))
	for i, p := range s.preds {
		next[i] = p.Rename(from, to)
	}
	return NewSet(next...)
}

// Filter returns the predicates for which keep returns true.
func (s Set) Filter(keep func(Predicate) bool) Set {
	out := Set{}
	for _, p := range s.preds {
		if keep(p) {
			out.preds = append(out.preds, p)
		}
	}
	return out
}

// Mentions reports whether any predicate references name.
func (s Set) Mentions(name string) bool {
	for _, p := range s.preds {
		if Mentions(p.Expr, name) {
			return true
		}
	}
	return false
}

// Vars returns the free identifiers of the whole set, sorted.
func (s Set) Vars() []string {
	seen := map[string]bool{}
	for _, p := range s.preds {
		for _, v := range p.Vars() {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Strings returns the current form of each predicate.
func (s Set) Strings() []string {
	out := make([]string, len(s.preds))
	for i, p := range s.preds {
		out[i] = p.String()
	}
	return out
}

// Explain expands every predicate into declared form plus bindings,
// without duplicates, preserving first-occurrence order.
func (s Set) Explain() []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range s.preds {
		for _, line := range p.Explain() {
			if !seen[line] {
				seen[line] = true
				out = append(out, line)
			}
		}
	}
	return out
}

// Equal reports whether both sets hold the same predicates in the same
// order, comparing current form, declared form and bindings.
func (s Set) Equal(o Set) bool {
	if len(s.preds) != len(o.preds) {
		return false
	}
	for i := range s.preds {
		a, b := s.preds[i], o.preds[i]
		if a.String() != b.String() || a.Declared().String() != b.Declared().String() {
			return false
		}
		if !ir.Equal(bindingsOrEmpty(a.Bindings), bindingsOrEmpty(b.Bindings)) {
			return false
		}
	}
	return true
}

func bindingsOrEmpty(b ir.IRObject) ir.IRObject {
	if b == nil {
		return ir.IRObject{}
	}
	return b
}

func (s Set) MarshalJSON() ([]byte, error) {
	if s.preds == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.preds)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var preds []Predicate
	if err := json.Unmarshal(data, &preds); err != nil {
		return err
	}
	*s = Set{preds: preds}
	return nil
}
