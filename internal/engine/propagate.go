package engine

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/solver"
)

// binding is a value fixed during the current pass.
type binding struct {
	id    string
	value ir.IRValue
}

// note collects per-hole facts for the pass's events.
type note struct {
	autoFilled bool
	unverified bool
}

// pass is the state of one engine call inside its graph transaction.
type pass struct {
	e   *Engine
	ctx context.Context
	tx  *graph.Tx
	res *PassResult

	sctx   solver.Context
	budget *VisitBudget
	depths map[string]int
	queue  worklist
	queued map[string]bool
	bound  []binding

	notes       map[string]*note
	suggestions []string
	decorate    func(*revlog.Step)
}

func (e *Engine) newPass(ctx context.Context, tx *graph.Tx, res *PassResult) *pass {
	return &pass{
		e:      e,
		ctx:    ctx,
		tx:     tx,
		res:    res,
		sctx:   e.oracle.NewContext(),
		budget: NewVisitBudget(e.maxVisits),
		queued: make(map[string]bool),
		notes:  make(map[string]*note),
	}
}

func (p *pass) note(id string) *note {
	n, ok := p.notes[id]
	if !ok {
		n = &note{}
		p.notes[id] = n
	}
	return n
}

func (p *pass) suggest(id string) {
	p.suggestions = append(p.suggestions, id)
}

// bind records a value fixed in this pass. Later dependents get every
// bound value substituted in bind order.
func (p *pass) bind(id string, v ir.IRValue) {
	p.bound = append(p.bound, binding{id: id, value: v})
}

// enqueueDependents schedules the propagation dependents of id that have
// not been scheduled yet in this pass.
func (p *pass) enqueueDependents(id string) {
	if p.depths == nil {
		p.depths = p.tx.Depths()
	}
	for _, dep := range p.tx.Dependents(id) {
		if p.queued[dep] {
			continue
		}
		h, err := p.tx.Hole(dep)
		if err != nil {
			continue
		}
		p.queued[dep] = true
		heap.Push(&p.queue, item{id: dep, depth: p.depths[dep], seq: h.Seq})
	}
}

// drain processes the worklist until it is empty. Cancellation is
// checked between items; the caller's transaction is discarded on error.
func (p *pass) drain() error {
	for p.queue.Len() > 0 {
		if err := p.ctx.Err(); err != nil {
			return fmt.Errorf("propagation cancelled: %w", err)
		}
		it := heap.Pop(&p.queue).(item)
		if err := p.budget.Visit(it.id); err != nil {
			return err
		}
		if err := p.visit(it.id); err != nil {
			return err
		}
	}
	return nil
}

// visit substitutes the pass's bound values into one dependent and
// re-checks it.
func (p *pass) visit(id string) error {
	h, err := p.tx.Hole(id)
	if err != nil {
		return err
	}
	if h.Status != ir.StatusOpen && h.Status != ir.StatusDeferred {
		holeOutcomes.WithLabelValues(outcomeUnchanged).Inc()
		return nil
	}
	set := h.Constraints
	changed := false
	for _, b := range p.bound {
		var ok bool
		set, ok = set.Substitute(b.id, b.value)
		changed = changed || ok
	}
	if !changed {
		holeOutcomes.WithLabelValues(outcomeUnchanged).Inc()
		p.e.logger.Debug("propagation step",
			"hole", id,
			"depth", p.depths[id],
			"outcome", outcomeUnchanged,
		)
		return nil
	}
	return p.refine(h, set)
}

// refine installs set as h's constraints after checking it in a trial
// frame. Unsat marks h Conflicted. Sat with a unique model for h
// auto-fills an Open h and enqueues its dependents. Unknown flags h
// Unverified.
func (p *pass) refine(h graph.Hole, set constraint.Set) error {
	p.sctx.Push()
	defer func() { _ = p.sctx.Pop() }()
	p.sctx.Assert(set.Predicates()...)
	r := p.sctx.Check(p.ctx, p.e.timeout)
	observeCheck(r)

	h.Constraints = set
	outcome := outcomeRefined
	switch r.Status {
	case solver.StatusUnsat:
		h.Status = ir.StatusConflicted
		h.Core = r.Core.Explain()
		h.Unverified = false
		outcome = outcomeConflicted
		p.res.Conflicted = append(p.res.Conflicted, h.ID)

	case solver.StatusUnknown:
		h.Unverified = true
		outcome = outcomeUnverified
		p.note(h.ID).unverified = true
		p.res.Unverified = append(p.res.Unverified, h.ID)
		if r.TimedOut() {
			p.e.logger.Warn("solver timeout", "hole", h.ID, "timeout", p.e.timeout)
		}
		p.suggest(h.ID)

	case solver.StatusSat:
		h.Unverified = false
		if v, ok := p.uniqueValue(h, r.Model); ok {
			h.Status = ir.StatusFilled
			h.Value = v
			outcome = outcomeAutoFilled
			p.note(h.ID).autoFilled = true
			p.res.AutoFilled = append(p.res.AutoFilled, h.ID)
		} else {
			p.suggest(h.ID)
		}
	}

	holeOutcomes.WithLabelValues(outcome).Inc()
	p.e.logger.Debug("propagation step",
		"hole", h.ID,
		"depth", p.depths[h.ID],
		"outcome", outcome,
		"constraints", len(set.Strings()),
	)
	if err := p.tx.Put(h); err != nil {
		return err
	}
	if outcome == outcomeAutoFilled {
		p.bind(h.ID, h.Value)
		p.enqueueDependents(h.ID)
	}
	return nil
}

// uniqueValue asks whether every model of the current frame gives h the
// value model[h]. Only Open holes whose type admits the value and that
// have no filled Conflicting peer qualify.
func (p *pass) uniqueValue(h graph.Hole, model constraint.Env) (ir.IRValue, bool) {
	if h.Status != ir.StatusOpen {
		return nil, false
	}
	v, ok := model[h.ID]
	if !ok || !p.e.effectiveType(p.tx.View, h.Type).Admits(v) {
		return nil, false
	}
	for _, peer := range p.tx.ConflictPeers(h.ID) {
		if ph, err := p.tx.Hole(peer); err == nil && ph.Filled() {
			return nil, false
		}
	}

	p.sctx.Push()
	defer func() { _ = p.sctx.Pop() }()
	p.sctx.Assert(constraint.NewPredicate(constraint.Ne(constraint.V(h.ID), constraint.Val(v))))
	r := p.sctx.Check(p.ctx, p.e.timeout)
	observeCheck(r)
	return v, r.Unsat()
}

// item is a worklist entry.
type item struct {
	id    string
	depth int
	seq   int64
}

// worklist orders pending dependents by topological depth, then creation
// order.
type worklist []item

func (w worklist) Len() int { return len(w) }

func (w worklist) Less(i, j int) bool {
	if w[i].depth != w[j].depth {
		return w[i].depth < w[j].depth
	}
	return w[i].seq < w[j].seq
}

func (w worklist) Swap(i, j int) { w[i], w[j] = w[j], w[i] }

func (w *worklist) Push(x any) { *w = append(*w, x.(item)) }

func (w *worklist) Pop() any {
	old := *w
	it := old[len(old)-1]
	*w = old[:len(old)-1]
	return it
}
