package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/events"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/solver"
)

// DefaultTimeout is the default budget for one solver query.
const DefaultTimeout = 3 * time.Second

// Suggester receives fire-and-forget requests to regenerate a hole's
// suggestions. Implementations must not block and attach their results
// through graph.Store.AttachSuggestions.
type Suggester interface {
	Suggest(h graph.Hole)
}

// RevertPolicy decides what a revert does with data that lives beside the
// hole's logical state.
type RevertPolicy struct {
	// KeepSuggestions keeps the suggestions currently attached to reverted
	// holes instead of restoring the ones recorded before the step.
	KeepSuggestions bool
	// KeepTraces asks revert hooks to keep evaluation traces of reverted
	// holes.
	KeepTraces bool
}

// RevertHook is called after a revision is reverted, with the reverted
// step and the policy in force.
type RevertHook func(reverted revlog.Step, policy RevertPolicy)

// PassResult describes one committed engine call.
type PassResult struct {
	Revision string
	Action   ir.Action
	HoleID   string
	// Created lists holes the call introduced (Split children, the Merge
	// result).
	Created []string
	Events  []events.Event
	// Conflicted, AutoFilled and Unverified list dependents in processing
	// order.
	Conflicted []string
	AutoFilled []string
	Unverified []string
	// Visited counts dependents taken off the worklist.
	Visited int
}

// Engine drives mutations of one session's hole graph.
type Engine struct {
	graph  *graph.Store
	oracle solver.Oracle
	log    *revlog.Log
	clock  *Clock
	seqs   *Clock

	busy sync.Mutex

	timeout   time.Duration
	policy    RevertPolicy
	suggester Suggester
	bus       *events.Bus
	maxVisits int
	logger    *slog.Logger

	hookMu sync.Mutex
	hooks  []RevertHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the budget for each solver query.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithRevertPolicy sets the revert policy.
func WithRevertPolicy(p RevertPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSuggester sets where suggestion requests go.
func WithSuggester(s Suggester) Option {
	return func(e *Engine) { e.suggester = s }
}

// WithBus publishes pass events to b.
func WithBus(b *events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithMaxVisits caps the dependents visited per pass. Zero disables the cap.
func WithMaxVisits(n int) Option {
	return func(e *Engine) { e.maxVisits = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock revision steps are stamped from. Used when a
// session is restored so seqs continue after the last stored step.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine over g. Every committed pass is appended to log.
func New(g *graph.Store, oracle solver.Oracle, log *revlog.Log, opts ...Option) *Engine {
	e := &Engine{
		graph:     g,
		oracle:    oracle,
		log:       log,
		clock:     NewClock(),
		seqs:      NewClock(),
		timeout:   DefaultTimeout,
		maxVisits: DefaultMaxVisits,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Quiesced runs fn against a snapshot taken while no mutation is in
// flight, so the graph and the revision log agree. Mutations attempted
// while fn runs fail with a StateError.
func (e *Engine) Quiesced(fn func(view graph.View) error) error {
	e.busy.Lock()
	defer e.busy.Unlock()
	return fn(e.graph.View())
}

// Declare applies an unlogged graph update, such as an IR producer
// declaring holes, under the same guard as the engine's mutations. It
// fails with a StateError while another mutation is in flight.
func (e *Engine) Declare(update func(tx *graph.Tx) error) (graph.ChangeSet, error) {
	if !e.busy.TryLock() {
		return graph.ChangeSet{}, busyError("")
	}
	defer e.busy.Unlock()
	return e.graph.Update(update)
}

// Graph returns the store the engine mutates.
func (e *Engine) Graph() *graph.Store { return e.graph }

// Log returns the revision log.
func (e *Engine) Log() *revlog.Log { return e.log }

// Policy returns the revert policy.
func (e *Engine) Policy() RevertPolicy { return e.policy }

// Clock returns the clock revision steps are stamped from.
func (e *Engine) Clock() *Clock { return e.clock }

// OnRevert registers a hook run after every successful revert, undo
// included.
func (e *Engine) OnRevert(h RevertHook) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.hooks = append(e.hooks, h)
}

func (e *Engine) check(ctx context.Context, set constraint.Set) solver.Result {
	r := e.oracle.Check(ctx, set, e.timeout)
	observeCheck(r)
	return r
}

// Fill sets an Open hole's value and propagates it to dependents.
//
// The value must inhabit the hole's type and satisfy its declared
// constraints (ValidationError otherwise). It must also be consistent
// with the values already substituted into the hole and with filled
// neighbours (ConflictError otherwise), and no Conflicting peer may be
// filled. A rejected fill changes nothing.
func (e *Engine) Fill(ctx context.Context, holeID string, value ir.IRValue) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError(holeID)
	}
	defer e.busy.Unlock()

	if value == nil {
		return nil, graph.NewValidationError(holeID, "", "fill value is required")
	}
	view := e.graph.View()
	h, err := view.Hole(holeID)
	if err != nil {
		return nil, err
	}
	if !h.Open() {
		return nil, graph.NewStateError(holeID, "cannot fill a %s hole", h.Status)
	}
	unverified, err := e.checkFill(ctx, view, h, value)
	if err != nil {
		return nil, err
	}

	res, err := e.run(ctx, ir.ActionFill, holeID, func(p *pass) error {
		h, err := p.tx.Hole(holeID)
		if err != nil {
			return err
		}
		h.Status = ir.StatusFilled
		h.Value = value
		h.Unverified = unverified
		if err := p.tx.Put(h); err != nil {
			return err
		}
		p.bind(holeID, value)
		p.enqueueDependents(holeID)
		return p.drain()
	})
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// checkFill runs the local checks of Fill against view.
func (e *Engine) checkFill(ctx context.Context, view graph.View, h graph.Hole, v ir.IRValue) (unverified bool, err error) {
	if t := e.effectiveType(view, h.Type); !t.Admits(v) {
		return false, graph.NewValidationError(h.ID,
			fmt.Sprintf("%s = %s is not a %s", h.ID, ir.Format(v), t),
			"value does not match type %s", t)
	}

	own := h.Constraints.Filter(func(p constraint.Predicate) bool { return !p.Substituted() })
	ownSub, _ := own.Substitute(h.ID, v)
	r := e.check(ctx, ownSub)
	switch r.Status {
	case solver.StatusUnsat:
		return false, validationFromCore(h.ID, v, r.Core)
	case solver.StatusUnknown:
		unverified = true
	}

	full := h.Constraints.Concat(neighbourFacts(view, h.ID))
	if full.Len() > own.Len() {
		fullSub, _ := full.Substitute(h.ID, v)
		r := e.check(ctx, fullSub)
		switch r.Status {
		case solver.StatusUnsat:
			return false, conflictFromCore(h.ID, r.Core, "filling %s with %s contradicts its dependencies", h.ID, ir.Format(v))
		case solver.StatusUnknown:
			unverified = true
		}
	}

	for _, peer := range view.ConflictPeers(h.ID) {
		ph, err := view.Hole(peer)
		if err != nil || !ph.Filled() {
			continue
		}
		return false, graph.NewConflictError(h.ID, []string{
			fmt.Sprintf("%s conflicts with %s", h.ID, peer),
			constraint.Eq(constraint.V(peer), constraint.Val(ph.Value)).String(),
		}, "conflicting hole %s is already filled", peer)
	}
	return unverified, nil
}

// effectiveType resolves a ?T annotation through a filled Type hole whose
// value is a type name.
func (e *Engine) effectiveType(view graph.View, t ir.TypeExpr) ir.TypeExpr {
	ref, ok := t.HoleRef()
	if !ok {
		return t
	}
	th, err := view.Hole(ref)
	if err != nil || !th.Filled() {
		return t
	}
	if name, ok := th.Value.(ir.IRString); ok {
		return ir.TypeExpr(name)
	}
	return t
}

// neighbourFacts returns the predicates of filled propagation neighbours
// of id that still mention id, with the neighbour's own value substituted.
func neighbourFacts(view graph.View, id string) constraint.Set {
	var out constraint.Set
	seen := map[string]bool{}
	for _, n := range append(view.Dependencies(id), view.Dependents(id)...) {
		if seen[n] {
			continue
		}
		seen[n] = true
		nh, err := view.Hole(n)
		if err != nil || !nh.Filled() {
			continue
		}
		sub, _ := nh.Constraints.Substitute(nh.ID, nh.Value)
		out = out.Concat(sub.Filter(func(p constraint.Predicate) bool {
			return constraint.Mentions(p.Expr, id)
		}))
	}
	return out
}

// Constrain adds predicates to an Open or Deferred hole. Values of filled
// holes the predicates mention are substituted first. A set that becomes
// unsatisfiable is rejected with a ConflictError; otherwise the hole may
// auto-fill and propagate like a fill.
func (e *Engine) Constrain(ctx context.Context, holeID string, preds ...constraint.Predicate) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError(holeID)
	}
	defer e.busy.Unlock()

	view := e.graph.View()
	h, err := view.Hole(holeID)
	if err != nil {
		return nil, err
	}
	if h.Status != ir.StatusOpen && h.Status != ir.StatusDeferred {
		return nil, graph.NewStateError(holeID, "cannot constrain a %s hole", h.Status)
	}
	if len(preds) == 0 {
		return nil, graph.NewValidationError(holeID, "", "no predicates given")
	}

	added := make([]constraint.Predicate, 0, len(preds))
	for _, p := range preds {
		p = p.Rename(constraint.SelfName, holeID)
		for _, name := range p.Vars() {
			if name == holeID {
				continue
			}
			if other, err := view.Hole(name); err == nil && other.Filled() {
				p, _ = p.Substitute(name, other.Value)
			}
		}
		added = append(added, p)
	}
	next := h.Constraints.Add(added...)
	if next.Equal(h.Constraints) {
		return nil, graph.NewValidationError(holeID, "", "constraints already present")
	}
	r := e.check(ctx, next)
	if r.Unsat() {
		return nil, conflictFromCore(holeID, r.Core, "new constraints on %s are unsatisfiable", holeID)
	}

	res, err := e.run(ctx, ir.ActionConstrain, holeID, func(p *pass) error {
		h, err := p.tx.Hole(holeID)
		if err != nil {
			return err
		}
		if err := p.refine(h, next); err != nil {
			return err
		}
		return p.drain()
	})
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// Defer moves an Open hole to Deferred.
func (e *Engine) Defer(ctx context.Context, holeID string) (*PassResult, error) {
	return e.transition(ctx, ir.ActionDefer, holeID, ir.StatusOpen, ir.StatusDeferred)
}

// Reopen moves a Deferred hole back to Open.
func (e *Engine) Reopen(ctx context.Context, holeID string) (*PassResult, error) {
	return e.transition(ctx, ir.ActionReopen, holeID, ir.StatusDeferred, ir.StatusOpen)
}

func (e *Engine) transition(ctx context.Context, action ir.Action, holeID string, from, to ir.HoleStatus) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError(holeID)
	}
	defer e.busy.Unlock()

	h, err := e.graph.Hole(holeID)
	if err != nil {
		return nil, err
	}
	if h.Status != from {
		return nil, graph.NewStateError(holeID, "cannot %s a %s hole", action, h.Status)
	}
	res, err := e.run(ctx, action, holeID, func(p *pass) error {
		h, err := p.tx.Hole(holeID)
		if err != nil {
			return err
		}
		h.Status = to
		if to == ir.StatusOpen {
			p.suggest(holeID)
		}
		return p.tx.Put(h)
	})
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// Split replaces an Open hole with children; see graph.Tx.Split.
func (e *Engine) Split(ctx context.Context, holeID string, children []graph.ChildSpec, mapping graph.EdgeMapping) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError(holeID)
	}
	defer e.busy.Unlock()

	res, err := e.run(ctx, ir.ActionSplit, holeID, func(p *pass) error {
		ids, err := p.tx.Split(holeID, children, mapping)
		if err != nil {
			return err
		}
		p.res.Created = ids
		for _, id := range ids {
			p.suggest(id)
		}
		return nil
	})
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// Merge replaces Open holes with one hole carrying the union of their
// constraints. The union is checked before anything is written; Unsat is
// a ConflictError and Unknown flags the merged hole Unverified.
func (e *Engine) Merge(ctx context.Context, holeIDs []string, spec graph.MergeSpec) (*PassResult, error) {
	if !e.busy.TryLock() {
		return nil, busyError(spec.ID)
	}
	defer e.busy.Unlock()

	var unverified bool
	verify := func(set constraint.Set) error {
		r := e.check(ctx, set)
		switch r.Status {
		case solver.StatusUnsat:
			return conflictFromCore(spec.ID, r.Core, "merged constraints are unsatisfiable")
		case solver.StatusUnknown:
			unverified = true
		}
		return nil
	}

	res, err := e.run(ctx, ir.ActionMerge, spec.ID, func(p *pass) error {
		id, err := p.tx.Merge(holeIDs, spec, verify)
		if err != nil {
			return err
		}
		p.res.HoleID = id
		p.res.Created = []string{id}
		if unverified {
			h, err := p.tx.Hole(id)
			if err != nil {
				return err
			}
			h.Unverified = true
			if err := p.tx.Put(h); err != nil {
				return err
			}
			p.note(id).unverified = true
		}
		p.suggest(id)
		return nil
	})
	if err == nil {
		e.log.ClearRedo()
	}
	return res, err
}

// run executes fn as one pass: a single graph transaction that, on
// success, is recorded as one revision step and then announced.
func (e *Engine) run(ctx context.Context, action ir.Action, holeID string, fn func(*pass) error) (*PassResult, error) {
	start := time.Now()
	res := &PassResult{Action: action, HoleID: holeID}
	var p *pass

	cs, err := e.graph.Update(func(tx *graph.Tx) error {
		p = e.newPass(ctx, tx, res)
		if err := fn(p); err != nil {
			return err
		}
		changes := tx.Changes()
		if changes.Empty() {
			return graph.NewStateError(res.HoleID, "%s changed nothing", action)
		}
		st, err := revlog.NewStep(e.log.Head(), e.clock.Next(), action, res.HoleID, changes)
		if err != nil {
			return err
		}
		if p.decorate != nil {
			p.decorate(&st)
		}
		if err := e.log.Append(ctx, st); err != nil {
			return fmt.Errorf("record %s of %s: %w", action, res.HoleID, err)
		}
		res.Revision = st.ID
		return nil
	})

	passDuration.WithLabelValues(action.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		passTotal.WithLabelValues(action.String(), "error").Inc()
		e.logger.Debug("pass rejected",
			"action", action,
			"hole", holeID,
			"error", err,
		)
		return nil, err
	}
	passTotal.WithLabelValues(action.String(), "ok").Inc()
	passVisits.Observe(float64(p.budget.Visits()))
	res.Visited = p.budget.Visits()
	res.Events = e.announce(res, cs, p)

	e.logger.Info("pass committed",
		"action", action,
		"hole", res.HoleID,
		"revision", res.Revision[:12],
		"visited", res.Visited,
		"conflicted", len(res.Conflicted),
		"auto_filled", len(res.AutoFilled),
	)
	return res, nil
}

// announce builds one event per changed hole in change order, publishes
// them and dispatches suggestion requests.
func (e *Engine) announce(res *PassResult, cs graph.ChangeSet, p *pass) []events.Event {
	evs := make([]events.Event, 0, len(cs.Holes))
	for _, d := range cs.Holes {
		ev := events.Event{
			Seq:      e.seqs.Next(),
			Revision: res.Revision,
			Action:   res.Action,
			HoleID:   d.ID,
		}
		if d.After == nil {
			ev.Removed = true
			ev.Status = d.Before.Status
			evs = append(evs, ev)
			continue
		}
		after := d.After
		ev.Status = after.Status
		ev.Unverified = after.Unverified
		if after.Value != nil {
			ev.Value = ir.Format(after.Value)
		}
		if d.Before == nil || !d.Before.Constraints.Equal(after.Constraints) {
			ev.Constraints = after.Constraints.Strings()
		}
		if after.Status == ir.StatusConflicted {
			ev.Conflict = after.Core
		}
		if n, ok := p.notes[d.ID]; ok {
			ev.AutoFilled = n.autoFilled
		}
		evs = append(evs, ev)
	}
	if e.bus != nil {
		e.bus.Publish(evs...)
	}

	if e.suggester != nil {
		view := e.graph.View()
		for _, id := range p.suggestions {
			if h, err := view.Hole(id); err == nil && h.Open() {
				e.suggester.Suggest(h)
			}
		}
	}
	return evs
}
