// Package suggest requests candidate values for open holes from an
// external generator and attaches the results to the graph.
//
// The engine calls Dispatcher.Suggest after a pass commits. Requests run
// asynchronously, are coalesced per hole and constraint set, and pass
// through a rate limiter before reaching the generator. Results are
// written with graph.Store.AttachSuggestions, which never triggers
// propagation.
package suggest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/solver"
)

var (
	// requestsTotal counts generator calls by result
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hollow_suggest_requests_total",
		Help: "Suggestion generator requests by result",
	}, []string{"result"})

	// coalescedTotal counts requests answered by an in-flight duplicate
	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hollow_suggest_coalesced_total",
		Help: "Suggestion requests coalesced with an identical in-flight request",
	})
)

// Request describes the hole suggestions are wanted for.
type Request struct {
	HoleID      string
	Kind        ir.HoleKind
	Type        ir.TypeExpr
	Constraints constraint.Set
	Unverified  bool
}

// RequestFor builds the request for h.
func RequestFor(h graph.Hole) Request {
	return Request{
		HoleID:      h.ID,
		Kind:        h.Kind,
		Type:        h.Type,
		Constraints: h.Constraints,
		Unverified:  h.Unverified,
	}
}

func (r Request) key() string {
	return r.HoleID + "\x00" + strings.Join(r.Constraints.Strings(), "\x00")
}

// Generator produces ranked suggestions for a hole.
type Generator interface {
	Request(ctx context.Context, req Request) ([]ir.Suggestion, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) ([]ir.Suggestion, error)

func (f GeneratorFunc) Request(ctx context.Context, req Request) ([]ir.Suggestion, error) {
	return f(ctx, req)
}

const (
	// DefaultRate is the default generator call rate per second.
	DefaultRate = 10
	// DefaultTimeout bounds one generator call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxSuggestions caps the suggestions kept per hole.
	DefaultMaxSuggestions = 5
)

// Dispatcher implements the engine's Suggester.
type Dispatcher struct {
	graph   *graph.Store
	gen     Generator
	limiter *rate.Limiter
	flight  singleflight.Group
	timeout time.Duration
	max     int
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	// mu orders wg.Add against Wait and Close.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRate limits generator calls to perSecond with the given burst. A
// non-positive rate removes the limit.
func WithRate(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithTimeout bounds one generator call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithMaxSuggestions caps the suggestions attached per hole.
func WithMaxSuggestions(n int) Option {
	return func(d *Dispatcher) { d.max = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher that attaches gen's suggestions to g.
func NewDispatcher(g *graph.Store, gen Generator, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		graph:   g,
		gen:     gen,
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), DefaultRate),
		timeout: DefaultTimeout,
		max:     DefaultMaxSuggestions,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Suggest schedules a request for h and returns immediately.
func (d *Dispatcher) Suggest(h graph.Hole) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.ctx.Err() != nil {
		return
	}
	req := RequestFor(h)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatch(req)
	}()
}

func (d *Dispatcher) dispatch(req Request) {
	_, err, shared := d.flight.Do(req.key(), func() (any, error) {
		return nil, d.fetch(req)
	})
	if shared {
		coalescedTotal.Inc()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("suggestion request failed", "hole", req.HoleID, "error", err)
	}
}

func (d *Dispatcher) fetch(req Request) error {
	if err := d.limiter.Wait(d.ctx); err != nil {
		requestsTotal.WithLabelValues("cancelled").Inc()
		return err
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	suggestions, err := d.gen.Request(ctx, req)
	if err != nil {
		requestsTotal.WithLabelValues("error").Inc()
		return err
	}
	requestsTotal.WithLabelValues("ok").Inc()
	return d.Attach(req.HoleID, req.Constraints, suggestions)
}

// Attach stores suggestions on holeID if the hole is still Open with the
// constraints they were generated for. Stale results are dropped.
func (d *Dispatcher) Attach(holeID string, generatedFor constraint.Set, suggestions []ir.Suggestion) error {
	h, err := d.graph.Hole(holeID)
	if err != nil {
		if graph.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if !h.Open() || !h.Constraints.Equal(generatedFor) {
		d.logger.Debug("dropping stale suggestions", "hole", holeID, "status", h.Status)
		return nil
	}
	if d.max > 0 && len(suggestions) > d.max {
		suggestions = suggestions[:d.max]
	}
	if err := d.graph.AttachSuggestions(holeID, suggestions); err != nil {
		return err
	}
	d.logger.Debug("suggestions attached", "hole", holeID, "count", len(suggestions))
	return nil
}

// Wait blocks until every scheduled request has finished. Suggest calls
// made meanwhile block until it returns.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wg.Wait()
}

// Close cancels pending requests and waits for them to finish. Later
// Suggest calls are ignored.
func (d *Dispatcher) Close() {
	d.cancel()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// ModelGenerator proposes values the solver finds for a hole's
// constraints, excluding each found value before asking again.
type ModelGenerator struct {
	Oracle  solver.Oracle
	Limit   int
	Timeout time.Duration
}

// Request implements Generator.
func (g ModelGenerator) Request(ctx context.Context, req Request) ([]ir.Suggestion, error) {
	limit := g.Limit
	if limit <= 0 {
		limit = DefaultMaxSuggestions
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	rationale := "unconstrained"
	if req.Constraints.Len() > 0 {
		rationale = "satisfies " + strings.Join(req.Constraints.Strings(), " && ")
	}
	sctx := g.Oracle.NewContext()
	sctx.Assert(req.Constraints.Predicates()...)
	var out []ir.Suggestion
	for len(out) < limit {
		r := sctx.Check(ctx, timeout)
		if !r.Sat() {
			break
		}
		v, ok := r.Model[req.HoleID]
		if !ok || !req.Type.Admits(v) {
			break
		}
		out = append(out, ir.Suggestion{
			Value:      v,
			Rationale:  rationale,
			Confidence: 1000 / (len(out) + 2),
		})
		sctx.Assert(constraint.NewPredicate(constraint.Ne(constraint.V(req.HoleID), constraint.Val(v))))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
