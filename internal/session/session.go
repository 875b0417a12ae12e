// Package session ties one hole graph to its engine, evaluator, revision
// log, event bus and suggestion dispatcher.
//
// A Session owns exactly one graph store. Sessions share nothing: two
// sessions never see each other's holes, solver contexts or logs. Branch
// derives a new session from a past revision and Serialize/Deserialize
// move a session through the versioned document format.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/eval"
	"github.com/roach88/hollow/internal/events"
	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/solver"
	"github.com/roach88/hollow/internal/suggest"
)

// IDGenerator produces session IDs.
type IDGenerator interface {
	Generate() string
}

// uuidGenerator issues time-ordered UUIDv7 IDs.
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

type options struct {
	id          string
	ids         IDGenerator
	oracle      solver.Oracle
	engineOpts  []engine.Option
	evalOpts    []eval.Option
	journal     revlog.Journal
	generator   suggest.Generator
	suggestOpts []suggest.Option
	logger      *slog.Logger
}

// Option configures a Session.
type Option func(*options)

// WithID fixes the session ID instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithIDGenerator sets how session IDs are generated, for New and Branch.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithOracle sets the solver. Defaults to the bounded reference solver.
func WithOracle(oracle solver.Oracle) Option {
	return func(o *options) { o.oracle = oracle }
}

// WithEngineOptions passes options through to the engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithEvalOptions passes options through to the evaluator.
func WithEvalOptions(opts ...eval.Option) Option {
	return func(o *options) { o.evalOpts = append(o.evalOpts, opts...) }
}

// WithJournal mirrors every new revision step to j.
func WithJournal(j revlog.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithGenerator enables suggestions from gen.
func WithGenerator(gen suggest.Generator, opts ...suggest.Option) Option {
	return func(o *options) {
		o.generator = gen
		o.suggestOpts = append(o.suggestOpts, opts...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		ids:    uuidGenerator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.oracle == nil {
		o.oracle = solver.NewBounded(solver.DefaultConfig())
	}
	return o
}

// Session is one independent hole graph and everything that acts on it.
type Session struct {
	id         string
	graph      *graph.Store
	log        *revlog.Log
	engine     *engine.Engine
	eval       *eval.Evaluator
	bus        *events.Bus
	dispatcher *suggest.Dispatcher
	opts       options

	// set on branches
	origin     string
	originStep string
}

// New creates an empty session.
func New(opts ...Option) *Session {
	o := buildOptions(opts)
	id := o.id
	if id == "" {
		id = o.ids.Generate()
	}
	return build(id, graph.NewStore(), revlog.New(o.logOptions(id)...), engine.NewClock(), o)
}

func (o options) logOptions(id string) []revlog.Option {
	if o.journal == nil {
		return nil
	}
	return []revlog.Option{revlog.WithJournal(id, o.journal)}
}

func build(id string, g *graph.Store, log *revlog.Log, clock *engine.Clock, o options) *Session {
	s := &Session{
		id:    id,
		graph: g,
		log:   log,
		bus:   events.NewBus(),
		opts:  o,
	}
	logger := o.logger.With("session", id)

	engineOpts := []engine.Option{
		engine.WithBus(s.bus),
		engine.WithClock(clock),
		engine.WithLogger(logger),
	}
	if o.generator != nil {
		s.dispatcher = suggest.NewDispatcher(g, o.generator,
			append([]suggest.Option{suggest.WithLogger(logger)}, o.suggestOpts...)...)
		engineOpts = append(engineOpts, engine.WithSuggester(s.dispatcher))
	}
	s.engine = engine.New(g, o.oracle, log, append(engineOpts, o.engineOpts...)...)
	s.eval = eval.New(s.engine, append([]eval.Option{eval.WithLogger(logger)}, o.evalOpts...)...)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Graph returns the session's hole graph.
func (s *Session) Graph() *graph.Store { return s.graph }

// Log returns the revision log.
func (s *Session) Log() *revlog.Log { return s.log }

// Engine returns the propagation engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Evaluator returns the partial evaluator.
func (s *Session) Evaluator() *eval.Evaluator { return s.eval }

// Bus returns the event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// Dispatcher returns the suggestion dispatcher, or nil when no generator
// is configured.
func (s *Session) Dispatcher() *suggest.Dispatcher { return s.dispatcher }

// Origin returns the session and revision this session was branched
// from.
func (s *Session) Origin() (sessionID, revisionID string, ok bool) {
	return s.origin, s.originStep, s.origin != ""
}

// Replay re-applies journaled steps recorded after the document this
// session was restored from.
func (s *Session) Replay(ctx context.Context, steps []revlog.Step) error {
	for _, st := range steps {
		if err := s.engine.Replay(ctx, st); err != nil {
			return fmt.Errorf("session %s: %w", s.id, err)
		}
	}
	return nil
}

// Declare creates holes and edges in one transaction, as an IR producer
// would. Declarations are not revisions: they are not logged and cannot
// be reverted. Nothing is created if any spec or edge is invalid, or if
// an engine mutation is in flight.
func (s *Session) Declare(specs []graph.HoleSpec, edges []graph.Edge) ([]string, error) {
	ids := make([]string, 0, len(specs))
	_, err := s.engine.Declare(func(tx *graph.Tx) error {
		for _, spec := range specs {
			h, err := tx.Create(spec)
			if err != nil {
				return err
			}
			ids = append(ids, h.ID)
		}
		for _, e := range edges {
			if err := tx.Link(e.From, e.To, e.Kind); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("declare: %w", err)
	}
	s.opts.logger.Debug("holes declared", "session", s.id, "holes", len(ids), "edges", len(edges))
	return ids, nil
}

// SuggestAll requests suggestions for every open hole. It is a no-op
// without a generator.
func (s *Session) SuggestAll() {
	if s.dispatcher == nil {
		return
	}
	for _, h := range s.graph.Holes() {
		if h.Open() {
			s.dispatcher.Suggest(h)
		}
	}
}

// Wait blocks until pending suggestion requests finish.
func (s *Session) Wait(ctx context.Context) error {
	if s.dispatcher == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the suggestion dispatcher.
func (s *Session) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
}
