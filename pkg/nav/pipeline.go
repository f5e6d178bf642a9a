package nav

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/matcher"
	"github.com/wayfind-dev/wayfind/pkg/telemetry"
)

// DefaultMaxRedirects bounds guard-issued redirect chains.
const DefaultMaxRedirects = 10

// Guard phase names, also used as span and error labels.
const (
	phaseBeforeEach    = "beforeEach"
	phaseLeaving       = "leaving"
	phaseEntering      = "entering"
	phaseBeforeResolve = "beforeResolve"
)

// Pipeline turns navigation requests into committed location changes.
//
// Each request gets a process-wide monotonic generation number. Guards
// of different navigations may interleave in time, but only the newest
// generation is allowed to commit: an older navigation whose guards were
// still in flight when a newer one started is discarded without touching
// history. Nothing interrupts the older navigation's guards; their
// eventual answers are simply moot.
type Pipeline struct {
	registry *matcher.Registry
	adapter  history.Adapter

	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
	maxRedirects int

	// latest is the newest issued generation.
	latest atomic.Uint64

	mu      sync.Mutex
	current *matcher.ResolvedLocation

	beforeEach    []guardEntry
	beforeResolve []guardEntry
	afterEach     []hookEntry
	errorHandlers []errorEntry
	enter         map[matcher.RecordID][]guardEntry
	leave         map[matcher.RecordID][]guardEntry
	nextRegID     int

	// redirected records generations superseded by a navigation one of
	// their own guards started, so discard can tell a redirect from an
	// outside cancellation.
	redirected map[uint64]bool
}

// genKey carries the running generation through a guard's context, so a
// navigation started from inside a guard can be traced to its parent.
type genKey struct{}

type guardEntry struct {
	id    int
	guard Guard
}

type hookEntry struct {
	id   int
	hook Hook
}

type errorEntry struct {
	id      int
	handler ErrorHandler
}

// Option configures a Pipeline.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
	maxRedirects int
}

// WithMaxRedirects sets the redirect hop limit.
func WithMaxRedirects(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxRedirects = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics attaches the Prometheus metric set.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracer attaches navigation tracing.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// New creates a pipeline over a registry and a history adapter.
func New(registry *matcher.Registry, adapter history.Adapter, opts ...Option) *Pipeline {
	cfg := config{
		logger:       slog.Default(),
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pipeline{
		registry:     registry,
		adapter:      adapter,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
		tracer:       cfg.tracer,
		maxRedirects: cfg.maxRedirects,
		enter:        make(map[matcher.RecordID][]guardEntry),
		leave:        make(map[matcher.RecordID][]guardEntry),
		redirected:   make(map[uint64]bool),
	}
}

// Current returns the last committed location, nil before the first
// confirmed navigation.
func (p *Pipeline) Current() *matcher.ResolvedLocation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SetCurrent seeds the committed location without running guards. Used
// once at router construction to adopt the adapter's starting position.
func (p *Pipeline) SetCurrent(loc *matcher.ResolvedLocation) {
	p.mu.Lock()
	p.current = loc
	p.mu.Unlock()
}

// BeforeEach registers a global guard that runs first on every
// navigation, in registration order. The returned function unregisters
// it.
func (p *Pipeline) BeforeEach(g Guard) func() {
	return p.addGuard(&p.beforeEach, g)
}

// BeforeResolve registers a global guard that runs last, after entering
// guards, in registration order.
func (p *Pipeline) BeforeResolve(g Guard) func() {
	return p.addGuard(&p.beforeResolve, g)
}

// OnEnter registers a guard that runs when a navigation enters the
// route with the given record id.
func (p *Pipeline) OnEnter(id matcher.RecordID, g Guard) func() {
	return p.addRouteGuard(p.enter, id, g)
}

// OnLeave registers a guard that runs when a navigation leaves the
// route with the given record id.
func (p *Pipeline) OnLeave(id matcher.RecordID, g Guard) func() {
	return p.addRouteGuard(p.leave, id, g)
}

// AfterEach registers a hook observing confirmed navigations.
func (p *Pipeline) AfterEach(h Hook) func() {
	p.mu.Lock()
	p.nextRegID++
	id := p.nextRegID
	p.afterEach = append(p.afterEach, hookEntry{id: id, hook: h})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, e := range p.afterEach {
			if e.id == id {
				p.afterEach = append(p.afterEach[:i], p.afterEach[i+1:]...)
				return
			}
		}
	}
}

// OnError registers a handler notified of guard errors and redirect
// loops.
func (p *Pipeline) OnError(h ErrorHandler) func() {
	p.mu.Lock()
	p.nextRegID++
	id := p.nextRegID
	p.errorHandlers = append(p.errorHandlers, errorEntry{id: id, handler: h})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, e := range p.errorHandlers {
			if e.id == id {
				p.errorHandlers = append(p.errorHandlers[:i], p.errorHandlers[i+1:]...)
				return
			}
		}
	}
}

func (p *Pipeline) addGuard(list *[]guardEntry, g Guard) func() {
	p.mu.Lock()
	p.nextRegID++
	id := p.nextRegID
	*list = append(*list, guardEntry{id: id, guard: g})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, e := range *list {
			if e.id == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func (p *Pipeline) addRouteGuard(m map[matcher.RecordID][]guardEntry, rid matcher.RecordID, g Guard) func() {
	p.mu.Lock()
	p.nextRegID++
	id := p.nextRegID
	m[rid] = append(m[rid], guardEntry{id: id, guard: g})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		list := m[rid]
		for i, e := range list {
			if e.id == id {
				m[rid] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Navigate resolves target and runs it through the guard phases. On
// success it commits through the history adapter (except for pop
// triggers, where the host already moved) and returns the new location.
//
// Non-exceptional outcomes return a *Failure error; guard errors and
// redirect loops return the underlying error and are also delivered to
// OnError handlers.
func (p *Pipeline) Navigate(ctx context.Context, target string, trigger history.Trigger, state any) (*matcher.ResolvedLocation, error) {
	gen := p.begin(ctx)
	defer func() {
		p.mu.Lock()
		delete(p.redirected, gen)
		p.mu.Unlock()
	}()
	from := p.Current()

	to, err := p.registry.Resolve(target)
	if err != nil {
		p.countResult("no_match")
		return nil, err
	}

	if trigger == history.TriggerPush && from != nil && from.FullPath == to.FullPath {
		p.countResult("duplicated")
		return nil, &Failure{Kind: FailureDuplicated, From: from.FullPath, To: to.FullPath}
	}

	ctx, span := p.tracer.StartNavigation(ctx, pathOf(from), to.FullPath, gen)
	defer span.End()

	hops := 0
	for {
		outcome := p.runPhases(ctx, gen, to, from)
		switch outcome.kind {
		case outcomeOK:
			// fall through to commit

		case outcomeStale:
			f := p.discard(gen, from, to)
			telemetry.RecordOutcome(span, f.Kind.String(), nil)
			return nil, f

		case outcomeAbort:
			p.countResult("aborted")
			f := &Failure{Kind: FailureAborted, From: pathOf(from), To: to.FullPath}
			telemetry.RecordOutcome(span, "aborted", nil)
			return nil, f

		case outcomeRedirect:
			hops++
			if p.metrics != nil {
				p.metrics.RedirectsTotal.Inc()
			}
			if hops > p.maxRedirects {
				err := fmt.Errorf("%w: %d hops from %q", ErrRedirectLoop, hops, target)
				p.countResult("redirect_loop")
				p.notifyError(err, to, from)
				telemetry.RecordOutcome(span, "redirect_loop", err)
				return nil, err
			}
			next, err := p.registry.Resolve(outcome.target)
			if err != nil {
				p.countResult("no_match")
				p.notifyError(err, to, from)
				telemetry.RecordOutcome(span, "no_match", err)
				return nil, err
			}
			to = next
			continue

		case outcomeError:
			p.countResult("guard_error")
			p.notifyError(outcome.err, to, from)
			telemetry.RecordOutcome(span, "guard_error", outcome.err)
			return nil, outcome.err
		}

		break
	}

	// Only the newest generation may commit.
	if p.stale(gen) {
		f := p.discard(gen, from, to)
		telemetry.RecordOutcome(span, f.Kind.String(), nil)
		return nil, f
	}

	if trigger != history.TriggerPop {
		entry := history.Entry{Location: to.Location(), State: state}
		if trigger == history.TriggerReplace {
			p.adapter.Replace(entry)
		} else {
			p.adapter.Push(entry)
		}
	}
	p.SetCurrent(to)
	p.countResult("confirmed")
	telemetry.RecordOutcome(span, "confirmed", nil)

	p.runAfterEach(to, from)
	return to, nil
}

type outcomeKind uint8

const (
	outcomeOK outcomeKind = iota
	outcomeAbort
	outcomeRedirect
	outcomeError
	outcomeStale
)

type phaseOutcome struct {
	kind   outcomeKind
	target string
	err    error
}

// runPhases executes the four guard phases in order, checking the
// generation after every guard so a superseded navigation stops doing
// work at the next opportunity.
func (p *Pipeline) runPhases(ctx context.Context, gen uint64, to, from *matcher.ResolvedLocation) phaseOutcome {
	phases := []struct {
		name   string
		guards []Guard
	}{
		{phaseBeforeEach, p.snapshot(&p.beforeEach)},
		{phaseLeaving, p.leavingGuards(from)},
		{phaseEntering, p.enteringGuards(to)},
		{phaseBeforeResolve, p.snapshot(&p.beforeResolve)},
	}

	for _, phase := range phases {
		if len(phase.guards) == 0 {
			continue
		}
		phaseCtx, span := p.tracer.StartPhase(ctx, phase.name)
		out := p.runGuards(phaseCtx, gen, phase.name, phase.guards, to, from)
		span.End()
		if out.kind != outcomeOK {
			return out
		}
	}
	return phaseOutcome{kind: outcomeOK}
}

func (p *Pipeline) runGuards(ctx context.Context, gen uint64, phase string, guards []Guard, to, from *matcher.ResolvedLocation) phaseOutcome {
	for _, g := range guards {
		res := p.runGuard(ctx, gen, g, to, from)
		if p.stale(gen) {
			return phaseOutcome{kind: outcomeStale}
		}
		switch res.kind {
		case kindContinue:
		case kindAbort:
			return phaseOutcome{kind: outcomeAbort}
		case kindRedirect:
			return phaseOutcome{kind: outcomeRedirect, target: res.target}
		case kindError:
			return phaseOutcome{kind: outcomeError, err: &GuardError{Phase: phase, Err: res.err}}
		}
	}
	return phaseOutcome{kind: outcomeOK}
}

// runGuard invokes one guard with the generation tagged onto its
// context, so a navigation the guard itself starts (passing that
// context along) is classified as a redirect of this one rather than an
// outside cancellation.
func (p *Pipeline) runGuard(ctx context.Context, gen uint64, g Guard, to, from *matcher.ResolvedLocation) Result {
	return g(context.WithValue(ctx, genKey{}, gen), to, from)
}

// snapshot copies a guard list so guards registered or removed mid-run
// do not disturb the running navigation.
func (p *Pipeline) snapshot(list *[]guardEntry) []Guard {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Guard, len(*list))
	for i, e := range *list {
		out[i] = e.guard
	}
	return out
}

// leavingGuards collects per-route leave guards over the previous
// chain, leaf to root.
func (p *Pipeline) leavingGuards(from *matcher.ResolvedLocation) []Guard {
	if from == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Guard
	for i := len(from.Chain) - 1; i >= 0; i-- {
		for _, e := range p.leave[from.Chain[i].ID] {
			out = append(out, e.guard)
		}
	}
	return out
}

// enteringGuards collects per-route enter guards over the new chain,
// root to leaf.
func (p *Pipeline) enteringGuards(to *matcher.ResolvedLocation) []Guard {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Guard
	for _, rec := range to.Chain {
		for _, e := range p.enter[rec.ID] {
			out = append(out, e.guard)
		}
	}
	return out
}

// begin allocates the next generation. A context tagged by runGuard
// means this navigation was initiated from inside another navigation's
// guard; that parent is marked superseded-by-redirect.
func (p *Pipeline) begin(ctx context.Context) uint64 {
	gen := p.latest.Add(1)
	if parent, ok := ctx.Value(genKey{}).(uint64); ok {
		p.mu.Lock()
		p.redirected[parent] = true
		p.mu.Unlock()
	}
	return gen
}

func (p *Pipeline) stale(gen uint64) bool {
	return p.latest.Load() != gen
}

// discard retires a superseded navigation: no history mutation, no
// afterEach, no error handlers. The caller still learns what happened
// through the returned failure.
func (p *Pipeline) discard(gen uint64, from, to *matcher.ResolvedLocation) *Failure {
	kind := FailureCancelled
	p.mu.Lock()
	if p.redirected[gen] {
		kind = FailureRedirected
		delete(p.redirected, gen)
	}
	p.mu.Unlock()

	p.logger.Debug("navigation discarded",
		"generation", gen,
		"kind", kind.String(),
		"to", to.FullPath)
	p.countResult(kind.String())
	return &Failure{Kind: kind, From: pathOf(from), To: to.FullPath}
}

// runAfterEach runs confirmation hooks best-effort: a panicking hook is
// logged and the remaining hooks still run.
func (p *Pipeline) runAfterEach(to, from *matcher.ResolvedLocation) {
	p.mu.Lock()
	hooks := make([]Hook, len(p.afterEach))
	for i, e := range p.afterEach {
		hooks[i] = e.hook
	}
	p.mu.Unlock()

	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("afterEach hook panicked",
						"panic", r,
						"to", to.FullPath)
				}
			}()
			h(to, from)
		}()
	}
}

// notifyError delivers err to error handlers, fire and forget.
func (p *Pipeline) notifyError(err error, to, from *matcher.ResolvedLocation) {
	p.mu.Lock()
	handlers := make([]ErrorHandler, len(p.errorHandlers))
	for i, e := range p.errorHandlers {
		handlers[i] = e.handler
	}
	p.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("error handler panicked", "panic", r)
				}
			}()
			h(err, to, from)
		}()
	}
}

func (p *Pipeline) countResult(result string) {
	if p.metrics == nil {
		return
	}
	p.metrics.NavigationsTotal.WithLabelValues(result).Inc()
}

func pathOf(loc *matcher.ResolvedLocation) string {
	if loc == nil {
		return ""
	}
	return loc.FullPath
}
