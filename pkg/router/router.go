// Package router ties the route registry, the navigation pipeline, and
// a history adapter into one façade. It is the package applications
// import; the pieces underneath stay independently usable.
package router

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/lru"
	"github.com/wayfind-dev/wayfind/pkg/matcher"
	"github.com/wayfind-dev/wayfind/pkg/nav"
	"github.com/wayfind-dev/wayfind/pkg/telemetry"
	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Router is the composition root. It owns the registry and pipeline and
// keeps the committed location in sync with the history adapter: calls
// on the router flow forward into the adapter, and host-initiated moves
// (back/forward) flow from the adapter's listener back through the
// guard pipeline as pop navigations.
type Router struct {
	registry *matcher.Registry
	pipeline *nav.Pipeline
	adapter  history.Adapter
	logger   *slog.Logger
	unlisten func()
}

// Option configures a Router.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
	cacheOpts    []lru.Option
	cacheEnabled bool
	maxRedirects int
}

// WithLogger sets the logger shared by the registry and pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics attaches the Prometheus metric set to both the registry
// and the pipeline.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracer attaches navigation tracing.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// WithCacheOptions forwards options to the match cache.
func WithCacheOptions(opts ...lru.Option) Option {
	return func(c *config) { c.cacheOpts = append(c.cacheOpts, opts...) }
}

// WithoutCache disables the match cache.
func WithoutCache() Option {
	return func(c *config) { c.cacheEnabled = false }
}

// WithMaxRedirects bounds guard-issued redirect chains.
func WithMaxRedirects(n int) Option {
	return func(c *config) { c.maxRedirects = n }
}

// New creates a router over a history adapter. The adapter's current
// entry seeds the committed location once a registered route matches
// it; until then Current returns nil.
func New(adapter history.Adapter, opts ...Option) *Router {
	cfg := config{
		logger:       slog.Default(),
		cacheEnabled: true,
		maxRedirects: nav.DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	regOpts := []matcher.RegistryOption{
		matcher.WithLogger(cfg.logger),
		matcher.WithCacheOptions(cfg.cacheOpts...),
	}
	if !cfg.cacheEnabled {
		regOpts = append(regOpts, matcher.WithoutCache())
	}
	if cfg.metrics != nil {
		regOpts = append(regOpts, matcher.WithMetrics(cfg.metrics))
	}
	registry := matcher.NewRegistry(regOpts...)

	pipeline := nav.New(registry, adapter,
		nav.WithLogger(cfg.logger),
		nav.WithMetrics(cfg.metrics),
		nav.WithTracer(cfg.tracer),
		nav.WithMaxRedirects(cfg.maxRedirects),
	)

	r := &Router{
		registry: registry,
		pipeline: pipeline,
		adapter:  adapter,
		logger:   cfg.logger,
	}
	r.unlisten = adapter.Listen(r.handlePop)
	return r
}

// Close detaches the router from the adapter's pop notifications. The
// registry and current location stay usable.
func (r *Router) Close() {
	if r.unlisten != nil {
		r.unlisten()
		r.unlisten = nil
	}
}

// handlePop revalidates a host-initiated history move through the guard
// pipeline. Failures are expected here (a guard may veto the entry the
// host moved to), so they are logged, not raised.
func (r *Router) handlePop(entry history.Entry) {
	_, err := r.pipeline.Navigate(context.Background(), entry.Location.FullPath(), history.TriggerPop, entry.State)
	if err == nil {
		return
	}
	if f, ok := nav.AsFailure(err); ok {
		r.logger.Debug("pop navigation not committed",
			"path", entry.Location.FullPath(),
			"kind", f.Kind.String())
		return
	}
	r.logger.Warn("pop navigation failed",
		"path", entry.Location.FullPath(),
		"error", err)
}

// AddRoute registers a route pattern. See matcher.Registry.AddRoute.
func (r *Router) AddRoute(pat string, opts ...matcher.RouteOption) (*matcher.RouteRecord, error) {
	rec, err := r.registry.AddRoute(pat, opts...)
	if err != nil {
		return nil, err
	}
	r.adoptCurrent()
	return rec, nil
}

// RemoveRoute unregisters the route with the given id.
func (r *Router) RemoveRoute(id matcher.RecordID) bool {
	return r.registry.RemoveRoute(id)
}

// RemoveRouteNamed unregisters the route registered under name.
func (r *Router) RemoveRouteNamed(name string) bool {
	return r.registry.RemoveRouteNamed(name)
}

// Routes returns all records in registration order.
func (r *Router) Routes() []*matcher.RouteRecord {
	return r.registry.Routes()
}

// Registry exposes the underlying registry for direct resolution.
func (r *Router) Registry() *matcher.Registry {
	return r.registry
}

// Resolve matches a raw location string without navigating.
func (r *Router) Resolve(raw string) (*matcher.ResolvedLocation, error) {
	return r.registry.Resolve(raw)
}

// adoptCurrent seeds the committed location from the adapter once a
// registered route matches it. Guards do not run for the seed; the app
// is already there.
func (r *Router) adoptCurrent() {
	if r.pipeline.Current() != nil {
		return
	}
	entry := r.adapter.Current()
	loc, err := r.registry.Resolve(entry.Location.FullPath())
	if err != nil {
		if !errors.Is(err, matcher.ErrNoMatch) {
			r.logger.Debug("start location not adopted",
				"path", entry.Location.FullPath(),
				"error", err)
		}
		return
	}
	r.pipeline.SetCurrent(loc)
}

// NavigateOption configures a single navigation.
type NavigateOption func(*navigateConfig)

type navigateConfig struct {
	state   any
	replace bool
	query   url.Values
	hash    string
	hasHash bool
}

// WithState attaches opaque host state to the resulting history entry.
func WithState(state any) NavigateOption {
	return func(c *navigateConfig) { c.state = state }
}

// WithReplace replaces the current history entry instead of pushing a
// new one.
func WithReplace() NavigateOption {
	return func(c *navigateConfig) { c.replace = true }
}

// WithQuery sets the query of the target location, replacing any query
// already in the target string.
func WithQuery(values url.Values) NavigateOption {
	return func(c *navigateConfig) { c.query = values }
}

// WithHash sets the fragment of the target location, without the
// leading "#".
func WithHash(hash string) NavigateOption {
	return func(c *navigateConfig) {
		c.hash = hash
		c.hasHash = true
	}
}

// Navigate runs target through the guard pipeline and, when confirmed,
// commits it to history. Non-exceptional outcomes (abort, cancellation,
// duplicate) return a *nav.Failure error.
func (r *Router) Navigate(ctx context.Context, target string, opts ...NavigateOption) (*matcher.ResolvedLocation, error) {
	var cfg navigateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.query != nil || cfg.hasHash {
		loc, err := urlpath.Parse(target)
		if err != nil {
			return nil, err
		}
		if cfg.query != nil {
			loc.Query = cfg.query
		}
		if cfg.hasHash {
			loc.Hash = cfg.hash
		}
		target = loc.FullPath()
	}
	trigger := history.TriggerPush
	if cfg.replace {
		trigger = history.TriggerReplace
	}
	return r.pipeline.Navigate(ctx, target, trigger, cfg.state)
}

// NavigateName builds the named route's path from params and navigates
// to it.
func (r *Router) NavigateName(ctx context.Context, name string, params map[string]string, opts ...NavigateOption) (*matcher.ResolvedLocation, error) {
	path, err := r.registry.BuildPath(name, params)
	if err != nil {
		return nil, err
	}
	return r.Navigate(ctx, path, opts...)
}

// Go moves the adapter by delta entries. The resulting location change
// arrives through the pop listener and runs the guard pipeline there.
func (r *Router) Go(delta int) {
	r.adapter.Go(delta)
}

// Back moves one entry backward.
func (r *Router) Back() { r.Go(-1) }

// Forward moves one entry forward.
func (r *Router) Forward() { r.Go(1) }

// Current returns the last committed location, nil before the first
// confirmed navigation.
func (r *Router) Current() *matcher.ResolvedLocation {
	return r.pipeline.Current()
}

// BeforeEach registers a global guard. The returned function
// unregisters it.
func (r *Router) BeforeEach(g nav.Guard) func() {
	return r.pipeline.BeforeEach(g)
}

// BeforeResolve registers a global guard that runs after entering
// guards.
func (r *Router) BeforeResolve(g nav.Guard) func() {
	return r.pipeline.BeforeResolve(g)
}

// OnEnter registers a guard on entering the given route.
func (r *Router) OnEnter(id matcher.RecordID, g nav.Guard) func() {
	return r.pipeline.OnEnter(id, g)
}

// OnLeave registers a guard on leaving the given route.
func (r *Router) OnLeave(id matcher.RecordID, g nav.Guard) func() {
	return r.pipeline.OnLeave(id, g)
}

// AfterEach registers a hook observing confirmed navigations, including
// pops.
func (r *Router) AfterEach(h nav.Hook) func() {
	return r.pipeline.AfterEach(h)
}

// Subscribe registers fn to observe every committed location change.
// The returned function unsubscribes it.
func (r *Router) Subscribe(fn func(*matcher.ResolvedLocation)) func() {
	return r.pipeline.AfterEach(func(to, from *matcher.ResolvedLocation) {
		fn(to)
	})
}

// OnError registers a handler for guard errors and redirect loops.
func (r *Router) OnError(h nav.ErrorHandler) func() {
	return r.pipeline.OnError(h)
}

// BuildPath interpolates params into the named route's pattern.
func (r *Router) BuildPath(name string, params map[string]string) (string, error) {
	return r.registry.BuildPath(name, params)
}

// Hotspots returns the n most frequently matched paths.
func (r *Router) Hotspots(n int) []matcher.Hotspot {
	return r.registry.Hotspots(n)
}

// CacheStats returns match cache counters.
func (r *Router) CacheStats() lru.Stats {
	return r.registry.CacheStats()
}
