package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/wayfind-dev/wayfind/pkg/lru"
	"github.com/wayfind-dev/wayfind/pkg/pattern"
	"github.com/wayfind-dev/wayfind/pkg/telemetry"
	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Resolution errors.
var (
	// ErrNoMatch reports that no registered route matches a path. It is
	// an expected result, not a failure of the matcher.
	ErrNoMatch = errors.New("no matching route")

	// ErrUnknownRoute reports a name or id lookup miss.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrDuplicateName reports a name collision at registration.
	ErrDuplicateName = errors.New("route name already registered")

	// ErrUnknownParent reports a parent id that is not in the arena.
	ErrUnknownParent = errors.New("unknown parent route")

	// ErrMissingParam reports a path build with an unbound parameter.
	ErrMissingParam = errors.New("missing path parameter")

	// ErrParamNameConflict reports a registration whose capture name
	// disagrees with the name existing routes bind at the same
	// position.
	ErrParamNameConflict = errors.New("conflicting parameter name")
)

// DefaultGroup is the route group used when none is named.
const DefaultGroup = ""

// Registry aggregates ordered route groups (one trie each), the shared
// match cache, the record arena, and the name index.
type Registry struct {
	mu sync.Mutex

	groups     []*routeGroup
	groupIndex map[string]*routeGroup

	// records is the flat arena; parent references are ids into it.
	records map[RecordID]*RouteRecord
	names   map[string]RecordID

	cache        *lru.Cache[*MatchResult]
	cacheEnabled bool

	// hot counts matches per canonical path for hotspot reporting.
	// Read-mostly metric, never on the correctness path.
	hot map[string]uint64

	metrics       *telemetry.Metrics
	lastEvictions uint64

	logger *slog.Logger

	nextID    RecordID
	nextOrder uint64
}

type routeGroup struct {
	name string
	trie *trie
}

// Hotspot is one frequently matched path.
type Hotspot struct {
	Path  string
	Count uint64
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	cacheOpts    []lru.Option
	cacheEnabled bool
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

// WithCacheOptions forwards options to the match cache.
func WithCacheOptions(opts ...lru.Option) RegistryOption {
	return func(c *registryConfig) {
		c.cacheOpts = append(c.cacheOpts, opts...)
	}
}

// WithoutCache disables the match cache. Lookups behave identically,
// only slower; the cache is a derived view over the tries, never a
// source of truth.
func WithoutCache() RegistryOption {
	return func(c *registryConfig) {
		c.cacheEnabled = false
	}
}

// WithMetrics attaches the Prometheus metric set.
func WithMetrics(m *telemetry.Metrics) RegistryOption {
	return func(c *registryConfig) {
		c.metrics = m
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		c.logger = logger
	}
}

// NewRegistry creates a registry with the default route group.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		cacheEnabled: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{
		groupIndex:   make(map[string]*routeGroup),
		records:      make(map[RecordID]*RouteRecord),
		names:        make(map[string]RecordID),
		cache:        lru.New[*MatchResult](append(cfg.cacheOpts, lru.WithLogger(cfg.logger))...),
		cacheEnabled: cfg.cacheEnabled,
		hot:          make(map[string]uint64),
		metrics:      cfg.metrics,
		logger:       cfg.logger,
	}
	r.addGroupLocked(DefaultGroup)
	return r
}

// AddGroup creates an independently addressable route group. Groups are
// consulted in creation order during matching. Adding an existing group
// is a no-op.
func (r *Registry) AddGroup(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addGroupLocked(name)
}

func (r *Registry) addGroupLocked(name string) *routeGroup {
	if g, ok := r.groupIndex[name]; ok {
		return g
	}
	g := &routeGroup{name: name, trie: newTrie()}
	r.groups = append(r.groups, g)
	r.groupIndex[name] = g
	return g
}

// RouteOption configures one route registration.
type RouteOption func(*routeConfig)

type routeConfig struct {
	name   string
	parent RecordID
	meta   map[string]any
	loader ComponentLoader
	group  string
}

// WithName names the route for ResolveName and BuildPath lookups.
func WithName(name string) RouteOption {
	return func(c *routeConfig) { c.name = name }
}

// WithParent nests the route under an existing record. The parent chain
// becomes the matched chain of the route.
func WithParent(id RecordID) RouteOption {
	return func(c *routeConfig) { c.parent = id }
}

// WithMeta attaches an opaque metadata bag to the record.
func WithMeta(meta map[string]any) RouteOption {
	return func(c *routeConfig) { c.meta = meta }
}

// WithLoader attaches the opaque component loader reference.
func WithLoader(loader ComponentLoader) RouteOption {
	return func(c *routeConfig) { c.loader = loader }
}

// WithGroup registers the route into a named group, creating the group
// if needed.
func WithGroup(name string) RouteOption {
	return func(c *routeConfig) { c.group = name }
}

// AddRoute compiles pat and registers it. A malformed pattern returns a
// *pattern.CompileError and leaves every existing route untouched.
// Registering the exact pattern of an existing route in the same group
// replaces that route. A param or wildcard whose capture name differs
// from the name existing routes bind at the same position returns
// ErrParamNameConflict; matches report one name per position, so
// overlapping routes must agree on it.
func (r *Registry) AddRoute(pat string, opts ...RouteOption) (*RouteRecord, error) {
	segs, err := pattern.Compile(pat)
	if err != nil {
		return nil, err
	}

	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.name != "" {
		if _, taken := r.names[cfg.name]; taken {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, cfg.name)
		}
	}
	if cfg.parent != 0 {
		if _, ok := r.records[cfg.parent]; !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownParent, cfg.parent)
		}
	}

	g := r.addGroupLocked(cfg.group)
	if err := g.trie.checkCaptures(segs); err != nil {
		return nil, err
	}

	r.nextID++
	r.nextOrder++
	rec := &RouteRecord{
		ID:       r.nextID,
		Path:     pattern.Render(segs),
		Name:     cfg.name,
		Parent:   cfg.parent,
		Meta:     cfg.meta,
		Loader:   cfg.loader,
		segments: segs,
		order:    r.nextOrder,
	}

	if prev := g.trie.insert(segs, rec); prev != nil {
		r.retireLocked(prev)
	}
	r.records[rec.ID] = rec
	if rec.Name != "" {
		r.names[rec.Name] = rec.ID
	}

	r.invalidateLocked(segs, rec.Path)
	return rec, nil
}

// RemoveRoute deletes the record with the given id, prunes its trie
// branch, and invalidates the affected cache entries. It reports whether
// the id was registered.
func (r *Registry) RemoveRoute(id RecordID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	for _, g := range r.groups {
		if g.trie.remove(id) {
			break
		}
	}
	r.retireLocked(rec)
	r.invalidateLocked(rec.segments, rec.Path)
	return true
}

// RemoveRouteNamed deletes the record registered under name.
func (r *Registry) RemoveRouteNamed(name string) bool {
	r.mu.Lock()
	id, ok := r.names[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.RemoveRoute(id)
}

// retireLocked drops a record from the arena and name index.
func (r *Registry) retireLocked(rec *RouteRecord) {
	delete(r.records, rec.ID)
	if rec.Name != "" && r.names[rec.Name] == rec.ID {
		delete(r.names, rec.Name)
	}
}

// invalidateLocked drops cache entries affected by a registration
// change. A fully static pattern can only affect its own key; a pattern
// with dynamic segments can shadow or release arbitrarily many concrete
// paths, so the whole cache is dropped for those.
func (r *Registry) invalidateLocked(segs []pattern.Segment, path string) {
	r.cache.Delete(path)
	for _, s := range segs {
		if s.Kind != pattern.KindStatic {
			r.cache.Clear()
			return
		}
	}
}

// Match resolves a canonical path to the best route across all groups,
// in group order. It returns ErrNoMatch when nothing matches; that
// outcome is cached like any other result.
//
// The returned MatchResult is shared with the cache: treat it as
// read-only. Resolve returns caller-owned data.
func (r *Registry) Match(path string) (*MatchResult, error) {
	canon, err := urlpath.Canonicalize(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.hot[canon]++
	r.mu.Unlock()

	if r.cacheEnabled {
		if res, ok := r.cache.Get(canon); ok {
			r.count("hit", res)
			if res == nil {
				return nil, ErrNoMatch
			}
			return res, nil
		}
	}

	res := r.lookup(canon)
	if r.cacheEnabled {
		r.cache.Set(canon, res)
	}
	if res == nil {
		r.count("not_found", nil)
		return nil, ErrNoMatch
	}
	r.count("miss", res)
	return res, nil
}

// lookup walks the groups in order and returns the first trie's best
// match, or nil.
func (r *Registry) lookup(canon string) *MatchResult {
	segments := urlpath.Segments(canon)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.groups {
		m, ok := g.trie.match(segments)
		if !ok {
			continue
		}
		return &MatchResult{
			Record: m.record,
			Params: m.params(),
			Chain:  r.chainLocked(m.record),
			Score:  m.score,
		}
	}
	return nil
}

// chainLocked resolves the parent links of rec into a root-to-leaf
// record list.
func (r *Registry) chainLocked(rec *RouteRecord) []*RouteRecord {
	var chain []*RouteRecord
	for cur := rec; cur != nil; {
		chain = append(chain, cur)
		next, ok := r.records[cur.Parent]
		if !ok {
			break
		}
		cur = next
	}
	// Reverse into root → leaf order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Resolve parses a raw location, matches its path, and assembles a
// caller-owned ResolvedLocation.
func (r *Registry) Resolve(raw string) (*ResolvedLocation, error) {
	loc, err := urlpath.Parse(raw)
	if err != nil {
		return nil, err
	}

	res, err := r.Match(loc.Path)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(res.Params))
	for k, v := range res.Params {
		params[k] = v
	}

	return &ResolvedLocation{
		Path:     loc.Path,
		Query:    loc.Query,
		Hash:     loc.Hash,
		FullPath: loc.FullPath(),
		Params:   params,
		Chain:    res.Chain,
		Record:   res.Record,
	}, nil
}

// ResolveName returns the record registered under name.
func (r *Registry) ResolveName(name string) (*RouteRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.names[name]
	if !ok {
		return nil, false
	}
	rec, ok := r.records[id]
	return rec, ok
}

// Record returns the record with the given id.
func (r *Registry) Record(id RecordID) (*RouteRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Routes returns a snapshot of all records in registration order.
func (r *Registry) Routes() []*RouteRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*RouteRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// BuildPath interpolates params into the named route's pattern. An
// optional parameter may be omitted; every other parameter must be
// bound. Re-matching the built path yields the same parameter map.
func (r *Registry) BuildPath(name string, params map[string]string) (string, error) {
	rec, ok := r.ResolveName(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	return BuildPath(rec, params)
}

// BuildPath interpolates params into a record's pattern.
func BuildPath(rec *RouteRecord, params map[string]string) (string, error) {
	var parts []string
	for _, seg := range rec.segments {
		switch seg.Kind {
		case pattern.KindStatic:
			parts = append(parts, seg.Text)
		case pattern.KindParam:
			v, ok := params[seg.Name]
			if !ok || v == "" {
				if seg.Optional {
					continue
				}
				return "", fmt.Errorf("%w: %q in %q", ErrMissingParam, seg.Name, rec.Path)
			}
			parts = append(parts, v)
		case pattern.KindWildcard:
			v, ok := params[seg.Name]
			if !ok {
				return "", fmt.Errorf("%w: %q in %q", ErrMissingParam, seg.Name, rec.Path)
			}
			if v != "" {
				parts = append(parts, v)
			}
		}
	}
	return "/" + strings.Join(parts, "/"), nil
}

// Hotspots returns the n most frequently matched paths, most frequent
// first.
func (r *Registry) Hotspots(n int) []Hotspot {
	r.mu.Lock()
	out := make([]Hotspot, 0, len(r.hot))
	for path, count := range r.hot {
		out = append(out, Hotspot{Path: path, Count: count})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CacheStats returns a snapshot of the match cache counters.
func (r *Registry) CacheStats() lru.Stats {
	return r.cache.Stats()
}

// count records match metrics. Safe with a nil metric set.
func (r *Registry) count(outcome string, res *MatchResult) {
	if r.metrics == nil {
		return
	}
	r.metrics.MatchesTotal.WithLabelValues(outcome).Inc()
	if res != nil {
		r.metrics.RouteMatchesTotal.WithLabelValues(res.Record.Path).Inc()
	}

	stats := r.cache.Stats()
	r.metrics.CacheCapacity.Set(float64(stats.Capacity))
	r.metrics.CacheEntries.Set(float64(stats.Len))

	r.mu.Lock()
	d := stats.Evictions - r.lastEvictions
	r.lastEvictions = stats.Evictions
	r.mu.Unlock()
	if d > 0 {
		r.metrics.CacheEvictions.Add(float64(d))
	}
}
