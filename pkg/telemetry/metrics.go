// Package telemetry provides the Prometheus metric set and OpenTelemetry
// tracing hooks for the router core. Both are optional: the matcher and
// the navigation pipeline accept a nil *Metrics or *Tracer and skip all
// instrumentation.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metric set.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wayfind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metric set.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "wayfind",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for the router core.
//
// Collected:
//   - wayfind_matches_total: counter of resolutions by outcome (hit, miss, not_found)
//   - wayfind_route_matches_total: counter of matches by route pattern
//   - wayfind_cache_evictions_total: counter of cache evictions
//   - wayfind_cache_capacity: gauge of the adaptive cache capacity
//   - wayfind_cache_entries: gauge of live cache entries
//   - wayfind_navigations_total: counter of navigations by result
//   - wayfind_redirects_total: counter of guard-issued redirects
type Metrics struct {
	MatchesTotal      *prometheus.CounterVec
	RouteMatchesTotal *prometheus.CounterVec
	CacheEvictions    prometheus.Counter
	CacheCapacity     prometheus.Gauge
	CacheEntries      prometheus.Gauge
	NavigationsTotal  *prometheus.CounterVec
	RedirectsTotal    prometheus.Counter
}

// NewMetrics creates and registers the router metric set.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		MatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "matches_total",
			Help:        "Total path resolutions by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		RouteMatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "route_matches_total",
			Help:        "Total matches by route pattern",
			ConstLabels: config.ConstLabels,
		}, []string{"route"}),

		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_evictions_total",
			Help:        "Total match cache evictions",
			ConstLabels: config.ConstLabels,
		}),

		CacheCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_capacity",
			Help:        "Current adaptive match cache capacity",
			ConstLabels: config.ConstLabels,
		}),

		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_entries",
			Help:        "Live match cache entries",
			ConstLabels: config.ConstLabels,
		}),

		NavigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total navigations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		RedirectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "redirects_total",
			Help:        "Total guard-issued redirects",
			ConstLabels: config.ConstLabels,
		}),
	}
}
