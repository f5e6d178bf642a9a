// Package config loads wayfind.json, the declarative route table and
// tuning knobs consumed by the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wayfind-dev/wayfind/pkg/lru"
	"github.com/wayfind-dev/wayfind/pkg/matcher"
	"github.com/wayfind-dev/wayfind/pkg/nav"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "wayfind.json"

	// DefaultPort is the default debug server port.
	DefaultPort = 3000

	// DefaultHost is the default debug server host.
	DefaultHost = "localhost"
)

// Config represents the complete wayfind.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Routes is the declarative route table, in registration order.
	Routes []RouteConfig `json:"routes,omitempty"`

	// Cache tunes the match cache.
	Cache CacheConfig `json:"cache,omitempty"`

	// MaxRedirects bounds guard-issued redirect chains.
	MaxRedirects int `json:"maxRedirects,omitempty"`

	// Server configures the debug server.
	Server ServerConfig `json:"server,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// RouteConfig declares one route.
type RouteConfig struct {
	// Path is the route pattern, e.g. "/user/:id".
	Path string `json:"path"`

	// Name optionally names the route for lookups and path building.
	Name string `json:"name,omitempty"`

	// Parent optionally nests this route under an earlier named route.
	Parent string `json:"parent,omitempty"`

	// Group optionally places the route in a named group.
	Group string `json:"group,omitempty"`

	// Meta is an opaque metadata bag attached to the record.
	Meta map[string]any `json:"meta,omitempty"`
}

// CacheConfig tunes the adaptive match cache.
type CacheConfig struct {
	// Disabled turns the match cache off entirely.
	Disabled bool `json:"disabled,omitempty"`

	// Capacity is the starting capacity.
	Capacity int `json:"capacity,omitempty"`

	// Min and Max bound adaptive resizing.
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`

	// CheckInterval is the number of lookups between hit-rate checks.
	CheckInterval int `json:"checkInterval,omitempty"`
}

// ServerConfig configures the debug server.
type ServerConfig struct {
	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		MaxRedirects: nav.DefaultMaxRedirects,
		Cache: CacheConfig{
			Capacity:      lru.DefaultCapacity,
			Min:           lru.DefaultMin,
			Max:           lru.DefaultMax,
			CheckInterval: lru.DefaultCheckInterval,
		},
		Server: ServerConfig{
			Port: DefaultPort,
			Host: DefaultHost,
		},
	}
}

// Load reads configuration from wayfind.json in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the given file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.MaxRedirects == 0 {
		c.MaxRedirects = nav.DefaultMaxRedirects
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = lru.DefaultCapacity
	}
	if c.Cache.Min == 0 {
		c.Cache.Min = lru.DefaultMin
	}
	if c.Cache.Max == 0 {
		c.Cache.Max = lru.DefaultMax
	}
	if c.Cache.CheckInterval == 0 {
		c.Cache.CheckInterval = lru.DefaultCheckInterval
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
}

// Validate checks the configuration for structural mistakes the route
// registry cannot report on its own.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Cache.Min > c.Cache.Max {
		return fmt.Errorf("cache min %d exceeds max %d", c.Cache.Min, c.Cache.Max)
	}

	named := make(map[string]bool)
	for i, rc := range c.Routes {
		if rc.Path == "" {
			return fmt.Errorf("routes[%d]: path is required", i)
		}
		if rc.Parent != "" && !named[rc.Parent] {
			return fmt.Errorf("routes[%d] %q: parent %q is not an earlier named route", i, rc.Path, rc.Parent)
		}
		if rc.Name != "" {
			if named[rc.Name] {
				return fmt.Errorf("routes[%d] %q: duplicate route name %q", i, rc.Path, rc.Name)
			}
			named[rc.Name] = true
		}
	}
	return nil
}

// RouterOptions translates the config into router options.
func (c *Config) RouterOptions() []router.Option {
	opts := []router.Option{
		router.WithMaxRedirects(c.MaxRedirects),
		router.WithCacheOptions(
			lru.WithCapacity(c.Cache.Capacity),
			lru.WithBounds(c.Cache.Min, c.Cache.Max),
			lru.WithCheckInterval(c.Cache.CheckInterval),
		),
	}
	if c.Cache.Disabled {
		opts = append(opts, router.WithoutCache())
	}
	return opts
}

// Register adds the declared routes to r in order, resolving parent
// names to record ids.
func (c *Config) Register(r *router.Router) error {
	ids := make(map[string]matcher.RecordID)
	for i, rc := range c.Routes {
		opts := []matcher.RouteOption{}
		if rc.Name != "" {
			opts = append(opts, matcher.WithName(rc.Name))
		}
		if rc.Parent != "" {
			id, ok := ids[rc.Parent]
			if !ok {
				return fmt.Errorf("routes[%d] %q: parent %q is not an earlier named route", i, rc.Path, rc.Parent)
			}
			opts = append(opts, matcher.WithParent(id))
		}
		if rc.Group != "" {
			opts = append(opts, matcher.WithGroup(rc.Group))
		}
		if rc.Meta != nil {
			opts = append(opts, matcher.WithMeta(rc.Meta))
		}

		rec, err := r.AddRoute(rc.Path, opts...)
		if err != nil {
			return fmt.Errorf("routes[%d] %q: %w", i, rc.Path, err)
		}
		if rc.Name != "" {
			ids[rc.Name] = rec.ID
		}
	}
	return nil
}

// Address returns the host:port string for the debug server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Exists reports whether a config file exists in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the directory containing
// wayfind.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory", ConfigFileName, startDir)
		}
		dir = parent
	}
}
