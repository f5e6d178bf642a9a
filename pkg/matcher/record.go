// Package matcher implements route registration and path resolution: a
// forest of backtracking segment tries, a flat record arena, a name
// index, and an adaptive LRU cache over match results.
package matcher

import (
	"context"
	"net/url"

	"github.com/wayfind-dev/wayfind/pkg/pattern"
	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// RecordID identifies a registered route. Zero is never a valid id.
type RecordID uint64

// ComponentLoader lazily loads whatever the host renders for a route.
// The matcher stores the reference but never calls it; invoking Load is
// the embedding application's business.
type ComponentLoader interface {
	Load(ctx context.Context) (any, error)
}

// LoaderFunc adapts a function to the ComponentLoader interface.
type LoaderFunc func(ctx context.Context) (any, error)

// Load implements ComponentLoader.
func (f LoaderFunc) Load(ctx context.Context) (any, error) {
	return f(ctx)
}

// RouteRecord is one registered route. Records are immutable once
// created: add and remove mutate the owning registry, never the record.
type RouteRecord struct {
	// ID is the arena key of this record.
	ID RecordID

	// Path is the normalized pattern string.
	Path string

	// Name is the optional route name for direct lookup. Empty when
	// unnamed.
	Name string

	// Parent is the id of the parent record, or zero for a root route.
	// Parent links form a forest; they are ids, not pointers, so record
	// graphs cannot cycle.
	Parent RecordID

	// Meta is an opaque metadata bag carried through to match results.
	Meta map[string]any

	// Loader is the opaque component loader reference. Never invoked
	// here.
	Loader ComponentLoader

	// segments is the compiled pattern.
	segments []pattern.Segment

	// order is the registration sequence number, used to break
	// specificity ties (earlier wins).
	order uint64
}

// Segments returns the compiled pattern segments.
func (r *RouteRecord) Segments() []pattern.Segment {
	return r.segments
}

// optionalTail reports whether the pattern ends in an optional
// parameter and so may also match with that segment absent.
func (r *RouteRecord) optionalTail() bool {
	if len(r.segments) == 0 {
		return false
	}
	tail := r.segments[len(r.segments)-1]
	return tail.Kind == pattern.KindParam && tail.Optional
}

// MatchResult is the outcome of matching one path against the trie
// forest. Results handed out by the registry are shared with its cache;
// treat them as read-only.
type MatchResult struct {
	// Record is the matched terminal record.
	Record *RouteRecord

	// Params are the captured parameter values.
	Params map[string]string

	// Chain lists the record and its ancestors, ordered root to leaf.
	Chain []*RouteRecord

	// Score is the cumulative specificity of the winning walk.
	Score int
}

// ResolvedLocation is a fully resolved navigation target.
type ResolvedLocation struct {
	// Path is the canonical path.
	Path string

	// Query holds the parsed query parameters.
	Query url.Values

	// Hash is the fragment without "#", empty when absent.
	Hash string

	// FullPath is path?query#hash.
	FullPath string

	// Params are the captured route parameters. Owned by the caller.
	Params map[string]string

	// Chain lists matched records root to leaf.
	Chain []*RouteRecord

	// Record is the leaf record, equal to the last element of Chain.
	Record *RouteRecord
}

// Location returns the URL components of the resolved location.
func (r *ResolvedLocation) Location() urlpath.Location {
	return urlpath.Location{Path: r.Path, Query: r.Query, Hash: r.Hash}
}
