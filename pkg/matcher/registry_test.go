package matcher

import (
	"errors"
	"testing"

	"github.com/wayfind-dev/wayfind/pkg/lru"
	"github.com/wayfind-dev/wayfind/pkg/pattern"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	return NewRegistry(opts...)
}

func addRoute(t *testing.T, r *Registry, pat string, opts ...RouteOption) *RouteRecord {
	t.Helper()
	rec, err := r.AddRoute(pat, opts...)
	if err != nil {
		t.Fatalf("AddRoute(%q): %v", pat, err)
	}
	return rec
}

func TestRegistryScenario(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/")
	addRoute(t, r, "/user/:id")
	addRoute(t, r, "/files/*")

	m, err := r.Match("/user/42")
	if err != nil {
		t.Fatalf("Match(/user/42): %v", err)
	}
	if m.Params["id"] != "42" {
		t.Errorf("params = %v, want id=42", m.Params)
	}

	m, err = r.Match("/files/a/b.txt")
	if err != nil {
		t.Fatalf("Match(/files/a/b.txt): %v", err)
	}
	if m.Params["pathMatch"] != "a/b.txt" {
		t.Errorf("params = %v, want pathMatch=a/b.txt", m.Params)
	}

	if _, err := r.Match("/missing"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Match(/missing) error = %v, want ErrNoMatch", err)
	}
}

func TestRegistryCompileErrorIsLocal(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/ok")

	_, err := r.AddRoute("/bad/:")
	var ce *pattern.CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("AddRoute error = %v, want *pattern.CompileError", err)
	}

	// The failed registration left existing routes untouched.
	if _, err := r.Match("/ok"); err != nil {
		t.Errorf("Match(/ok) after failed AddRoute: %v", err)
	}
	if len(r.Routes()) != 1 {
		t.Errorf("Routes() = %d records, want 1", len(r.Routes()))
	}
}

func TestRegistryCacheEquivalence(t *testing.T) {
	paths := []string{
		"/", "/user/7", "/user/profile", "/files/x/y", "/settings",
		"/missing", "/user/7", "/files/x/y",
	}

	build := func(opts ...RegistryOption) *Registry {
		r := newTestRegistry(t, opts...)
		addRoute(t, r, "/")
		addRoute(t, r, "/user/:id")
		addRoute(t, r, "/user/profile")
		addRoute(t, r, "/files/*path")
		addRoute(t, r, "/settings/:tab?")
		return r
	}

	cached := build()
	uncached := build(WithoutCache())

	for _, p := range paths {
		cm, cerr := cached.Match(p)
		um, uerr := uncached.Match(p)

		if (cerr == nil) != (uerr == nil) {
			t.Fatalf("Match(%q): cached err %v, uncached err %v", p, cerr, uerr)
		}
		if cerr != nil {
			continue
		}
		if cm.Record.Path != um.Record.Path {
			t.Errorf("Match(%q): cached %q, uncached %q", p, cm.Record.Path, um.Record.Path)
		}
		if len(cm.Params) != len(um.Params) {
			t.Errorf("Match(%q): params %v vs %v", p, cm.Params, um.Params)
		}
		for k, v := range um.Params {
			if cm.Params[k] != v {
				t.Errorf("Match(%q): param %s = %q vs %q", p, k, cm.Params[k], v)
			}
		}
	}
}

func TestRegistryCachedRepeatIsIdentical(t *testing.T) {
	r := newTestRegistry(t)
	rec := addRoute(t, r, "/user/:id")

	first, err := r.Match("/user/42")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	second, err := r.Match("/user/42")
	if err != nil {
		t.Fatalf("cached Match: %v", err)
	}
	if first.Record != rec || second.Record != rec {
		t.Error("record identity changed between cached and uncached lookups")
	}
	if second.Params["id"] != "42" {
		t.Errorf("cached params = %v", second.Params)
	}

	stats := r.CacheStats()
	if stats.Hits == 0 {
		t.Error("second lookup should have hit the cache")
	}
}

func TestRegistryNegativeCaching(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/only")

	for i := 0; i < 2; i++ {
		if _, err := r.Match("/absent"); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("Match(/absent) #%d error = %v, want ErrNoMatch", i+1, err)
		}
	}
	if r.CacheStats().Hits == 0 {
		t.Error("repeated miss should be served from the cache")
	}
}

func TestRegistryRemoveInvalidatesCache(t *testing.T) {
	r := newTestRegistry(t)
	rec := addRoute(t, r, "/gone")
	addRoute(t, r, "/kept")

	if _, err := r.Match("/gone"); err != nil {
		t.Fatalf("Match(/gone): %v", err)
	}
	if !r.RemoveRoute(rec.ID) {
		t.Fatal("RemoveRoute returned false")
	}
	if _, err := r.Match("/gone"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Match(/gone) after remove = %v, want ErrNoMatch", err)
	}
	if _, err := r.Match("/kept"); err != nil {
		t.Errorf("Match(/kept) after unrelated remove: %v", err)
	}
}

func TestRegistryRemoveDynamicInvalidatesConcreteKeys(t *testing.T) {
	r := newTestRegistry(t)
	rec := addRoute(t, r, "/user/:id")

	if _, err := r.Match("/user/42"); err != nil {
		t.Fatalf("Match(/user/42): %v", err)
	}
	r.RemoveRoute(rec.ID)
	if _, err := r.Match("/user/42"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("cached concrete path survived dynamic route removal: %v", err)
	}
}

func TestRegistryAddShadowsCachedMiss(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/present")

	if _, err := r.Match("/late"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Match(/late) = %v, want ErrNoMatch", err)
	}
	addRoute(t, r, "/late")
	if _, err := r.Match("/late"); err != nil {
		t.Errorf("Match(/late) after registration: %v", err)
	}
}

func TestRegistryParamNameConflict(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id")
	addRoute(t, r, "/user/:id/files")

	if _, err := r.AddRoute("/user/:uid"); !errors.Is(err, ErrParamNameConflict) {
		t.Fatalf("AddRoute(/user/:uid) error = %v, want ErrParamNameConflict", err)
	}
	if _, err := r.AddRoute("/user/:uid/posts"); !errors.Is(err, ErrParamNameConflict) {
		t.Errorf("nested conflict error = %v, want ErrParamNameConflict", err)
	}

	// The rejected registrations left the existing capture intact.
	m, err := r.Match("/user/42")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.Params["id"] != "42" {
		t.Errorf("params = %v, want id=42", m.Params)
	}

	addRoute(t, r, "/files/*path")
	if _, err := r.AddRoute("/files/*blob"); !errors.Is(err, ErrParamNameConflict) {
		t.Errorf("wildcard conflict error = %v, want ErrParamNameConflict", err)
	}

	// The same name at a shared position is no conflict.
	addRoute(t, r, "/user/:id/posts")
}

func TestRegistryConflictPreservesRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id", WithName("user"))

	if _, err := r.AddRoute("/user/:uid", WithName("other")); !errors.Is(err, ErrParamNameConflict) {
		t.Fatalf("AddRoute(/user/:uid) error = %v, want ErrParamNameConflict", err)
	}

	path, err := r.BuildPath("user", map[string]string{"id": "42"})
	if err != nil {
		t.Fatalf("BuildPath: %v", err)
	}
	m, err := r.Match(path)
	if err != nil {
		t.Fatalf("Match(built): %v", err)
	}
	if m.Params["id"] != "42" {
		t.Errorf("round-trip params = %v, want id=42", m.Params)
	}
}

func TestRegistryOptionalDoesNotOutliveItsRoute(t *testing.T) {
	r := newTestRegistry(t)
	opt := addRoute(t, r, "/a/:b?")
	addRoute(t, r, "/a/:b/c")

	if _, err := r.Match("/a"); err != nil {
		t.Fatalf("Match(/a) with the optional route registered: %v", err)
	}

	r.RemoveRoute(opt.ID)
	required := addRoute(t, r, "/a/:b")

	if _, err := r.Match("/a"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Match(/a) = %v, want ErrNoMatch once the optional route is gone", err)
	}
	m, err := r.Match("/a/x")
	if err != nil {
		t.Fatalf("Match(/a/x): %v", err)
	}
	if m.Record != required {
		t.Errorf("matched %q, want %q", m.Record.Path, required.Path)
	}
}

func TestRegistryNamedRoutes(t *testing.T) {
	r := newTestRegistry(t)
	rec := addRoute(t, r, "/user/:id", WithName("user"))

	got, ok := r.ResolveName("user")
	if !ok || got != rec {
		t.Errorf("ResolveName(user) = %v, %v", got, ok)
	}
	if _, ok := r.ResolveName("nope"); ok {
		t.Error("ResolveName(nope) = true")
	}

	if _, err := r.AddRoute("/other", WithName("user")); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate name error = %v, want ErrDuplicateName", err)
	}

	if !r.RemoveRouteNamed("user") {
		t.Error("RemoveRouteNamed(user) = false")
	}
	if _, ok := r.ResolveName("user"); ok {
		t.Error("name survives removal")
	}
}

func TestRegistryMatchedChain(t *testing.T) {
	r := newTestRegistry(t)
	a := addRoute(t, r, "/a", WithName("a"))
	b := addRoute(t, r, "/a/b", WithName("b"), WithParent(a.ID))
	c := addRoute(t, r, "/a/b/c", WithName("c"), WithParent(b.ID))

	m, err := r.Match("/a/b/c")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	want := []*RouteRecord{a, b, c}
	if len(m.Chain) != len(want) {
		t.Fatalf("len(Chain) = %d, want %d", len(m.Chain), len(want))
	}
	for i := range want {
		if m.Chain[i] != want[i] {
			t.Errorf("Chain[%d] = %q, want %q", i, m.Chain[i].Path, want[i].Path)
		}
	}

	if _, err := r.AddRoute("/orphan", WithParent(999)); !errors.Is(err, ErrUnknownParent) {
		t.Errorf("unknown parent error = %v, want ErrUnknownParent", err)
	}
}

func TestRegistryGroupsMatchInOrder(t *testing.T) {
	r := newTestRegistry(t)
	first := addRoute(t, r, "/shared")
	r.AddGroup("admin")
	addRoute(t, r, "/shared", WithGroup("admin"))

	m, err := r.Match("/shared")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.Record != first {
		t.Errorf("matched group %q route, want the default group's", "admin")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id")

	loc, err := r.Resolve("/user/42?tab=files#top")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc.Path != "/user/42" {
		t.Errorf("Path = %q", loc.Path)
	}
	if loc.FullPath != "/user/42?tab=files#top" {
		t.Errorf("FullPath = %q", loc.FullPath)
	}
	if loc.Query.Get("tab") != "files" || loc.Hash != "top" {
		t.Errorf("Query = %v, Hash = %q", loc.Query, loc.Hash)
	}
	if loc.Params["id"] != "42" {
		t.Errorf("Params = %v", loc.Params)
	}
	if loc.Record == nil || loc.Record != loc.Chain[len(loc.Chain)-1] {
		t.Error("Record should be the chain leaf")
	}

	// Mutating the returned params must not poison later resolutions.
	loc.Params["id"] = "tampered"
	again, err := r.Resolve("/user/42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.Params["id"] != "42" {
		t.Errorf("Params = %v after caller mutation", again.Params)
	}
}

func TestRegistryBuildPathRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id/files/:name", WithName("file"))

	params := map[string]string{"id": "42", "name": "report"}
	path, err := r.BuildPath("file", params)
	if err != nil {
		t.Fatalf("BuildPath: %v", err)
	}
	if path != "/user/42/files/report" {
		t.Errorf("BuildPath = %q", path)
	}

	m, err := r.Match(path)
	if err != nil {
		t.Fatalf("Match(built): %v", err)
	}
	if len(m.Params) != len(params) {
		t.Fatalf("round-trip params = %v", m.Params)
	}
	for k, v := range params {
		if m.Params[k] != v {
			t.Errorf("round-trip param %s = %q, want %q", k, m.Params[k], v)
		}
	}
}

func TestRegistryBuildPathEdgeCases(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id", WithName("user"))
	addRoute(t, r, "/settings/:tab?", WithName("settings"))
	addRoute(t, r, "/files/*path", WithName("files"))

	if _, err := r.BuildPath("user", nil); !errors.Is(err, ErrMissingParam) {
		t.Errorf("missing param error = %v, want ErrMissingParam", err)
	}
	if _, err := r.BuildPath("ghost", nil); !errors.Is(err, ErrUnknownRoute) {
		t.Errorf("unknown route error = %v, want ErrUnknownRoute", err)
	}

	path, err := r.BuildPath("settings", nil)
	if err != nil {
		t.Fatalf("BuildPath(settings): %v", err)
	}
	if path != "/settings" {
		t.Errorf("optional omitted: path = %q, want /settings", path)
	}

	path, err = r.BuildPath("files", map[string]string{"path": "a/b.txt"})
	if err != nil {
		t.Fatalf("BuildPath(files): %v", err)
	}
	if path != "/files/a/b.txt" {
		t.Errorf("wildcard path = %q", path)
	}
}

func TestRegistryHotspots(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/hot")
	addRoute(t, r, "/warm")

	for i := 0; i < 5; i++ {
		r.Match("/hot")
	}
	for i := 0; i < 2; i++ {
		r.Match("/warm")
	}
	r.Match("/cold")

	top := r.Hotspots(2)
	if len(top) != 2 {
		t.Fatalf("len(Hotspots(2)) = %d, want 2", len(top))
	}
	if top[0].Path != "/hot" || top[0].Count != 5 {
		t.Errorf("top hotspot = %+v", top[0])
	}
	if top[1].Path != "/warm" || top[1].Count != 2 {
		t.Errorf("second hotspot = %+v", top[1])
	}
}

func TestRegistryCanonicalizesBeforeMatching(t *testing.T) {
	r := newTestRegistry(t)
	addRoute(t, r, "/user/:id")

	for _, raw := range []string{"/user/42/", "//user//42", "/user/./42", "/user/x/../42"} {
		m, err := r.Match(raw)
		if err != nil {
			t.Errorf("Match(%q): %v", raw, err)
			continue
		}
		if m.Params["id"] != "42" {
			t.Errorf("Match(%q) params = %v", raw, m.Params)
		}
	}
}

func TestRegistryCacheOptionsRespected(t *testing.T) {
	r := newTestRegistry(t, WithCacheOptions(
		lru.WithCapacity(2),
		lru.WithBounds(2, 2),
		lru.WithCheckInterval(0),
	))
	addRoute(t, r, "/a")
	addRoute(t, r, "/b")
	addRoute(t, r, "/c")

	r.Match("/a")
	r.Match("/b")
	r.Match("/c")

	if got := r.CacheStats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}
