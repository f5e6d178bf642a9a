package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, `{"name": "demo"}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "demo" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.MaxRedirects != 10 {
		t.Errorf("MaxRedirects = %d, want 10", cfg.MaxRedirects)
	}
	if cfg.Cache.Capacity == 0 || cfg.Cache.Min == 0 || cfg.Cache.Max == 0 {
		t.Errorf("cache defaults not applied: %+v", cfg.Cache)
	}
	if cfg.Address() != "localhost:3000" {
		t.Errorf("Address = %q", cfg.Address())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load of empty dir should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing path",
			body: `{"routes": [{"name": "x"}]}`,
			want: "path is required",
		},
		{
			name: "unknown parent",
			body: `{"routes": [{"path": "/a/b", "parent": "a"}]}`,
			want: "not an earlier named route",
		},
		{
			name: "parent declared later",
			body: `{"routes": [{"path": "/a/b", "parent": "a"}, {"path": "/a", "name": "a"}]}`,
			want: "not an earlier named route",
		},
		{
			name: "duplicate name",
			body: `{"routes": [{"path": "/a", "name": "x"}, {"path": "/b", "name": "x"}]}`,
			want: "duplicate route name",
		},
		{
			name: "bad port",
			body: `{"server": {"port": 90000}}`,
			want: "out of range",
		},
		{
			name: "inverted cache bounds",
			body: `{"cache": {"min": 100, "max": 10}}`,
			want: "exceeds max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.body)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	dir := writeConfig(t, `{
		"routes": [
			{"path": "/", "name": "home"},
			{"path": "/user/:id", "name": "user"},
			{"path": "/user/:id/posts", "name": "posts", "parent": "user"},
			{"path": "/admin", "group": "admin", "meta": {"requiresAuth": true}}
		]
	}`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	adapter, err := history.NewMemory("/")
	if err != nil {
		t.Fatal(err)
	}
	r := router.New(adapter, cfg.RouterOptions()...)
	defer r.Close()

	if err := cfg.Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}

	loc, err := r.Navigate(context.Background(), "/user/3/posts")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if len(loc.Chain) != 2 || loc.Chain[0].Name != "user" {
		t.Errorf("Chain = %v, want user -> posts", loc.Chain)
	}

	admin, err := r.Resolve("/admin")
	if err != nil {
		t.Fatalf("Resolve(/admin): %v", err)
	}
	if auth, _ := admin.Record.Meta["requiresAuth"].(bool); !auth {
		t.Errorf("Meta = %v, want requiresAuth", admin.Record.Meta)
	}
}

func TestFindProjectRoot(t *testing.T) {
	dir := writeConfig(t, `{}`)
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot: %v", err)
	}
	if root != dir {
		t.Errorf("root = %q, want %q", root, dir)
	}
}
