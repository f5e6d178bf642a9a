package history

import (
	"strings"
	"sync"
	"testing"
)

func newMem(t *testing.T, start string) *Memory {
	t.Helper()
	m, err := NewMemory(start)
	if err != nil {
		t.Fatalf("NewMemory(%q): %v", start, err)
	}
	return m
}

func entryFor(t *testing.T, raw string) Entry {
	t.Helper()
	m := newMem(t, raw)
	return m.Current()
}

func TestMemoryPushReplace(t *testing.T) {
	m := newMem(t, "/")

	m.Push(entryFor(t, "/a"))
	m.Push(entryFor(t, "/b"))
	if got := m.Current().Location.Path; got != "/b" {
		t.Errorf("Current = %q, want /b", got)
	}
	if m.Len() != 3 {
		t.Errorf("Len = %d, want 3", m.Len())
	}

	m.Replace(entryFor(t, "/c"))
	if got := m.Current().Location.Path; got != "/c" {
		t.Errorf("Current after Replace = %q, want /c", got)
	}
	if m.Len() != 3 {
		t.Errorf("Len after Replace = %d, want 3", m.Len())
	}
}

func TestMemoryGoNotifiesListeners(t *testing.T) {
	m := newMem(t, "/")
	m.Push(entryFor(t, "/a"))
	m.Push(entryFor(t, "/b"))

	var popped []string
	unsub := m.Listen(func(e Entry) {
		popped = append(popped, e.Location.Path)
	})

	m.Go(-1)
	m.Go(-1)
	m.Go(1)
	if want := []string{"/a", "/", "/a"}; strings.Join(popped, ",") != strings.Join(want, ",") {
		t.Errorf("popped = %v, want %v", popped, want)
	}

	// Out-of-range traversal is ignored.
	m.Go(-10)
	m.Go(10)
	if len(popped) != 3 {
		t.Errorf("out-of-range Go notified listeners: %v", popped)
	}

	unsub()
	m.Go(-1)
	if len(popped) != 3 {
		t.Error("unsubscribed listener still notified")
	}
}

func TestMemoryPushTruncatesForward(t *testing.T) {
	m := newMem(t, "/")
	m.Push(entryFor(t, "/a"))
	m.Push(entryFor(t, "/b"))
	m.Go(-2)

	m.Push(entryFor(t, "/fresh"))
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2 after truncating forward entries", m.Len())
	}
	// Forward history is gone.
	m.Go(1)
	if got := m.Current().Location.Path; got != "/fresh" {
		t.Errorf("Current = %q, want /fresh", got)
	}
}

// fakeHost is a scriptable Host for adapter tests.
type fakeHost struct {
	mu       sync.Mutex
	location string
	assigns  []string
	replaces []bool
	deltas   []int
	subs     []func(string)
}

func (f *fakeHost) Location() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location
}

func (f *fakeHost) Assign(raw string, replace bool) {
	f.mu.Lock()
	f.location = raw
	f.assigns = append(f.assigns, raw)
	f.replaces = append(f.replaces, replace)
	f.mu.Unlock()
}

func (f *fakeHost) Traverse(delta int) {
	f.mu.Lock()
	f.deltas = append(f.deltas, delta)
	f.mu.Unlock()
}

func (f *fakeHost) Subscribe(fn func(string)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeHost) fire(raw string) {
	f.mu.Lock()
	f.location = raw
	subs := append([]func(string){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(raw)
	}
}

func TestPathAdapter(t *testing.T) {
	host := &fakeHost{location: "/start"}
	a := NewPath(host)

	if got := a.Current().Location.Path; got != "/start" {
		t.Errorf("Current = %q, want /start", got)
	}

	a.Push(entryFor(t, "/user/42?tab=files"))
	if host.assigns[0] != "/user/42?tab=files" || host.replaces[0] {
		t.Errorf("Assign = %q replace=%v", host.assigns[0], host.replaces[0])
	}

	a.Replace(entryFor(t, "/other"))
	if !host.replaces[1] {
		t.Error("Replace should assign with replace=true")
	}

	a.Go(-2)
	if len(host.deltas) != 1 || host.deltas[0] != -2 {
		t.Errorf("deltas = %v, want [-2]", host.deltas)
	}

	var seen string
	a.Listen(func(e Entry) { seen = e.Location.Path })
	host.fire("/popped")
	if seen != "/popped" {
		t.Errorf("listener saw %q, want /popped", seen)
	}
}

func TestFragmentAdapter(t *testing.T) {
	host := &fakeHost{location: "/app"}
	a := NewFragment(host)

	// No fragment means the root location.
	if got := a.Current().Location.Path; got != "/" {
		t.Errorf("Current = %q, want /", got)
	}

	a.Push(entryFor(t, "/user/42"))
	if host.assigns[0] != "/app#/user/42" {
		t.Errorf("Assign = %q, want /app#/user/42", host.assigns[0])
	}
	if got := a.Current().Location.Path; got != "/user/42" {
		t.Errorf("Current = %q, want /user/42", got)
	}

	var seen string
	a.Listen(func(e Entry) { seen = e.Location.Path })
	host.fire("/app#/back/here")
	if seen != "/back/here" {
		t.Errorf("listener saw %q, want /back/here", seen)
	}
}
