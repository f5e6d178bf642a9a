package history

import (
	"sync"

	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Memory is an in-memory history stack. It backs tests and sessions
// with no host history (prerendering, detached sessions).
type Memory struct {
	mu        sync.Mutex
	entries   []Entry
	index     int
	listeners map[int]func(Entry)
	nextID    int
}

// NewMemory creates an in-memory history positioned at start. An empty
// start means the root location.
func NewMemory(start string) (*Memory, error) {
	loc, err := urlpath.Parse(start)
	if err != nil {
		return nil, err
	}
	return &Memory{
		entries:   []Entry{{Location: loc}},
		listeners: make(map[int]func(Entry)),
	}, nil
}

// Current implements Adapter.
func (m *Memory) Current() Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// Push implements Adapter. Forward entries are truncated, as a host
// history would on a new navigation.
func (m *Memory) Push(entry Entry) {
	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], entry)
	m.index = len(m.entries) - 1
	m.mu.Unlock()
}

// Replace implements Adapter.
func (m *Memory) Replace(entry Entry) {
	m.mu.Lock()
	m.entries[m.index] = entry
	m.mu.Unlock()
}

// Go implements Adapter.
func (m *Memory) Go(delta int) {
	m.mu.Lock()
	target := m.index + delta
	if delta == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return
	}
	m.index = target
	entry := m.entries[m.index]
	fns := make([]func(Entry), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(entry)
	}
}

// Listen implements Adapter.
func (m *Memory) Listen(fn func(Entry)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Len returns the number of history entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
