package history

import (
	"strings"
	"sync"

	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Host is the minimal location primitive a platform exposes: read the
// location, set it, traverse, and observe host-initiated changes. The
// path and fragment adapters are thin shims over it.
type Host interface {
	// Location returns the current raw location string.
	Location() string

	// Assign sets the location, replacing the current entry instead of
	// pushing when replace is true.
	Assign(raw string, replace bool)

	// Traverse moves delta steps through the host history.
	Traverse(delta int)

	// Subscribe registers a callback for host-initiated location
	// changes. The returned function unregisters it.
	Subscribe(fn func(raw string)) func()
}

// hostAdapter delegates to a Host, translating raw location strings to
// entries. The encode/decode pair is the only difference between the
// path and fragment flavors.
type hostAdapter struct {
	host   Host
	encode func(full string) string
	decode func(raw string) string

	mu    sync.Mutex
	state any
}

// NewPath creates an adapter that stores the location in the host's
// path component, the persistent-path history variant.
func NewPath(host Host) Adapter {
	return &hostAdapter{
		host:   host,
		encode: func(full string) string { return full },
		decode: func(raw string) string { return raw },
	}
}

// NewFragment creates an adapter that stores the location after "#" in
// the host location, so navigation never leaves the host page.
func NewFragment(host Host) Adapter {
	return &hostAdapter{
		host: host,
		encode: func(full string) string {
			base, _, _ := strings.Cut(host.Location(), "#")
			return base + "#" + full
		},
		decode: func(raw string) string {
			_, frag, ok := strings.Cut(raw, "#")
			if !ok || frag == "" {
				return "/"
			}
			return frag
		},
	}
}

// Current implements Adapter.
func (h *hostAdapter) Current() Entry {
	loc, err := urlpath.Parse(h.decode(h.host.Location()))
	if err != nil {
		loc = urlpath.Location{Path: "/"}
	}
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()
	return Entry{Location: loc, State: state}
}

// Push implements Adapter.
func (h *hostAdapter) Push(entry Entry) {
	h.setState(entry.State)
	h.host.Assign(h.encode(entry.Location.FullPath()), false)
}

// Replace implements Adapter.
func (h *hostAdapter) Replace(entry Entry) {
	h.setState(entry.State)
	h.host.Assign(h.encode(entry.Location.FullPath()), true)
}

// Go implements Adapter.
func (h *hostAdapter) Go(delta int) {
	if delta == 0 {
		return
	}
	h.host.Traverse(delta)
}

// Listen implements Adapter. Host-initiated entries carry no state: the
// host primitive only reports the raw location.
func (h *hostAdapter) Listen(fn func(Entry)) func() {
	return h.host.Subscribe(func(raw string) {
		loc, err := urlpath.Parse(h.decode(raw))
		if err != nil {
			return
		}
		fn(Entry{Location: loc})
	})
}

func (h *hostAdapter) setState(state any) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}
