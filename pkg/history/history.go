// Package history abstracts the host's location-history primitives
// behind one Adapter contract. The navigation pipeline touches an
// adapter only when a navigation is confirmed; everything before that
// point is pure matching and guard evaluation.
//
// Four adapters share the contract: an in-memory stack (tests and
// detached sessions), a fragment adapter and a path adapter over a host
// location primitive, and a websocket adapter driving a remote thin
// client.
package history

import (
	"github.com/wayfind-dev/wayfind/pkg/urlpath"
)

// Trigger says how a location change was initiated.
type Trigger uint8

const (
	// TriggerPush appends a new history entry.
	TriggerPush Trigger = iota

	// TriggerReplace swaps the current entry in place.
	TriggerReplace

	// TriggerPop is host-initiated traversal (back/forward).
	TriggerPop
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerPush:
		return "push"
	case TriggerReplace:
		return "replace"
	case TriggerPop:
		return "pop"
	default:
		return "unknown"
	}
}

// Entry is one history slot: a location plus opaque host state.
type Entry struct {
	Location urlpath.Location
	State    any
}

// Adapter is the contract every history backend implements. The router
// holds exactly one adapter; the core never branches on which one.
type Adapter interface {
	// Current returns the entry the history is positioned at.
	Current() Entry

	// Push appends entry and positions the history at it, truncating
	// any forward entries.
	Push(entry Entry)

	// Replace swaps the current entry for entry.
	Replace(entry Entry)

	// Go moves delta steps through the history (negative is back).
	// Out-of-range deltas are ignored. The resulting entry is delivered
	// to listeners as a pop.
	Go(delta int)

	// Listen registers a callback for host-initiated location changes
	// (pop events). The returned function unregisters it.
	Listen(fn func(Entry)) func()
}
