package nav

import (
	"errors"
	"fmt"
)

// ErrRedirectLoop reports that a navigation exceeded the redirect hop
// limit.
var ErrRedirectLoop = errors.New("redirect limit exceeded")

// FailureKind classifies non-exceptional navigation outcomes.
type FailureKind uint8

const (
	// FailureAborted means a guard answered Abort.
	FailureAborted FailureKind = iota

	// FailureCancelled means a newer navigation started while this one
	// was in flight; only the newest generation may commit.
	FailureCancelled

	// FailureDuplicated means the target equals the current location.
	FailureDuplicated

	// FailureRedirected means this navigation was superseded by a
	// navigation one of its own guards started.
	FailureRedirected
)

// String returns the kind name.
func (k FailureKind) String() string {
	switch k {
	case FailureAborted:
		return "aborted"
	case FailureCancelled:
		return "cancelled"
	case FailureDuplicated:
		return "duplicated"
	case FailureRedirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// Failure is a non-exceptional navigation result. It satisfies error so
// callers can branch with AsFailure, but it is informational: nothing
// broke, the navigation just did not commit.
type Failure struct {
	Kind FailureKind

	// From is the full path the navigation started at.
	From string

	// To is the full path the navigation targeted.
	To string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("navigation %s: %s -> %s", f.Kind, f.From, f.To)
}

// AsFailure unwraps err into a *Failure when the navigation ended with
// a non-exceptional result.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// GuardError wraps an error produced by a guard, recording which phase
// it ran in.
type GuardError struct {
	// Phase is the guard phase: "beforeEach", "leaving", "entering", or
	// "beforeResolve".
	Phase string

	// Err is the guard's error.
	Err error
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	return fmt.Sprintf("guard error in %s: %v", e.Phase, e.Err)
}

// Unwrap returns the guard's error.
func (e *GuardError) Unwrap() error {
	return e.Err
}
