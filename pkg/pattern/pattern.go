// Package pattern compiles route pattern strings into typed segments.
//
// A pattern is a "/"-separated list of segments:
//
//	/users/list          → static segments
//	/users/:id           → parameter segment (named "id")
//	/users/:tab?         → optional parameter (final segment only)
//	/files/*path         → wildcard (named "path", final segment only)
//	/files/*             → wildcard with the default name "pathMatch"
//
// Compilation is a pure function: the same pattern always yields the same
// segment list, and a malformed pattern yields a *CompileError without any
// side effects.
package pattern

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the type of a compiled segment.
type Kind uint8

const (
	// KindStatic matches exactly one path segment by literal text.
	KindStatic Kind = iota

	// KindParam matches exactly one path segment and captures it.
	KindParam

	// KindWildcard matches all remaining path segments and captures
	// them joined by "/".
	KindWildcard
)

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindParam:
		return "param"
	case KindWildcard:
		return "wildcard"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DefaultWildcardName is the capture name used for a bare "*" wildcard.
const DefaultWildcardName = "pathMatch"

// Segment is one compiled unit of a route pattern.
type Segment struct {
	// Kind is the segment type.
	Kind Kind

	// Text is the literal text of a static segment.
	Text string

	// Name is the capture name of a param or wildcard segment.
	Name string

	// Optional marks a parameter that may be absent from the path.
	// Only the final segment of a pattern may be optional.
	Optional bool
}

// String renders the segment back in pattern syntax.
func (s Segment) String() string {
	switch s.Kind {
	case KindParam:
		if s.Optional {
			return ":" + s.Name + "?"
		}
		return ":" + s.Name
	case KindWildcard:
		return "*" + s.Name
	default:
		return s.Text
	}
}

// Compilation errors.
var (
	ErrEmptyParamName     = errors.New("parameter segment has no name")
	ErrEmptyWildcardName  = errors.New("wildcard segment has no name")
	ErrWildcardNotFinal   = errors.New("wildcard must be the final segment")
	ErrMultipleWildcards  = errors.New("pattern contains more than one wildcard")
	ErrOptionalNotFinal   = errors.New("optional parameter must be the final segment")
	ErrInvalidSegmentChar = errors.New("segment contains an invalid character")
)

// CompileError describes a malformed route pattern. It wraps one of the
// package-level compilation errors and records where in the pattern the
// problem was found.
type CompileError struct {
	// Pattern is the full pattern that failed to compile.
	Pattern string

	// Segment is the offending segment text.
	Segment string

	// Index is the zero-based segment position within the pattern.
	Index int

	// Reason is the underlying compilation error.
	Reason error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern %q: segment %q (index %d): %v", e.Pattern, e.Segment, e.Index, e.Reason)
}

// Unwrap returns the underlying compilation error.
func (e *CompileError) Unwrap() error {
	return e.Reason
}

// Compile parses a route pattern into an ordered segment list.
//
// The root pattern "/" compiles to an empty segment list. On failure the
// returned error is a *CompileError; existing routes are unaffected
// because Compile has no side effects.
func Compile(pat string) ([]Segment, error) {
	raw := splitPattern(pat)
	if len(raw) == 0 {
		return nil, nil
	}

	segments := make([]Segment, 0, len(raw))
	sawWildcard := false

	for i, seg := range raw {
		last := i == len(raw)-1

		switch {
		case strings.HasPrefix(seg, "*"):
			if sawWildcard {
				return nil, compileErr(pat, seg, i, ErrMultipleWildcards)
			}
			if !last {
				return nil, compileErr(pat, seg, i, ErrWildcardNotFinal)
			}
			name := seg[1:]
			if name == "" {
				name = DefaultWildcardName
			}
			if err := checkName(name); err != nil {
				return nil, compileErr(pat, seg, i, err)
			}
			sawWildcard = true
			segments = append(segments, Segment{Kind: KindWildcard, Name: name})

		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			optional := strings.HasSuffix(name, "?")
			if optional {
				name = strings.TrimSuffix(name, "?")
			}
			if name == "" {
				return nil, compileErr(pat, seg, i, ErrEmptyParamName)
			}
			if err := checkName(name); err != nil {
				return nil, compileErr(pat, seg, i, err)
			}
			if optional && !last {
				return nil, compileErr(pat, seg, i, ErrOptionalNotFinal)
			}
			segments = append(segments, Segment{Kind: KindParam, Name: name, Optional: optional})

		default:
			segments = append(segments, Segment{Kind: KindStatic, Text: seg})
		}
	}

	return segments, nil
}

// Render joins compiled segments back into pattern syntax.
func Render(segments []Segment) string {
	if len(segments) == 0 {
		return "/"
	}
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.String()
	}
	return "/" + strings.Join(parts, "/")
}

// splitPattern splits a pattern into raw segments, dropping empty ones.
func splitPattern(pat string) []string {
	pat = strings.Trim(pat, "/")
	if pat == "" {
		return nil
	}
	return strings.Split(pat, "/")
}

// checkName validates a capture name. Names share the character set of
// static segments minus the pattern metacharacters.
func checkName(name string) error {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return ErrInvalidSegmentChar
		}
	}
	return nil
}

func compileErr(pat, seg string, idx int, reason error) error {
	return &CompileError{Pattern: pat, Segment: seg, Index: idx, Reason: reason}
}
