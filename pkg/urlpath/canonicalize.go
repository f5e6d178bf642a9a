// Package urlpath normalizes raw location strings before they reach the
// matcher. Canonical paths are what the match cache keys on, so two raw
// inputs naming the same resource must canonicalize to the same string.
package urlpath

import (
	"errors"
	"strings"
)

// Canonicalization errors.
var (
	ErrInvalidLocation      = errors.New("invalid location")
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// Canonicalize normalizes a URL path:
//
//   - ensures a leading "/"
//   - collapses duplicate slashes (/a//b → /a/b)
//   - removes "." segments (/a/./b → /a/b)
//   - resolves ".." segments (/a/../b → /b)
//   - strips the trailing slash except for the root
//
// The following inputs are rejected: backslashes, NUL bytes (literal or
// %00), malformed percent escapes, and ".." sequences that would climb
// above the root.
//
// The input must be a bare path; strip query and fragment first (see
// Parse).
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "/", nil
	}
	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := checkPercentEscapes(path); err != nil {
			return "", err
		}
	}

	var out []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", ErrPathEscapesRoot
			}
			out = out[:len(out)-1]
		default:
			out = append(out, seg)
		}
	}

	return "/" + strings.Join(out, "/"), nil
}

// Segments splits a canonical path into its segments. The root path
// yields an empty slice.
func Segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// checkPercentEscapes verifies every "%" starts a two-hex-digit escape.
func checkPercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHex(path[i+1]) || !isHex(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
