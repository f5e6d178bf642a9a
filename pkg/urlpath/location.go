package urlpath

import (
	"net/url"
	"strings"
)

// Location is a normalized, decomposed location string.
type Location struct {
	// Path is the canonical path component.
	Path string

	// Query holds the parsed query parameters.
	Query url.Values

	// Hash is the fragment without the leading "#". Empty when absent.
	Hash string
}

// Parse splits a raw location string into path, query, and hash, and
// canonicalizes the path component.
//
// Absolute URLs (http://, https://, scheme-relative //) are rejected:
// a location is always relative to the application root. This closes
// the open-redirect hole a raw string would otherwise allow.
func Parse(raw string) (Location, error) {
	if strings.HasPrefix(raw, "http://") ||
		strings.HasPrefix(raw, "https://") ||
		strings.HasPrefix(raw, "//") {
		return Location{}, ErrInvalidLocation
	}

	rest, hash, _ := strings.Cut(raw, "#")
	path, rawQuery, _ := strings.Cut(rest, "?")

	canon, err := Canonicalize(path)
	if err != nil {
		return Location{}, err
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Location{}, ErrInvalidLocation
	}

	return Location{Path: canon, Query: query, Hash: hash}, nil
}

// FullPath reassembles the location as path?query#hash.
func (l Location) FullPath() string {
	var b strings.Builder
	b.WriteString(l.Path)
	if len(l.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(l.Query.Encode())
	}
	if l.Hash != "" {
		b.WriteByte('#')
		b.WriteString(l.Hash)
	}
	return b.String()
}

// String returns the full path form.
func (l Location) String() string {
	return l.FullPath()
}
