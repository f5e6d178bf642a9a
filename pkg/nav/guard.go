// Package nav implements the navigation pipeline: the guard state
// machine that decides whether, and to where, a requested navigation
// commits.
//
// A navigation runs four guard phases strictly in sequence: global
// before-each guards, leaving guards on the previous matched chain
// (leaf to root), entering guards on the new chain (root to leaf), and
// global before-resolve guards. Every guard is awaited fully before the
// next one runs; a guard that needs asynchronous work simply blocks
// until it has its answer.
package nav

import (
	"context"
	"fmt"

	"github.com/wayfind-dev/wayfind/pkg/matcher"
)

// Guard inspects a pending navigation and decides its fate. The guard
// runs to completion before the pipeline continues, whether it answers
// immediately or waits on external work first.
//
// Guards always use the same contract regardless of callback style at
// the API boundary: examine to and from, return one Result.
type Guard func(ctx context.Context, to, from *matcher.ResolvedLocation) Result

// Hook observes a confirmed navigation. Hooks run best-effort after the
// location change is committed; a failing hook is logged and never
// un-confirms the navigation.
type Hook func(to, from *matcher.ResolvedLocation)

// ErrorHandler receives navigation errors as fire-and-forget
// notifications.
type ErrorHandler func(err error, to, from *matcher.ResolvedLocation)

type resultKind uint8

const (
	kindContinue resultKind = iota
	kindAbort
	kindRedirect
	kindError
)

// Result is a guard's verdict.
type Result struct {
	kind   resultKind
	target string
	err    error
}

// Continue lets the navigation proceed to the next guard.
func Continue() Result {
	return Result{kind: kindContinue}
}

// Abort stops the navigation; the location stays unchanged.
func Abort() Result {
	return Result{kind: kindAbort}
}

// RedirectTo restarts the pipeline against target, counting one
// redirect hop.
func RedirectTo(target string) Result {
	return Result{kind: kindRedirect, target: target}
}

// Fail stops the navigation with err, which is surfaced to error
// handlers and to the caller.
func Fail(err error) Result {
	if err == nil {
		err = fmt.Errorf("guard failed without error")
	}
	return Result{kind: kindError, err: err}
}
