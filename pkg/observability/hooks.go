// Package observability routes diagnostic events to pluggable hooks.
//
// The resolver, cache and HTTP layers emit events through the interfaces
// here instead of logging or counting directly, so a binary can decide at
// startup how to surface them (structured logs, Prometheus, OpenTelemetry)
// without the libraries importing any backend. Registration happens once in
// main, before the instrumented code runs:
//
//	observability.SetResolverHooks(&metricsHooks{})
//
// Unregistered categories fall back to no-ops, so library code calls hooks
// unconditionally:
//
//	observability.Resolver().OnAtomMissing(a)
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/keelpm/keel/pkg/atom"
)

// ResolverHooks receives diagnostic events from the resolution engine.
// The resolver emits these at well-defined points instead of logging
// directly; hook implementations decide how to surface them.
//
// Resolver hook methods take no context: the engine is a synchronous
// in-memory state machine and never blocks between events.
type ResolverHooks interface {
	// OnAtomMissing records that an atom needs candidates from the caller.
	OnAtomMissing(a atom.Atom)

	// OnCycleDetected records a dependency cycle: a requires parent which
	// (transitively) requires a again.
	OnCycleDetected(a, parent atom.Atom)

	// OnBlockerConflict records that blocker a matched the currently chosen
	// candidate (by ID) of a live choice point.
	OnBlockerConflict(a atom.Atom, chosenID string)

	// OnStaleChoicePoint records an exhausted choice point encountered in
	// the by-key index during blocker checking.
	OnStaleChoicePoint(a atom.Atom)

	// OnChoiceReduced records a backtracking reduction: candidates of
	// parent's choice point requiring dep were removed, leaving remaining
	// candidates.
	OnChoiceReduced(parent, dep atom.Atom, remaining int)

	// OnRootFailure records that a root-level requirement was proven
	// unsatisfiable.
	OnRootFailure(a atom.Atom, reason string)
}

// CacheHooks receives hit/miss/write events from the candidate cache.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives request lifecycle events from the API server.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, path string)
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// NoopResolverHooks ignores all resolver events. Embed it to implement only
// the events of interest.
type NoopResolverHooks struct{}

func (NoopResolverHooks) OnAtomMissing(atom.Atom)                   {}
func (NoopResolverHooks) OnCycleDetected(atom.Atom, atom.Atom)      {}
func (NoopResolverHooks) OnBlockerConflict(atom.Atom, string)       {}
func (NoopResolverHooks) OnStaleChoicePoint(atom.Atom)              {}
func (NoopResolverHooks) OnChoiceReduced(atom.Atom, atom.Atom, int) {}
func (NoopResolverHooks) OnRootFailure(atom.Atom, string)           {}

// NoopCacheHooks ignores all cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores all HTTP events.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// registry holds the active hooks behind one lock. Reads vastly outnumber
// writes (registration happens once at startup), hence the RWMutex.
var registry = struct {
	sync.RWMutex
	resolver ResolverHooks
	cache    CacheHooks
	http     HTTPHooks
}{
	resolver: NoopResolverHooks{},
	cache:    NoopCacheHooks{},
	http:     NoopHTTPHooks{},
}

// SetResolverHooks registers h for resolver events. Nil is ignored.
func SetResolverHooks(h ResolverHooks) {
	registry.Lock()
	defer registry.Unlock()
	if h != nil {
		registry.resolver = h
	}
}

// SetCacheHooks registers h for cache events. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	registry.Lock()
	defer registry.Unlock()
	if h != nil {
		registry.cache = h
	}
}

// SetHTTPHooks registers h for HTTP events. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	registry.Lock()
	defer registry.Unlock()
	if h != nil {
		registry.http = h
	}
}

// Resolver returns the active resolver hooks.
func Resolver() ResolverHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.resolver
}

// Cache returns the active cache hooks.
func Cache() CacheHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.cache
}

// HTTP returns the active HTTP hooks.
func HTTP() HTTPHooks {
	registry.RLock()
	defer registry.RUnlock()
	return registry.http
}

// Reset restores the no-op defaults. For tests.
func Reset() {
	registry.Lock()
	defer registry.Unlock()
	registry.resolver = NoopResolverHooks{}
	registry.cache = NoopCacheHooks{}
	registry.http = NoopHTTPHooks{}
}
