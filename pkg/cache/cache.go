// Package cache provides the byte-level caching layer used by the candidate
// repository and the API server.
//
// Three backends are provided:
//   - FileCache: per-entry JSON files for CLI usage
//   - RedisCache: shared cache for multi-instance deployments
//   - NullCache: caching disabled
//
// Keys are produced by a Keyer so callers never concatenate raw strings;
// the default keyer hashes structured parts with SHA-256.
package cache

import (
	"context"
	"time"
)

// Cache is the interface all backends implement. Values are opaque bytes;
// encoding is the caller's concern.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for the domain objects keel caches.
type Keyer interface {
	// MatchKey identifies the candidate list a source returned for an atom.
	// The namespace separates sources sharing one cache.
	MatchKey(namespace, atom string) string

	// PlanKey identifies a stored resolution plan by content hash.
	PlanKey(hash string) string
}

// DefaultKeyer hashes structured key parts with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// MatchKey generates a key for cached atom matches.
func (k *DefaultKeyer) MatchKey(namespace, atom string) string {
	return hashKey("match", namespace, atom)
}

// PlanKey generates a key for cached plans.
func (k *DefaultKeyer) PlanKey(hash string) string {
	return hashKey("plan", hash)
}

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer that prepends prefix to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// MatchKey generates a prefixed key for cached atom matches.
func (k *ScopedKeyer) MatchKey(namespace, atom string) string {
	return k.prefix + k.inner.MatchKey(namespace, atom)
}

// PlanKey generates a prefixed key for cached plans.
func (k *ScopedKeyer) PlanKey(hash string) string {
	return k.prefix + k.inner.PlanKey(hash)
}
