package cache

import (
	"context"
	"time"
)

// NullCache discards every write and misses every read. It stands in for a
// real backend when caching is disabled (--no-cache) so callers never branch
// on a nil Cache.
type NullCache struct{}

// NewNullCache creates a cache that never stores anything.
func NewNullCache() Cache { return NullCache{} }

// Get always misses.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the value.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete is a no-op.
func (NullCache) Delete(context.Context, string) error { return nil }

// Close is a no-op.
func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
