package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/cache"
	"github.com/keelpm/keel/pkg/observability"
)

// DefaultMatchTTL is how long cached match results stay valid.
const DefaultMatchTTL = time.Hour

// CachedSource wraps a Source with a byte cache. Match results are stored
// as JSON-encoded Spec lists keyed by (namespace, atom), so identical
// lookups across runs or instances skip the underlying source.
//
// Cache failures are never fatal: a broken cache degrades to the wrapped
// source.
type CachedSource struct {
	src       Source
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
}

// NewCachedSource wraps src. The namespace separates sources sharing one
// cache backend. A nil cache disables caching; a nil keyer selects the
// default.
func NewCachedSource(src Source, c cache.Cache, keyer cache.Keyer, namespace string) *CachedSource {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &CachedSource{
		src:       src,
		cache:     c,
		keyer:     keyer,
		namespace: namespace,
		ttl:       DefaultMatchTTL,
	}
}

// WithTTL overrides the entry lifetime.
func (s *CachedSource) WithTTL(ttl time.Duration) *CachedSource {
	s.ttl = ttl
	return s
}

// Match returns candidates for a, consulting the cache first.
func (s *CachedSource) Match(ctx context.Context, a atom.Atom) ([]*Package, error) {
	key := s.keyer.MatchKey(s.namespace, a.String())

	if data, hit, err := s.cache.Get(ctx, key); err == nil && hit {
		if pkgs, err := decodeSpecs(data); err == nil {
			observability.Cache().OnCacheHit(ctx, "match")
			return pkgs, nil
		}
		// Undecodable entry: drop it and fall through to the source.
		_ = s.cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, "match")

	pkgs, err := s.src.Match(ctx, a)
	if err != nil {
		return nil, err
	}

	if data, err := encodeSpecs(pkgs); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err == nil {
			observability.Cache().OnCacheSet(ctx, "match", len(data))
		}
	}
	return pkgs, nil
}

func encodeSpecs(pkgs []*Package) ([]byte, error) {
	specs := make([]Spec, len(pkgs))
	for i, p := range pkgs {
		specs[i] = p.Spec()
	}
	return json.Marshal(specs)
}

func decodeSpecs(data []byte) ([]*Package, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, err
	}
	pkgs := make([]*Package, len(specs))
	for i, spec := range specs {
		p, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		pkgs[i] = p
	}
	return pkgs, nil
}

var _ Source = (*CachedSource)(nil)
