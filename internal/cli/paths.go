package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/keelpm/keel/pkg/cache"
	"github.com/keelpm/keel/pkg/store"
)

// Environment variables honored by the CLI. Flags take precedence.
const (
	envCacheDir  = "KEEL_CACHE_DIR"
	envRedisAddr = "KEEL_REDIS_ADDR"
	envMongoURI  = "KEEL_MONGO_URI"
)

// cacheDir returns the candidate cache directory: $KEEL_CACHE_DIR if set,
// otherwise ~/.cache/keel.
func cacheDir() (string, error) {
	if dir := os.Getenv(envCacheDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "keel"), nil
}

// openCache builds the candidate cache from flags and environment:
// an explicit redis address wins, then $KEEL_REDIS_ADDR, then the file
// cache. An empty cacheDirFlag selects the default directory.
func openCache(ctx context.Context, redisAddr, cacheDirFlag string) (cache.Cache, error) {
	if redisAddr == "" {
		redisAddr = os.Getenv(envRedisAddr)
	}
	if redisAddr != "" {
		// Transient connection errors during startup are worth a few retries.
		var c cache.Cache
		err := cache.RetryWithBackoff(ctx, func() error {
			var err error
			c, err = cache.NewRedisCache(ctx, redisAddr)
			return cache.Retryable(err)
		})
		return c, err
	}

	dir := cacheDirFlag
	if dir == "" {
		var err error
		dir, err = cacheDir()
		if err != nil {
			return nil, err
		}
	}
	return cache.NewFileCache(dir)
}

// openStore builds the plan store: an explicit mongo URI wins, then
// $KEEL_MONGO_URI, then the file store in its default directory.
func openStore(ctx context.Context, mongoURI string) (store.Store, error) {
	if mongoURI == "" {
		mongoURI = os.Getenv(envMongoURI)
	}
	if mongoURI != "" {
		return store.NewMongoStore(ctx, mongoURI, "")
	}
	return store.NewFileStore("")
}
