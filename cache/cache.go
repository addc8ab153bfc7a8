// Package cache provides the shared byte store used for long-lived backend
// records. L1 keeps values in process (ristretto), L2 shares them between
// processes (Redis), and Tiered layers the two.
package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the byte-store contract used by the backend clients.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores val under key. A zero TTL means no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetOrSet returns the value for key, calling loader once on a miss and
	// storing its result. Concurrent misses for the same key share one
	// loader call. Loader errors are returned and never stored.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error)
}

// getOrLoad implements GetOrSet on top of get/set for any layer.
func getOrLoad(
	ctx context.Context,
	g *singleflight.Group,
	key string,
	get func(context.Context, string) ([]byte, bool),
	set func(context.Context, string, []byte),
	loader func(context.Context) ([]byte, error),
) ([]byte, error) {
	if v, ok := get(ctx, key); ok {
		return v, nil
	}
	v, err, _ := g.Do(key, func() (any, error) {
		// Another caller may have filled the key while we queued.
		if v, ok := get(ctx, key); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]byte)), nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
