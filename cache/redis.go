package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// L2 is a Redis-backed cache. Reads and writes fail soft: an unreachable
// Redis behaves like an empty cache that discards writes.
type L2 struct {
	rdb       *redis.Client
	keyPrefix string
	loads     singleflight.Group
}

// L2Config configures the Redis connection.
type L2Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key, e.g. "dedupe:".
	KeyPrefix string
}

// NewL2 creates a Redis-backed cache. It does not dial; use Ping to check
// connectivity.
func NewL2(cfg L2Config) *L2 {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &L2{rdb: rdb, keyPrefix: cfg.KeyPrefix}
}

// Get retrieves a value. A miss and an unreachable Redis both return
// (nil, false, nil).
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		// Fail soft: connection errors count as a miss.
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores val. Errors are discarded.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = l.rdb.Set(ctx, l.keyPrefix+key, val, ttl).Err()
	return nil
}

// Delete removes key. Errors are discarded.
func (l *L2) Delete(ctx context.Context, key string) error {
	_ = l.rdb.Del(ctx, l.keyPrefix+key).Err()
	return nil
}

// GetOrSet implements [Cache].
func (l *L2) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	return getOrLoad(ctx, &l.loads, key,
		func(ctx context.Context, k string) ([]byte, bool) {
			v, ok, _ := l.Get(ctx, k)
			return v, ok
		},
		func(ctx context.Context, k string, v []byte) { _ = l.Set(ctx, k, v, ttl) },
		loader,
	)
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
