package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// L1 is an in-process cache backed by ristretto.
type L1 struct {
	rc    *ristretto.Cache[string, []byte]
	loads singleflight.Group
}

// NewL1 creates an L1 cache holding at most maxCost entries (each entry
// costs 1).
func NewL1(maxCost int64) (*L1, error) {
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &L1{rc: rc}, nil
}

// Get retrieves a copy of the value stored under key.
func (l *L1) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Set stores a copy of val. The write is visible to Get when Set returns.
func (l *L1) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	l.rc.SetWithTTL(key, clone(val), 1, ttl)
	l.rc.Wait()
	return nil
}

// Delete removes key.
func (l *L1) Delete(_ context.Context, key string) error {
	l.rc.Del(key)
	return nil
}

// GetOrSet implements [Cache].
func (l *L1) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	return getOrLoad(ctx, &l.loads, key,
		func(ctx context.Context, k string) ([]byte, bool) {
			v, ok, _ := l.Get(ctx, k)
			return v, ok
		},
		func(ctx context.Context, k string, v []byte) { _ = l.Set(ctx, k, v, ttl) },
		loader,
	)
}

// Close stops ristretto's background goroutines.
func (l *L1) Close() {
	l.rc.Close()
}
