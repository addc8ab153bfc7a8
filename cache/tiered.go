package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultPromoteTTL is how long an L2 hit read through [Tiered.Get] stays
// in L1. The entry's remaining lifetime in L2 is not known to the reader.
const DefaultPromoteTTL = time.Minute

// Tiered combines an L1 and an L2 cache. Reads check L1, then L2, then the
// loader; writes populate both layers.
type Tiered struct {
	l1 *L1
	l2 Cache

	promoteTTL time.Duration
	loads      singleflight.Group
}

// NewTiered creates a two-level cache.
func NewTiered(l1 *L1, l2 *L2) *Tiered {
	return newTiered(l1, l2)
}

func newTiered(l1 *L1, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2, promoteTTL: DefaultPromoteTTL}
}

// Get checks L1, then L2. An L2 hit is promoted into L1 for
// DefaultPromoteTTL.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := t.get(ctx, key, t.promoteTTL)
	return v, ok, nil
}

func (t *Tiered) get(ctx context.Context, key string, promoteTTL time.Duration) ([]byte, bool) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, true
	}
	v, ok, _ := t.l2.Get(ctx, key)
	if !ok {
		return nil, false
	}
	_ = t.l1.Set(ctx, key, v, promoteTTL)
	return v, true
}

// Set writes val to L2, then L1.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// Delete removes key from both layers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l2.Delete(ctx, key)
	return t.l1.Delete(ctx, key)
}

// GetOrSet implements [Cache]. L2 hits are promoted into L1 with ttl.
func (t *Tiered) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	return getOrLoad(ctx, &t.loads, key,
		func(ctx context.Context, k string) ([]byte, bool) { return t.get(ctx, k, ttl) },
		func(ctx context.Context, k string, v []byte) { _ = t.Set(ctx, k, v, ttl) },
		loader,
	)
}
