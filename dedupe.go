package gorawrdedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Keksclan/goRawrDedupe/policy"
)

var (
	// ErrEmptyKey is returned by Do when key is empty.
	ErrEmptyKey = errors.New("gorawrdedupe: empty key")

	// ErrTypeMismatch is returned by Do when the value stored or shared
	// under a key is not of the type requested by the caller. Two call sites
	// sharing a key must agree on its result type.
	ErrTypeMismatch = errors.New("gorawrdedupe: result type mismatch")

	// ErrRequestPanicked wraps a panic raised by a request function.
	ErrRequestPanicked = errors.New("gorawrdedupe: request function panicked")
)

// call is one in-flight request shared by its initiator and every caller
// that attaches while it runs.
type call struct {
	done chan struct{}
	val  any
	err  error
}

// wait blocks until c settles or ctx is done. Leaving early does not affect
// the request itself.
func (c *call) wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.val, c.err
	default:
	}
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// entry is a cached successful result. It is never evicted on expiry, only
// treated as a miss once older than the caller's cache time.
type entry struct {
	val      any
	storedAt time.Time
}

// Stats is a point-in-time snapshot of the deduplicator's bookkeeping.
type Stats struct {
	PendingRequests int      `json:"pending_requests"`
	CachedItems     int      `json:"cached_items"`
	Keys            []string `json:"keys"`
}

// Deduplicator coalesces concurrent requests per key, caches successful
// results and debounces rapid repeats. All methods are safe for concurrent
// use; one instance is meant to be shared by the whole process.
type Deduplicator struct {
	mu          sync.Mutex
	pending     map[string]*call
	cache       map[string]entry
	lastRequest map[string]time.Time

	debounceTime time.Duration
	cacheTime    time.Duration
	policies     *policy.Resolver
	observers    []Observer
	log          *slog.Logger
	nowFunc      func() time.Time // for testing; defaults to time.Now
}

// New creates a Deduplicator with DefaultDebounceTime and DefaultCacheTime
// unless overridden by opts.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		pending:      make(map[string]*call),
		cache:        make(map[string]entry),
		lastRequest:  make(map[string]time.Time),
		debounceTime: DefaultDebounceTime,
		cacheTime:    DefaultCacheTime,
		log:          slog.Default(),
		nowFunc:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Do returns the result of fn for key, invoking fn only when no in-flight
// request, fresh cache entry or debounce shortcut can satisfy the call.
//
// The checks run in a fixed order:
//  1. an in-flight request for key is joined;
//  2. unless SkipCache is set, a cache entry younger than the cache time is
//     returned;
//  3. if the previous initiation for key started less than the debounce
//     window ago, a cached entry of any age is returned (unless SkipCache is
//     set), otherwise the caller sleeps for the window and re-runs checks 1
//     and 2;
//  4. fn is invoked and its success is cached unless SkipCache is set.
//
// fn runs on its own goroutine with a context that carries ctx's values but
// is never cancelled. When ctx is done, Do returns ctx.Err() and the
// request keeps running to completion. Errors from fn reach every attached
// caller unchanged.
func Do[T any](ctx context.Context, d *Deduplicator, key string, fn func(context.Context) (T, error), opts ...CallOption) (T, error) {
	var zero T
	v, err := d.do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T, want %T", ErrTypeMismatch, key, v, zero)
	}
	return t, nil
}

func (d *Deduplicator) do(ctx context.Context, key string, fn func(context.Context) (any, error), opts []CallOption) (any, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	cfg := d.resolve(key, opts)

	waited := false
	for {
		d.mu.Lock()

		if c, ok := d.pending[key]; ok {
			d.mu.Unlock()
			d.emit(ctx, Event{Key: key, Group: cfg.group, Outcome: Coalesced})
			return c.wait(ctx)
		}

		now := d.now()
		if !cfg.skipCache {
			if e, ok := d.cache[key]; ok && now.Sub(e.storedAt) < cfg.cacheTime {
				d.mu.Unlock()
				d.emit(ctx, Event{Key: key, Group: cfg.group, Outcome: CacheHit})
				return e.val, nil
			}
		}

		if !waited {
			if last, ok := d.lastRequest[key]; ok && now.Sub(last) < cfg.debounceTime {
				if e, ok := d.cache[key]; ok && !cfg.skipCache {
					d.mu.Unlock()
					d.log.Debug("dedupe: serving stale entry inside debounce window",
						slog.String("key", key), slog.Duration("age", now.Sub(e.storedAt)))
					d.emit(ctx, Event{Key: key, Group: cfg.group, Outcome: StaleHit})
					return e.val, nil
				}
				d.mu.Unlock()
				d.emit(ctx, Event{Key: key, Group: cfg.group, Outcome: Debounced})
				if err := sleep(ctx, cfg.debounceTime); err != nil {
					return nil, err
				}
				waited = true
				continue
			}
		}

		c := &call{done: make(chan struct{})}
		d.pending[key] = c
		d.lastRequest[key] = now
		d.mu.Unlock()

		d.log.Debug("dedupe: executing request", slog.String("key", key), slog.String("group", cfg.group))
		go d.run(context.WithoutCancel(ctx), key, cfg, c, fn)
		return c.wait(ctx)
	}
}

// run invokes fn and settles c. The deferred block always runs, so the
// pending entry is removed even when fn panics.
func (d *Deduplicator) run(ctx context.Context, key string, cfg callConfig, c *call, fn func(context.Context) (any, error)) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.val, c.err = nil, fmt.Errorf("%w: %v", ErrRequestPanicked, r)
		}

		ev := Event{Key: key, Group: cfg.group, Outcome: Executed, Duration: time.Since(start)}
		if c.err != nil {
			ev.Outcome, ev.Err = Failed, c.err
			d.log.Warn("dedupe: request failed", slog.String("key", key), slog.Any("error", c.err))
		}

		d.mu.Lock()
		if c.err == nil && !cfg.skipCache {
			d.cache[key] = entry{val: c.val, storedAt: d.now()}
		}
		// A whole-cache clear may have dropped c, and a newer call may own
		// the key by now; only remove our own entry.
		if d.pending[key] == c {
			delete(d.pending, key)
		}
		d.mu.Unlock()

		d.emit(ctx, ev)
		close(c.done)
	}()
	c.val, c.err = fn(ctx)
}

// ClearCache removes cached results. An empty pattern clears every cached
// result and forgets every pending request; the requests themselves keep
// running and their results are still cached when they succeed. A
// non-empty pattern removes only cached results whose key contains it.
func (d *Deduplicator) ClearCache(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pattern == "" {
		clear(d.cache)
		clear(d.pending)
		return
	}
	// Unlike the full clear, pending requests are left alone.
	for k := range d.cache {
		if strings.Contains(k, pattern) {
			delete(d.cache, k)
		}
	}
}

// Stats returns the number of pending requests, the number of cache
// entries (expired ones included) and the sorted cached keys.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		PendingRequests: len(d.pending),
		CachedItems:     len(d.cache),
		Keys:            slices.Sorted(maps.Keys(d.cache)),
	}
}

func (d *Deduplicator) emit(ctx context.Context, ev Event) {
	for _, o := range d.observers {
		o.Observe(ctx, ev)
	}
}

func (d *Deduplicator) now() time.Time {
	if d.nowFunc != nil {
		return d.nowFunc()
	}
	return time.Now()
}

// sleep waits for dur or until ctx is done.
func sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
