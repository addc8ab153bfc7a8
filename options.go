package gorawrdedupe

import (
	"log/slog"
	"time"

	"github.com/Keksclan/goRawrDedupe/policy"
)

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithDefaults overrides the deduplicator-wide debounce window and cache
// time. Negative values are clamped to zero.
func WithDefaults(debounceTime, cacheTime time.Duration) Option {
	return func(d *Deduplicator) {
		d.debounceTime = max(debounceTime, 0)
		d.cacheTime = max(cacheTime, 0)
	}
}

// WithPolicies installs a resolver that supplies per-group defaults for
// matching keys. Per-call options still take precedence.
func WithPolicies(r *policy.Resolver) Option {
	return func(d *Deduplicator) {
		d.policies = r
	}
}

// WithObserver appends observers that receive an [Event] for every call.
func WithObserver(obs ...Observer) Option {
	return func(d *Deduplicator) {
		for _, o := range obs {
			if o != nil {
				d.observers = append(d.observers, o)
			}
		}
	}
}

// WithLogger sets the logger. It defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.log = l
		}
	}
}

// CallOption adjusts a single Do call.
type CallOption func(*callConfig)

// WithDebounce sets the minimum spacing between initiations for this key.
func WithDebounce(dur time.Duration) CallOption {
	return func(c *callConfig) {
		c.debounceTime = max(dur, 0)
	}
}

// WithCacheTime sets how long a result stored by this call, or read by it,
// stays fresh.
func WithCacheTime(dur time.Duration) CallOption {
	return func(c *callConfig) {
		c.cacheTime = max(dur, 0)
	}
}

// SkipCache bypasses both the cache read and the cache write for this call.
// Coalescing and debouncing still apply.
func SkipCache() CallOption {
	return func(c *callConfig) {
		c.skipCache = true
	}
}
