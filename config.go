package gorawrdedupe

import (
	"time"

	"github.com/Keksclan/goRawrDedupe/policy"
)

// callConfig holds the effective settings for a single call after defaults,
// the matched policy and per-call options have been layered.
type callConfig struct {
	group        string
	debounceTime time.Duration
	cacheTime    time.Duration
	skipCache    bool
}

// resolve layers deduplicator defaults, the policy matched for key, and
// opts, in that order.
func (d *Deduplicator) resolve(key string, opts []CallOption) callConfig {
	cfg := callConfig{
		debounceTime: d.debounceTime,
		cacheTime:    d.cacheTime,
	}
	if name, pol, ok := d.policies.Resolve(key); ok {
		cfg.group = name
		applyPolicy(&cfg, pol)
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func applyPolicy(cfg *callConfig, pol *policy.Policy) {
	if pol == nil {
		return
	}
	if pol.DebounceTime > 0 {
		cfg.debounceTime = pol.DebounceTime
	}
	if pol.CacheTime > 0 {
		cfg.cacheTime = pol.CacheTime
	}
	if pol.SkipCache {
		cfg.skipCache = true
	}
}
