// Package metrics exports deduplicator activity as Prometheus metrics.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	gd "github.com/Keksclan/goRawrDedupe"
)

// defaultGroup labels events for keys that matched no policy group.
const defaultGroup = "default"

// StatsSource is satisfied by *gorawrdedupe.Deduplicator.
type StatsSource interface {
	Stats() gd.Stats
}

// Collector is a [gd.Observer] that counts call outcomes and times request
// executions. Bind a StatsSource to also report the pending and cached
// gauges.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu  sync.RWMutex
	src StatsSource
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dedupe_requests_total",
			Help: "Deduplicated calls by key group and outcome.",
		}, []string{"group", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dedupe_request_duration_seconds",
			Help:    "Duration of request functions actually executed.",
			Buckets: prometheus.DefBuckets,
		}, []string{"group"}),
	}

	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dedupe_pending_requests",
		Help: "Requests currently in flight.",
	}, func() float64 { return float64(c.stats().PendingRequests) })

	cached := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dedupe_cached_items",
		Help: "Cache entries held, expired ones included.",
	}, func() float64 { return float64(c.stats().CachedItems) })

	for _, col := range []prometheus.Collector{c.requests, c.duration, pending, cached} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Bind sets the source for the gauges. The deduplicator is usually built
// after the collector, since the collector is one of its observers.
func (c *Collector) Bind(src StatsSource) {
	c.mu.Lock()
	c.src = src
	c.mu.Unlock()
}

// Observe implements [gd.Observer].
func (c *Collector) Observe(_ context.Context, ev gd.Event) {
	group := ev.Group
	if group == "" {
		group = defaultGroup
	}
	c.requests.WithLabelValues(group, ev.Outcome.String()).Inc()
	if ev.Outcome == gd.Executed || ev.Outcome == gd.Failed {
		c.duration.WithLabelValues(group).Observe(ev.Duration.Seconds())
	}
}

func (c *Collector) stats() gd.Stats {
	c.mu.RLock()
	src := c.src
	c.mu.RUnlock()
	if src == nil {
		return gd.Stats{}
	}
	return src.Stats()
}
