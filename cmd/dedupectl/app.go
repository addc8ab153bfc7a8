package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gd "github.com/Keksclan/goRawrDedupe"
	"github.com/Keksclan/goRawrDedupe/backend"
	"github.com/Keksclan/goRawrDedupe/breaker"
	"github.com/Keksclan/goRawrDedupe/cache"
	"github.com/Keksclan/goRawrDedupe/config"
	"github.com/Keksclan/goRawrDedupe/metrics"
	"github.com/Keksclan/goRawrDedupe/ratelimit"
	"github.com/Keksclan/goRawrDedupe/tracing"
)

// app is the wired deduplicator and the services that feed it.
type app struct {
	dedup     *gd.Deduplicator
	items     *backend.ItemService
	sales     *backend.SalesService
	purchases *backend.PurchaseService
	registry  *prometheus.Registry
	logger    *slog.Logger

	closers []func() error
}

// newApp builds the stack described by cfg. A nil tc disables tracing.
func newApp(cfg *config.Config, logger *slog.Logger, tc *tracing.Config) (*app, error) {
	a := &app{registry: prometheus.NewRegistry(), logger: logger}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	col, err := metrics.NewCollector(a.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	resolver, err := cfg.PolicyResolver()
	if err != nil {
		return nil, err
	}

	observers := []gd.Observer{col}
	if tc != nil {
		observers = append(observers, tracing.NewObserver())
	}
	a.dedup = gd.New(
		gd.WithDefaults(cfg.Dedupe.DebounceTime, cfg.Dedupe.CacheTime),
		gd.WithPolicies(resolver),
		gd.WithObserver(observers...),
		gd.WithLogger(logger),
	)
	col.Bind(a.dedup)

	store, err := a.newStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	ccfg := backend.ClientConfig{
		HTTP:    &http.Client{Timeout: cfg.Backend.Timeout},
		Limiter: ratelimit.NewLimiter(cfg.Backend.RateLimit.RPS, cfg.Backend.RateLimit.Burst),
		Retry:   cfg.RetryConfig(),
		Tracing: tc,
		Logger:  logger,
	}
	if bc, ok := cfg.BreakerConfig(); ok {
		bc.IsFailure = backend.IsBackendFailure
		bc.OnStateChange = func(from, to breaker.State) {
			logger.Warn("backend: breaker state changed",
				slog.String("from", from.String()), slog.String("to", to.String()))
		}
		ccfg.Breaker = breaker.New(bc)
	}
	client, err := backend.NewClient(cfg.Backend.BaseURL, ccfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.items = backend.NewItemService(client, a.dedup, store, cfg.Cache.ItemTTL)
	a.sales = backend.NewSalesService(client, a.dedup)
	a.purchases = backend.NewPurchaseService(client, a.dedup)
	return a, nil
}

// newStore returns the shared item store: ristretto alone, or ristretto in
// front of Redis when an address is configured.
func (a *app) newStore(cfg config.Cache) (cache.Cache, error) {
	l1, err := cache.NewL1(cfg.L1MaxCost)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, func() error { l1.Close(); return nil })
	if cfg.Redis.Addr == "" {
		return l1, nil
	}

	l2 := cache.NewL2(cache.L2Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	a.closers = append(a.closers, l2.Close)
	if err := l2.Ping(context.Background()); err != nil {
		// L2 fails soft, so keep going with L1 doing the work.
		a.logger.Warn("cache: redis unreachable", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
	}
	return cache.NewTiered(l1, l2), nil
}

// Close releases the stores.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
