// Package config loads dedupectl's YAML configuration with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	gd "github.com/Keksclan/goRawrDedupe"
	"github.com/Keksclan/goRawrDedupe/breaker"
	"github.com/Keksclan/goRawrDedupe/policy"
	"github.com/Keksclan/goRawrDedupe/retry"
)

// Config holds all dedupectl configuration.
type Config struct {
	Dedupe   Dedupe   `yaml:"dedupe"`
	Policies []Policy `yaml:"policies"`
	Backend  Backend  `yaml:"backend"`
	Cache    Cache    `yaml:"cache"`
	Admin    Admin    `yaml:"admin"`
	HTTP     HTTP     `yaml:"http"`
	Metrics  Metrics  `yaml:"metrics"`
	Tracing  Tracing  `yaml:"tracing"`
	Log      Log      `yaml:"log"`
}

// Dedupe holds the deduplicator-wide defaults.
type Dedupe struct {
	DebounceTime time.Duration `yaml:"debounce_time"`
	CacheTime    time.Duration `yaml:"cache_time"`
}

// Policy is one key group. Zero durations inherit the dedupe defaults.
type Policy struct {
	Name         string        `yaml:"name"`
	Exact        []string      `yaml:"exact"`
	Prefix       []string      `yaml:"prefix"`
	Regex        []string      `yaml:"regex"`
	DebounceTime time.Duration `yaml:"debounce_time"`
	CacheTime    time.Duration `yaml:"cache_time"`
	SkipCache    bool          `yaml:"skip_cache"`
}

// Backend holds the HTTP backend settings.
type Backend struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit RateLimit     `yaml:"rate_limit"`
	Retry     Retry         `yaml:"retry"`
	Breaker   Breaker       `yaml:"breaker"`
}

// RateLimit throttles outgoing requests. An RPS of 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Retry holds the GET retry policy.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`
}

// Breaker holds the circuit breaker settings. A FailureThreshold of 0
// disables the breaker.
type Breaker struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	HalfOpenMaxSuccess int           `yaml:"half_open_max_success"`
}

// Cache holds the shared item store settings.
type Cache struct {
	L1MaxCost int64         `yaml:"l1_max_cost"`
	ItemTTL   time.Duration `yaml:"item_ttl"`
	Redis     Redis         `yaml:"redis"`
}

// Redis configures the optional L2 store. An empty Addr disables it.
type Redis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Admin configures the admin gRPC endpoint.
type Admin struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// HTTP configures the JSON gateway served by "dedupectl serve".
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Metrics configures a dedicated Prometheus listener. When Addr is empty,
// /metrics is served on the HTTP gateway instead.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Tracing configures span export.
type Tracing struct {
	Stdout bool `yaml:"stdout"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "text" | "json"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dedupe: Dedupe{
			DebounceTime: gd.DefaultDebounceTime,
			CacheTime:    gd.DefaultCacheTime,
		},
		Backend: Backend{
			BaseURL: "http://localhost:8000/api",
			Timeout: 10 * time.Second,
			Retry: Retry{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Jitter:      0.2,
			},
			Breaker: Breaker{
				FailureThreshold:   5,
				OpenTimeout:        30 * time.Second,
				HalfOpenMaxSuccess: 1,
			},
		},
		Cache: Cache{
			L1MaxCost: 10_000,
			ItemTTL:   5 * time.Minute,
			Redis:     Redis{KeyPrefix: "dedupe:"},
		},
		Admin: Admin{Addr: "127.0.0.1:7070"},
		HTTP:  HTTP{Addr: "127.0.0.1:8080"},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML config file at path. A missing or empty file yields
// defaults. Unknown fields are an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv applies environment variable overrides. Supported variables:
// DEDUPE_DEBOUNCE_TIME, DEDUPE_CACHE_TIME, DEDUPE_BACKEND_URL,
// DEDUPE_BACKEND_TIMEOUT, DEDUPE_RATE_LIMIT_RPS, DEDUPE_REDIS_ADDR,
// DEDUPE_REDIS_PASSWORD, DEDUPE_ADMIN_ADDR, DEDUPE_ADMIN_TOKEN,
// DEDUPE_HTTP_ADDR, DEDUPE_METRICS_ADDR, DEDUPE_TRACING_STDOUT,
// DEDUPE_LOG_LEVEL and DEDUPE_LOG_FORMAT.
func (c *Config) ApplyEnv() error {
	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"DEDUPE_DEBOUNCE_TIME", &c.Dedupe.DebounceTime},
		{"DEDUPE_CACHE_TIME", &c.Dedupe.CacheTime},
		{"DEDUPE_BACKEND_TIMEOUT", &c.Backend.Timeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: invalid %s %q: %w", d.env, v, err)
			}
			*d.dst = parsed
		}
	}

	strs := []struct {
		env string
		dst *string
	}{
		{"DEDUPE_BACKEND_URL", &c.Backend.BaseURL},
		{"DEDUPE_REDIS_ADDR", &c.Cache.Redis.Addr},
		{"DEDUPE_REDIS_PASSWORD", &c.Cache.Redis.Password},
		{"DEDUPE_ADMIN_ADDR", &c.Admin.Addr},
		{"DEDUPE_ADMIN_TOKEN", &c.Admin.Token},
		{"DEDUPE_HTTP_ADDR", &c.HTTP.Addr},
		{"DEDUPE_METRICS_ADDR", &c.Metrics.Addr},
		{"DEDUPE_LOG_LEVEL", &c.Log.Level},
		{"DEDUPE_LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("DEDUPE_RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid DEDUPE_RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.Backend.RateLimit.RPS = rps
	}
	if v := os.Getenv("DEDUPE_TRACING_STDOUT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid DEDUPE_TRACING_STDOUT %q: %w", v, err)
		}
		c.Tracing.Stdout = b
	}
	return nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Dedupe.DebounceTime < 0 {
		return fmt.Errorf("config: dedupe.debounce_time must be non-negative, got %v", c.Dedupe.DebounceTime)
	}
	if c.Dedupe.CacheTime < 0 {
		return fmt.Errorf("config: dedupe.cache_time must be non-negative, got %v", c.Dedupe.CacheTime)
	}
	seen := make(map[string]bool, len(c.Policies))
	for i, p := range c.Policies {
		if p.Name == "" {
			return fmt.Errorf("config: policies[%d].name cannot be empty", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate policy name %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Exact)+len(p.Prefix)+len(p.Regex) == 0 {
			return fmt.Errorf("config: policy %q matches no keys", p.Name)
		}
		if p.DebounceTime < 0 || p.CacheTime < 0 {
			return fmt.Errorf("config: policy %q durations must be non-negative", p.Name)
		}
	}
	if _, err := c.PolicyResolver(); err != nil {
		return err
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend.base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("config: backend.timeout must be positive, got %v", c.Backend.Timeout)
	}
	if c.Backend.RateLimit.RPS < 0 {
		return fmt.Errorf("config: backend.rate_limit.rps must be non-negative, got %v", c.Backend.RateLimit.RPS)
	}
	if c.Backend.Retry.MaxAttempts < 0 {
		return fmt.Errorf("config: backend.retry.max_attempts must be non-negative, got %d", c.Backend.Retry.MaxAttempts)
	}
	if j := c.Backend.Retry.Jitter; j < 0 || j > 1 {
		return fmt.Errorf("config: backend.retry.jitter must be within [0, 1], got %v", j)
	}
	if c.Backend.Breaker.FailureThreshold < 0 {
		return fmt.Errorf("config: backend.breaker.failure_threshold must be non-negative, got %d", c.Backend.Breaker.FailureThreshold)
	}
	if c.Cache.L1MaxCost <= 0 {
		return fmt.Errorf("config: cache.l1_max_cost must be positive, got %d", c.Cache.L1MaxCost)
	}
	if c.Admin.Addr == "" {
		return errors.New("config: admin.addr cannot be empty")
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr cannot be empty")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}
	return nil
}

// PolicyResolver builds a resolver from the policies section, in file order.
// It returns nil when no policies are configured.
func (c *Config) PolicyResolver() (*policy.Resolver, error) {
	if len(c.Policies) == 0 {
		return nil, nil
	}
	groups := make([]*policy.GroupBuilder, 0, len(c.Policies))
	for _, p := range c.Policies {
		g := policy.Group(p.Name)
		for _, k := range p.Exact {
			g.Exact(k)
		}
		for _, pre := range p.Prefix {
			g.Prefix(pre)
		}
		for _, re := range p.Regex {
			if _, err := g.CompileRegex(re); err != nil {
				return nil, fmt.Errorf("config: policy %q: %w", p.Name, err)
			}
		}
		g.Policy(policy.Policy{
			DebounceTime: p.DebounceTime,
			CacheTime:    p.CacheTime,
			SkipCache:    p.SkipCache,
		})
		groups = append(groups, g)
	}
	return policy.NewResolver(groups...), nil
}

// RetryConfig converts the backend retry section.
func (c *Config) RetryConfig() retry.Config {
	r := c.Backend.Retry
	return retry.Config{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
	}
}

// BreakerConfig converts the backend breaker section. The boolean is false
// when the breaker is disabled.
func (c *Config) BreakerConfig() (breaker.Config, bool) {
	b := c.Backend.Breaker
	if b.FailureThreshold == 0 {
		return breaker.Config{}, false
	}
	return breaker.Config{
		FailureThreshold:   b.FailureThreshold,
		OpenTimeout:        b.OpenTimeout,
		HalfOpenMaxSuccess: b.HalfOpenMaxSuccess,
	}, true
}
