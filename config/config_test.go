package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dedupe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Dedupe.DebounceTime != 100*time.Millisecond {
		t.Errorf("default debounce = %v, want 100ms", cfg.Dedupe.DebounceTime)
	}
	if cfg.Dedupe.CacheTime != 30*time.Second {
		t.Errorf("default cache time = %v, want 30s", cfg.Dedupe.CacheTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
dedupe:
  debounce_time: 50ms
  cache_time: 1s
policies:
  - name: search
    regex: [":search:"]
    debounce_time: 250ms
  - name: stats
    exact: ["dashboard:stats"]
    skip_cache: true
backend:
  base_url: https://erp.example.com/api
  rate_limit:
    rps: 20
    burst: 5
cache:
  redis:
    addr: localhost:6379
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dedupe.DebounceTime != 50*time.Millisecond || cfg.Dedupe.CacheTime != time.Second {
		t.Errorf("dedupe = %+v", cfg.Dedupe)
	}
	want := []Policy{
		{Name: "search", Regex: []string{":search:"}, DebounceTime: 250 * time.Millisecond},
		{Name: "stats", Exact: []string{"dashboard:stats"}, SkipCache: true},
	}
	if diff := cmp.Diff(want, cfg.Policies); diff != "" {
		t.Errorf("policies mismatch (-want +got):\n%s", diff)
	}
	if cfg.Backend.BaseURL != "https://erp.example.com/api" {
		t.Errorf("base url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RateLimit != (RateLimit{RPS: 20, Burst: 5}) {
		t.Errorf("rate limit = %+v", cfg.Backend.RateLimit)
	}
	// Untouched sections keep their defaults.
	if cfg.Backend.Retry.MaxAttempts != 3 {
		t.Errorf("retry max attempts = %d, want default 3", cfg.Backend.Retry.MaxAttempts)
	}
	if cfg.Cache.Redis.KeyPrefix != "dedupe:" || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Errorf("redis = %+v", cfg.Cache.Redis)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/dedupe.yaml")
	if err != nil {
		t.Fatalf("Load() should return defaults for missing file, got error: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), *cfg); diff != "" {
		t.Errorf("Load(missing) mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyAndCommentOnly(t *testing.T) {
	for _, body := range []string{"", "# nothing here\n"} {
		cfg, err := Load(writeConfig(t, body))
		if err != nil {
			t.Fatalf("Load(%q) error = %v", body, err)
		}
		if diff := cmp.Diff(DefaultConfig(), *cfg); diff != "" {
			t.Errorf("Load(%q) mismatch (-want +got):\n%s", body, diff)
		}
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{invalid yaml")); err == nil {
		t.Fatal("Load(invalid YAML) should return error")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "dedupe:\n  debounce: 1s\n"))
	if err == nil {
		t.Fatal("Load() should reject unknown fields")
	}
	if !strings.Contains(err.Error(), "debounce") {
		t.Errorf("error should name the field, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DEDUPE_DEBOUNCE_TIME", "10ms")
	t.Setenv("DEDUPE_BACKEND_URL", "http://backend:9000")
	t.Setenv("DEDUPE_RATE_LIMIT_RPS", "2.5")
	t.Setenv("DEDUPE_ADMIN_TOKEN", "s3cret")
	t.Setenv("DEDUPE_TRACING_STDOUT", "true")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Dedupe.DebounceTime != 10*time.Millisecond {
		t.Errorf("debounce = %v, want 10ms", cfg.Dedupe.DebounceTime)
	}
	if cfg.Backend.BaseURL != "http://backend:9000" {
		t.Errorf("base url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RateLimit.RPS != 2.5 {
		t.Errorf("rps = %v, want 2.5", cfg.Backend.RateLimit.RPS)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Admin.Token)
	}
	if !cfg.Tracing.Stdout {
		t.Error("tracing.stdout should be true")
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	for env, val := range map[string]string{
		"DEDUPE_CACHE_TIME":     "soon",
		"DEDUPE_RATE_LIMIT_RPS": "fast",
		"DEDUPE_TRACING_STDOUT": "maybe",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			cfg := DefaultConfig()
			if err := cfg.ApplyEnv(); err == nil {
				t.Fatalf("ApplyEnv() should reject %s=%q", env, val)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative debounce", func(c *Config) { c.Dedupe.DebounceTime = -1 }, "debounce_time"},
		{"bad url", func(c *Config) { c.Backend.BaseURL = "ftp://x" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Backend.Timeout = 0 }, "timeout"},
		{"jitter", func(c *Config) { c.Backend.Retry.Jitter = 2 }, "jitter"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty admin", func(c *Config) { c.Admin.Addr = "" }, "admin.addr"},
		{"unnamed policy", func(c *Config) {
			c.Policies = []Policy{{Prefix: []string{"items:"}}}
		}, "name"},
		{"duplicate policy", func(c *Config) {
			c.Policies = []Policy{{Name: "a", Prefix: []string{"x"}}, {Name: "a", Prefix: []string{"y"}}}
		}, "duplicate"},
		{"policy without rules", func(c *Config) { c.Policies = []Policy{{Name: "a"}} }, "matches no keys"},
		{"bad regex", func(c *Config) { c.Policies = []Policy{{Name: "a", Regex: []string{"("}}} }, "policy \"a\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestPolicyResolver(t *testing.T) {
	cfg := DefaultConfig()
	if r, err := cfg.PolicyResolver(); err != nil || r != nil {
		t.Fatalf("no policies: got (%v, %v), want (nil, nil)", r, err)
	}

	cfg.Policies = []Policy{
		{Name: "items", Prefix: []string{"items:"}, CacheTime: time.Minute},
		{Name: "search", Regex: []string{`:search:`}, DebounceTime: 300 * time.Millisecond},
	}
	r, err := cfg.PolicyResolver()
	if err != nil {
		t.Fatalf("PolicyResolver() error = %v", err)
	}

	// Prefix beats regex.
	name, pol, ok := r.Resolve("items:co1:search:bolt")
	if !ok || name != "items" || pol.CacheTime != time.Minute {
		t.Fatalf("got (%q, %+v, %v)", name, pol, ok)
	}
	name, pol, ok = r.Resolve("sales:co1:search:acme")
	if !ok || name != "search" || pol.DebounceTime != 300*time.Millisecond {
		t.Fatalf("got (%q, %+v, %v)", name, pol, ok)
	}
}

func TestBreakerConfig(t *testing.T) {
	cfg := DefaultConfig()
	bc, ok := cfg.BreakerConfig()
	if !ok || bc.FailureThreshold != 5 || bc.OpenTimeout != 30*time.Second {
		t.Fatalf("got (%+v, %v)", bc, ok)
	}
	cfg.Backend.Breaker.FailureThreshold = 0
	if _, ok := cfg.BreakerConfig(); ok {
		t.Fatal("a zero failure threshold should disable the breaker")
	}
}
