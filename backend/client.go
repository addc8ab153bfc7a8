// Package backend holds the HTTP clients for the item, sales and purchase
// services. Every read goes through a shared Deduplicator; the Client adds
// rate limiting, a circuit breaker, retries and tracing underneath it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Keksclan/goRawrDedupe/breaker"
	"github.com/Keksclan/goRawrDedupe/contextx"
	"github.com/Keksclan/goRawrDedupe/ratelimit"
	"github.com/Keksclan/goRawrDedupe/retry"
	"github.com/Keksclan/goRawrDedupe/tracing"
)

const (
	headerRequestID = "X-Request-ID"
	headerCompany   = "X-Company-ID"

	// maxErrorBody bounds how much of a non-2xx body is kept in StatusError.
	maxErrorBody = 4 << 10
)

// ClientConfig configures a Client. Every field is optional.
type ClientConfig struct {
	// HTTP sends the requests. Defaults to a client with a 10s timeout.
	HTTP *http.Client

	// Limiter throttles outgoing requests. Nil means unlimited.
	Limiter *ratelimit.Limiter

	// Breaker guards the backend. Nil disables it.
	Breaker *breaker.Breaker

	// Retry controls retries of GET requests. Retry.Retryable defaults to
	// IsRetryable. A MaxAttempts of 1 or less disables retries.
	Retry retry.Config

	// Tracing, when set, wraps every attempt in a client span and
	// propagates the trace context.
	Tracing *tracing.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a JSON-over-HTTP client for one backend base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	retry   retry.Config
	tracing *tracing.Config
	log     *slog.Logger
}

// NewClient returns a Client sending requests relative to baseURL.
func NewClient(baseURL string, cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base url %q must be http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		base:    u,
		http:    cfg.HTTP,
		limiter: cfg.Limiter,
		breaker: cfg.Breaker,
		retry:   cfg.Retry,
		tracing: cfg.Tracing,
		log:     cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = IsRetryable
	}
	onRetry := c.retry.OnRetry
	c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.Info("backend: retrying request",
			slog.Int("attempt", attempt), slog.Duration("delay", delay), slog.Any("error", err))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	return c, nil
}

// Get sends a GET for path with query and decodes the JSON response into
// out. Retryable failures are retried according to the retry config.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := retry.Do(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.send(ctx, http.MethodGet, path, query, nil, out)
	})
	return err
}

// Post sends body as JSON and decodes the response into out. It is never
// retried.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: encode request: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, nil, payload, out)
}

// send performs a single attempt.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.breaker == nil {
		return c.roundTrip(ctx, method, path, query, body, out)
	}
	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, query, body, out)
	})
	if errors.Is(err, breaker.ErrOpen) {
		c.log.Warn("backend: circuit open, request rejected",
			slog.String("method", method), slog.String("path", path))
		return ErrCircuitOpen
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, out any) (err error) {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	ctx, span := tracing.Start(ctx, c.tracing, "HTTP "+method,
		attribute.String("http.request.method", method),
		attribute.String("url.full", u.String()),
	)
	defer func() { tracing.End(span, err) }()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(headerRequestID, id)
	}
	if co, ok := contextx.CompanyFromContext(ctx); ok {
		req.Header.Set(headerCompany, co)
	}
	tracing.InjectHTTP(ctx, c.tracing, req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	c.log.Debug("backend: response",
		slog.String("method", method), slog.String("path", path),
		slog.Int("status", resp.StatusCode), slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{fmt.Errorf("backend: decode %s %s: %w", method, path, err)}
	}
	return nil
}
