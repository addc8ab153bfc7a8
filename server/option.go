package server

import (
	"log/slog"

	"github.com/Keksclan/goRawrDedupe/auth"
	"github.com/Keksclan/goRawrDedupe/tracing"
	"google.golang.org/grpc"
)

// config holds the settings assembled by functional options.
type config struct {
	recovery  bool
	requestID bool
	tracing   *tracing.Config
	authFunc  auth.AuthFunc
	unary     []grpc.UnaryServerInterceptor
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*config)

// WithRecovery turns handler panics into codes.Internal.
func WithRecovery() Option {
	return func(c *config) { c.recovery = true }
}

// WithRequestID ensures every request carries an x-request-id.
func WithRequestID() Option {
	return func(c *config) { c.requestID = true }
}

// WithOpenTelemetry creates a server span per RPC. A nil cfg uses the otel
// globals.
func WithOpenTelemetry(cfg *tracing.Config) Option {
	return func(c *config) {
		if cfg == nil {
			cfg = &tracing.Config{}
		}
		c.tracing = cfg
	}
}

// WithAuth authenticates every RPC with fn.
func WithAuth(fn auth.AuthFunc) Option {
	return func(c *config) { c.authFunc = fn }
}

// WithUnaryInterceptor appends i after the built-in interceptors.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) { c.unary = append(c.unary, i) }
}

// WithLogger sets the logger used for recovered panics and lifecycle
// messages. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
