// Package server exposes a Deduplicator over a small admin gRPC API. The
// service is registered with a hand-written grpc.ServiceDesc, so no protobuf
// code generation is needed.
package server

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/Keksclan/goRawrDedupe/interceptors"
	"github.com/Keksclan/goRawrDedupe/internal/core"
	"github.com/Keksclan/goRawrDedupe/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps a gRPC server carrying the admin and health services.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
}

// NewServer builds a Server for target. Built-in interceptors run in a fixed
// order regardless of option order: recovery, request ID, tracing, auth,
// then user interceptors in registration order.
func NewServer(target Target, opts ...Option) *Server {
	cfg := config{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	var b core.Builder
	if cfg.recovery {
		b.Add(core.OrderRecovery, interceptors.RecoveryUnary(cfg.logger))
	}
	if cfg.requestID {
		b.Add(core.OrderRequestID, interceptors.RequestIDUnary())
	}
	if cfg.tracing != nil {
		b.Add(core.OrderTracing, tracing.UnaryServerInterceptor(cfg.tracing))
	}
	if cfg.authFunc != nil {
		b.Add(core.OrderAuth, interceptors.AuthUnary(cfg.authFunc))
	}
	for _, ic := range cfg.unary {
		b.Add(core.OrderUser, ic)
	}

	gs := grpc.NewServer(b.BuildServerOptions(interceptors.ChainUnary)...)
	RegisterAdmin(gs, NewAdminHandler(target))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(AdminServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpcServer: gs, health: hs, logger: cfg.logger}
}

// GRPC returns the underlying *grpc.Server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("admin: serving", slog.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// Stop marks the services as not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// MetricsHandler serves the metrics gathered by g in the Prometheus text
// format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
