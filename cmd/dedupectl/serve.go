package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Keksclan/goRawrDedupe/auth"
	"github.com/Keksclan/goRawrDedupe/server"
	"github.com/Keksclan/goRawrDedupe/tracing"
)

// ServeCmd runs the admin gRPC server and the HTTP gateway until
// interrupted.
type ServeCmd struct {
	ShutdownTimeout time.Duration `help:"How long to wait for in-flight requests on shutdown." default:"10s"`
}

// Run executes the serve command.
func (s *ServeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger := newLogger(g.errOut(), cfg.Log)

	var tc *tracing.Config
	if cfg.Tracing.Stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(g.errOut()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("serve: stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
		tc = &tracing.Config{TracerProvider: tp, Propagators: propagation.TraceContext{}}
	}

	a, err := newApp(cfg, logger, tc)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer a.Close()

	opts := []server.Option{
		server.WithRecovery(),
		server.WithRequestID(),
		server.WithLogger(logger),
	}
	if tc != nil {
		opts = append(opts, server.WithOpenTelemetry(tc))
	}
	if cfg.Admin.Token != "" {
		opts = append(opts, server.WithAuth(auth.BearerToken(cfg.Admin.Token)))
	}
	admin := server.NewServer(a.dedup, opts...)

	adminLis, err := net.Listen("tcp", cfg.Admin.Addr)
	if err != nil {
		return fmt.Errorf("serve: admin listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", newGateway(a))
	servers := []*http.Server{{Addr: cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
	if cfg.Metrics.Addr == "" {
		mux.Handle("/metrics", server.MetricsHandler(a.registry))
	} else {
		mm := http.NewServeMux()
		mm.Handle("/metrics", server.MetricsHandler(a.registry))
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mm, ReadHeaderTimeout: 5 * time.Second})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error { return admin.Serve(adminLis) })
	for _, hs := range servers {
		eg.Go(func() error {
			logger.Info("http: serving", slog.String("addr", hs.Addr))
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		admin.Stop()
		var errs []error
		for _, hs := range servers {
			errs = append(errs, hs.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})
	return eg.Wait()
}
