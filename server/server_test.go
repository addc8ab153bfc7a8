package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	gd "github.com/Keksclan/goRawrDedupe"
	"github.com/Keksclan/goRawrDedupe/auth"
	"github.com/Keksclan/goRawrDedupe/contextx"
	"github.com/Keksclan/goRawrDedupe/metrics"
	"github.com/Keksclan/goRawrDedupe/server"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func startServer(t *testing.T, d *gd.Deduplicator, opts ...server.Option) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	s := server.NewServer(d, opts...)
	t.Cleanup(s.Stop)
	go func() { _ = s.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seed(t *testing.T, d *gd.Deduplicator, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := gd.Do(t.Context(), d, k, func(context.Context) (string, error) { return k, nil })
		if err != nil {
			t.Fatalf("seed %q: %v", k, err)
		}
	}
}

func TestRegisterAdmin(t *testing.T) {
	s := server.NewServer(gd.New())
	info := s.GRPC().GetServiceInfo()
	si, ok := info[server.AdminServiceName]
	if !ok {
		t.Fatalf("%s not registered", server.AdminServiceName)
	}
	var names []string
	for _, m := range si.Methods {
		names = append(names, m.Name)
	}
	// GetServiceInfo builds Methods from a map, so the order varies.
	slices.Sort(names)
	if diff := cmp.Diff([]string{"ClearCache", "Ping", "Stats"}, names); diff != "" {
		t.Fatalf("methods mismatch (-want +got):\n%s", diff)
	}
	if _, ok := info["grpc.health.v1.Health"]; !ok {
		t.Fatal("health service not registered")
	}
}

func TestAdmin_StatsAndClearCache(t *testing.T) {
	d := gd.New()
	seed(t, d, "items:co1", "items:co2", "sales:co1")
	client := server.NewAdminClient(startServer(t, d), "")

	st, err := client.Stats(t.Context())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := &server.StatsResponse{CachedItems: 3, Keys: []string{"items:co1", "items:co2", "sales:co1"}}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	cl, err := client.ClearCache(t.Context(), "items")
	if err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if cl.Removed != 2 {
		t.Fatalf("got removed %d, want 2", cl.Removed)
	}
	if got := d.Stats().Keys; !cmp.Equal(got, []string{"sales:co1"}) {
		t.Fatalf("got keys %v, want [sales:co1]", got)
	}
}

func TestAdmin_Ping(t *testing.T) {
	client := server.NewAdminClient(startServer(t, gd.New()), "")

	resp, err := client.Ping(t.Context(), "hello")
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if resp.Message != "hello" {
		t.Fatalf("expected message %q, got %q", "hello", resp.Message)
	}
	if diff := time.Now().Unix() - resp.ServerTimeUnix; diff < 0 || diff > 5 {
		t.Fatalf("ServerTimeUnix is not recent: %d (diff %d)", resp.ServerTimeUnix, diff)
	}
}

func TestAdmin_BearerAuth(t *testing.T) {
	conn := startServer(t, gd.New(), server.WithAuth(auth.BearerToken("s3cret")))

	_, err := server.NewAdminClient(conn, "").Stats(t.Context())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without token, got %v", err)
	}
	_, err = server.NewAdminClient(conn, "wrong").Stats(t.Context())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated with wrong token, got %v", err)
	}
	if _, err := server.NewAdminClient(conn, "s3cret").Stats(t.Context()); err != nil {
		t.Fatalf("expected success with valid token, got %v", err)
	}
}

func TestAdmin_RequestIDHeader(t *testing.T) {
	conn := startServer(t, gd.New(), server.WithRequestID())

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(t.Context(), "x-request-id", "req-42")
	err := conn.Invoke(ctx, "/gorawrdedupe.Admin/Ping", &server.PingRequest{Message: "x"}, new(server.PingResponse), grpc.Header(&header))
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got := header.Get("x-request-id"); len(got) == 0 || got[0] != "req-42" {
		t.Fatalf("got x-request-id %v, want [req-42]", got)
	}
}

func TestNewServer_RecoveryRunsBeforeAuth(t *testing.T) {
	var order []string
	var requestID string
	panicky := func(ctx context.Context, _ string, _ metadata.MD) (context.Context, error) {
		order = append(order, "auth")
		requestID = contextx.RequestIDFromContext(ctx)
		panic("auth exploded")
	}
	user := func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		order = append(order, "user")
		return h(ctx, req)
	}

	// Options in reverse priority; the server must still order them.
	conn := startServer(t, gd.New(),
		server.WithUnaryInterceptor(user),
		server.WithAuth(panicky),
		server.WithRequestID(),
		server.WithRecovery(),
	)

	_, err := server.NewAdminClient(conn, "").Ping(t.Context(), "x")
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal from recovered panic, got %v", err)
	}
	if diff := cmp.Diff([]string{"auth"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if requestID == "" {
		t.Fatal("request ID interceptor should run before auth")
	}
}

func TestHealth_Serving(t *testing.T) {
	conn := startServer(t, gd.New())

	resp, err := healthpb.NewHealthClient(conn).Check(t.Context(), &healthpb.HealthCheckRequest{Service: server.AdminServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("got status %v, want SERVING", resp.GetStatus())
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	d := gd.New(gd.WithObserver(col))
	col.Bind(d)
	seed(t, d, "items:co1")

	srv := httptest.NewServer(server.MetricsHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`dedupe_requests_total{group="default",outcome="executed"} 1`,
		`dedupe_cached_items 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}
