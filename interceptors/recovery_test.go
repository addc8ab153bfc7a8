package interceptors

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Keksclan/goRawrDedupe/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestRecoveryUnary_Panic_ReturnsInternal(t *testing.T) {
	var buf bytes.Buffer
	ic := RecoveryUnary(slog.New(slog.NewTextHandler(&buf, nil)))
	handler := func(_ context.Context, _ any) (any, error) {
		panic("boom")
	}

	resp, err := ic(t.Context(), "req", &grpc.UnaryServerInfo{FullMethod: "/svc/Boom"}, handler)
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", st.Code())
	}
	if out := buf.String(); !strings.Contains(out, "boom") || !strings.Contains(out, "/svc/Boom") {
		t.Fatalf("panic not logged: %q", out)
	}
}

func TestRecoveryUnary_NoPanic_Passthrough(t *testing.T) {
	ic := RecoveryUnary(nil)
	handler := func(_ context.Context, req any) (any, error) {
		return req, nil
	}

	resp, err := ic(t.Context(), "hello", &grpc.UnaryServerInfo{}, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello" {
		t.Fatalf("expected %q, got %v", "hello", resp)
	}
}

func TestRequestIDUnary_Generates(t *testing.T) {
	ic := RequestIDUnary()
	var got string
	_, err := ic(t.Context(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		got = contextx.RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("expected generated 32-char ID, got %q", got)
	}
}

func TestRequestIDUnary_ReusesIncoming(t *testing.T) {
	ic := RequestIDUnary()
	ctx := metadata.NewIncomingContext(t.Context(), metadata.Pairs(RequestIDHeader, "abc-123"))
	var got string
	_, _ = ic(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		got = contextx.RequestIDFromContext(ctx)
		return nil, nil
	})
	if got != "abc-123" {
		t.Fatalf("got %q, want %q", got, "abc-123")
	}
}
