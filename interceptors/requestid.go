package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrDedupe/contextx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the metadata key carrying the request ID in both
// directions.
const RequestIDHeader = "x-request-id"

// RequestIDUnary returns a unary server interceptor that stores a request ID
// in the context. An incoming x-request-id is reused, otherwise a random one
// is generated. The ID is echoed back as a response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		id := contextx.RequestIDFromContext(ctx)
		if id == "" {
			if md, ok := metadata.FromIncomingContext(ctx); ok {
				if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
					id = v[0]
				}
			}
		}
		if id == "" {
			id = contextx.NewRequestID()
		}
		// SetHeader fails outside a real server stream, as in direct calls.
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
		return handler(contextx.WithRequestID(ctx, id), req)
	}
}
