package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrDedupe/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")

// AuthUnary returns a unary server interceptor that runs fn before the
// handler. Errors that are not already gRPC status errors become
// codes.Unauthenticated.
func AuthUnary(fn auth.AuthFunc) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		newCtx, err := fn(ctx, info.FullMethod, md)
		if err != nil {
			if _, ok := status.FromError(err); ok {
				return nil, err
			}
			return nil, errUnauthenticated
		}
		return handler(newCtx, req)
	}
}
