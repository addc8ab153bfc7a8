// Package interceptors holds the unary middleware used by the admin server.
package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// ChainUnary composes interceptors into one. They run in slice order; nil
// entries are skipped.
func ChainUnary(interceptors []grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	chain := make([]grpc.UnaryServerInterceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			chain = append(chain, ic)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		curr := handler
		for i := len(chain) - 1; i > 0; i-- {
			next := curr
			ic := chain[i]
			curr = func(ctx context.Context, req any) (any, error) {
				return ic(ctx, req, info, next)
			}
		}
		return chain[0](ctx, req, info, curr)
	}
}
