// Package auth holds the authentication hook used by the admin server.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthFunc authenticates a gRPC request. It receives the request context,
// the full method name and the incoming metadata. On success it returns a
// (possibly enriched) context; on failure it returns an error.
type AuthFunc func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error)

// BearerToken returns an AuthFunc that requires the "authorization" metadata
// to carry "Bearer <token>". An empty token rejects every request.
func BearerToken(token string) AuthFunc {
	want := []byte(token)
	return func(ctx context.Context, _ string, md metadata.MD) (context.Context, error) {
		for _, v := range md.Get("authorization") {
			got, ok := strings.CutPrefix(v, "Bearer ")
			if !ok || len(want) == 0 {
				continue
			}
			if subtle.ConstantTimeCompare([]byte(got), want) == 1 {
				return ctx, nil
			}
		}
		return ctx, status.Error(codes.Unauthenticated, "invalid or missing bearer token")
	}
}
