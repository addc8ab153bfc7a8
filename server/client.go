package server

import (
	"context"
	"time"

	"github.com/Keksclan/goRawrDedupe/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
)

// AdminClient calls the admin service over conn. Calls that fail with
// codes.Unavailable are retried a few times.
type AdminClient struct {
	conn  grpc.ClientConnInterface
	token string
	retry retry.Config
}

// NewAdminClient returns a client sending token as a bearer token when it
// is non-empty.
func NewAdminClient(conn grpc.ClientConnInterface, token string) *AdminClient {
	return &AdminClient{
		conn:  conn,
		token: token,
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Second,
			Jitter:      0.2,
			Retryable:   retry.Codes(codes.Unavailable),
		},
	}
}

// Stats fetches the deduplicator's stats.
func (c *AdminClient) Stats(ctx context.Context) (*StatsResponse, error) {
	return invoke[StatsResponse](ctx, c, "Stats", &StatsRequest{})
}

// ClearCache clears cached entries whose key contains pattern, or all of
// them when pattern is empty.
func (c *AdminClient) ClearCache(ctx context.Context, pattern string) (*ClearCacheResponse, error) {
	return invoke[ClearCacheResponse](ctx, c, "ClearCache", &ClearCacheRequest{Pattern: pattern})
}

// Ping round-trips msg through the server.
func (c *AdminClient) Ping(ctx context.Context, msg string) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c, "Ping", &PingRequest{Message: msg})
}

func invoke[Resp any](ctx context.Context, c *AdminClient, method string, req any) (*Resp, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return retry.Do(ctx, c.retry, func(ctx context.Context) (*Resp, error) {
		resp := new(Resp)
		if err := c.conn.Invoke(ctx, "/"+AdminServiceName+"/"+method, req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
}
