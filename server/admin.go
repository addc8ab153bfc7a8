package server

import (
	"context"
	"time"

	gd "github.com/Keksclan/goRawrDedupe"
	"google.golang.org/grpc"
)

// AdminServiceName is the full gRPC service name of the admin API.
const AdminServiceName = "gorawrdedupe.Admin"

// StatsRequest is the input for the Stats method.
type StatsRequest struct{}

// StatsResponse mirrors gorawrdedupe.Stats.
type StatsResponse struct {
	PendingRequests int      `json:"pending_requests"`
	CachedItems     int      `json:"cached_items"`
	Keys            []string `json:"keys"`
}

// ClearCacheRequest is the input for the ClearCache method. An empty
// Pattern clears everything.
type ClearCacheRequest struct {
	Pattern string `json:"pattern"`
}

// ClearCacheResponse reports how many cached entries the clear removed.
type ClearCacheResponse struct {
	Removed int `json:"removed"`
}

// PingRequest is the input for the Ping method.
type PingRequest struct {
	Message string `json:"message"`
}

// PingResponse echoes the message with the server time.
type PingResponse struct {
	Message        string `json:"message"`
	ServerTimeUnix int64  `json:"server_time_unix"`
}

// adminMsg marks the types the codec encodes as JSON.
type adminMsg interface {
	isAdminMsg()
}

func (*StatsRequest) isAdminMsg()       {}
func (*StatsResponse) isAdminMsg()      {}
func (*ClearCacheRequest) isAdminMsg()  {}
func (*ClearCacheResponse) isAdminMsg() {}
func (*PingRequest) isAdminMsg()        {}
func (*PingResponse) isAdminMsg()       {}

// Target is the part of *gorawrdedupe.Deduplicator the admin service uses.
type Target interface {
	Stats() gd.Stats
	ClearCache(pattern string)
}

// AdminHandler is the interface an admin service implementation satisfies.
type AdminHandler interface {
	Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error)
	ClearCache(ctx context.Context, req *ClearCacheRequest) (*ClearCacheResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

// NewAdminHandler returns an AdminHandler backed by t.
func NewAdminHandler(t Target) AdminHandler {
	return &adminHandler{target: t, now: time.Now}
}

type adminHandler struct {
	target Target
	now    func() time.Time
}

func (h *adminHandler) Stats(context.Context, *StatsRequest) (*StatsResponse, error) {
	s := h.target.Stats()
	return &StatsResponse{PendingRequests: s.PendingRequests, CachedItems: s.CachedItems, Keys: s.Keys}, nil
}

func (h *adminHandler) ClearCache(_ context.Context, req *ClearCacheRequest) (*ClearCacheResponse, error) {
	before := h.target.Stats().CachedItems
	h.target.ClearCache(req.Pattern)
	after := h.target.Stats().CachedItems
	return &ClearCacheResponse{Removed: max(before-after, 0)}, nil
}

func (h *adminHandler) Ping(_ context.Context, req *PingRequest) (*PingResponse, error) {
	return &PingResponse{Message: req.Message, ServerTimeUnix: h.now().Unix()}, nil
}

// AdminServiceDesc is the grpc.ServiceDesc for the gorawrdedupe.Admin
// service.
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: statsHandler},
		{MethodName: "ClearCache", Handler: clearCacheHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gorawrdedupe/admin.proto",
}

// RegisterAdmin registers h on s.
func RegisterAdmin(s *grpc.Server, h AdminHandler) {
	s.RegisterService(&AdminServiceDesc, h)
}

// unary decodes a request of type Req and routes it through the optional
// interceptor to call.
func unary[Req any, Resp any](
	method string,
	call func(AdminHandler, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + AdminServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		h := srv.(AdminHandler)
		if interceptor == nil {
			return call(h, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, r any) (any, error) {
			return call(h, ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

var (
	statsHandler      = unary("Stats", AdminHandler.Stats)
	clearCacheHandler = unary("ClearCache", AdminHandler.ClearCache)
	pingHandler       = unary("Ping", AdminHandler.Ping)
)
