// Package core orders the admin server's interceptors independently of the
// order in which options were applied.
package core

import (
	"cmp"
	"slices"

	"google.golang.org/grpc"
)

// Fixed slots for the built-in interceptors. User interceptors come last and
// keep their registration order.
const (
	OrderRecovery = iota * 10
	OrderRequestID
	OrderTracing
	OrderAuth
	OrderUser
)

type middleware struct {
	unary grpc.UnaryServerInterceptor
	order int
}

// Builder collects unary interceptors and sorts them by slot.
type Builder struct {
	entries []middleware
}

// Add registers ic at the given slot. A nil ic is ignored.
func (b *Builder) Add(order int, ic grpc.UnaryServerInterceptor) {
	if ic == nil {
		return
	}
	b.entries = append(b.entries, middleware{unary: ic, order: order})
}

// Build returns the interceptors sorted by slot. Entries sharing a slot keep
// their insertion order.
func (b *Builder) Build() []grpc.UnaryServerInterceptor {
	sorted := slices.Clone(b.entries)
	slices.SortStableFunc(sorted, func(a, c middleware) int {
		return cmp.Compare(a.order, c.order)
	})
	out := make([]grpc.UnaryServerInterceptor, len(sorted))
	for i, m := range sorted {
		out[i] = m.unary
	}
	return out
}

// BuildServerOptions chains the sorted interceptors into grpc.ServerOption
// values. It returns nil when nothing was added.
func (b *Builder) BuildServerOptions(chain func([]grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor) []grpc.ServerOption {
	if u := chain(b.Build()); u != nil {
		return []grpc.ServerOption{grpc.UnaryInterceptor(u)}
	}
	return nil
}
