// Package gorawrdedupe coalesces, caches and debounces keyed requests so
// that UI-facing callers (item search fields, paginated list loaders, name
// verification) never hit the backend more than necessary.
//
// A single [Deduplicator] is built at start-up and shared by every caller:
//
//	d := gd.New(gd.WithPolicies(resolver), gd.WithLogger(logger))
//	items, err := gd.Do(ctx, d, "items:co1:search:bolt", fetch)
//
// For each key the deduplicator guarantees at most one in-flight request,
// serves successful results from memory for the cache time, and spaces out
// repeated initiations by the debounce window. Failed requests are never
// cached and never retried here.
package gorawrdedupe
