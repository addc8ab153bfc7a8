package gorawrdedupe

import "time"

const (
	// DefaultDebounceTime is the minimum spacing between two initiations of
	// the same key.
	DefaultDebounceTime = 100 * time.Millisecond

	// DefaultCacheTime is how long a successful result satisfies new calls.
	DefaultCacheTime = 30 * time.Second
)
