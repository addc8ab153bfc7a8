package gorawrdedupe

import (
	"context"
	"time"
)

// Outcome describes how a call was satisfied.
type Outcome int

const (
	// Executed means the call invoked its request function and it succeeded.
	Executed Outcome = iota
	// Failed means the call invoked its request function and it failed.
	Failed
	// Coalesced means the call attached to an in-flight request.
	Coalesced
	// CacheHit means a fresh cache entry satisfied the call.
	CacheHit
	// StaleHit means the call fell inside the debounce window and was served
	// an expired cache entry.
	StaleHit
	// Debounced means the call fell inside the debounce window with nothing
	// cached and was suspended before proceeding.
	Debounced
)

var outcomeNames = [...]string{
	Executed:  "executed",
	Failed:    "failed",
	Coalesced: "coalesced",
	CacheHit:  "cache_hit",
	StaleHit:  "stale_hit",
	Debounced: "debounced",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Event is delivered to observers. Duration is set for Executed and Failed
// events and measures the request function alone. Debounced is reported
// when the wait starts; the same call later reports how it was satisfied.
type Event struct {
	Key      string
	Group    string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer receives call events. Implementations must be safe for
// concurrent use and must not block. Executed and Failed events are emitted
// from the request goroutine with the initiator's context values.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }
