// Package retry wraps backend calls with exponential back-off and jitter.
// The deduplicator itself never retries; callers that want resilience put
// Do inside the request function they hand to it.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retry number attempt (0-indexed), capped
// at cfg.MaxDelay and jittered by ±cfg.Jitter.
func backoff(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if limit := float64(cfg.MaxDelay); limit > 0 && delay > limit {
		delay = limit
	}
	if cfg.Jitter > 0 {
		delay += delay * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(delay, 0))
}
