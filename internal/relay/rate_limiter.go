package relay

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimit describes the per-connection inbound budget: Burst messages,
// refilled evenly over RefillInterval.
type RateLimit struct {
	Burst          int
	RefillInterval time.Duration
}

// newRateLimiter converts a RateLimit into a token bucket. A zero RateLimit
// disables limiting.
func newRateLimiter(rl RateLimit) *rate.Limiter {
	if rl.Burst <= 0 {
		return nil
	}
	interval := rl.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(rl.Burst)), rl.Burst)
}
