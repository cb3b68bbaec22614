package recovery

import (
	"math"
	"time"
)

// Backoff implements the supervisor's exponential wait between attempts:
// 2^attempt seconds (0-indexed attempt), capped.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff returns the standard 1s base with a 30s cap.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: 30 * time.Second}
}

// Delay returns the wait before the next attempt: Base * 2^attempt, capped.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Cap) {
		return b.Cap
	}
	return time.Duration(d)
}
