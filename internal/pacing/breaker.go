package pacing

// Breaker tracks consecutive delivery failures for a single run.
//
// It implements a plain consecutive-failure circuit breaker:
//   - On success: resets the streak.
//   - On failure: increments the streak.
//   - Open once the streak reaches the threshold (when enabled).
//
// Skips are neither: callers simply don't report them. The run loop is
// sequential, so there is no locking.
type Breaker struct {
	fails int
}

func (b *Breaker) RecordSuccess() { b.fails = 0 }

func (b *Breaker) RecordFailure() { b.fails++ }

// Failures is the current streak length.
func (b *Breaker) Failures() int { return b.fails }

// IsOpen reports whether the run must stop. A disabled breaker never opens.
func (b *Breaker) IsOpen(threshold int, enabled bool) bool {
	if !enabled {
		return false
	}
	return b.fails >= threshold
}
