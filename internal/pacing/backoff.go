package pacing

import (
	"fmt"
	"time"
)

// BackoffConfig grows Base by a factor of 2 per attempt, capped at Max.
type BackoffConfig struct {
	base time.Duration
	max  time.Duration
}

func NewBackoffConfig(base, max time.Duration) (BackoffConfig, error) {
	if base <= 0 || max <= 0 {
		return BackoffConfig{}, fmt.Errorf("backoff base and max must be > 0 (base=%s max=%s)", base, max)
	}
	if base > max {
		return BackoffConfig{}, fmt.Errorf("backoff base %s exceeds max %s", base, max)
	}
	return BackoffConfig{base: base, max: max}, nil
}

func (c BackoffConfig) Base() time.Duration { return c.base }
func (c BackoffConfig) Max() time.Duration  { return c.max }

// ExponentialBackoff returns min(base*2^attempt, max) plus up to 10% jitter.
// The result always lies in [raw, raw*1.1].
func (p *Policy) ExponentialBackoff(attempt int, cfg BackoffConfig) time.Duration {
	raw := cappedDoubling(cfg.base, cfg.max, attempt)
	jitter := time.Duration(float64(raw) * 0.1 * p.float64())
	return raw + jitter
}

// cappedDoubling doubles step by step so large attempts cannot overflow.
func cappedDoubling(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max/2+1 {
			return max
		}
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}
