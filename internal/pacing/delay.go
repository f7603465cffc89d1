package pacing

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// DelayConfig bounds the randomized waits of a run.
//
// Build it with NewDelayConfig; the zero value is a valid "no waiting" config
// except for typing, which needs a positive speed.
type DelayConfig struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	typingCPS   float64
	pageLoadMin time.Duration
	pageLoadMax time.Duration
}

// NewDelayConfig validates and freezes delay bounds.
// typingCPS may be zero here; TypingDelay reports it when used.
func NewDelayConfig(minDelay, maxDelay time.Duration, typingCPS float64, pageLoadMin, pageLoadMax time.Duration) (DelayConfig, error) {
	switch {
	case minDelay < 0 || maxDelay < 0:
		return DelayConfig{}, fmt.Errorf("delay bounds must be >= 0 (min=%s max=%s)", minDelay, maxDelay)
	case minDelay > maxDelay:
		return DelayConfig{}, fmt.Errorf("min delay %s exceeds max delay %s", minDelay, maxDelay)
	case typingCPS < 0:
		return DelayConfig{}, fmt.Errorf("typing speed must be >= 0, got %v", typingCPS)
	case pageLoadMin < 0 || pageLoadMax < 0:
		return DelayConfig{}, fmt.Errorf("page load bounds must be >= 0 (min=%s max=%s)", pageLoadMin, pageLoadMax)
	case pageLoadMin > pageLoadMax:
		return DelayConfig{}, fmt.Errorf("page load min %s exceeds max %s", pageLoadMin, pageLoadMax)
	}
	return DelayConfig{
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		typingCPS:   typingCPS,
		pageLoadMin: pageLoadMin,
		pageLoadMax: pageLoadMax,
	}, nil
}

func (c DelayConfig) MinDelay() time.Duration    { return c.minDelay }
func (c DelayConfig) MaxDelay() time.Duration    { return c.maxDelay }
func (c DelayConfig) TypingCPS() float64         { return c.typingCPS }
func (c DelayConfig) PageLoadMin() time.Duration { return c.pageLoadMin }
func (c DelayConfig) PageLoadMax() time.Duration { return c.pageLoadMax }

// Policy draws delays from an injected random source.
// It is safe for concurrent use.
type Policy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy seeds a private source. Tests pass a fixed seed.
func NewPolicy(seed int64) *Policy {
	return &Policy{rng: rand.New(rand.NewSource(seed))}
}

// NewTimePolicy seeds from the wall clock.
func NewTimePolicy() *Policy {
	return NewPolicy(time.Now().UnixNano())
}

// float64 returns a value in [0, 1).
func (p *Policy) float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// Intn returns a value in [0, n). n must be > 0.
func (p *Policy) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

// uniform draws from the inclusive range [lo, hi].
func (p *Policy) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	// Int63n is exclusive, so widen by one nanosecond to make hi reachable.
	p.mu.Lock()
	defer p.mu.Unlock()
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)+1))
}

// HumanDelay is the wait between two successful sends.
func (p *Policy) HumanDelay(cfg DelayConfig) time.Duration {
	return p.uniform(cfg.minDelay, cfg.maxDelay)
}

// PageLoadDelay is the settle time after a navigation.
func (p *Policy) PageLoadDelay(cfg DelayConfig) time.Duration {
	return p.uniform(cfg.pageLoadMin, cfg.pageLoadMax)
}

// TypingDelay is the total time spent typing n characters: n/cps scaled by a
// factor drawn from [0.8, 1.2].
func (p *Policy) TypingDelay(cfg DelayConfig, n int) (time.Duration, error) {
	if n < 0 {
		return 0, fmt.Errorf("message length must be >= 0, got %d", n)
	}
	if cfg.typingCPS <= 0 {
		return 0, ErrZeroTypingSpeed
	}
	base := float64(n) / cfg.typingCPS
	factor := 0.8 + 0.4*p.float64()
	secs := base * factor
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs * float64(time.Second)), nil
}
