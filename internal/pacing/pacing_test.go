package pacing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func mustDelayConfig(t *testing.T, minD, maxD time.Duration, cps float64, plMin, plMax time.Duration) DelayConfig {
	t.Helper()
	cfg, err := NewDelayConfig(minD, maxD, cps, plMin, plMax)
	if err != nil {
		t.Fatalf("NewDelayConfig: %v", err)
	}
	return cfg
}

func TestHumanDelayWithinBounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		min, max time.Duration
	}{
		{name: "default range", min: 30 * time.Second, max: 120 * time.Second},
		{name: "narrow", min: time.Second, max: time.Second + time.Millisecond},
		{name: "equal", min: 5 * time.Second, max: 5 * time.Second},
		{name: "zero", min: 0, max: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := mustDelayConfig(t, tt.min, tt.max, 5, 0, 0)
			p := NewPolicy(42)
			for i := 0; i < 2000; i++ {
				d := p.HumanDelay(cfg)
				if d < tt.min || d > tt.max {
					t.Fatalf("HumanDelay = %s, want in [%s, %s]", d, tt.min, tt.max)
				}
			}
		})
	}
}

func TestPageLoadDelayWithinBounds(t *testing.T) {
	t.Parallel()
	cfg := mustDelayConfig(t, 0, 0, 5, 2*time.Second, 5*time.Second)
	p := NewPolicy(7)
	for i := 0; i < 2000; i++ {
		d := p.PageLoadDelay(cfg)
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("PageLoadDelay = %s out of bounds", d)
		}
	}
}

func TestTypingDelayVariance(t *testing.T) {
	t.Parallel()
	cfg := mustDelayConfig(t, 0, 0, 5, 0, 0)
	p := NewPolicy(1)
	for i := 0; i < 2000; i++ {
		d, err := p.TypingDelay(cfg, 100)
		if err != nil {
			t.Fatalf("TypingDelay: %v", err)
		}
		if d < 16*time.Second || d > 24*time.Second {
			t.Fatalf("TypingDelay(100, 5cps) = %s, want in [16s, 24s]", d)
		}
	}
}

func TestTypingDelayEdges(t *testing.T) {
	t.Parallel()
	p := NewPolicy(1)

	zero := mustDelayConfig(t, 0, 0, 0, 0, 0)
	if _, err := p.TypingDelay(zero, 10); !errors.Is(err, ErrZeroTypingSpeed) {
		t.Fatalf("expected ErrZeroTypingSpeed, got %v", err)
	}

	cfg := mustDelayConfig(t, 0, 0, 5, 0, 0)
	d, err := p.TypingDelay(cfg, 0)
	if err != nil || d != 0 {
		t.Fatalf("TypingDelay(0) = %s, %v; want 0, nil", d, err)
	}
	if _, err := p.TypingDelay(cfg, -1); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestNewDelayConfigRejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                 string
		min, max, plMin, plM time.Duration
		cps                  float64
	}{
		{name: "min above max", min: 10 * time.Second, max: time.Second, cps: 5},
		{name: "negative min", min: -time.Second, max: time.Second, cps: 5},
		{name: "negative cps", max: time.Second, cps: -1},
		{name: "page load inverted", max: time.Second, cps: 5, plMin: 5 * time.Second, plM: 2 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewDelayConfig(tt.min, tt.max, tt.cps, tt.plMin, tt.plM); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExponentialBackoffBounds(t *testing.T) {
	t.Parallel()
	cfg, err := NewBackoffConfig(5*time.Second, 300*time.Second)
	if err != nil {
		t.Fatalf("NewBackoffConfig: %v", err)
	}
	tests := []struct {
		attempt int
		raw     time.Duration
	}{
		{attempt: 0, raw: 5 * time.Second},
		{attempt: 1, raw: 10 * time.Second},
		{attempt: 2, raw: 20 * time.Second},
		{attempt: 5, raw: 160 * time.Second},
		{attempt: 6, raw: 300 * time.Second},
		{attempt: 10, raw: 300 * time.Second},
		{attempt: 200, raw: 300 * time.Second},
	}
	p := NewPolicy(99)
	for _, tt := range tests {
		for i := 0; i < 500; i++ {
			d := p.ExponentialBackoff(tt.attempt, cfg)
			hi := tt.raw + tt.raw/10
			if d < tt.raw || d > hi {
				t.Fatalf("attempt %d: backoff %s, want in [%s, %s]", tt.attempt, d, tt.raw, hi)
			}
		}
	}
}

func TestExponentialBackoffMonotonicRaw(t *testing.T) {
	t.Parallel()
	prev := time.Duration(0)
	for a := 0; a < 40; a++ {
		raw := cappedDoubling(3*time.Second, time.Minute, a)
		if raw < prev {
			t.Fatalf("raw backoff decreased at attempt %d: %s < %s", a, raw, prev)
		}
		prev = raw
	}
	if prev != time.Minute {
		t.Fatalf("expected cap, got %s", prev)
	}
}

func TestNewBackoffConfigRejectsInvalid(t *testing.T) {
	t.Parallel()
	if _, err := NewBackoffConfig(0, time.Second); err == nil {
		t.Fatal("expected error for zero base")
	}
	if _, err := NewBackoffConfig(time.Minute, time.Second); err == nil {
		t.Fatal("expected error for base above max")
	}
}

func TestBreakerConsecutiveFailures(t *testing.T) {
	t.Parallel()
	var b Breaker
	for i := 0; i < 3; i++ {
		if b.IsOpen(3, true) {
			t.Fatalf("open too early after %d failures", i)
		}
		b.RecordFailure()
	}
	if !b.IsOpen(3, true) {
		t.Fatal("expected breaker open after 3 failures")
	}
	if b.IsOpen(3, false) {
		t.Fatal("disabled breaker must never open")
	}

	b.RecordSuccess()
	if b.IsOpen(3, true) || b.Failures() != 0 {
		t.Fatalf("success must reset streak, failures=%d", b.Failures())
	}

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if b.IsOpen(3, true) {
		t.Fatal("non-consecutive failures must not open the breaker")
	}
}

func TestSleepCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Sleep did not return promptly on cancel")
	}
}

func TestRetry(t *testing.T) {
	t.Parallel()
	cfg, _ := NewBackoffConfig(time.Second, 8*time.Second)
	var waits []time.Duration
	s := SleeperFunc(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	calls := 0
	err := NewPolicy(3).Retry(context.Background(), s, 3, cfg, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 || len(waits) != 2 {
		t.Fatalf("calls=%d waits=%d, want 3 and 2", calls, len(waits))
	}
	if waits[0] < time.Second || waits[1] < 2*time.Second {
		t.Fatalf("unexpected waits %v", waits)
	}
}

func TestRetryStopsOnNoRetry(t *testing.T) {
	t.Parallel()
	cfg, _ := NewBackoffConfig(time.Second, 8*time.Second)
	calls := 0
	base := errors.New("gone")
	err := NewPolicy(3).Retry(context.Background(), SleeperFunc(func(context.Context, time.Duration) error { return nil }), 5, cfg, nil,
		func(context.Context) error {
			calls++
			return NoRetry(base)
		})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, base) || !IsNoRetry(err) {
		t.Fatalf("unexpected err %v", err)
	}
}

func TestRetryHookAndFailedWait(t *testing.T) {
	t.Parallel()
	cfg, _ := NewBackoffConfig(time.Second, 8*time.Second)
	type call struct {
		attempt int
		delay   time.Duration
	}
	var hooks []call
	flaky := errors.New("flaky")
	calls := 0
	s := SleeperFunc(func(context.Context, time.Duration) error { return errors.New("stop") })

	err := NewPolicy(5).Retry(context.Background(), s, 4, cfg,
		func(attempt int, delay time.Duration, err error) {
			hooks = append(hooks, call{attempt, delay})
		},
		func(context.Context) error {
			calls++
			return flaky
		})
	if !errors.Is(err, flaky) {
		t.Fatalf("err = %v, want last fn error", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (a failed wait ends retrying)", calls)
	}
	if len(hooks) != 1 || hooks[0].attempt != 1 || hooks[0].delay < time.Second {
		t.Fatalf("hooks = %+v", hooks)
	}
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()
	cfg, _ := NewBackoffConfig(time.Millisecond, 4*time.Millisecond)
	var attempts []int
	calls := 0
	err := NewPolicy(9).Retry(context.Background(), SleeperFunc(func(context.Context, time.Duration) error { return nil }), 2, cfg,
		func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) },
		func(context.Context) error {
			calls++
			return fmt.Errorf("try %d", calls)
		})
	if err == nil || err.Error() != "try 3" {
		t.Fatalf("err = %v, want the last attempt's error", err)
	}
	if calls != 3 || len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("calls=%d attempts=%v", calls, attempts)
	}
}
