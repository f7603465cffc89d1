package pacing

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	tmr := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !tmr.Stop() {
			<-tmr.C
		}
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

// Sleeper abstracts blocking waits so the run loop can be tested without
// real time passing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper waits on the wall clock.
var RealSleeper Sleeper = SleeperFunc(Sleep)

// RetryHook observes a scheduled retry (attempt is 1-based).
type RetryHook func(attempt int, delay time.Duration, err error)

// Retry runs fn once plus up to retries more times, waiting
// ExponentialBackoff between tries. It stops on success, on a NoRetry error,
// or when ctx is done, and returns the last error fn produced.
func (p *Policy) Retry(ctx context.Context, s Sleeper, retries int, cfg BackoffConfig, hook RetryHook, fn func(ctx context.Context) error) error {
	if s == nil {
		s = RealSleeper
	}
	if retries < 0 {
		retries = 0
	}
	// A failed wait cancels rctx so retry.Do stops at once.
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		last  error
		tries int
	)
	t := &sleepTimer{ctx: rctx, s: s, stop: cancel, hook: hook}
	err := retry.Do(
		func() error {
			tries++
			last = fn(ctx)
			return last
		},
		retry.Context(rctx),
		retry.Attempts(uint(retries+1)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !IsNoRetry(err) }),
		retry.DelayType(func(uint, error, *retry.Config) time.Duration {
			return p.ExponentialBackoff(tries-1, cfg)
		}),
		retry.OnRetry(func(_ uint, err error) {
			t.attempt, t.err = tries, err
		}),
		retry.WithTimer(t),
	)
	if err != nil && last != nil {
		return last
	}
	return err
}

// sleepTimer lets retry.Do wait through a Sleeper and reports each wait to
// the hook before it starts.
type sleepTimer struct {
	ctx     context.Context
	s       Sleeper
	stop    context.CancelFunc
	hook    RetryHook
	attempt int
	err     error
}

func (t *sleepTimer) After(d time.Duration) <-chan time.Time {
	if t.hook != nil {
		t.hook(t.attempt, d, t.err)
	}
	ch := make(chan time.Time, 1)
	if err := t.s.Sleep(t.ctx, d); err != nil {
		t.stop()
		return ch
	}
	ch <- time.Now()
	return ch
}
