// Package notify forwards run results to an external chat.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outreach/internal/eventbus"
	"outreach/pkg/logx"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Transport delivers one text message.
type Transport interface {
	SendText(ctx context.Context, text string) error
}

type Options struct {
	RatePerSec float64
	Timeout    time.Duration
	// BreakAfter consecutive transport failures stop sends for BreakFor.
	BreakAfter uint32
	BreakFor   time.Duration
}

// Notifier rate-limits sends and stops calling a failing transport for a while.
type Notifier struct {
	tr      Transport
	lim     *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     logx.Logger
}

func New(tr Transport, opt Options, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "notify"))
	if opt.RatePerSec <= 0 {
		opt.RatePerSec = 1
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.BreakAfter == 0 {
		opt.BreakAfter = 3
	}
	if opt.BreakFor <= 0 {
		opt.BreakFor = time.Minute
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "notify",
		Timeout: opt.BreakFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opt.BreakAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("notify breaker state changed", logx.String("from", from.String()), logx.String("to", to.String()))
		},
	})
	return &Notifier{
		tr:      tr,
		lim:     rate.NewLimiter(rate.Limit(opt.RatePerSec), 1),
		cb:      cb,
		timeout: opt.Timeout,
		log:     log,
	}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	if err := n.lim.Wait(ctx); err != nil {
		return err
	}
	_, err := n.cb.Execute(func() (any, error) {
		sctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return nil, n.tr.SendText(sctx, text)
	})
	return err
}

// Attach forwards breaker trips and run summaries from bus until detach is
// called. detach blocks until pending events are handled.
func (n *Notifier) Attach(ctx context.Context, bus eventbus.Bus) (detach func()) {
	ch, unsub := bus.Subscribe(32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			var text string
			switch d := e.Data.(type) {
			case eventbus.BreakerTripped:
				text = FormatBreaker(d)
			case eventbus.RunFinished:
				text = FormatSummary(d)
			default:
				continue
			}
			// Still deliver the summary of an interrupted run.
			if err := n.Notify(context.WithoutCancel(ctx), text); err != nil {
				n.log.Warn("notification failed", logx.String("event", e.Type), logx.Err(err))
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			<-done
		})
	}
}

func FormatSummary(d eventbus.RunFinished) string {
	return Lines(
		B("Outreach run finished"),
		Esc(fmt.Sprintf("Processed: %d of %d", d.Considered, d.Total)),
		Esc(fmt.Sprintf("✓ Sent: %d", d.Sent)),
		Esc(fmt.Sprintf("✗ Failed: %d", d.Failed)),
		Esc(fmt.Sprintf("⊘ Skipped: %d", d.Skipped)),
		"Stop: "+Code(d.Stop),
		Esc("Duration: "+d.Duration.Round(time.Second).String()),
	).String()
}

func FormatBreaker(d eventbus.BreakerTripped) string {
	return Lines(
		B("Outreach paused"),
		Esc(fmt.Sprintf("%d consecutive delivery failures (threshold %d).", d.Failures, d.Threshold)),
	).String()
}
