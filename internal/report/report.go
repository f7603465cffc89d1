// Package report turns run events into console lines and log records.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"outreach/internal/eventbus"
	"outreach/pkg/logx"
)

// Presenter writes one human-readable line per event to out and mirrors the
// event as a structured log record.
type Presenter struct {
	out io.Writer
	log logx.Logger
	mu  sync.Mutex
}

func NewPresenter(out io.Writer, log logx.Logger) *Presenter {
	if out == nil {
		out = io.Discard
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Presenter{out: out, log: log.With(logx.String("comp", "report"))}
}

// Consume handles events until ch is closed.
func (p *Presenter) Consume(ch <-chan eventbus.Event) {
	for e := range ch {
		p.Handle(e)
	}
}

// Attach subscribes to bus and returns a func that stops the subscription and
// blocks until every buffered event has been handled.
func (p *Presenter) Attach(bus eventbus.Bus, buffer int) (detach func()) {
	ch, unsub := bus.Subscribe(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Consume(ch)
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			<-done
		})
	}
}

func (p *Presenter) Handle(e eventbus.Event) {
	line := Line(e)
	p.logEvent(e)
	if line == "" {
		return
	}
	p.mu.Lock()
	_, _ = io.WriteString(p.out, line+"\n")
	p.mu.Unlock()
}

func (p *Presenter) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.RunStarted:
		p.log.Info("run started", logx.String("run", d.RunID), logx.Int("total", d.Total), logx.Int("limit", d.Limit), logx.Int("sent_today", d.SentToday))
	case eventbus.OutcomeRecorded:
		fields := []logx.Field{logx.String("run", d.RunID), logx.Int("idx", d.Index), logx.String("status", d.Status), logx.String("profile", d.ProfileURL)}
		if d.Error != "" {
			p.log.Warn("outcome recorded", append(fields, logx.String("err", d.Error))...)
			return
		}
		p.log.Info("outcome recorded", fields...)
	case eventbus.Waiting:
		p.log.Debug("waiting", logx.String("run", d.RunID), logx.String("reason", d.Reason), logx.Duration("delay", d.Delay))
	case eventbus.LimitReached:
		p.log.Info("limit reached", logx.String("run", d.RunID), logx.String("kind", d.Kind), logx.Int("limit", d.Limit))
	case eventbus.BreakerTripped:
		p.log.Warn("circuit breaker open", logx.String("run", d.RunID), logx.Int("failures", d.Failures), logx.Int("threshold", d.Threshold))
	case eventbus.RunFinished:
		p.log.Info("run finished", logx.String("run", d.RunID), logx.Int("sent", d.Sent), logx.Int("failed", d.Failed), logx.Int("skipped", d.Skipped), logx.String("stop", d.Stop), logx.Duration("dur", d.Duration))
	}
}

// Line renders e for a terminal. Unknown events render as "".
func Line(e eventbus.Event) string {
	switch d := e.Data.(type) {
	case eventbus.RunStarted:
		if d.DryRun {
			return fmt.Sprintf("Dry run: %d recipient(s), %d template(s), up to %d message(s) this run", d.Total, d.Templates, d.Limit)
		}
		return fmt.Sprintf("Starting outreach: %d recipient(s), up to %d message(s) this run (%d already sent today)", d.Total, d.Limit, d.SentToday)
	case eventbus.RecipientStarted:
		return fmt.Sprintf("[%d/%d] Processing: %s", d.Index, d.Total, d.Name)
	case eventbus.OutcomeRecorded:
		switch d.Status {
		case "sent":
			return "✓ Message sent to " + d.Name
		case "failed":
			return fmt.Sprintf("✗ Message failed for %s: %s", d.Name, d.Error)
		case "skipped":
			return fmt.Sprintf("⊘ Message skipped for %s: %s", d.Name, d.Error)
		}
	case eventbus.Waiting:
		if d.Reason == "retry" {
			return fmt.Sprintf("Retrying in %.1fs...", d.Delay.Seconds())
		}
		return fmt.Sprintf("Waiting %.1fs before next message...", d.Delay.Seconds())
	case eventbus.LimitReached:
		return fmt.Sprintf("%s limit reached (%d). Stopping.", titleCase(d.Kind), d.Limit)
	case eventbus.BreakerTripped:
		return fmt.Sprintf("Circuit breaker open after %d consecutive failures. Stopping.", d.Failures)
	case eventbus.RunFinished:
		return Summary(d)
	}
	return ""
}

// Summary renders the end-of-run block.
func Summary(d eventbus.RunFinished) string {
	rule := strings.Repeat("=", 50)
	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString("OUTREACH SESSION SUMMARY\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Total recipients processed: %d of %d\n", d.Considered, d.Total)
	fmt.Fprintf(&b, "✓ Messages sent: %d\n", d.Sent)
	fmt.Fprintf(&b, "✗ Messages failed: %d\n", d.Failed)
	fmt.Fprintf(&b, "⊘ Messages skipped: %d\n", d.Skipped)
	if d.Stop != "" {
		fmt.Fprintf(&b, "Stopped: %s\n", d.Stop)
	}
	b.WriteString(rule)
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
