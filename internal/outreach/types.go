// Package outreach runs the send loop: one recipient at a time, bounded by
// session and daily limits, paced by human-like delays and stopped early by
// repeated failures.
package outreach

import (
	"context"
	"errors"
	"time"

	"outreach/internal/message"
	"outreach/internal/pacing"
	"outreach/internal/recipient"
)

// Deliverer sends one rendered message.
type Deliverer interface {
	Send(ctx context.Context, r recipient.Recipient, msg string) error
}

// Renderer produces the message for a recipient.
type Renderer interface {
	Render(r recipient.Recipient) (message.Rendered, error)
}

type StopReason string

const (
	StopCompleted    StopReason = "completed"
	StopSessionLimit StopReason = "session_limit"
	StopDailyLimit   StopReason = "daily_limit"
	StopBreakerOpen  StopReason = "breaker_open"
	StopInterrupted  StopReason = "interrupted"
	StopStoreError   StopReason = "store_error"
)

// SkipAlreadyContacted is the recorded reason for a Skipped outcome.
const SkipAlreadyContacted = "already contacted"

var (
	ErrNoRenderer  = errors.New("outreach: renderer is required")
	ErrNoDeliverer = errors.New("outreach: deliverer is required")
	ErrNoStore     = errors.New("outreach: activity store is required")
	ErrBadLimits   = errors.New("outreach: limits must be positive")
)

type Limits struct {
	SessionMessages int
	DailyMessages   int
}

type Safety struct {
	BreakerEnabled         bool
	MaxConsecutiveFailures int
}

type Config struct {
	Limits Limits
	Safety Safety
	Delays pacing.DelayConfig
}

// Summary describes a finished run.
type Summary struct {
	RunID string
	// Considered counts recipients for which an outcome was recorded.
	Considered int
	Sent       int
	Failed     int
	Skipped    int
	Total      int
	// Limit is the number of sends this run was allowed.
	Limit    int
	Stop     StopReason
	Started  time.Time
	Duration time.Duration
}

// Plan is what a dry run reports.
type Plan struct {
	RunID        string
	Recipients   []recipient.Recipient
	Templates    int
	SessionLimit int
	DailyLimit   int
	SentToday    int
	Limit        int
	LimitKind    StopReason
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

// WillAttempt is the number of recipients a real run would consider at most
// when none of them are skipped or fail.
func (p Plan) WillAttempt() int {
	if p.Limit < len(p.Recipients) {
		return p.Limit
	}
	return len(p.Recipients)
}
