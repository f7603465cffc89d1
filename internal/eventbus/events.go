package eventbus

import "time"

// Event types published during a run.
const (
	TypeRunStarted       = "run.started"
	TypeRecipientStarted = "recipient.started"
	TypeOutcomeRecorded  = "outcome.recorded"
	TypeWaiting          = "waiting"
	TypeLimitReached     = "limit.reached"
	TypeBreakerTripped   = "breaker.tripped"
	TypeRunFinished      = "run.finished"
)

type RunStarted struct {
	RunID        string
	Total        int
	Limit        int
	SessionLimit int
	DailyLimit   int
	SentToday    int
	Templates    int
	DryRun       bool
}

type RecipientStarted struct {
	RunID      string
	Index      int // 1-based
	Total      int
	Name       string
	ProfileURL string
}

type OutcomeRecorded struct {
	RunID      string
	Index      int
	Status     string
	Name       string
	ProfileURL string
	Template   string
	Error      string
}

// Waiting is published before a pacing or retry sleep.
type Waiting struct {
	RunID  string
	Reason string // "pacing" or "retry"
	Delay  time.Duration
}

type LimitReached struct {
	RunID string
	Kind  string // "session" or "daily"
	Limit int
	Sent  int
}

type BreakerTripped struct {
	RunID     string
	Failures  int
	Threshold int
}

type RunFinished struct {
	RunID      string
	Sent       int
	Failed     int
	Skipped    int
	Considered int
	Total      int
	Stop       string
	Duration   time.Duration
}
