// Package activity persists one outcome per attempted recipient and answers
// the two questions the send loop asks of history: how many messages went out
// since a point in time, and whether a profile was already contacted.
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

var (
	ErrClosed        = errors.New("activity store closed")
	ErrInvalidStatus = errors.New("invalid outcome status")
)

// Outcome records the result of one attempt. Stores only ever append it.
type Outcome struct {
	RunID         string
	Status        Status
	RecipientName string
	ProfileURL    string
	Timestamp     time.Time
	Error         string
	Template      string
	Message       string
}

const previewLen = 50

// Preview is the first 50 characters of the message followed by "...", or the
// whole message when it is shorter.
func (o Outcome) Preview() string {
	r := []rune(o.Message)
	if len(r) <= previewLen {
		return o.Message
	}
	return string(r[:previewLen]) + "..."
}

// Tally counts outcomes by status.
type Tally struct {
	Sent    int
	Failed  int
	Skipped int
}

func (t Tally) Total() int { return t.Sent + t.Failed + t.Skipped }

func (t *Tally) add(s Status) {
	switch s {
	case StatusSent:
		t.Sent++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	}
}

// Store is the append-only outcome log.
type Store interface {
	Append(ctx context.Context, o Outcome) error
	// Tally counts outcomes with Timestamp >= since. A zero since counts all.
	Tally(ctx context.Context, since time.Time) (Tally, error)
	// Contacted reports whether profileURL has a Sent outcome.
	Contacted(ctx context.Context, profileURL string) (bool, error)
	Close() error
}

// ResourceError is a failure of the underlying storage. It is fatal for a run.
type ResourceError struct {
	Driver string
	Op     string
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("activity %s %s: %v", e.Driver, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func resourceErr(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	var re *ResourceError
	if errors.As(err, &re) {
		return err
	}
	return &ResourceError{Driver: driver, Op: op, Err: err}
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func prepare(o Outcome) (Outcome, error) {
	if !o.Status.Valid() {
		return o, fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	return o, nil
}
