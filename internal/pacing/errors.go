package pacing

import (
	"errors"
	"fmt"
)

var ErrZeroTypingSpeed = errors.New("typing speed is zero (chars per second must be > 0)")

// NoRetry marks an error as permanent so Retry gives up immediately.
//
// Example:
//
//	return pacing.NoRetry(fmt.Errorf("profile page not found: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
