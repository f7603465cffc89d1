// Package browser drives Chrome through chromedp: it restores or creates an
// authenticated session and sends one message through the site's UI.
package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means no usable session could be obtained.
	ErrAuthentication = errors.New("authentication failed")

	ErrSessionClosed   = errors.New("browser session closed")
	ErrNotProfilePage  = errors.New("navigation did not land on a profile page")
	ErrButtonNotFound  = errors.New("message button not found")
	ErrStateVersion    = errors.New("unsupported session state version")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNoMessageButton = errors.New("no message button selectors configured")
)

// DeliveryError is a failed Send. Stage is one of "navigate", "compose",
// "type" or "send".
type DeliveryError struct {
	Stage string
	URL   string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver (%s): %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
