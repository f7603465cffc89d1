package app

import (
	"context"
	"errors"

	"outreach/internal/activity"
	"outreach/internal/browser"
	"outreach/internal/config"
)

const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitAuth        = 3
	ExitResource    = 4
	ExitInterrupted = 130
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	var ce *config.Error
	var re *activity.ResourceError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ce):
		return ExitConfig
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		// A login cut short by Ctrl-C is an interrupt, not a bad password.
		return ExitInterrupted
	case errors.Is(err, browser.ErrAuthentication):
		return ExitAuth
	case errors.As(err, &re):
		return ExitResource
	default:
		return ExitFailure
	}
}
