package config

import (
	"errors"
	"fmt"
)

// Error reports an unusable configuration. Err joins every problem found.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration (%s): %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Problems returns the individual problems joined in Err.
func (e *Error) Problems() []error {
	if j, ok := e.Err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{e.Err}
}

var (
	ErrMissingCredentials = errors.New("LINKEDIN_EMAIL and LINKEDIN_PASSWORD must be set")
	ErrInvalidEmail       = errors.New("LINKEDIN_EMAIL must be a valid email address")
	ErrNoTemplates        = errors.New("messaging.templates: at least one template is required")
)
