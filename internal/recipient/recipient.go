package recipient

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrFirstNameRequired  = errors.New("first name is required")
	ErrLastNameRequired   = errors.New("last name is required")
	ErrProfileURLRequired = errors.New("profile URL is required")
	ErrInvalidProfileURL  = errors.New("invalid LinkedIn profile URL")
)

var reProfileURL = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/in/[\w-]+/?$`)

// Fields is the raw, untrusted input for one recipient.
type Fields struct {
	FirstName  string
	LastName   string
	ProfileURL string
	Company    string
	Position   string
	Location   string
}

// Recipient is a validated contact. Only New produces one.
type Recipient struct {
	FirstName  string
	LastName   string
	ProfileURL string

	// Optional; empty means absent.
	Company  string
	Position string
	Location string
}

// New trims and validates raw fields.
func New(f Fields) (Recipient, error) {
	r := Recipient{
		FirstName:  strings.TrimSpace(f.FirstName),
		LastName:   strings.TrimSpace(f.LastName),
		ProfileURL: strings.TrimSpace(f.ProfileURL),
		Company:    strings.TrimSpace(f.Company),
		Position:   strings.TrimSpace(f.Position),
		Location:   strings.TrimSpace(f.Location),
	}
	switch {
	case r.FirstName == "":
		return Recipient{}, ErrFirstNameRequired
	case r.LastName == "":
		return Recipient{}, ErrLastNameRequired
	case r.ProfileURL == "":
		return Recipient{}, ErrProfileURLRequired
	case !reProfileURL.MatchString(r.ProfileURL):
		return Recipient{}, fmt.Errorf("%w: %s", ErrInvalidProfileURL, r.ProfileURL)
	}
	return r, nil
}

func (r Recipient) FullName() string { return r.FirstName + " " + r.LastName }
