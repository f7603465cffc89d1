// Package message renders outreach messages from templates with a fixed set of
// {placeholder} names.
package message

import (
	"fmt"

	"outreach/internal/recipient"
)

// Picker chooses an index in [0, n).
type Picker interface {
	Intn(n int) int
}

// Engine holds the configured templates and picks one per recipient.
type Engine struct {
	templates []string
	pick      Picker
}

// NewEngine rejects an empty template list and templates that use unknown
// placeholders.
func NewEngine(templates []string, pick Picker) (*Engine, error) {
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	for i, tpl := range templates {
		if bad := Validate(tpl); len(bad) > 0 {
			return nil, fmt.Errorf("template %d: %w", i+1, &UnknownPlaceholderError{Names: bad})
		}
	}
	return &Engine{templates: append([]string(nil), templates...), pick: pick}, nil
}

func (e *Engine) Len() int { return len(e.templates) }

// Rendered is a message plus the template it came from.
type Rendered struct {
	Template string // "template_N", 1-based
	Text     string
}

// Pick returns a template index and its text.
func (e *Engine) Pick() (int, string) {
	i := 0
	if e.pick != nil && len(e.templates) > 1 {
		i = e.pick.Intn(len(e.templates))
	}
	return i, e.templates[i]
}

// Render picks a template for r and fills it in.
func (e *Engine) Render(r recipient.Recipient) (Rendered, error) {
	i, tpl := e.Pick()
	text, err := Render(tpl, r)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Template: fmt.Sprintf("template_%d", i+1), Text: text}, nil
}
