package message

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"outreach/internal/recipient"
)

// Vocabulary lists the placeholders a template may use.
var Vocabulary = []string{"first_name", "last_name", "company", "position", "location"}

// Defaults fill optional fields that are absent on a recipient.
var Defaults = map[string]string{
	"company":  "your company",
	"position": "your field",
	"location": "your area",
}

var rePlaceholder = regexp.MustCompile(`\{(\w+)\}`)

var ErrNoTemplates = errors.New("at least one message template is required")

// UnknownPlaceholderError lists placeholders outside Vocabulary. They are left
// untouched in the rendered text.
type UnknownPlaceholderError struct {
	Names []string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder(s): %s", strings.Join(e.Names, ", "))
}

// Validate returns the placeholders in tpl that are not in Vocabulary,
// deduplicated, in order of first appearance.
func Validate(tpl string) []string {
	var bad []string
	seen := map[string]bool{}
	for _, m := range rePlaceholder.FindAllStringSubmatch(tpl, -1) {
		name := m[1]
		if known(name) || seen[name] {
			continue
		}
		seen[name] = true
		bad = append(bad, name)
	}
	return bad
}

// Render substitutes every known placeholder. Unknown placeholders are kept
// verbatim and reported as *UnknownPlaceholderError alongside the text.
func Render(tpl string, r recipient.Recipient) (string, error) {
	values := map[string]string{
		"first_name": r.FirstName,
		"last_name":  r.LastName,
		"company":    orDefault(r.Company, "company"),
		"position":   orDefault(r.Position, "position"),
		"location":   orDefault(r.Location, "location"),
	}
	if values["first_name"] == "" || values["last_name"] == "" {
		return "", errors.New("recipient is missing a required name field")
	}

	out := rePlaceholder.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
	if bad := Validate(tpl); len(bad) > 0 {
		return out, &UnknownPlaceholderError{Names: bad}
	}
	return out, nil
}

func known(name string) bool {
	for _, v := range Vocabulary {
		if v == name {
			return true
		}
	}
	return false
}

func orDefault(v, key string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return Defaults[key]
}
