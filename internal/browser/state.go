package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateVersion is the session-state format written by SaveState.
const StateVersion = 1

// State is the persisted session: the cookies of an authenticated browser.
type State struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"` // zero for session cookies
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

// Live returns the cookies that have not expired at now.
func (s State) Live(now time.Time) []Cookie {
	out := make([]Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func LoadState(path string) (State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, fmt.Errorf("decode session state: %w", err)
	}
	if st.Version != StateVersion {
		return State{}, fmt.Errorf("%w: %d", ErrStateVersion, st.Version)
	}
	return st, nil
}

// SaveState writes st atomically with owner-only permissions.
func SaveState(path string, st State) error {
	st.Version = StateVersion
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
