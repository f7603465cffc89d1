package activity

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry struct {
	at     time.Time
	status Status
}

// index is the in-process view shared by the memory and csv drivers.
type index struct {
	entries   []entry
	contacted map[string]struct{}
}

func newIndex() index { return index{contacted: map[string]struct{}{}} }

func (x *index) add(at time.Time, s Status, profileURL string) {
	x.entries = append(x.entries, entry{at: at, status: s})
	if s == StatusSent {
		if k := normalizeURL(profileURL); k != "" {
			x.contacted[k] = struct{}{}
		}
	}
}

func (x *index) tally(since time.Time) Tally {
	var t Tally
	for _, e := range x.entries {
		if !since.IsZero() && e.at.Before(since) {
			continue
		}
		t.add(e.status)
	}
	return t
}

func (x *index) has(profileURL string) bool {
	_, ok := x.contacted[normalizeURL(profileURL)]
	return ok
}

// normalizeURL makes "…/in/jane" and "…/in/jane/" the same profile.
func normalizeURL(u string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(u)), "/")
}

// Memory keeps outcomes in process memory.
type Memory struct {
	mu     sync.Mutex
	idx    index
	logs   []Outcome
	closed bool
}

func NewMemory() *Memory { return &Memory{idx: newIndex()} }

func (m *Memory) Append(ctx context.Context, o Outcome) error {
	_ = ctx
	o, err := prepare(o)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return resourceErr("memory", "append", ErrClosed)
	}
	m.logs = append(m.logs, o)
	m.idx.add(o.Timestamp, o.Status, o.ProfileURL)
	return nil
}

func (m *Memory) Tally(ctx context.Context, since time.Time) (Tally, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx.tally(since), nil
}

func (m *Memory) Contacted(ctx context.Context, profileURL string) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx.has(profileURL), nil
}

// Outcomes returns a copy of everything appended so far.
func (m *Memory) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outcome(nil), m.logs...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
