package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outreach/pkg/logx"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0 9 * * 1-5", want: "0 9 * * 1-5"},
		{in: "@daily", want: "@daily"},
		{in: "cron: 30 8 * * *", want: "30 8 * * *"},
		{in: "3h", want: "@every 3h0m0s"},
		{in: "02:30", want: "@every 2h30m0s"},
		{in: "every: 90m", want: "@every 1h30m0s"},
		{in: "", wantErr: true},
		{in: "0s", wantErr: true},
		{in: "01:75", wantErr: true},
		{in: "61 * * * *", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNextUsesTimezone(t *testing.T) {
	t.Parallel()
	s, err := New(Config{Spec: "0 9 * * *", Timezone: "America/New_York"}, func(context.Context) error { return nil }, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 2026-01-05 12:00 UTC is 07:00 in New York (EST).
	got := s.Next(time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC))
	want := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got.UTC(), want)
	}
}

func TestNewRejects(t *testing.T) {
	t.Parallel()
	job := func(context.Context) error { return nil }
	if _, err := New(Config{Spec: "@daily", Timezone: "Mars/Olympus"}, job, logx.Nop()); err == nil {
		t.Fatal("expected unknown timezone error")
	}
	if _, err := New(Config{Spec: "@daily"}, nil, logx.Nop()); err == nil {
		t.Fatal("expected nil job error")
	}
}

func TestRunOnStartAndStop(t *testing.T) {
	t.Parallel()
	ran := make(chan struct{}, 1)
	s, err := New(Config{Spec: "@every 24h", RunOnStart: true}, func(ctx context.Context) error {
		ran <- struct{}{}
		return errors.New("boom")
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOverlappingTriggerSkipped(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{})
	s, err := New(Config{Spec: "@every 24h"}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.fire(ctx, "cron")
	}()
	<-started
	s.fire(ctx, "cron")
	close(release)
	wg.Wait()

	if s.fired.Load() != 1 || s.skipped.Load() != 1 {
		t.Fatalf("fired=%d skipped=%d, want 1 and 1", s.fired.Load(), s.skipped.Load())
	}
}
