package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"outreach/internal/eventbus"
	"outreach/pkg/logx"
)

func TestLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data any
		want string
	}{
		{name: "progress", data: eventbus.RecipientStarted{Index: 2, Total: 5, Name: "Jane Smith"}, want: "[2/5] Processing: Jane Smith"},
		{name: "sent", data: eventbus.OutcomeRecorded{Status: "sent", Name: "John Doe"}, want: "✓ Message sent to John Doe"},
		{name: "failed", data: eventbus.OutcomeRecorded{Status: "failed", Name: "John Doe", Error: "timeout"}, want: "✗ Message failed for John Doe: timeout"},
		{name: "skipped", data: eventbus.OutcomeRecorded{Status: "skipped", Name: "Ann", Error: "already contacted"}, want: "⊘ Message skipped for Ann: already contacted"},
		{name: "wait", data: eventbus.Waiting{Reason: "pacing", Delay: 2500 * time.Millisecond}, want: "Waiting 2.5s before next message..."},
		{name: "limit", data: eventbus.LimitReached{Kind: "daily", Limit: 20}, want: "Daily limit reached (20). Stopping."},
		{name: "unknown", data: struct{}{}, want: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Line(eventbus.Event{Data: tt.data}); got != tt.want {
				t.Fatalf("Line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPresenterAttachDrains(t *testing.T) {
	t.Parallel()
	var out, logs bytes.Buffer
	p := NewPresenter(&out, logx.New(&logs, "debug"))
	bus := eventbus.New()
	detach := p.Attach(bus, 16)

	eventbus.Emit(bus, eventbus.TypeRecipientStarted, eventbus.RecipientStarted{Index: 1, Total: 1, Name: "John Doe"})
	eventbus.Emit(bus, eventbus.TypeRunFinished, eventbus.RunFinished{Sent: 1, Considered: 1, Total: 1, Stop: "completed"})
	detach()
	detach()

	got := out.String()
	for _, want := range []string{"[1/1] Processing: John Doe", "OUTREACH SESSION SUMMARY", "✓ Messages sent: 1", "Stopped: completed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(logs.String(), `"run finished"`) {
		t.Fatalf("expected structured log record, got %s", logs.String())
	}
}
