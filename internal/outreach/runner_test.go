package outreach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"outreach/internal/activity"
	"outreach/internal/eventbus"
	"outreach/internal/message"
	"outreach/internal/pacing"
	"outreach/internal/recipient"

	"github.com/brianvoe/gofakeit/v6"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	calls []string
	fail  map[int]error // 1-based call number -> error
	panic map[int]bool
	hook  func(n int)
}

func (f *fakeDeliverer) Send(ctx context.Context, r recipient.Recipient, msg string) error {
	f.mu.Lock()
	f.calls = append(f.calls, r.ProfileURL)
	n := len(f.calls)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(n)
	}
	if f.panic[n] {
		panic("boom")
	}
	if err := f.fail[n]; err != nil {
		return err
	}
	return ctx.Err()
}

type recSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *recSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

type brokenStore struct{ *activity.Memory }

func (brokenStore) Append(context.Context, activity.Outcome) error {
	return &activity.ResourceError{Driver: "memory", Op: "append", Err: errors.New("disk full")}
}

func fixtures(t *testing.T, n int) []recipient.Recipient {
	t.Helper()
	faker := gofakeit.New(int64(n))
	out := make([]recipient.Recipient, 0, n)
	for i, row := range recipient.FakeRows(faker, n) {
		r, err := recipient.New(recipient.Fields{FirstName: row[0], LastName: row[1], ProfileURL: fmt.Sprintf("https://www.linkedin.com/in/person-%d/", i)})
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func newRunner(t *testing.T, cfg Config, d Deps) *Runner {
	t.Helper()
	if d.Renderer == nil {
		eng, err := message.NewEngine([]string{"Hi {first_name}"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		d.Renderer = eng
	}
	if d.Store == nil {
		d.Store = activity.NewMemory()
	}
	if d.Policy == nil {
		d.Policy = pacing.NewPolicy(1)
	}
	r, err := New(cfg, d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func baseConfig(t *testing.T) Config {
	t.Helper()
	delays, err := pacing.NewDelayConfig(2*time.Second, 5*time.Second, 5, time.Second, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Limits: Limits{SessionMessages: 10, DailyMessages: 20},
		Safety: Safety{BreakerEnabled: true, MaxConsecutiveFailures: 3},
		Delays: delays,
	}
}

func TestRunSessionLimit(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Limits.SessionMessages = 3
	del := &fakeDeliverer{}
	sl := &recSleeper{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: sl})

	sum, err := r.Run(context.Background(), fixtures(t, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(del.calls) != 3 || sum.Sent != 3 || sum.Considered != 3 {
		t.Fatalf("calls=%d summary=%+v", len(del.calls), sum)
	}
	if sum.Stop != StopSessionLimit {
		t.Fatalf("Stop = %s", sum.Stop)
	}
	// Two waits: after sends 1 and 2. None after the send that hit the limit.
	if len(sl.delays) != 2 {
		t.Fatalf("delays = %v", sl.delays)
	}
	for _, d := range sl.delays {
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("delay %v out of bounds", d)
		}
	}
}

func TestRunDailyLimit(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Limits.DailyMessages = 3
	store := activity.NewMemory()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.Append(ctx, activity.Outcome{Status: activity.StatusSent, ProfileURL: fmt.Sprintf("https://www.linkedin.com/in/earlier-%d/", i)}); err != nil {
			t.Fatal(err)
		}
	}
	del := &fakeDeliverer{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}, Store: store})

	sum, err := r.Run(ctx, fixtures(t, 4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 1 || sum.Stop != StopDailyLimit || sum.Limit != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunBreakerTrips(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	fail := errors.New("button not found")
	del := &fakeDeliverer{fail: map[int]error{1: fail, 2: fail, 3: fail}}
	sl := &recSleeper{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(64)
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: sl, Bus: bus})

	sum, err := r.Run(context.Background(), fixtures(t, 6))
	unsub()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 3 || sum.Considered != 3 || sum.Stop != StopBreakerOpen {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sl.delays) != 0 {
		t.Fatalf("no pacing delay expected after failures, got %v", sl.delays)
	}

	var tripped, finished bool
	for e := range ch {
		switch e.Type {
		case eventbus.TypeBreakerTripped:
			tripped = true
		case eventbus.TypeRunFinished:
			finished = e.Data.(eventbus.RunFinished).Stop == string(StopBreakerOpen)
		}
	}
	if !tripped || !finished {
		t.Fatalf("tripped=%v finished=%v", tripped, finished)
	}
}

func TestRunBreakerResetBySuccess(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	fail := errors.New("timeout")
	del := &fakeDeliverer{fail: map[int]error{1: fail, 2: fail, 4: fail, 5: fail}}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}})

	sum, err := r.Run(context.Background(), fixtures(t, 6))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Considered != 6 || sum.Sent != 2 || sum.Failed != 4 || sum.Stop != StopCompleted {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunBreakerDisabled(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Safety.BreakerEnabled = false
	fail := errors.New("timeout")
	del := &fakeDeliverer{fail: map[int]error{1: fail, 2: fail, 3: fail, 4: fail}}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}})

	sum, _ := r.Run(context.Background(), fixtures(t, 4))
	if sum.Failed != 4 || sum.Stop != StopCompleted {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunSkipsContacted(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	recips := fixtures(t, 3)
	store := activity.NewMemory()
	if err := store.Append(context.Background(), activity.Outcome{Status: activity.StatusSent, ProfileURL: recips[1].ProfileURL}); err != nil {
		t.Fatal(err)
	}
	del := &fakeDeliverer{}
	sl := &recSleeper{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: sl, Store: store})

	sum, err := r.Run(context.Background(), recips)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Sent != 2 || sum.Skipped != 1 || len(del.calls) != 2 {
		t.Fatalf("summary = %+v calls=%d", sum, len(del.calls))
	}
	// Delay after the first send only: the skip adds none and the last send is last.
	if len(sl.delays) != 1 {
		t.Fatalf("delays = %v", sl.delays)
	}
	outs := store.Outcomes()
	if got := outs[2]; got.Status != activity.StatusSkipped || got.Error != SkipAlreadyContacted {
		t.Fatalf("skip outcome = %+v", got)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	del := &fakeDeliverer{panic: map[int]bool{1: true}}
	store := activity.NewMemory()
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}, Store: store})

	sum, err := r.Run(context.Background(), fixtures(t, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || sum.Sent != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := store.Outcomes()[0]; got.Status != activity.StatusFailed || got.Error != "panic: boom" {
		t.Fatalf("outcome = %+v", got)
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(recipient.Recipient) (message.Rendered, error) {
	return message.Rendered{}, errors.New("template broken")
}

func TestRunRenderFailureCountsTowardBreaker(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Safety.MaxConsecutiveFailures = 2
	del := &fakeDeliverer{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}, Renderer: failingRenderer{}})

	sum, _ := r.Run(context.Background(), fixtures(t, 5))
	if sum.Failed != 2 || sum.Stop != StopBreakerOpen || len(del.calls) != 0 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunInterruptedDuringWait(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	sl := &recSleeper{err: context.Canceled}
	del := &fakeDeliverer{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: sl})

	sum, err := r.Run(context.Background(), fixtures(t, 4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Stop != StopInterrupted || sum.Sent != 1 || len(del.calls) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunInterruptedDeliveryIsRecorded(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	del := &fakeDeliverer{hook: func(n int) { cancel() }}
	store := activity.NewMemory()
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}, Store: store})

	sum, err := r.Run(ctx, fixtures(t, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Stop != StopInterrupted || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if outs := store.Outcomes(); len(outs) != 1 || outs[0].Status != activity.StatusFailed {
		t.Fatalf("outcomes = %+v", outs)
	}
}

func TestRunAbortsOnStoreError(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	del := &fakeDeliverer{}
	r := newRunner(t, cfg, Deps{Deliverer: del, Sleeper: &recSleeper{}, Store: brokenStore{activity.NewMemory()}})

	sum, err := r.Run(context.Background(), fixtures(t, 3))
	var re *activity.ResourceError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want ResourceError", err)
	}
	if sum.Stop != StopStoreError || len(del.calls) != 1 {
		t.Fatalf("summary = %+v calls=%d", sum, len(del.calls))
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	cfg.Limits.SessionMessages = 2
	r := newRunner(t, cfg, Deps{Deliverer: &fakeDeliverer{}})
	p, err := r.Plan(context.Background(), fixtures(t, 5), 3)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if p.Limit != 2 || p.LimitKind != StopSessionLimit || p.WillAttempt() != 2 || p.Templates != 3 {
		t.Fatalf("plan = %+v", p)
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	cfg := baseConfig(t)
	if _, err := New(cfg, Deps{}); !errors.Is(err, ErrNoRenderer) {
		t.Fatalf("err = %v", err)
	}
	eng, _ := message.NewEngine([]string{"x"}, nil)
	if _, err := New(cfg, Deps{Renderer: eng}); !errors.Is(err, ErrNoDeliverer) {
		t.Fatalf("err = %v", err)
	}
	cfg.Limits.SessionMessages = 0
	if _, err := New(cfg, Deps{Renderer: eng, Deliverer: &fakeDeliverer{}, Store: activity.NewMemory()}); !errors.Is(err, ErrBadLimits) {
		t.Fatalf("err = %v", err)
	}
}
