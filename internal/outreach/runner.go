package outreach

import (
	"context"
	"fmt"
	"time"

	"outreach/internal/activity"
	"outreach/internal/eventbus"
	"outreach/internal/pacing"
	"outreach/internal/recipient"
	"outreach/pkg/logx"

	"github.com/google/uuid"
)

// Deps are the collaborators of a Runner. Sleeper, Policy, Bus, Now and NewID
// are optional.
type Deps struct {
	Renderer  Renderer
	Deliverer Deliverer
	Store     activity.Store
	Policy    *pacing.Policy
	Sleeper   pacing.Sleeper
	Bus       eventbus.Publisher
	Log       logx.Logger
	Now       func() time.Time
	NewID     func() string
}

type Runner struct {
	cfg Config
	d   Deps
	log logx.Logger
}

func New(cfg Config, d Deps) (*Runner, error) {
	switch {
	case d.Renderer == nil:
		return nil, ErrNoRenderer
	case d.Deliverer == nil:
		return nil, ErrNoDeliverer
	case d.Store == nil:
		return nil, ErrNoStore
	case cfg.Limits.SessionMessages <= 0 || cfg.Limits.DailyMessages <= 0:
		return nil, ErrBadLimits
	}
	if d.Policy == nil {
		d.Policy = pacing.NewTimePolicy()
	}
	if d.Sleeper == nil {
		d.Sleeper = pacing.RealSleeper
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, d: d, log: log.With(logx.String("comp", "outreach"))}, nil
}

// effectiveLimit is min(session, daily - sentToday), never negative.
func (r *Runner) effectiveLimit(sentToday int) (int, StopReason) {
	remaining := r.cfg.Limits.DailyMessages - sentToday
	if remaining < 0 {
		remaining = 0
	}
	if remaining < r.cfg.Limits.SessionMessages {
		return remaining, StopDailyLimit
	}
	return r.cfg.Limits.SessionMessages, StopSessionLimit
}

func (r *Runner) sentToday(ctx context.Context) (int, error) {
	t, err := r.d.Store.Tally(ctx, activity.StartOfDay(r.d.Now()))
	if err != nil {
		return 0, err
	}
	return t.Sent, nil
}

// Plan computes what Run would do without authenticating or sending.
func (r *Runner) Plan(ctx context.Context, recipients []recipient.Recipient, templates int) (Plan, error) {
	sent, err := r.sentToday(ctx)
	if err != nil {
		return Plan{}, err
	}
	limit, kind := r.effectiveLimit(sent)
	p := Plan{
		RunID:        r.d.NewID(),
		Recipients:   recipients,
		Templates:    templates,
		SessionLimit: r.cfg.Limits.SessionMessages,
		DailyLimit:   r.cfg.Limits.DailyMessages,
		SentToday:    sent,
		Limit:        limit,
		LimitKind:    kind,
		MinDelay:     r.cfg.Delays.MinDelay(),
		MaxDelay:     r.cfg.Delays.MaxDelay(),
	}
	eventbus.Emit(r.d.Bus, eventbus.TypeRunStarted, eventbus.RunStarted{
		RunID: p.RunID, Total: len(recipients), Limit: limit,
		SessionLimit: p.SessionLimit, DailyLimit: p.DailyLimit, SentToday: sent,
		Templates: templates, DryRun: true,
	})
	return p, nil
}

// Run processes recipients in order until the list is exhausted, a limit is
// reached, the breaker opens or ctx is cancelled. The returned error is
// non-nil only for activity store failures, which abort the run.
func (r *Runner) Run(ctx context.Context, recipients []recipient.Recipient) (sum Summary, err error) {
	sum = Summary{RunID: r.d.NewID(), Total: len(recipients), Started: r.d.Now()}
	log := r.log.With(logx.String("run", sum.RunID))
	defer func() {
		sum.Duration = r.d.Now().Sub(sum.Started)
		eventbus.Emit(r.d.Bus, eventbus.TypeRunFinished, eventbus.RunFinished{
			RunID: sum.RunID, Sent: sum.Sent, Failed: sum.Failed, Skipped: sum.Skipped,
			Considered: sum.Considered, Total: sum.Total, Stop: string(sum.Stop), Duration: sum.Duration,
		})
	}()

	sent, err := r.sentToday(ctx)
	if err != nil {
		sum.Stop = StopStoreError
		return sum, err
	}
	limit, limitKind := r.effectiveLimit(sent)
	sum.Limit = limit
	eventbus.Emit(r.d.Bus, eventbus.TypeRunStarted, eventbus.RunStarted{
		RunID: sum.RunID, Total: len(recipients), Limit: limit,
		SessionLimit: r.cfg.Limits.SessionMessages, DailyLimit: r.cfg.Limits.DailyMessages, SentToday: sent,
	})

	var breaker pacing.Breaker
	for i, rc := range recipients {
		if ctx.Err() != nil {
			sum.Stop = StopInterrupted
			return sum, nil
		}
		if sum.Sent >= limit {
			sum.Stop = limitKind
			kind := "session"
			if limitKind == StopDailyLimit {
				kind = "daily"
			}
			eventbus.Emit(r.d.Bus, eventbus.TypeLimitReached, eventbus.LimitReached{RunID: sum.RunID, Kind: kind, Limit: limit, Sent: sum.Sent})
			return sum, nil
		}
		if breaker.IsOpen(r.cfg.Safety.MaxConsecutiveFailures, r.cfg.Safety.BreakerEnabled) {
			sum.Stop = StopBreakerOpen
			eventbus.Emit(r.d.Bus, eventbus.TypeBreakerTripped, eventbus.BreakerTripped{
				RunID: sum.RunID, Failures: breaker.Failures(), Threshold: r.cfg.Safety.MaxConsecutiveFailures,
			})
			return sum, nil
		}

		eventbus.Emit(r.d.Bus, eventbus.TypeRecipientStarted, eventbus.RecipientStarted{
			RunID: sum.RunID, Index: i + 1, Total: len(recipients), Name: rc.FullName(), ProfileURL: rc.ProfileURL,
		})

		contacted, err := r.d.Store.Contacted(ctx, rc.ProfileURL)
		if err != nil {
			sum.Stop = StopStoreError
			return sum, err
		}

		var o activity.Outcome
		if contacted {
			o = activity.Outcome{Status: activity.StatusSkipped, Error: SkipAlreadyContacted}
		} else {
			o = r.attempt(ctx, rc)
		}
		o.RunID = sum.RunID
		o.RecipientName = rc.FullName()
		o.ProfileURL = rc.ProfileURL
		o.Timestamp = r.d.Now()

		// An interrupted delivery is still recorded.
		if err := r.d.Store.Append(context.WithoutCancel(ctx), o); err != nil {
			log.Error("activity append failed", logx.Err(err))
			sum.Stop = StopStoreError
			return sum, err
		}
		sum.Considered++

		switch o.Status {
		case activity.StatusSent:
			sum.Sent++
			breaker.RecordSuccess()
		case activity.StatusFailed:
			sum.Failed++
			breaker.RecordFailure()
			log.Warn("delivery failed", logx.String("profile", rc.ProfileURL), logx.String("err", o.Error), logx.Int("consecutive", breaker.Failures()))
		case activity.StatusSkipped:
			sum.Skipped++
		}
		eventbus.Emit(r.d.Bus, eventbus.TypeOutcomeRecorded, eventbus.OutcomeRecorded{
			RunID: sum.RunID, Index: i + 1, Status: string(o.Status), Name: o.RecipientName,
			ProfileURL: o.ProfileURL, Template: o.Template, Error: o.Error,
		})

		// Pace only between sends that will actually be followed by another attempt.
		if o.Status == activity.StatusSent && i < len(recipients)-1 && sum.Sent < limit {
			delay := r.d.Policy.HumanDelay(r.cfg.Delays)
			eventbus.Emit(r.d.Bus, eventbus.TypeWaiting, eventbus.Waiting{RunID: sum.RunID, Reason: "pacing", Delay: delay})
			if err := r.d.Sleeper.Sleep(ctx, delay); err != nil {
				sum.Stop = StopInterrupted
				return sum, nil
			}
		}
	}
	if ctx.Err() != nil {
		sum.Stop = StopInterrupted
	} else {
		sum.Stop = StopCompleted
	}
	return sum, nil
}

// attempt renders and delivers one message. Panics from either step become a
// Failed outcome.
func (r *Runner) attempt(ctx context.Context, rc recipient.Recipient) (o activity.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("recipient attempt panicked", logx.String("profile", rc.ProfileURL), logx.Any("panic", p))
			o.Status = activity.StatusFailed
			o.Error = fmt.Sprintf("panic: %v", p)
		}
	}()

	msg, err := r.d.Renderer.Render(rc)
	if err != nil {
		return activity.Outcome{Status: activity.StatusFailed, Error: "render: " + err.Error()}
	}
	o = activity.Outcome{Template: msg.Template, Message: msg.Text}
	if err := r.d.Deliverer.Send(ctx, rc, msg.Text); err != nil {
		o.Status = activity.StatusFailed
		o.Error = err.Error()
		return o
	}
	o.Status = activity.StatusSent
	return o
}
