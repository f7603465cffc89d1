// Package schedule triggers outreach runs on a cron schedule and reports
// readiness and liveness to systemd.
package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"outreach/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Spec       string
	Timezone   string
	RunOnStart bool
}

// Job is one outreach run.
type Job func(ctx context.Context) error

// Scheduler fires Job on its schedule. A trigger that arrives while the
// previous run is still going is dropped.
type Scheduler struct {
	expr    string
	sched   cron.Schedule
	loc     *time.Location
	onStart bool
	job     Job
	log     logx.Logger
	running atomic.Bool
	wg      sync.WaitGroup
	fired   atomic.Int64
	skipped atomic.Int64
}

func New(cfg Config, job Job, log logx.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("schedule: job is required")
	}
	expr, err := Normalize(cfg.Spec)
	if err != nil {
		return nil, err
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		expr: expr, sched: sched, loc: loc, onStart: cfg.RunOnStart, job: job,
		log: log.With(logx.String("comp", "schedule")),
	}, nil
}

func (s *Scheduler) Expr() string { return s.expr }

// Next is the first trigger time after t, in the scheduler's zone.
func (s *Scheduler) Next(t time.Time) time.Time { return s.sched.Next(t.In(s.loc)) }

// Run blocks until ctx is done, then waits for an in-flight job to return.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.loc), cron.WithChain(cron.Recover(cl)))
	if _, err := c.AddJob(s.expr, cron.FuncJob(func() { s.fire(ctx, "cron") })); err != nil {
		return err
	}
	c.Start()
	s.log.Info("scheduler started", logx.String("spec", s.expr), logx.String("tz", s.loc.String()), logx.Time("next", s.Next(time.Now())))
	notify(s.log, daemon.SdNotifyReady)

	wdDone := make(chan struct{})
	go func() {
		defer close(wdDone)
		s.watchdog(ctx)
	}()

	if s.onStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fire(ctx, "start")
		}()
	}

	<-ctx.Done()
	notify(s.log, daemon.SdNotifyStopping)
	<-c.Stop().Done()
	s.wg.Wait()
	<-wdDone
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) fire(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("previous run still in progress; trigger skipped", logx.String("trigger", trigger))
		return
	}
	defer s.running.Store(false)
	defer s.fired.Add(1)

	start := time.Now()
	err := s.job(ctx)
	fields := []logx.Field{logx.String("trigger", trigger), logx.Duration("dur", time.Since(start)), logx.Time("next", s.Next(time.Now()))}
	if err != nil {
		s.log.Error("scheduled run failed", append(fields, logx.Err(err))...)
		return
	}
	s.log.Info("scheduled run done", fields...)
}

func (s *Scheduler) watchdog(ctx context.Context) {
	iv, err := daemon.SdWatchdogEnabled(false)
	if err != nil || iv <= 0 {
		return
	}
	t := time.NewTicker(iv / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			notify(s.log, daemon.SdNotifyWatchdog)
		}
	}
}

// notify is a no-op outside systemd (NOTIFY_SOCKET unset).
func notify(log logx.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug(msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error(msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
