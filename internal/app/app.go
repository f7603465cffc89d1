// Package app wires configuration, storage, the browser and the send loop
// into the operations the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"outreach/internal/activity"
	"outreach/internal/browser"
	"outreach/internal/config"
	"outreach/internal/eventbus"
	"outreach/internal/message"
	"outreach/internal/notify"
	"outreach/internal/outreach"
	"outreach/internal/pacing"
	"outreach/internal/recipient"
	"outreach/internal/report"
	"outreach/internal/schedule"
	"outreach/pkg/logx"
)

// ErrInterrupted is returned when a run stopped because ctx was cancelled.
var ErrInterrupted = errors.New("run interrupted")

// PageOpener returns an authenticated page and a func releasing it.
type PageOpener func(ctx context.Context, cfg *config.Config, log logx.Logger) (browser.Page, func() error, error)

type Options struct {
	ConfigPath string
	EnvFile    string
	// Out receives progress lines. Defaults to stdout.
	Out io.Writer
	// OpenPage and Sleeper replace Chrome and real waits in tests.
	OpenPage PageOpener
	Sleeper  pacing.Sleeper
}

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger
	out  io.Writer

	openPage PageOpener
	sleeper  pacing.Sleeper
}

// New loads and validates the configuration and starts logging. Any config
// problem is a *config.Error.
func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath, opts.EnvFile)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	logs, log := logx.NewService(cfg.LogConfig())
	cfgm.SetLogger(log)

	a := &App{
		cfgm:     cfgm,
		logs:     logs,
		log:      log.With(logx.String("comp", "app")),
		out:      opts.Out,
		openPage: opts.OpenPage,
		sleeper:  opts.Sleeper,
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	if a.openPage == nil {
		a.openPage = openChrome
	}
	if a.sleeper == nil {
		a.sleeper = pacing.RealSleeper
	}
	return a, nil
}

func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Close() error { return a.logs.Close() }

// Run performs one outreach run, or only prints the plan when dryRun is set.
func (a *App) Run(ctx context.Context, dryRun bool) (outreach.Summary, error) {
	cfg := a.cfgm.Get()
	a.logs.Apply(cfg.LogConfig())
	log := a.log

	if !dryRun {
		if err := config.ValidateCredentials(cfg); err != nil {
			return outreach.Summary{}, err
		}
	}

	store, err := activity.Open(cfg.ActivityConfig(), log)
	if err != nil {
		return outreach.Summary{}, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("activity store close failed", logx.Err(err))
		}
	}()

	recipients, err := a.loadRecipients(cfg)
	if err != nil {
		return outreach.Summary{}, err
	}

	policy := pacing.NewTimePolicy()
	engine, err := message.NewEngine(cfg.Messaging.Templates, policy)
	if err != nil {
		return outreach.Summary{}, &config.Error{Path: a.cfgm.Path(), Err: err}
	}
	delays, err := cfg.DelayConfig()
	if err != nil {
		return outreach.Summary{}, &config.Error{Path: a.cfgm.Path(), Err: err}
	}
	backoff, err := cfg.BackoffConfig()
	if err != nil {
		return outreach.Summary{}, &config.Error{Path: a.cfgm.Path(), Err: err}
	}

	bus := eventbus.New()
	detach := report.NewPresenter(a.out, log).Attach(bus, 256)
	defer detach()
	if !dryRun {
		if n := a.notifier(cfg); n != nil {
			defer n.Attach(ctx, bus)()
		}
	}

	rcfg := outreach.Config{
		Limits: outreach.Limits{
			SessionMessages: cfg.LinkedIn.Limits.SessionMessages,
			DailyMessages:   cfg.LinkedIn.Limits.DailyMessages,
		},
		Safety: outreach.Safety{
			BreakerEnabled:         cfg.Safety.EnableCircuitBreaker,
			MaxConsecutiveFailures: cfg.Safety.MaxConsecutiveFailures,
		},
		Delays: delays,
	}
	deps := outreach.Deps{
		Renderer:  engine,
		Deliverer: noDelivery{},
		Store:     store,
		Policy:    policy,
		Sleeper:   a.sleeper,
		Bus:       bus,
		Log:       log,
	}

	if dryRun {
		runner, err := outreach.New(rcfg, deps)
		if err != nil {
			return outreach.Summary{}, err
		}
		plan, err := runner.Plan(ctx, recipients, engine.Len())
		if err != nil {
			return outreach.Summary{}, err
		}
		detach()
		a.printPlan(plan, engine)
		return outreach.Summary{RunID: plan.RunID, Total: len(recipients), Limit: plan.Limit, Stop: outreach.StopCompleted}, nil
	}

	page, release, err := a.openPage(ctx, cfg, log)
	if err != nil {
		return outreach.Summary{}, err
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn("browser close failed", logx.Err(err))
		}
	}()

	sender := browser.NewSender(page, browser.SenderConfig{
		Delays:    delays,
		Backoff:   backoff,
		Retries:   cfg.LinkedIn.Limits.RetryAttempts,
		Selectors: selectors(cfg),
	}, policy, a.sleeper, log)
	sender.OnRetry(func(attempt int, delay time.Duration, err error) {
		eventbus.Emit(bus, eventbus.TypeWaiting, eventbus.Waiting{Reason: "retry", Delay: delay})
	})
	deps.Deliverer = sender

	runner, err := outreach.New(rcfg, deps)
	if err != nil {
		return outreach.Summary{}, err
	}
	sum, err := runner.Run(ctx, recipients)
	if err != nil {
		return sum, err
	}
	if sum.Stop == outreach.StopInterrupted {
		return sum, ErrInterrupted
	}
	return sum, nil
}

func (a *App) loadRecipients(cfg *config.Config) ([]recipient.Recipient, error) {
	res, err := recipient.Load(cfg.Recipients.Path, cfg.LinkedIn.Limits.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("load recipients %s: %w", cfg.Recipients.Path, err)
	}
	for _, pe := range res.Errors {
		a.log.Warn("recipient row rejected", logx.String("file", cfg.Recipients.Path), logx.Int("row", pe.Row), logx.Err(pe.Err))
		fmt.Fprintf(a.out, "Skipping row %d: %v\n", pe.Row, pe.Err)
	}
	if res.Truncated {
		a.log.Info("recipient list truncated", logx.Int("max_connections", cfg.LinkedIn.Limits.MaxConnections))
	}
	a.log.Info("recipients loaded", logx.Int("valid", len(res.Recipients)), logx.Int("rejected", len(res.Errors)))
	return res.Recipients, nil
}

func (a *App) printPlan(p outreach.Plan, engine *message.Engine) {
	fmt.Fprintf(a.out, "Limits: session %d, daily %d (%d sent today) -> %d this run\n",
		p.SessionLimit, p.DailyLimit, p.SentToday, p.Limit)
	fmt.Fprintf(a.out, "Delay between messages: %.0fs-%.0fs\n", p.MinDelay.Seconds(), p.MaxDelay.Seconds())
	for i, r := range p.Recipients {
		if i >= p.WillAttempt() {
			fmt.Fprintf(a.out, "... %d more recipient(s) beyond this run's limit\n", len(p.Recipients)-i)
			break
		}
		msg, err := engine.Render(r)
		if err != nil {
			fmt.Fprintf(a.out, "[%d] %s: render error: %v\n", i+1, r.FullName(), err)
			continue
		}
		preview := activity.Outcome{Message: msg.Text}.Preview()
		fmt.Fprintf(a.out, "[%d] %s (%s) %s: %s\n", i+1, r.FullName(), r.ProfileURL, msg.Template, preview)
	}
}

func (a *App) notifier(cfg *config.Config) *notify.Notifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return nil
	}
	timeout, _ := config.ParseDurationOrDefault("notify.telegram.timeout", tg.Timeout, 10*time.Second)
	tr, err := notify.NewTelegram(notify.TelegramConfig{Token: tg.Token, ChatID: tg.ChatID, ThreadID: tg.ThreadID, Timeout: timeout})
	if err != nil {
		a.log.Warn("telegram notifications disabled", logx.Err(err))
		return nil
	}
	return notify.New(tr, notify.Options{RatePerSec: tg.RatePerSec, Timeout: timeout}, a.log)
}

// Tally reports outcome counts recorded since the given time (zero = all).
func (a *App) Tally(ctx context.Context, since time.Time) (activity.Tally, error) {
	store, err := activity.Open(a.cfgm.Get().ActivityConfig(), a.log)
	if err != nil {
		return activity.Tally{}, err
	}
	defer store.Close()
	return store.Tally(ctx, since)
}

// Schedule runs outreach on the configured cron until ctx is done. The
// settings file is watched so each run uses the latest valid version.
func (a *App) Schedule(ctx context.Context) error {
	sc := a.cfgm.Get().Schedule
	s, err := schedule.New(schedule.Config{Spec: sc.Cron, Timezone: sc.Timezone, RunOnStart: sc.RunOnStart}, func(ctx context.Context) error {
		_, err := a.Run(ctx, false)
		if errors.Is(err, ErrInterrupted) {
			return nil
		}
		return err
	}, a.log)
	if err != nil {
		return &config.Error{Path: a.cfgm.Path(), Err: fmt.Errorf("schedule: %w", err)}
	}

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch disabled", logx.Err(err))
		}
	}()
	err = s.Run(ctx)
	<-watchDone
	return err
}

func selectors(cfg *config.Config) browser.Selectors {
	s := cfg.Browser.Selectors
	return browser.Selectors{
		MessageButton: s.MessageButton,
		ComposeBox:    s.ComposeBox,
		SendButton:    s.SendButton,
		Email:         s.Email,
		Password:      s.Password,
		Submit:        s.Submit,
	}
}

func openChrome(ctx context.Context, cfg *config.Config, log logx.Logger) (browser.Page, func() error, error) {
	p := browser.NewProvider(browser.Options{
		Headless:    cfg.Browser.Headless,
		ExecPath:    cfg.Browser.ExecPath,
		SessionFile: cfg.Browser.SessionFile,
		LoginURL:    cfg.Browser.LoginURL,
		FeedURL:     cfg.Browser.FeedURL,
		Timeout:     cfg.BrowserTimeout(),
		Selectors:   selectors(cfg),
		Email:       cfg.Credentials.Email,
		Password:    cfg.Credentials.Password,
	}, log)
	s, err := p.Authenticate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// noDelivery backs dry runs, which never send.
type noDelivery struct{}

func (noDelivery) Send(context.Context, recipient.Recipient, string) error {
	return errors.New("dry run: delivery disabled")
}
