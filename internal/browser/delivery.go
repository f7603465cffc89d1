package browser

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"outreach/internal/pacing"
	"outreach/internal/recipient"
	"outreach/pkg/logx"
)

// SenderConfig controls pacing inside one delivery.
type SenderConfig struct {
	Delays    pacing.DelayConfig
	Backoff   pacing.BackoffConfig
	Retries   int
	Selectors Selectors
}

// Sender delivers messages through a Page.
type Sender struct {
	page    Page
	cfg     SenderConfig
	policy  *pacing.Policy
	sleeper pacing.Sleeper
	onRetry pacing.RetryHook
	log     logx.Logger
}

func NewSender(page Page, cfg SenderConfig, policy *pacing.Policy, sleeper pacing.Sleeper, log logx.Logger) *Sender {
	if policy == nil {
		policy = pacing.NewTimePolicy()
	}
	if sleeper == nil {
		sleeper = pacing.RealSleeper
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{page: page, cfg: cfg, policy: policy, sleeper: sleeper, log: log.With(logx.String("comp", "sender"))}
}

// OnRetry installs a hook called before each navigation retry wait.
func (s *Sender) OnRetry(h pacing.RetryHook) { s.onRetry = h }

// Send opens the recipient's profile, opens the compose box, types msg and
// sends it. Only the navigation phase (up to finding the message button) is
// retried; once typing starts a failure is final. Errors are *DeliveryError.
func (s *Sender) Send(ctx context.Context, r recipient.Recipient, msg string) error {
	if strings.TrimSpace(msg) == "" {
		return &DeliveryError{Stage: "compose", URL: r.ProfileURL, Err: ErrEmptyMessage}
	}
	log := s.log.With(logx.String("profile", r.ProfileURL))

	var button string
	hook := func(attempt int, delay time.Duration, err error) {
		log.Debug("navigation retry scheduled", logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
		if s.onRetry != nil {
			s.onRetry(attempt, delay, err)
		}
	}
	err := s.policy.Retry(ctx, s.sleeper, s.cfg.Retries, s.cfg.Backoff, hook, func(ctx context.Context) error {
		sel, err := s.openProfile(ctx, r.ProfileURL)
		if err != nil {
			return err
		}
		button = sel
		return nil
	})
	if err != nil {
		return &DeliveryError{Stage: "navigate", URL: r.ProfileURL, Err: err}
	}

	if err := s.page.Click(ctx, button); err != nil {
		return &DeliveryError{Stage: "compose", URL: r.ProfileURL, Err: err}
	}
	box := s.cfg.Selectors.ComposeBox
	if err := s.page.WaitVisible(ctx, box); err != nil {
		return &DeliveryError{Stage: "compose", URL: r.ProfileURL, Err: err}
	}
	if err := s.page.Click(ctx, box); err != nil {
		return &DeliveryError{Stage: "compose", URL: r.ProfileURL, Err: err}
	}

	if err := s.typeText(ctx, msg); err != nil {
		return &DeliveryError{Stage: "type", URL: r.ProfileURL, Err: err}
	}

	if err := s.page.Click(ctx, s.cfg.Selectors.SendButton); err != nil {
		return &DeliveryError{Stage: "send", URL: r.ProfileURL, Err: err}
	}
	log.Debug("message sent", logx.Int("chars", utf8.RuneCountInString(msg)))
	return nil
}

// openProfile navigates and returns a selector for the message button.
func (s *Sender) openProfile(ctx context.Context, profileURL string) (string, error) {
	if err := s.page.Navigate(ctx, profileURL); err != nil {
		return "", err
	}
	if err := s.sleeper.Sleep(ctx, s.policy.PageLoadDelay(s.cfg.Delays)); err != nil {
		return "", pacing.NoRetry(err)
	}
	loc, err := s.page.Location(ctx)
	if err != nil {
		return "", err
	}
	if !onProfilePage(loc) {
		return "", ErrNotProfilePage
	}
	page, err := s.page.HTML(ctx)
	if err != nil {
		return "", err
	}
	sel, err := PickMessageButton(page, s.cfg.Selectors.MessageButton)
	if errors.Is(err, ErrNoMessageButton) {
		return "", pacing.NoRetry(err)
	}
	return sel, err
}

// typeText sends one rune at a time, spreading TypingDelay(len) evenly over
// the runes.
func (s *Sender) typeText(ctx context.Context, msg string) error {
	n := utf8.RuneCountInString(msg)
	total, err := s.policy.TypingDelay(s.cfg.Delays, n)
	if err != nil {
		return err
	}
	per := total / time.Duration(n)
	for _, ch := range msg {
		if err := s.page.Type(ctx, string(ch)); err != nil {
			return err
		}
		if err := s.sleeper.Sleep(ctx, per); err != nil {
			return err
		}
	}
	return nil
}
