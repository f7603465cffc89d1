package config

import (
	"errors"
	"fmt"
	"strings"

	"outreach/internal/message"
	"outreach/internal/schedule"
	"outreach/pkg/logx"
)

// Validate checks everything a run needs except credentials. All problems are
// reported together as one *Error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &Error{Err: errors.New("config is nil")}
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	l := cfg.LinkedIn.Limits
	if l.DailyMessages <= 0 {
		add("linkedin.limits.daily_messages must be > 0")
	}
	if l.SessionMessages <= 0 {
		add("linkedin.limits.session_messages must be > 0")
	}
	if l.MaxConnections <= 0 {
		add("linkedin.limits.max_connections must be > 0")
	}
	if l.RetryAttempts < 0 {
		add("linkedin.limits.retry_attempts must be >= 0")
	}

	if len(cfg.Messaging.Templates) == 0 {
		errs = append(errs, ErrNoTemplates)
	}
	for i, tpl := range cfg.Messaging.Templates {
		if strings.TrimSpace(tpl) == "" {
			add("messaging.templates[%d] is empty", i)
			continue
		}
		if bad := message.Validate(tpl); len(bad) > 0 {
			add("messaging.templates[%d]: %w", i, &message.UnknownPlaceholderError{Names: bad})
		}
	}
	if cfg.Messaging.Delays.TypingSpeed <= 0 {
		add("messaging.delays.typing_speed_chars_per_second must be > 0")
	}
	if _, err := cfg.DelayConfig(); err != nil {
		add("messaging.delays: %w", err)
	}
	if _, err := cfg.BackoffConfig(); err != nil {
		add("messaging.backoff: %w", err)
	}

	if cfg.Safety.EnableCircuitBreaker && cfg.Safety.MaxConsecutiveFailures < 1 {
		add("safety.max_consecutive_failures must be >= 1 when the circuit breaker is enabled")
	}

	if _, err := ParseDurationField("browser.timeout", cfg.Browser.Timeout); err != nil {
		errs = append(errs, err)
	}
	for _, u := range []struct{ path, v string }{{"browser.login_url", cfg.Browser.LoginURL}, {"browser.feed_url", cfg.Browser.FeedURL}} {
		if u.v != "" && !strings.HasPrefix(u.v, "http://") && !strings.HasPrefix(u.v, "https://") {
			add("%s must be an http(s) URL", u.path)
		}
	}

	switch cfg.Storage.Driver {
	case "", "csv", "sqlite", "sqlite3", "memory":
	case "redis":
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			add("storage.redis.addr is required for the redis driver")
		}
	default:
		add("storage.driver %q is not one of csv, sqlite, redis, memory", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if lvl := cfg.Logging.Level; lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.level %q is not a valid level", lvl)
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		add("logging.file.path is required when file logging is enabled")
	}

	if tg := cfg.Notify.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			add("notify.telegram.token (or TELEGRAM_BOT_TOKEN) is required when telegram is enabled")
		}
		if tg.ChatID == 0 {
			add("notify.telegram.chat_id is required when telegram is enabled")
		}
		if tg.RatePerSec < 0 {
			add("notify.telegram.rate_per_sec must be >= 0")
		}
		if _, err := ParseDurationField("notify.telegram.timeout", tg.Timeout); err != nil {
			errs = append(errs, err)
		}
	}

	if c := strings.TrimSpace(cfg.Schedule.Cron); c != "" {
		if _, err := schedule.Normalize(c); err != nil {
			add("schedule.cron: %w", err)
		}
	}
	if _, err := schedule.LoadLocation(cfg.Schedule.Timezone); err != nil {
		add("schedule.timezone: %w", err)
	}

	if len(errs) == 0 {
		return nil
	}
	return &Error{Err: errors.Join(errs...)}
}

// ValidateCredentials is separate from Validate so dry runs work without them.
func ValidateCredentials(cfg *Config) error {
	email := strings.TrimSpace(cfg.Credentials.Email)
	if email == "" || cfg.Credentials.Password == "" {
		return &Error{Err: ErrMissingCredentials}
	}
	if !strings.Contains(email, "@") {
		return &Error{Err: ErrInvalidEmail}
	}
	return nil
}
