package config

import "strings"

const (
	DefaultRecipientsPath = "data/connections.csv"
	DefaultActivityPath   = "data/logs.csv"
	DefaultSessionFile    = "data/session.json"
	DefaultLoginURL       = "https://www.linkedin.com/login"
	DefaultFeedURL        = "https://www.linkedin.com/feed/"
	DefaultBrowserTimeout = "30s"
	DefaultBackoffBase    = 5.0
	DefaultBackoffMax     = 300.0
)

// DefaultMessageButtons are tried in order.
var DefaultMessageButtons = []string{
	"button.message-anywhere-button",
	`button:contains("Message")`,
	`a[href*="/messaging/thread/"]`,
}

func orStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// ApplyDefaults fills optional fields left empty in the file.
func ApplyDefaults(cfg *Config) {
	cfg.Recipients.Path = orStr(cfg.Recipients.Path, DefaultRecipientsPath)

	cfg.Storage.Driver = strings.ToLower(orStr(cfg.Storage.Driver, "csv"))
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = orStr(cfg.Logging.LogFile, DefaultActivityPath)
	}

	b := &cfg.Browser
	b.SessionFile = orStr(b.SessionFile, DefaultSessionFile)
	b.LoginURL = orStr(b.LoginURL, DefaultLoginURL)
	b.FeedURL = orStr(b.FeedURL, DefaultFeedURL)
	b.Timeout = orStr(b.Timeout, DefaultBrowserTimeout)
	s := &b.Selectors
	if len(s.MessageButton) == 0 {
		s.MessageButton = append([]string(nil), DefaultMessageButtons...)
	}
	s.ComposeBox = orStr(s.ComposeBox, "div.msg-form__contenteditable")
	s.SendButton = orStr(s.SendButton, "button.msg-form__send-button")
	s.Email = orStr(s.Email, "#username")
	s.Password = orStr(s.Password, "#password")
	s.Submit = orStr(s.Submit, `button[type="submit"]`)

	if cfg.Messaging.Backoff.BaseSeconds == 0 {
		cfg.Messaging.Backoff.BaseSeconds = DefaultBackoffBase
	}
	if cfg.Messaging.Backoff.MaxSeconds == 0 {
		cfg.Messaging.Backoff.MaxSeconds = DefaultBackoffMax
	}

	cfg.Logging.Level = strings.ToLower(orStr(cfg.Logging.Level, "info"))
	if cfg.Logging.Console == nil {
		on := true
		cfg.Logging.Console = &on
	}

	if cfg.Notify.Telegram.RatePerSec == 0 {
		cfg.Notify.Telegram.RatePerSec = 1
	}
	cfg.Notify.Telegram.Timeout = orStr(cfg.Notify.Telegram.Timeout, "10s")
}
