package config

// Config is the settings file layout. Credentials never come from the file.
type Config struct {
	LinkedIn   LinkedInConfig   `json:"linkedin"`
	Messaging  MessagingConfig  `json:"messaging"`
	Safety     SafetyConfig     `json:"safety"`
	Recipients RecipientsConfig `json:"recipients"`
	Browser    BrowserConfig    `json:"browser"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
	Notify     NotifyConfig     `json:"notify"`
	Schedule   ScheduleConfig   `json:"schedule"`

	// Credentials are read from the environment (optionally via .env).
	Credentials Credentials `json:"-"`
}

type Credentials struct {
	Email    string
	Password string
}

type LinkedInConfig struct {
	Limits LimitsConfig `json:"limits"`
}

// LimitsConfig bounds one run.
//
// max_connections caps how many valid recipients are read from the file.
// retry_attempts is the number of extra navigation attempts per recipient.
type LimitsConfig struct {
	DailyMessages   int `json:"daily_messages"`
	SessionMessages int `json:"session_messages"`
	MaxConnections  int `json:"max_connections"`
	RetryAttempts   int `json:"retry_attempts"`
}

type MessagingConfig struct {
	Templates []string      `json:"templates"`
	Delays    DelaysConfig  `json:"delays"`
	Backoff   BackoffConfig `json:"backoff"`
}

// DelaysConfig values are seconds.
type DelaysConfig struct {
	MinSeconds  float64 `json:"min_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
	TypingSpeed float64 `json:"typing_speed_chars_per_second"`
	PageLoadMin float64 `json:"page_load_min"`
	PageLoadMax float64 `json:"page_load_max"`
}

// BackoffConfig values are seconds. Zero means default (5s base, 300s cap).
type BackoffConfig struct {
	BaseSeconds float64 `json:"base_seconds,omitempty"`
	MaxSeconds  float64 `json:"max_seconds,omitempty"`
}

type SafetyConfig struct {
	EnableCircuitBreaker   bool `json:"enable_circuit_breaker"`
	MaxConsecutiveFailures int  `json:"max_consecutive_failures"`
}

type RecipientsConfig struct {
	Path string `json:"path,omitempty"`
}

// BrowserConfig controls the chromedp-driven Chrome instance.
//
// Timeout is a Go duration string bounding each page wait (default "30s").
type BrowserConfig struct {
	Headless    bool            `json:"headless"`
	ExecPath    string          `json:"exec_path,omitempty"`
	SessionFile string          `json:"session_file,omitempty"`
	Timeout     string          `json:"timeout,omitempty"`
	LoginURL    string          `json:"login_url,omitempty"`
	FeedURL     string          `json:"feed_url,omitempty"`
	Selectors   SelectorsConfig `json:"selectors"`
}

// SelectorsConfig holds CSS selectors. MessageButton candidates are tried in
// order and may use :contains("text").
type SelectorsConfig struct {
	MessageButton []string `json:"message_button,omitempty"`
	ComposeBox    string   `json:"compose_box,omitempty"`
	SendButton    string   `json:"send_button,omitempty"`
	Email         string   `json:"email,omitempty"`
	Password      string   `json:"password,omitempty"`
	Submit        string   `json:"submit,omitempty"`
}

// StorageConfig selects the activity log backend.
//
// Driver values: "csv" (default), "sqlite", "redis", "memory".
type StorageConfig struct {
	Driver      string      `json:"driver,omitempty"`
	Path        string      `json:"path,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"`
	Redis       RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console *bool  `json:"console,omitempty"`
	// LogFile is the older name for storage.path and is used when that is empty.
	LogFile string        `json:"log_file,omitempty"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig sends a run summary to a chat. The token may also come from
// TELEGRAM_BOT_TOKEN.
type TelegramConfig struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token,omitempty"`
	ChatID     int64   `json:"chat_id,omitempty"`
	ThreadID   int     `json:"thread_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
}

// ScheduleConfig drives `outreach schedule`. Cron accepts 5 or 6 fields and
// descriptors such as "@daily" or "@every 6h".
type ScheduleConfig struct {
	Cron       string `json:"cron,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart bool   `json:"run_on_start,omitempty"`
}
