package config

import (
	"time"

	"outreach/internal/activity"
	"outreach/internal/pacing"
	"outreach/pkg/logx"
)

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// DelayConfig builds the validated pacing configuration.
func (c *Config) DelayConfig() (pacing.DelayConfig, error) {
	d := c.Messaging.Delays
	return pacing.NewDelayConfig(
		seconds(d.MinSeconds), seconds(d.MaxSeconds),
		d.TypingSpeed,
		seconds(d.PageLoadMin), seconds(d.PageLoadMax),
	)
}

func (c *Config) BackoffConfig() (pacing.BackoffConfig, error) {
	b := c.Messaging.Backoff
	return pacing.NewBackoffConfig(seconds(b.BaseSeconds), seconds(b.MaxSeconds))
}

func (c *Config) ActivityConfig() activity.Config {
	busy, _ := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	return activity.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: busy,
		Redis: activity.RedisConfig{
			Addr:     c.Storage.Redis.Addr,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
			Prefix:   c.Storage.Redis.Prefix,
		},
	}
}

func (c *Config) LogConfig() logx.Config {
	console := c.Logging.Console == nil || *c.Logging.Console
	return logx.Config{
		Level:   c.Logging.Level,
		Console: console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}

func (c *Config) BrowserTimeout() time.Duration {
	d, err := ParseDurationOrDefault("browser.timeout", c.Browser.Timeout, 30*time.Second)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
