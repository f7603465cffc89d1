package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"outreach/internal/pacing"
	"outreach/pkg/logx"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
)

const (
	EnvEmail         = "LINKEDIN_EMAIL"
	EnvPassword      = "LINKEDIN_PASSWORD"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
)

// Manager loads the settings file and, in long-running modes, keeps the
// latest valid version of it.
type Manager struct {
	path    string
	envFile string

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64

	log logx.Logger
}

// NewManager reads settings from path and credentials from envFile (when it
// exists) plus the process environment.
func NewManager(path, envFile string) *Manager {
	return &Manager{path: path, envFile: envFile, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log.With(logx.String("comp", "config"))
}

func (m *Manager) Path() string { return m.path }

// Parse decodes the settings file strictly: unknown fields and trailing data
// are errors. No defaults are applied.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

// Decode parses YAML or JSON (by the extension of name).
func Decode(name string, b []byte) (*Config, error) {
	jb, err := toJSON(name, b)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// Load parses, fills defaults and credentials, and validates. Every failure is
// a *Error.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.commit(cfg)
	return cfg, nil
}

func (m *Manager) load() (*Config, error) {
	if err := m.loadEnv(); err != nil {
		return nil, &Error{Path: m.envFile, Err: err}
	}
	cfg, err := m.Parse()
	if err != nil {
		return nil, &Error{Path: m.path, Err: err}
	}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = m.path
		}
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) loadEnv() error {
	if strings.TrimSpace(m.envFile) == "" {
		return nil
	}
	if _, err := os.Stat(m.envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	// Existing environment variables win over the file.
	return godotenv.Load(m.envFile)
}

// ApplyEnv copies credentials (and the optional Telegram token) from the
// process environment.
func ApplyEnv(cfg *Config) {
	cfg.Credentials = Credentials{
		Email:    strings.TrimSpace(os.Getenv(EnvEmail)),
		Password: os.Getenv(EnvPassword),
	}
	if tok := strings.TrimSpace(os.Getenv(EnvTelegramToken)); tok != "" && strings.TrimSpace(cfg.Notify.Telegram.Token) == "" {
		cfg.Notify.Telegram.Token = tok
	}
}

func (m *Manager) commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Get returns the last valid configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// reload re-reads the file and commits it when it is valid and changed.
func (m *Manager) reload() {
	cfg, err := m.load()
	if err != nil {
		m.log.Warn("config rejected; keeping previous", logx.String("path", m.path), logx.Err(err))
		return
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	old, unchanged := m.cfg, h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged", logx.String("path", m.path))
		return
	}
	m.commit(cfg)
	m.log.Info("config reloaded", logx.String("path", m.path), logx.String("changed", strings.Join(Changed(old, cfg), ",")))
}

// Watch reloads the file on change until ctx is done. A broken watcher is
// recreated with exponential backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	restart, err := pacing.NewBackoffConfig(250*time.Millisecond, 5*time.Second)
	if err != nil {
		return err
	}
	policy := pacing.NewTimePolicy()
	attempt := 0

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		w, err := m.startWatcher(dir)
		if err != nil {
			wait := policy.ExponentialBackoff(attempt, restart)
			attempt++
			m.log.Warn("config watch failed; retrying", logx.Err(err), logx.String("dir", dir), logx.Duration("backoff", wait))
			if pacing.Sleep(ctx, wait) != nil {
				return nil
			}
			continue
		}
		attempt = 0
		m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := m.watchLoop(ctx, w, file, debounce)
		_ = w.Close()
		if !broken {
			return nil
		}
		wait := policy.ExponentialBackoff(attempt, restart)
		attempt++
		m.log.Warn("config watcher stopped; restarting", logx.Duration("backoff", wait))
		if pacing.Sleep(ctx, wait) != nil {
			return nil
		}
	}
}

func (m *Manager) startWatcher(dir string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return w, nil
}

// watchLoop returns true when the watcher broke and should be recreated.
func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, file string, changed func()) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflow; forcing reload")
				changed()
				continue
			}
			m.log.Warn("config watch error", logx.Err(err))
		}
	}
}
