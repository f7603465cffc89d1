package activity

import (
	"errors"
	"strings"
	"time"

	"outreach/pkg/logx"
)

// Config selects and configures a driver.
//
// Driver values:
//   - "csv": append-only CSV file (default)
//   - "sqlite": SQLite database file
//   - "redis": Redis list plus per-day counters
//   - "memory": process-local, for dry runs and tests
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open initializes the configured store. Failures are *ResourceError.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "csv"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "activity"), logx.String("driver", driver))

	var (
		st  Store
		err error
	)
	switch driver {
	case "csv":
		st, err = openCSV(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "redis":
		st, err = openRedis(cfg, log)
	case "memory":
		st = NewMemory()
	default:
		err = errors.New("unknown driver: " + driver)
	}
	if err != nil {
		return nil, resourceErr(driver, "open", err)
	}
	log.Debug("activity store opened", logx.String("path", cfg.Path))
	return st, nil
}
