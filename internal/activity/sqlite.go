package activity

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"outreach/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Append(ctx context.Context, o Outcome) error {
	o, err := prepare(o)
	if err != nil {
		return err
	}
	if s.db == nil {
		return resourceErr("sqlite", "append", ErrClosed)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO outcomes(run_id, at_ms, at, status, recipient_name, profile_url, profile_key, error_message, template_used, message_preview)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		nullStr(o.RunID), o.Timestamp.UnixMilli(), o.Timestamp.Format(time.RFC3339Nano), string(o.Status),
		o.RecipientName, o.ProfileURL, normalizeURL(o.ProfileURL),
		nullStr(o.Error), nullStr(o.Template), nullStr(o.Preview()),
	)
	return resourceErr("sqlite", "append", err)
}

func (s *sqliteStore) Tally(ctx context.Context, since time.Time) (Tally, error) {
	if s.db == nil {
		return Tally{}, resourceErr("sqlite", "tally", ErrClosed)
	}
	var from int64
	if !since.IsZero() {
		from = since.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM outcomes WHERE at_ms >= ? GROUP BY status`, from)
	if err != nil {
		return Tally{}, resourceErr("sqlite", "tally", err)
	}
	defer rows.Close()

	var t Tally
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Tally{}, resourceErr("sqlite", "tally", err)
		}
		switch Status(status) {
		case StatusSent:
			t.Sent = n
		case StatusFailed:
			t.Failed = n
		case StatusSkipped:
			t.Skipped = n
		}
	}
	return t, resourceErr("sqlite", "tally", rows.Err())
}

func (s *sqliteStore) Contacted(ctx context.Context, profileURL string) (bool, error) {
	if s.db == nil {
		return false, resourceErr("sqlite", "contacted", ErrClosed)
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM outcomes WHERE profile_key = ? AND status = 'sent' LIMIT 1`,
		normalizeURL(profileURL)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, resourceErr("sqlite", "contacted", err)
	}
	return true, nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
