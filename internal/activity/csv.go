package activity

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"outreach/pkg/logx"
)

// csvColumns is the on-disk layout. Existing logs written with this header
// stay readable.
var csvColumns = []string{
	"recipient_name", "profile_url", "timestamp",
	"status", "error_message", "template_used", "message_preview",
}

// legacyTimeLayout matches timestamps without a zone offset.
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

type csvStore struct {
	log logx.Logger

	mu  sync.Mutex
	f   *os.File
	w   *csv.Writer
	idx index
}

func openCSV(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for csv driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	idx := newIndex()
	skipped, err := loadCSV(path, &idx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("unreadable activity rows ignored", logx.Int("rows", skipped))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st := &csvStore{log: log, f: f, w: csv.NewWriter(f), idx: idx}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		if err := st.writeRow(csvColumns); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return st, nil
}

// loadCSV replays an existing log into idx and returns how many rows could
// not be interpreted.
func loadCSV(path string, idx *index) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		at, terr := parseTimestamp(get(rec, "timestamp"))
		status := Status(get(rec, "status"))
		if terr != nil || !status.Valid() {
			skipped++
			continue
		}
		idx.add(at, status, get(rec, "profile_url"))
	}
	return skipped, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimeLayout, s, time.Local)
}

func (s *csvStore) writeRow(rec []string) error {
	if err := s.w.Write(rec); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *csvStore) Append(ctx context.Context, o Outcome) error {
	_ = ctx
	o, err := prepare(o)
	if err != nil {
		return err
	}
	preview := ""
	if o.Message != "" {
		preview = o.Preview()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return resourceErr("csv", "append", ErrClosed)
	}
	err = s.writeRow([]string{
		o.RecipientName,
		o.ProfileURL,
		o.Timestamp.Format(time.RFC3339Nano),
		string(o.Status),
		o.Error,
		o.Template,
		preview,
	})
	if err != nil {
		return resourceErr("csv", "append", err)
	}
	s.idx.add(o.Timestamp, o.Status, o.ProfileURL)
	return nil
}

func (s *csvStore) Tally(ctx context.Context, since time.Time) (Tally, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.tally(since), nil
}

func (s *csvStore) Contacted(ctx context.Context, profileURL string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.has(profileURL), nil
}

func (s *csvStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	s.w.Flush()
	werr := s.w.Error()
	cerr := s.f.Close()
	s.f = nil
	if werr != nil {
		return werr
	}
	return cerr
}
