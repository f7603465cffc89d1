package activity

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"outreach/pkg/logx"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisStore layout, under prefix P:
//   - P:outcomes         list of JSON-encoded outcomes (append order)
//   - P:at:<status>      sorted set, score = unix milli, one member per outcome
//   - P:contacted        hash profile key -> unix milli of the first send
type redisStore struct {
	rdb    *redis.Client
	log    logx.Logger
	prefix string
}

type redisRecord struct {
	RunID         string `json:"run_id,omitempty"`
	Status        Status `json:"status"`
	RecipientName string `json:"recipient_name"`
	ProfileURL    string `json:"profile_url"`
	Timestamp     string `json:"timestamp"`
	Error         string `json:"error_message,omitempty"`
	Template      string `json:"template_used,omitempty"`
	Preview       string `json:"message_preview,omitempty"`
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	prefix := strings.Trim(cfg.Redis.Prefix, ":")
	if prefix == "" {
		prefix = "outreach"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &redisStore{rdb: rdb, log: log, prefix: prefix}, nil
}

func (s *redisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *redisStore) Append(ctx context.Context, o Outcome) error {
	o, err := prepare(o)
	if err != nil {
		return err
	}
	b, err := json.Marshal(redisRecord{
		RunID:         o.RunID,
		Status:        o.Status,
		RecipientName: o.RecipientName,
		ProfileURL:    o.ProfileURL,
		Timestamp:     o.Timestamp.Format(time.RFC3339Nano),
		Error:         o.Error,
		Template:      o.Template,
		Preview:       o.Preview(),
	})
	if err != nil {
		return err
	}
	ms := o.Timestamp.UnixMilli()

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, s.key("outcomes"), b)
	pipe.ZAdd(ctx, s.key("at", string(o.Status)), redis.Z{Score: float64(ms), Member: uuid.NewString()})
	if o.Status == StatusSent {
		pipe.HSetNX(ctx, s.key("contacted"), normalizeURL(o.ProfileURL), ms)
	}
	_, err = pipe.Exec(ctx)
	return resourceErr("redis", "append", err)
}

func (s *redisStore) Tally(ctx context.Context, since time.Time) (Tally, error) {
	from := "-inf"
	if !since.IsZero() {
		from = strconv.FormatInt(since.UnixMilli(), 10)
	}
	pipe := s.rdb.Pipeline()
	sent := pipe.ZCount(ctx, s.key("at", string(StatusSent)), from, "+inf")
	failed := pipe.ZCount(ctx, s.key("at", string(StatusFailed)), from, "+inf")
	skipped := pipe.ZCount(ctx, s.key("at", string(StatusSkipped)), from, "+inf")
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Tally{}, resourceErr("redis", "tally", err)
	}
	return Tally{
		Sent:    int(sent.Val()),
		Failed:  int(failed.Val()),
		Skipped: int(skipped.Val()),
	}, nil
}

func (s *redisStore) Contacted(ctx context.Context, profileURL string) (bool, error) {
	ok, err := s.rdb.HExists(ctx, s.key("contacted"), normalizeURL(profileURL)).Result()
	if err != nil {
		return false, resourceErr("redis", "contacted", err)
	}
	return ok, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
