package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"
)

const defaultKeyPrefix = "hookfeed:events"

// Config defines Redis connection settings.
type Config struct {
	Addr      string
	Username  string
	Password  string
	Database  int
	KeyPrefix string
}

// Store keeps records in a hash and orders them in a sorted set scored by
// created_at. Members of the sorted set are "<seq>:<id>" so records created
// within the same microsecond keep insertion order.
type Store struct {
	client *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}, nil
}

func (s *Store) timelineKey() string { return s.prefix + ":timeline" }
func (s *Store) recordsKey() string  { return s.prefix + ":records" }
func (s *Store) seqKey() string      { return s.prefix + ":seq" }

// Insert stores the record and adds it to the timeline.
func (s *Store) Insert(ctx context.Context, record event.Record) error {
	if s == nil || s.client == nil {
		return storage.ErrNotInitialized
	}
	if err := storage.Validate(record); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.recordsKey(), record.ID, payload)
	pipe.ZAdd(ctx, s.timelineKey(), redis.Z{
		Score:  float64(record.CreatedAt.UnixMicro()),
		Member: fmt.Sprintf("%020d:%s", seq, record.ID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRecent returns the newest records from the timeline.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]event.Record, error) {
	if s == nil || s.client == nil {
		return nil, storage.ErrNotInitialized
	}
	members, err := s.client.ZRevRange(ctx, s.timelineKey(), 0, int64(storage.Limit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if len(members) == 0 {
		return []event.Record{}, nil
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		_, id, ok := strings.Cut(member, ":")
		if !ok {
			id = member
		}
		ids = append(ids, id)
	}
	values, err := s.client.HMGet(ctx, s.recordsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	records := make([]event.Record, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var record event.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ids[i], err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
