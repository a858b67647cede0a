package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"hookfeed/pkg/event"
)

// riverQueuePublisher inserts records as jobs into a RiverQueue jobs table.
type riverQueuePublisher struct {
	db  *sql.DB
	cfg RiverQueueConfig
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueuePublisher{db: db, cfg: cfg}, nil
}

// Publish inserts a new job whose args are the JSON record.
func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, record event.Record) error {
	args, err := json.Marshal(record)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(map[string]interface{}{
		"provider": "github",
		"action":   string(record.Action),
		"topic":    topic,
	})
	if err != nil {
		return err
	}

	table := strings.TrimSpace(p.cfg.Table)
	if table == "" {
		table = "river_job"
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		table,
	)

	priority := p.cfg.Priority
	if priority <= 0 {
		priority = 1
	}
	_, err = p.db.ExecContext(
		ctx,
		query,
		string(args),
		p.cfg.Kind,
		p.cfg.MaxAttempts,
		string(metadata),
		priority,
		p.cfg.Queue,
		pq.Array(p.cfg.Tags),
	)
	return err
}

func (p *riverQueuePublisher) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, record event.Record, drivers []string) error {
	return p.Publish(ctx, topic, record)
}
