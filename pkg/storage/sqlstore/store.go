package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects the SQL database holding the events table.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.EventStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	Seq        uint64    `gorm:"column:seq;primaryKey;autoIncrement"`
	ID         string    `gorm:"column:id;size:64;not null;uniqueIndex"`
	Action     string    `gorm:"column:action;size:32;not null"`
	Author     string    `gorm:"column:author;size:255;not null"`
	Repo       string    `gorm:"column:repo;size:255"`
	FromBranch *string   `gorm:"column:from_branch;size:255"`
	ToBranch   string    `gorm:"column:to_branch;size:255"`
	Timestamp  time.Time `gorm:"column:timestamp"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index"`
}

// Open creates a GORM-backed events store.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := NormalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "events"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert appends a record to the events table.
func (s *Store) Insert(ctx context.Context, record event.Record) error {
	if s == nil || s.db == nil {
		return storage.ErrNotInitialized
	}
	if err := storage.Validate(record); err != nil {
		return err
	}
	data := toRow(record)
	if err := s.tableDB().WithContext(ctx).Create(&data).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRecent returns the newest records by created_at, insertion order breaking ties.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]event.Record, error) {
	if s == nil || s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	var data []row
	err := s.tableDB().
		WithContext(ctx).
		Order("created_at desc").
		Order("seq desc").
		Limit(storage.Limit(limit)).
		Find(&data).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	records := make([]event.Record, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

func (s *Store) migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record event.Record) row {
	return row{
		ID:         record.ID,
		Action:     string(record.Action),
		Author:     record.Author,
		Repo:       record.Repo,
		FromBranch: record.FromBranch,
		ToBranch:   record.ToBranch,
		Timestamp:  record.Timestamp.UTC(),
		CreatedAt:  record.CreatedAt.UTC(),
	}
}

func fromRow(data row) event.Record {
	return event.Record{
		ID:         data.ID,
		Action:     event.Action(data.Action),
		Author:     data.Author,
		Repo:       data.Repo,
		FromBranch: data.FromBranch,
		ToBranch:   data.ToBranch,
		Timestamp:  data.Timestamp.UTC(),
		CreatedAt:  data.CreatedAt.UTC(),
	}
}

// NormalizeDriver maps driver aliases to the names understood by Open.
// It returns "" for drivers this package cannot serve.
func NormalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
