package storage

import (
	"context"
	"errors"
	"fmt"

	"hookfeed/pkg/event"
)

// DefaultListLimit is the number of records returned to the display.
const DefaultListLimit = 100

var (
	// ErrNotInitialized is returned by stores used before Open or after Close.
	ErrNotInitialized = errors.New("store is not initialized")
	// ErrInvalidRecord is returned when a record cannot be persisted as is.
	ErrInvalidRecord = errors.New("invalid event record")
)

// EventStore persists canonical event records. Records are only ever
// inserted and read back; implementations must be safe for concurrent use.
type EventStore interface {
	// Insert appends a record.
	Insert(ctx context.Context, record event.Record) error
	// ListRecent returns at most limit records, newest created_at first.
	ListRecent(ctx context.Context, limit int) ([]event.Record, error)
	Close() error
}

// Validate checks the invariants every stored record must hold.
func Validate(record event.Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if !record.Action.Valid() {
		return fmt.Errorf("%w: unsupported action %q", ErrInvalidRecord, record.Action)
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidRecord)
	}
	return nil
}

// Limit clamps a requested list size to a usable value.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
