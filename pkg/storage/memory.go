package storage

import (
	"context"
	"sort"
	"sync"

	"hookfeed/pkg/event"
)

// MemoryStore keeps records in process. It is used by tests and when no
// storage driver is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []event.Record
	closed  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, record event.Record) error {
	if err := Validate(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotInitialized
	}
	record.FromBranch = cloneString(record.FromBranch)
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]event.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrNotInitialized
	}

	out := make([]event.Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		record.FromBranch = cloneString(record.FromBranch)
		out = append(out, record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = Limit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
