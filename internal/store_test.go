package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"
)

func storedRecord(id string, at time.Time) event.Record {
	return event.Record{
		ID:        id,
		Action:    event.ActionPush,
		Author:    "alice",
		Repo:      "repo1",
		ToBranch:  "main",
		Timestamp: at,
		CreatedAt: at,
	}
}

func exerciseStore(t *testing.T, store storage.EventStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, time.March, 9, 17, 5, 0, 0, time.UTC)
	if err := store.Insert(ctx, storedRecord("evt_a", base)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Insert(ctx, storedRecord("evt_b", base.Add(time.Minute))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	records, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(records) != 2 || records[0].ID != "evt_b" || records[1].ID != "evt_a" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := OpenStore(context.Background(), StorageConfig{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*storage.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
	exerciseStore(t, store)
}

func TestOpenStoreSQLite(t *testing.T) {
	store, err := OpenStore(context.Background(), StorageConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "events.db"),
		Table:  "events",
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestOpenStoreRedis(t *testing.T) {
	server := miniredis.RunT(t)
	store, err := OpenStore(context.Background(), StorageConfig{
		Driver: "redis",
		Redis:  RedisConfig{Addr: server.Addr(), KeyPrefix: "test"},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestOpenStoreUnsupported(t *testing.T) {
	store, err := OpenStore(context.Background(), StorageConfig{Driver: "cassandra"})
	if err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if store != nil {
		t.Fatalf("expected nil store, got %T", store)
	}
}
