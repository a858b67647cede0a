package internal

import (
	"context"
	"fmt"
	"strings"

	"hookfeed/pkg/storage"
	"hookfeed/pkg/storage/mongostore"
	"hookfeed/pkg/storage/redisstore"
	"hookfeed/pkg/storage/sqlstore"
)

// OpenStore builds the event store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg StorageConfig) (storage.EventStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "redis":
		addr := cfg.Redis.Addr
		if addr == "" {
			addr = cfg.DSN
		}
		store, err := redisstore.Open(ctx, redisstore.Config{
			Addr:      addr,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			Database:  cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "mongodb", "mongo":
		store, err := mongostore.Open(ctx, mongostore.Config{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if sqlstore.NormalizeDriver(driver) == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	store, err := sqlstore.Open(sqlstore.Config{
		Driver:      driver,
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		AutoMigrate: cfg.Migrate(),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
