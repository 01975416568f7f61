package kvstore

import (
	"context"
	"fmt"

	"stratum/internal/config"
)

// Open builds the store selected by cfg.Driver. The returned closer is never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, func(), error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		return NewMemory(), func() {}, nil
	case config.StorageSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoragePostgres:
		pool, err := NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
