package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/verse-engine/internal/config"
	"github.com/jwebster45206/verse-engine/pkg/storage"
)

// Open returns the store selected by PROGRESS_STORE. The Redis store waits
// for its server before returning.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.ProgressStore {
	case config.StoreRedis:
		r := NewRedisStorage(cfg.RedisURL, cfg.DataDir, logger)
		if err := r.WaitForConnection(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return r, nil
	case config.StoreSQLite:
		return OpenSQLite(cfg.SQLitePath, cfg.DataDir, logger)
	case config.StoreMemory, "":
		return NewMemoryStorage(cfg.DataDir, logger), nil
	}
	return nil, fmt.Errorf("unknown progress store %q", cfg.ProgressStore)
}
