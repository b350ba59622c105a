package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/world"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the Storage interface using Redis for progress
// and the filesystem for content
type RedisStorage struct {
	*Content
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	return &RedisStorage{
		Content: NewContent(dataDir, logger),
		client:  rdb,
		logger:  logger,
	}
}

// Client exposes the underlying client so that the world lock and the event
// stream share one connection pool
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Progress operations (Redis-backed)

func progressKey(worldID string) string {
	return "progress:" + worldID
}

func (r *RedisStorage) SaveProgress(ctx context.Context, p *world.Progress) error {
	if p == nil {
		return errors.New("progress cannot be nil")
	}
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		r.logger.Error("Failed to marshal progress", "world_id", p.WorldID, "error", err)
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	// Progress outlives any single run, so it carries no expiry
	cmd := r.client.Set(ctx, progressKey(p.WorldID), string(data), 0)
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to save progress", "world_id", p.WorldID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadProgress(ctx context.Context, worldID string) (*world.Progress, error) {
	cmd := r.client.Get(ctx, progressKey(worldID))
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("No saved progress", "world_id", worldID)
			return nil, nil
		}
		r.logger.Error("Failed to load progress", "world_id", worldID, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p world.Progress
	if err := json.Unmarshal([]byte(cmd.Val()), &p); err != nil {
		r.logger.Error("Failed to unmarshal progress", "world_id", worldID, "error", err)
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *RedisStorage) DeleteProgress(ctx context.Context, worldID string) error {
	cmd := r.client.Del(ctx, progressKey(worldID))
	if err := cmd.Err(); err != nil {
		r.logger.Error("Failed to delete progress", "world_id", worldID, "error", err)
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
