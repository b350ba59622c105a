package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/world"
	_ "modernc.org/sqlite"
)

const progressSchema = `
CREATE TABLE IF NOT EXISTS world_progress (
	world_id   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage implements the Storage interface with progress in a local
// SQLite file, for single-machine installs without Redis
type SQLiteStorage struct {
	*Content
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the progress database at path
func OpenSQLite(path, dataDir string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(progressSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create progress table: %w", err)
	}

	logger.Info("SQLite progress store opened", "path", path)
	return &SQLiteStorage{
		Content: NewContent(dataDir, logger),
		db:      db,
		logger:  logger,
	}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) SaveProgress(ctx context.Context, p *world.Progress) error {
	if p == nil {
		return errors.New("progress cannot be nil")
	}
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO world_progress (world_id, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(world_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
`,
		p.WorldID,
		string(data),
		p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		s.logger.Error("Failed to save progress", "world_id", p.WorldID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadProgress(ctx context.Context, worldID string) (*world.Progress, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM world_progress WHERE world_id = ?`, worldID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p world.Progress
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStorage) DeleteProgress(ctx context.Context, worldID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM world_progress WHERE world_id = ?`, worldID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
