package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jwebster45206/verse-engine/pkg/storage"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

// MemoryStorage keeps progress for the lifetime of the process only
type MemoryStorage struct {
	*Content
	mu       sync.RWMutex
	progress map[string]world.Progress
}

var _ storage.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a process-local store reading content from dataDir
func NewMemoryStorage(dataDir string, logger *slog.Logger) *MemoryStorage {
	return &MemoryStorage{
		Content:  NewContent(dataDir, logger),
		progress: make(map[string]world.Progress),
	}
}

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) SaveProgress(ctx context.Context, p *world.Progress) error {
	if p == nil {
		return errors.New("progress cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[p.WorldID] = *p
	return nil
}

func (m *MemoryStorage) LoadProgress(ctx context.Context, worldID string) (*world.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[worldID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStorage) DeleteProgress(ctx context.Context, worldID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, worldID)
	return nil
}
