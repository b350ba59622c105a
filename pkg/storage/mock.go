package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	progress  map[string]*world.Progress
	sites     map[string]*world.Site
	farm      *world.Farm
	actions   []trigger.ActionConfig
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		progress: make(map[string]*world.Progress),
		sites:    make(map[string]*world.Site),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail every save
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// AddSite adds a site to the mock
func (m *MockStorage) AddSite(site *world.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.ID] = site
}

// SetFarm sets the farm returned by GetFarm
func (m *MockStorage) SetFarm(farm *world.Farm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.farm = farm
}

// SetActions sets the actions returned by GetActions
func (m *MockStorage) SetActions(actions []trigger.ActionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = actions
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) LoadProgress(ctx context.Context, worldID string) (*world.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[worldID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MockStorage) SaveProgress(ctx context.Context, p *world.Progress) error {
	if p == nil {
		return errors.New("progress cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	cp := *p
	m.progress[p.WorldID] = &cp
	return nil
}

func (m *MockStorage) DeleteProgress(ctx context.Context, worldID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, worldID)
	return nil
}

func (m *MockStorage) ListSites(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sites))
	for id := range m.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStorage) GetSite(ctx context.Context, siteID string) (*world.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.sites[siteID]
	if !ok {
		return nil, fmt.Errorf("site not found: %s", siteID)
	}
	return site, nil
}

func (m *MockStorage) GetFarm(ctx context.Context) (*world.Farm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.farm, nil
}

func (m *MockStorage) GetActions(ctx context.Context) ([]trigger.ActionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.actions, nil
}
