package storage

import (
	"context"
	"fmt"

	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

// Storage defines a unified interface for all storage operations.
// Progress persistence is backed by Redis, SQLite or memory; site and farm
// content is always read from the filesystem.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Progress operations
	LoadProgress(ctx context.Context, worldID string) (*world.Progress, error)
	SaveProgress(ctx context.Context, p *world.Progress) error
	DeleteProgress(ctx context.Context, worldID string) error

	// Content operations (filesystem-backed)
	ListSites(ctx context.Context) ([]string, error)
	GetSite(ctx context.Context, siteID string) (*world.Site, error)
	GetFarm(ctx context.Context) (*world.Farm, error)
	GetActions(ctx context.Context) ([]trigger.ActionConfig, error)
}

var _ world.ProgressStore = (Storage)(nil)

// LoadWorldConfig fills base with every site, the farm and the actions
func LoadWorldConfig(ctx context.Context, s Storage, base world.Config) (world.Config, error) {
	ids, err := s.ListSites(ctx)
	if err != nil {
		return base, fmt.Errorf("failed to list sites: %w", err)
	}
	base.Sites = base.Sites[:0:0]
	for _, id := range ids {
		site, err := s.GetSite(ctx, id)
		if err != nil {
			return base, fmt.Errorf("failed to load site %s: %w", id, err)
		}
		base.Sites = append(base.Sites, *site)
	}

	farm, err := s.GetFarm(ctx)
	if err != nil {
		return base, fmt.Errorf("failed to load farm: %w", err)
	}
	base.Farm = farm

	actions, err := s.GetActions(ctx)
	if err != nil {
		return base, fmt.Errorf("failed to load actions: %w", err)
	}
	base.Actions = actions
	return base, nil
}
