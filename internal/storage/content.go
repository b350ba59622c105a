package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

// DefaultClosingDelay is the pause before the farm's closing verse
const DefaultClosingDelay = 5 * time.Second

// SiteFile is the on-disk form of data/sites/<id>.json
type SiteFile struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	CooldownSeconds float64           `json:"cooldown_seconds,omitempty"`
	Items           []*narrative.Item `json:"items"`
}

// FarmFile is the on-disk form of data/farm.json
type FarmFile struct {
	Title               string                   `json:"title"`
	Plots               []string                 `json:"plots"`
	Rewards             []progression.RewardSlot `json:"rewards"`
	Verses              []*narrative.Item        `json:"verses"`
	Closing             *narrative.Item          `json:"closing,omitempty"`
	ClosingDelaySeconds *float64                 `json:"closing_delay_seconds,omitempty"`
}

// ActionFile is one entry of data/actions.json
type ActionFile struct {
	ID              string              `json:"id"`
	Label           string              `json:"label"`
	When            narrative.Condition `json:"when"`
	DurationSeconds float64             `json:"duration_seconds"`
	Clip            string              `json:"clip,omitempty"`
}

// Content reads sites, the farm and actions from a data directory
type Content struct {
	dataDir string
	logger  *slog.Logger
}

// NewContent creates a content reader rooted at dataDir
func NewContent(dataDir string, logger *slog.Logger) *Content {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Content{dataDir: dataDir, logger: logger}
}

// DataDir returns the content root
func (c *Content) DataDir() string {
	return c.dataDir
}

func (c *Content) ListSites(ctx context.Context) ([]string, error) {
	sitesPath := filepath.Join(c.dataDir, "sites")

	entries, err := os.ReadDir(sitesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read sites directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *Content) GetSite(ctx context.Context, siteID string) (*world.Site, error) {
	path := filepath.Join(c.dataDir, "sites", siteID+".json")

	var f SiteFile
	if err := readJSON(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("site not found: %s", siteID)
		}
		return nil, err
	}
	// Filename overrides any ID in the JSON
	f.ID = siteID

	for _, item := range f.Items {
		if item != nil {
			item.Normalize()
		}
	}
	return &world.Site{
		ID:       f.ID,
		Label:    f.Label,
		Cooldown: seconds(f.CooldownSeconds),
		Items:    f.Items,
	}, nil
}

// GetFarm returns nil without error when the data directory has no farm
func (c *Content) GetFarm(ctx context.Context) (*world.Farm, error) {
	path := filepath.Join(c.dataDir, "farm.json")

	var f FarmFile
	if err := readJSON(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("No farm defined", "path", path)
			return nil, nil
		}
		return nil, err
	}

	for _, v := range f.Verses {
		if v != nil {
			v.Normalize()
		}
	}
	if f.Closing != nil {
		f.Closing.Normalize()
	}
	delay := DefaultClosingDelay
	if f.ClosingDelaySeconds != nil {
		delay = seconds(*f.ClosingDelaySeconds)
	}
	return &world.Farm{
		Title:        f.Title,
		Plots:        f.Plots,
		Rewards:      f.Rewards,
		Verses:       f.Verses,
		Closing:      f.Closing,
		ClosingDelay: delay,
	}, nil
}

func (c *Content) GetActions(ctx context.Context) ([]trigger.ActionConfig, error) {
	path := filepath.Join(c.dataDir, "actions.json")

	var files []ActionFile
	if err := readJSON(path, &files); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []trigger.ActionConfig{}, nil
		}
		return nil, err
	}

	actions := make([]trigger.ActionConfig, 0, len(files))
	for _, f := range files {
		actions = append(actions, trigger.ActionConfig{
			ID:       f.ID,
			Label:    f.Label,
			When:     f.When,
			Duration: seconds(f.DurationSeconds),
			Clip:     f.Clip,
		})
	}
	return actions, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse JSON from %s: %w", path, err)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
