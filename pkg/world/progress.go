package world

import (
	"context"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
)

// Progress is the saved state of a world's farm. Revision grows with every
// save so a replica can tell whether stored progress is newer than its own.
type Progress struct {
	WorldID   string                   `json:"world_id"`
	Revision  int64                    `json:"revision"`
	Tracker   progression.Snapshot     `json:"tracker"`
	Plots     []plot.State             `json:"plots"`
	Sequence  trigger.SequenceSnapshot `json:"sequence"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// ProgressStore saves and loads farm progress. LoadProgress returns nil
// without error when nothing has been saved.
type ProgressStore interface {
	LoadProgress(ctx context.Context, worldID string) (*Progress, error)
	SaveProgress(ctx context.Context, p *Progress) error
	Close() error
}

// ProgressView is the read model served to clients
type ProgressView struct {
	Completed       int                      `json:"completed"`
	Tracked         int                      `json:"tracked"`
	MilestonesFired int                      `json:"milestones_fired"`
	Rewards         []progression.RewardSlot `json:"rewards"`
	Revealed        []bool                   `json:"revealed"`
	Plots           []plot.State             `json:"plots"`
	Step            int                      `json:"step"`
	Steps           int                      `json:"steps"`
	Done            bool                     `json:"done"`
}
