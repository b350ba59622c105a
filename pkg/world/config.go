package world

import (
	"time"

	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/narrative"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/progression"
	"github.com/jwebster45206/verse-engine/pkg/session"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
)

// Site is one trigger location and its verses
type Site struct {
	ID       string            `json:"id"`
	Label    string            `json:"label"`
	Cooldown time.Duration     `json:"-"`
	Items    []*narrative.Item `json:"items"`
}

// Farm is the plot field, its reward slots and its ordered verses
type Farm struct {
	Title        string                   `json:"title"`
	Plots        []string                 `json:"plots"`
	Rewards      []progression.RewardSlot `json:"rewards"`
	Verses       []*narrative.Item        `json:"verses"`
	Closing      *narrative.Item          `json:"closing,omitempty"`
	ClosingDelay time.Duration            `json:"-"`
}

// Config assembles a world
type Config struct {
	Clock   environment.Options
	Session session.Options
	Plot    plot.Options
	// Seed makes verse selection and weather jitter reproducible; zero seeds
	// from the runtime
	Seed    uint64
	Sites   []Site
	Farm    *Farm
	Actions []trigger.ActionConfig
}

// DefaultConfig returns the installation's tuning with no content
func DefaultConfig() Config {
	return Config{
		Clock:   environment.DefaultOptions(),
		Session: session.DefaultOptions(),
		Plot:    plot.DefaultOptions(),
	}
}
