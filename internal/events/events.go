package events

import (
	"context"
	"fmt"
	"time"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeAmbientChanged EventType = "ambient.changed"
	EventTypeEmotionCue     EventType = "audio.emotion_cue"
	EventTypeNarration      EventType = "audio.narration"
	EventTypeOneShot        EventType = "audio.one_shot"
	EventTypeEffectChanged  EventType = "visual.effect_changed"
	EventTypeRewardRevealed EventType = "visual.reward_revealed"
	EventTypeTextRendered   EventType = "text.rendered"
	EventTypeTitleChanged   EventType = "text.title_changed"
	EventTypeOffsetChanged  EventType = "text.offset_changed"
)

// Event represents a generic event structure
type Event struct {
	Type    EventType      `json:"type"`
	WorldID string         `json:"world_id,omitempty"`
	At      time.Time      `json:"at"`
	Data    map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to subscribers of a world
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber streams the events of one world until cancel is called or ctx
// ends
type Subscriber interface {
	Subscribe(ctx context.Context, worldID string) (events <-chan Event, cancel func(), err error)
}

// Channel is the pub/sub channel carrying a world's events
func Channel(worldID string) string {
	return fmt.Sprintf("world-events:%s", worldID)
}
