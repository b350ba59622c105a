package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwebster45206/verse-engine/pkg/effects"
)

const sinkBuffer = 1024

// Sink turns effect calls into events. Calls never block the caller: events
// are queued and published by Run, and dropped when the queue is full.
type Sink struct {
	worldID   string
	publisher Publisher
	logger    *slog.Logger
	queue     chan Event
	now       func() time.Time
}

var _ effects.Sink = (*Sink)(nil)

// NewSink creates a sink for one world
func NewSink(worldID string, publisher Publisher, logger *slog.Logger) *Sink {
	return &Sink{
		worldID:   worldID,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan Event, sinkBuffer),
		now:       time.Now,
	}
}

// Run publishes queued events until ctx is cancelled
func (s *Sink) Run(ctx context.Context) {
	s.logger.Info("Event sink started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Event sink stopped")
			return
		case event := <-s.queue:
			if err := s.publisher.Publish(ctx, event); err != nil {
				s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
			}
		}
	}
}

func (s *Sink) emit(t EventType, data map[string]any) {
	event := Event{Type: t, WorldID: s.worldID, At: s.now().UTC(), Data: data}
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("Event queue full, dropping event", "event_type", t)
	}
}

func (s *Sink) PlayAmbient(kind effects.AmbientKind, index int) {
	s.emit(EventTypeAmbientChanged, map[string]any{"kind": kind.String(), "index": index})
}

func (s *Sink) PlayEmotionCue(emotion string) {
	s.emit(EventTypeEmotionCue, map[string]any{"emotion": emotion})
}

func (s *Sink) PlayNarrationAudio(itemID string) {
	s.emit(EventTypeNarration, map[string]any{"item_id": itemID})
}

func (s *Sink) PlayOneShot(clipID string) {
	s.emit(EventTypeOneShot, map[string]any{"clip_id": clipID})
}

func (s *Sink) SetVisualEffectActive(effectID string, active bool) {
	s.emit(EventTypeEffectChanged, map[string]any{"effect_id": effectID, "active": active})
}

func (s *Sink) RevealRewardSlot(index int) {
	s.emit(EventTypeRewardRevealed, map[string]any{"index": index})
}

func (s *Sink) RenderIncrementalText(buffer string, alpha float64) {
	s.emit(EventTypeTextRendered, map[string]any{"buffer": buffer, "alpha": alpha})
}

func (s *Sink) SetTitleText(text string) {
	s.emit(EventTypeTitleChanged, map[string]any{"title": text})
}

func (s *Sink) SetTextOffset(offset float64) {
	s.emit(EventTypeOffsetChanged, map[string]any{"offset": offset})
}
