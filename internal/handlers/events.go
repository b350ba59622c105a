package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/verse-engine/internal/events"
)

const keepaliveInterval = 30 * time.Second

// EventsHandler streams world events as Server-Sent Events
// GET /v1/events
// GET /v1/events?types=audio,text.title_changed - only matching events. An
// entry matches its exact type and every type under it ("audio" matches
// "audio.narration").
type EventsHandler struct {
	subscriber events.Subscriber
	worldID    string
	logger     *slog.Logger
}

func NewEventsHandler(subscriber events.Subscriber, worldID string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		subscriber: subscriber,
		worldID:    worldID,
		logger:     logger,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	wanted := typeFilter(r.URL.Query().Get("types"))

	ctx := r.Context()
	eventChan, cancel, err := h.subscriber.Subscribe(ctx, h.worldID)
	if err != nil {
		h.logger.Error("Failed to subscribe to world events", "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}
	defer cancel()

	h.logger.Info("SSE connection established",
		"world_id", h.worldID,
		"remote_addr", r.RemoteAddr,
		"types", r.URL.Query().Get("types"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	if err := writeSSE(w, "connected", map[string]any{"world_id": h.worldID}); err != nil {
		h.logger.Error("Failed to write SSE event", "error", err)
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", "world_id", h.worldID)
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if !wanted(event.Type) {
				continue
			}
			if err := writeSSE(w, string(event.Type), event); err != nil {
				h.logger.Error("Failed to write SSE event", "error", err, "type", event.Type)
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// typeFilter builds a matcher from a comma separated list. An empty list
// matches everything.
func typeFilter(raw string) func(events.EventType) bool {
	var prefixes []string
	for entry := range strings.SplitSeq(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			prefixes = append(prefixes, entry)
		}
	}
	return func(t events.EventType) bool {
		if len(prefixes) == 0 {
			return true
		}
		for _, p := range prefixes {
			if string(t) == p || strings.HasPrefix(string(t), p+".") {
				return true
			}
		}
		return false
	}
}

func writeSSE(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
