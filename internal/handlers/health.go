package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency whose health can be probed
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Service    string         `json:"service"`
	WorldID    string         `json:"world_id,omitempty"`
	Components map[string]any `json:"components"`
}

type HealthHandler struct {
	storage Pinger
	world   WorldService
	logger  *slog.Logger
}

func NewHealthHandler(storage Pinger, world WorldService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		world:   world,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]any)
	overallStatus := "healthy"

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Storage health check failed", "error", err)
		components["storage"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["storage"] = "healthy"
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "verse-engine",
		Components: components,
	}
	if h.world != nil {
		response.WorldID = h.world.ID()
		components["session_active"] = h.world.QueryIsSessionActive()
		components["environment"] = h.world.QueryEnvironment().String()
		components["role"] = "leader"
		if !h.world.Leading() {
			components["role"] = "standby"
		}
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Error encoding health response",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		return
	}
}
