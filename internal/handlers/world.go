package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

type WorldResponse struct {
	ID          string             `json:"id"`
	Environment environment.State  `json:"environment"`
	Session     SessionResponse    `json:"session"`
	Progress    world.ProgressView `json:"progress"`
}

// WorldHandler serves read-only world state
// Routes:
// GET /v1/world       - Everything at once
// GET /v1/environment - Season and weather
// GET /v1/progress    - Farm progression
type WorldHandler struct {
	world WorldService
	log   *slog.Logger
}

func NewWorldHandler(world WorldService, log *slog.Logger) *WorldHandler {
	return &WorldHandler{world: world, log: log}
}

func (h *WorldHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}
	switch r.URL.Path {
	case "/v1/environment":
		writeJSON(w, h.log, http.StatusOK, h.world.QueryEnvironment())
	case "/v1/progress":
		writeJSON(w, h.log, http.StatusOK, h.world.Progress())
	case "/v1/world":
		writeJSON(w, h.log, http.StatusOK, WorldResponse{
			ID:          h.world.ID(),
			Environment: h.world.QueryEnvironment(),
			Session:     sessionResponse(h.world.SessionSnapshot()),
			Progress:    h.world.Progress(),
		})
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}
