package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/verse-engine/pkg/world"
)

type ActionResponse struct {
	ActionID string `json:"action_id"`
	Started  bool   `json:"started"`
}

// ActionsHandler serves environment-gated actions
// Routes:
// GET  /v1/actions      - List actions
// POST /v1/actions/{id} - Run an action
type ActionsHandler struct {
	world WorldService
	log   *slog.Logger
}

func NewActionsHandler(world WorldService, log *slog.Logger) *ActionsHandler {
	return &ActionsHandler{world: world, log: log}
}

func (h *ActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/actions")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.log, http.StatusOK, h.world.Actions())
	case len(parts) == 1 && r.Method == http.MethodPost:
		started, err := h.world.RequestAction(parts[0])
		if errors.Is(err, world.ErrUnknownAction) {
			writeError(w, h.log, http.StatusNotFound, "Action not found")
			return
		}
		if err != nil {
			h.log.Error("Failed to request action", "error", err, "action_id", parts[0])
			writeError(w, h.log, http.StatusInternalServerError, "Failed to request action")
			return
		}
		writeJSON(w, h.log, http.StatusOK, ActionResponse{ActionID: parts[0], Started: started})
	case len(parts) <= 1:
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}
