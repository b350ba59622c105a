package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/verse-engine/pkg/session"
)

type SessionResponse struct {
	Active bool `json:"active"`
	session.Snapshot
}

type ModeRequest struct {
	View string `json:"view"`
}

type ModeResponse struct {
	Switched bool         `json:"switched"`
	View     session.View `json:"view"`
}

func sessionResponse(snap session.Snapshot) SessionResponse {
	return SessionResponse{Active: snap.State != session.Idle, Snapshot: snap}
}

// SessionHandler serves the active presentation
// Routes:
// GET  /v1/session      - Snapshot of the presentation
// POST /v1/session/mode - Switch between the verse and its description
type SessionHandler struct {
	world WorldService
	log   *slog.Logger
}

func NewSessionHandler(world WorldService, log *slog.Logger) *SessionHandler {
	return &SessionHandler{world: world, log: log}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/session")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.log, http.StatusOK, sessionResponse(h.world.SessionSnapshot()))
	case len(parts) == 1 && parts[0] == "mode" && r.Method == http.MethodPost:
		h.handleMode(w, r)
	case len(parts) == 0 || (len(parts) == 1 && parts[0] == "mode"):
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	view, err := session.ParseView(req.View)
	if err != nil {
		writeError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	switched := h.world.RequestModeSwitch(view)
	writeJSON(w, h.log, http.StatusOK, ModeResponse{
		Switched: switched,
		View:     h.world.SessionSnapshot().View,
	})
}
