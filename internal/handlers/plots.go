package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/verse-engine/pkg/plot"
)

type WorkRequest struct {
	Tool string `json:"tool"`
}

type CompleteResponse struct {
	PlotID    string `json:"plot_id"`
	Completed bool   `json:"completed"`
}

// PlotsHandler serves the farm plots
// Routes:
// GET  /v1/plots                - Plot states
// POST /v1/plots/{id}/work      - Stroke a plot with a tool
// POST /v1/plots/{id}/complete  - Record a plot completed elsewhere
type PlotsHandler struct {
	world WorldService
	log   *slog.Logger
}

func NewPlotsHandler(world WorldService, log *slog.Logger) *PlotsHandler {
	return &PlotsHandler{world: world, log: log}
}

func (h *PlotsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/plots")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.log, http.StatusOK, h.world.Progress().Plots)
	case len(parts) == 2 && parts[1] == "work" && r.Method == http.MethodPost:
		h.handleWork(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "complete" && r.Method == http.MethodPost:
		completed := h.world.NotifyPlotCompleted(parts[0])
		writeJSON(w, h.log, http.StatusOK, CompleteResponse{PlotID: parts[0], Completed: completed})
	case len(parts) == 0 || len(parts) == 2:
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}

func (h *PlotsHandler) handleWork(w http.ResponseWriter, r *http.Request, plotID string) {
	var req WorkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := h.world.WorkPlot(plotID, req.Tool)
	switch {
	case err == nil:
		writeJSON(w, h.log, http.StatusOK, st)
	case errors.Is(err, plot.ErrUnknownPlot):
		writeError(w, h.log, http.StatusNotFound, "Plot not found")
	case errors.Is(err, plot.ErrWrongTool):
		writeError(w, h.log, http.StatusBadRequest, err.Error())
	case errors.Is(err, plot.ErrAlreadyGrown):
		writeError(w, h.log, http.StatusConflict, err.Error())
	case errors.Is(err, plot.ErrCoolingDown):
		writeError(w, h.log, http.StatusTooManyRequests, err.Error())
	default:
		h.log.Error("Failed to work plot", "error", err, "plot_id", plotID)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to work plot")
	}
}
