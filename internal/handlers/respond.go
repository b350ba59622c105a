package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/verse-engine/pkg/environment"
	"github.com/jwebster45206/verse-engine/pkg/plot"
	"github.com/jwebster45206/verse-engine/pkg/session"
	"github.com/jwebster45206/verse-engine/pkg/trigger"
	"github.com/jwebster45206/verse-engine/pkg/world"
)

const maxBodyBytes = 1 << 16

type ErrorResponse struct {
	Error string `json:"error"`
}

// WorldService is the running world as the HTTP layer sees it
type WorldService interface {
	ID() string
	RequestPresentation(siteID string) (bool, error)
	RequestModeSwitch(v session.View) bool
	NotifyPlotCompleted(plotID string) bool
	WorkPlot(plotID, tool string) (plot.State, error)
	RequestAction(actionID string) (bool, error)
	SetSiteEnabled(siteID string, enabled bool) error
	QueryIsSessionActive() bool
	QueryEnvironment() environment.State
	SessionSnapshot() session.Snapshot
	Sites() []trigger.GateStatus
	Actions() []trigger.ActionStatus
	Progress() world.ProgressView
	Leading() bool
}

var _ WorldService = (*world.World)(nil)

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, msg string) {
	writeJSON(w, log, status, ErrorResponse{Error: msg})
}

// decodeBody reads a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// pathParts splits what follows prefix into its segments
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
