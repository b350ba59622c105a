package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/verse-engine/pkg/world"
)

type PresentResponse struct {
	SiteID  string `json:"site_id"`
	Started bool   `json:"started"`
}

type SiteEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SitesHandler serves the trigger sites
// Routes:
// GET  /v1/sites               - List sites
// POST /v1/sites/{id}/present  - Ask a site to present a verse
// PUT  /v1/sites/{id}/enabled  - Hold a site closed or release it
type SitesHandler struct {
	world WorldService
	log   *slog.Logger
}

func NewSitesHandler(world WorldService, log *slog.Logger) *SitesHandler {
	return &SitesHandler{world: world, log: log}
}

func (h *SitesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/sites")
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.log, http.StatusOK, h.world.Sites())
	case len(parts) == 2 && parts[1] == "present" && r.Method == http.MethodPost:
		h.handlePresent(w, parts[0])
	case len(parts) == 2 && parts[1] == "enabled" && r.Method == http.MethodPut:
		h.handleEnabled(w, r, parts[0])
	case len(parts) == 0 || len(parts) == 2:
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.log, http.StatusNotFound, "Not found")
	}
}

func (h *SitesHandler) handlePresent(w http.ResponseWriter, siteID string) {
	started, err := h.world.RequestPresentation(siteID)
	if err != nil {
		if errors.Is(err, world.ErrUnknownSite) {
			writeError(w, h.log, http.StatusNotFound, "Site not found")
			return
		}
		h.log.Error("Failed to request presentation", "error", err, "site_id", siteID)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to request presentation")
		return
	}
	h.log.Debug("Presentation requested", "site_id", siteID, "started", started)
	writeJSON(w, h.log, http.StatusOK, PresentResponse{SiteID: siteID, Started: started})
}

func (h *SitesHandler) handleEnabled(w http.ResponseWriter, r *http.Request, siteID string) {
	var req SiteEnabledRequest
	if err := decodeBody(r, &req); err != nil || req.Enabled == nil {
		writeError(w, h.log, http.StatusBadRequest, "Body must be {\"enabled\": true|false}")
		return
	}
	if err := h.world.SetSiteEnabled(siteID, *req.Enabled); err != nil {
		if errors.Is(err, world.ErrUnknownSite) {
			writeError(w, h.log, http.StatusNotFound, "Site not found")
			return
		}
		h.log.Error("Failed to set site enabled", "error", err, "site_id", siteID)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to update site")
		return
	}
	for _, st := range h.world.Sites() {
		if st.ID == siteID {
			writeJSON(w, h.log, http.StatusOK, st)
			return
		}
	}
	writeError(w, h.log, http.StatusNotFound, "Site not found")
}
