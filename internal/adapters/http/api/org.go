package api

import (
	"net/http"

	"github.com/genieiq/genieiq/internal/domain/model"
)

// OrgHandler serves organisation-level aggregates.
type OrgHandler struct {
	deps Dependencies
}

// NewOrgHandler creates a new org handler.
func NewOrgHandler(deps Dependencies) *OrgHandler {
	return &OrgHandler{deps: deps}
}

// HandleNewSpaces handles GET /api/new-spaces.
func (h *OrgHandler) HandleNewSpaces(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rows, err := h.deps.ListNewSpaces(r.Context(), days, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []model.SeenRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleOrgStats handles GET /api/org-stats.
func (h *OrgHandler) HandleOrgStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.OrgStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
