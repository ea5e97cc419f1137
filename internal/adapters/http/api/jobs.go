package api

import (
	"net/http"

	service "github.com/genieiq/genieiq/internal/app"
)

// JobsHandler serves organisation-wide scan jobs.
type JobsHandler struct {
	deps Dependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps Dependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

type scanAllRequest struct {
	Concurrency int  `json:"concurrency"`
	DelayMS     *int `json:"delayMs"`
	Limit       int  `json:"limit"`
}

// HandleScanAll handles POST /api/scan-all. The job runs in the background
// and its initial state is returned with 202.
func (h *JobsHandler) HandleScanAll(w http.ResponseWriter, r *http.Request) {
	var req scanAllRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	job, err := h.deps.ScanAll(r.Context(), service.ScanAllOptions{
		Concurrency: req.Concurrency,
		DelayMS:     req.DelayMS,
		Limit:       req.Limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// HandleGet handles GET /api/jobs/{id}.
func (h *JobsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleCancel handles POST /api/jobs/{id}/cancel.
func (h *JobsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.CancelJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
