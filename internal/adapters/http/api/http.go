// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/genieiq/genieiq/internal/adapters/repository"
	"github.com/genieiq/genieiq/internal/adapters/upstream"
	service "github.com/genieiq/genieiq/internal/app"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
)

// UserHeader carries the caller's email, set by the platform proxy.
const UserHeader = "X-Forwarded-Email"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScanOne(ctx context.Context, spaceID string, opts service.ScanOptions) (*model.ScanResult, error)
	ScanAll(ctx context.Context, opts service.ScanAllOptions) (model.JobState, error)
	GetJob(ctx context.Context, id string) (model.JobState, error)
	CancelJob(ctx context.Context, id string) (model.JobState, error)

	ListLatest(ctx context.Context, f types.ListFilter) (types.Page, error)
	GetLatest(ctx context.Context, spaceID, user string) (types.LatestRow, error)
	GetHistory(ctx context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error)
	SetStar(ctx context.Context, spaceID, user string, starred bool) error
	ListNewSpaces(ctx context.Context, days, limit int) ([]model.SeenRecord, error)
	OrgStats(ctx context.Context) (types.OrgStats, error)
	Health(ctx context.Context) types.Health
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	spacesHandler    *SpacesHandler
	jobsHandler      *JobsHandler
	orgHandler       *OrgHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		statsHandler:     NewStatsHandler(statsProvider),
		spacesHandler:    NewSpacesHandler(deps),
		jobsHandler:      NewJobsHandler(deps),
		orgHandler:       NewOrgHandler(deps),
		dashboardHandler: newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleLiveness, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/health", MetricsMiddleware(s.healthHandler.HandleStorageHealth, "health"))
	mux.HandleFunc("GET /api/spaces", MetricsMiddleware(s.spacesHandler.HandleList, "spaces"))
	mux.HandleFunc("GET /api/spaces/{id}", MetricsMiddleware(s.spacesHandler.HandleGet, "space"))
	mux.HandleFunc("POST /api/spaces/{id}/scan", MetricsMiddleware(s.spacesHandler.HandleScan, "scan"))
	mux.HandleFunc("GET /api/spaces/{id}/history", MetricsMiddleware(s.spacesHandler.HandleHistory, "history"))
	mux.HandleFunc("PUT /api/spaces/{id}/star", MetricsMiddleware(s.spacesHandler.HandleStar, "star"))

	mux.HandleFunc("POST /api/scan-all", MetricsMiddleware(s.jobsHandler.HandleScanAll, "scan_all"))
	mux.HandleFunc("GET /api/jobs/{id}", MetricsMiddleware(s.jobsHandler.HandleGet, "job"))
	mux.HandleFunc("POST /api/jobs/{id}/cancel", MetricsMiddleware(s.jobsHandler.HandleCancel, "job_cancel"))

	mux.HandleFunc("GET /api/new-spaces", MetricsMiddleware(s.orgHandler.HandleNewSpaces, "new_spaces"))
	mux.HandleFunc("GET /api/org-stats", MetricsMiddleware(s.orgHandler.HandleOrgStats, "org_stats"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and storage errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var readErr *service.UpstreamReadError
	switch {
	case errors.Is(err, service.ErrSpaceIDRequired), errors.Is(err, repository.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrJobFinished):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.As(err, &readErr):
		writeError(w, http.StatusInternalServerError, "upstream_"+string(upstream.Classify(err)), err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func userFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, name)
	}
	return n, nil
}

// boolParam parses an optional boolean query parameter.
func boolParam(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, name)
	}
	return b, nil
}
