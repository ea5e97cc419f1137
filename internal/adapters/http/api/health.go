package api

import (
	"context"
	"net/http"

	"github.com/genieiq/genieiq/internal/domain/types"
	"github.com/genieiq/genieiq/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports storage health.
type HealthChecker interface {
	Health(ctx context.Context) types.Health
}

// HealthHandler serves liveness, storage health and metrics.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleLiveness handles GET /healthz. It never touches storage.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": types.StatusOK})
}

// HandleStorageHealth handles GET /api/health. Degraded memory mode is still
// served with 200; only a storage error reports 503.
func (h *HealthHandler) HandleStorageHealth(w http.ResponseWriter, r *http.Request) {
	health := h.checker.Health(r.Context())
	status := http.StatusOK
	if health.Status == types.StatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// HandleMetrics handles GET /metrics from the process registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
