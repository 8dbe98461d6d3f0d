package handler

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/kislikjeka/moneyledger/internal/shared/errors"
)

// DatabasePinger defines the interface for checking database connectivity
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to DatabasePinger
type PingerFunc func(ctx context.Context) error

// Ping calls f
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests
type HealthHandler struct {
	version string
	checks  map[string]DatabasePinger
}

// NewHealthHandler creates a new health handler. Each named dependency is
// pinged by the readiness and detailed checks; nil entries are skipped.
func NewHealthHandler(version string, checks map[string]DatabasePinger) *HealthHandler {
	deps := make(map[string]DatabasePinger, len(checks))
	for name, p := range checks {
		if p != nil {
			deps[name] = p
		}
	}
	return &HealthHandler{version: version, checks: deps}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime,omitempty"`
}

var startTime = time.Now()

// GetHealth handles GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Checks:  map[string]string{},
	}, http.StatusOK)
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "healthy"
	}
	return results, healthy
}

// GetHealthDetailed handles GET /health/detailed
func (h *HealthHandler) GetHealthDetailed(w http.ResponseWriter, r *http.Request) {
	checks, healthy := h.runChecks(r.Context())
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
		Checks:  checks,
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, resp, status)
}

// GetReadiness handles GET /health/ready
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.runChecks(r.Context()); !healthy {
		respondError(w, http.StatusServiceUnavailable, apperrors.ErrCodeNotReady, "dependencies not ready")
		return
	}
	respondJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// GetLiveness handles GET /health/live
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "alive"}, http.StatusOK)
}
