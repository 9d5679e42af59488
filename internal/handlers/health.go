package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthChecker creates a new health checker. Nil checks are skipped so
// optional dependencies can be passed unconditionally.
func NewHealthChecker(checks map[string]CheckFunc) *HealthChecker {
	active := make(map[string]CheckFunc, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthChecker{checks: active, timeout: 5 * time.Second}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. ?mode=extended probes every dependency.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
		} else {
			results[name] = "healthy"
		}
	}
	return results
}
