package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-converter/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	SweepRunning bool   `json:"sweepRunning"`
	Items        int    `json:"items"`
	Error        string `json:"error,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports whether the library is reachable along with basic
// process information.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		SweepRunning: h.batcher.Running(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK
	if err := h.library.Ping(ctx); err != nil {
		response.Status = statusUnhealthy
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	} else if n, err := h.library.CountItems(ctx); err == nil {
		response.Items = n
	}

	writeJSONStatusCode(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the library answers.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.library.Ping(ctx); err != nil {
		writeJSONStatusCode(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSONStatusCode(w, http.StatusOK, map[string]string{"status": "ready"})
}
