package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models/api"
)

// Probes reports component state for the health endpoint. Nil probes are skipped.
type Probes struct {
	SessionOpen   func() bool
	BackendFailed func() bool
}

// Handler handles health check requests
type Handler struct {
	probes Probes
	logger *logger.Logger
}

// NewHandler creates a new health handler
func NewHandler(probes Probes, log *logger.Logger) *Handler {
	return &Handler{
		probes: probes,
		logger: log,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	if h.probes.SessionOpen != nil {
		response.SessionOpen = h.probes.SessionOpen()
	}
	if h.probes.BackendFailed != nil {
		response.BackendOpen = h.probes.BackendFailed()
		if response.BackendOpen {
			response.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "health_check_failed").
			Str("endpoint", "/health").
			Msg("Failed to encode health response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Int("status_code", 200).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
