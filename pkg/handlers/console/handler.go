package console

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labverse/sentinel-core/pkg/console"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/models/api"
)

// Handler exposes the live console: session lifecycle, status and method controls
type Handler struct {
	session *console.Session
	logger  *logger.Logger
}

// NewHandler creates a new console handler
func NewHandler(session *console.Session, log *logger.Logger) *Handler {
	return &Handler{
		session: session,
		logger:  log,
	}
}

// OpenSession handles POST /api/session
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	h.session.Open(r.Context())
	h.writeJSON(w, http.StatusOK, api.Response{Success: true, Message: "session opened"})
}

// CloseSession handles DELETE /api/session
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.session.Close()
	h.writeJSON(w, http.StatusOK, api.Response{Success: true, Message: "session closed"})
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	board := h.session.Board()
	h.writeJSON(w, http.StatusOK, api.StatusResponse{
		SessionOpen: h.session.IsOpen(),
		Methods:     h.methods(),
		Logs:        board.LogLines(),
		Utilization: board.Utilization(),
	})
}

// ListMethods handles GET /api/methods
func (h *Handler) ListMethods(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.methods())
}

// StartMethod handles POST /api/methods/{id}/start
func (h *Handler) StartMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := h.methodID(w, r)
	if !ok {
		return
	}

	h.session.Manager().Start(id)

	h.logger.Info().
		Str("method", id.String()).
		Str("remote_addr", r.RemoteAddr).
		Str("action", "method_start_requested").
		Msg("Download start requested")
	h.writeJSON(w, http.StatusAccepted, h.method(id))
}

// StopMethod handles POST /api/methods/{id}/stop
func (h *Handler) StopMethod(w http.ResponseWriter, r *http.Request) {
	id, ok := h.methodID(w, r)
	if !ok {
		return
	}

	h.session.Manager().Stop(id)

	h.logger.Info().
		Str("method", id.String()).
		Str("remote_addr", r.RemoteAddr).
		Str("action", "method_stop_requested").
		Msg("Download stop requested")
	h.writeJSON(w, http.StatusOK, h.method(id))
}

// StopAll handles POST /api/methods/stop-all
func (h *Handler) StopAll(w http.ResponseWriter, r *http.Request) {
	h.session.Manager().StopAll()
	h.writeJSON(w, http.StatusOK, h.methods())
}

func (h *Handler) methodID(w http.ResponseWriter, r *http.Request) (models.MethodID, bool) {
	id, err := models.ParseMethodID(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) methods() []api.MethodResponse {
	jobs := h.session.Board().Jobs()
	out := make([]api.MethodResponse, 0, len(jobs))
	for _, id := range models.AllMethods() {
		out = append(out, toMethodResponse(id, jobs[id]))
	}
	return out
}

func (h *Handler) method(id models.MethodID) api.MethodResponse {
	return toMethodResponse(id, h.session.Board().Job(id))
}

func toMethodResponse(id models.MethodID, js models.JobState) api.MethodResponse {
	info := id.Info()
	return api.MethodResponse{
		ID:          id,
		Label:       info.Label,
		Description: info.Description,
		Running:     js.Running,
		Progress:    js.Progress,
		LastResult:  js.LastResult,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Str("action", "encode_response_failed").
			Msg("Failed to encode response")
	}
}
