package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/models/api"
	"github.com/labverse/sentinel-core/pkg/schedules"
)

// Handler handles schedule CRUD requests
type Handler struct {
	store  *schedules.Store
	logger *logger.Logger
}

// NewHandler creates a new schedules handler
func NewHandler(store *schedules.Store, log *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: log,
	}
}

// List handles GET /api/schedules
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	defs, err := h.store.List(ctx)
	if err != nil {
		h.fail(w, err, "list_schedules_failed")
		return
	}

	out := make([]api.ScheduleResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toResponse(def))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/schedules
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.JobType == nil {
		http.Error(w, "job_type is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := h.store.Create(ctx, *req.JobType, req.Hour, req.Minute, req.Days)
	if err != nil {
		h.fail(w, err, "create_schedule_failed")
		return
	}

	def, err := h.store.Get(ctx, id)
	if err != nil {
		h.fail(w, err, "create_schedule_failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, toResponse(def))
}

// Get handles GET /api/schedules/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	def, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get_schedule_failed")
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(def))
}

// Update handles PUT /api/schedules/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req api.UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.store.Update(ctx, id, req.Hour, req.Minute, req.Days); err != nil {
		h.fail(w, err, "update_schedule_failed")
		return
	}

	def, err := h.store.Get(ctx, id)
	if err != nil {
		h.fail(w, err, "update_schedule_failed")
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(def))
}

// Delete handles DELETE /api/schedules/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.fail(w, err, "delete_schedule_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextRun handles GET /api/schedules/{id}/next-run
func (h *Handler) NextRun(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	next, active, err := h.store.NextRun(r.Context(), id)
	if err != nil {
		h.fail(w, err, "next_run_failed")
		return
	}

	resp := api.NextRunResponse{ID: id, State: string(models.ScheduleDormant)}
	if active {
		resp.State = string(models.ScheduleActive)
		resp.NextRun = &next
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid schedule id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func toResponse(def models.ScheduleDefinition) api.ScheduleResponse {
	return api.ScheduleResponse{ScheduleDefinition: def, State: def.State()}
}

func (h *Handler) fail(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, schedules.ErrNotFound) {
		http.Error(w, "Schedule not found", http.StatusNotFound)
		return
	}

	h.logger.Error().
		Err(err).
		Str("action", action).
		Msg("Schedule request failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
