package api

import (
	"time"

	"github.com/labverse/sentinel-core/pkg/models"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	SessionOpen bool      `json:"session_open"`
	BackendOpen bool      `json:"backend_breaker_open"`
}

// MethodResponse is one download method with its live state
type MethodResponse struct {
	ID          models.MethodID `json:"id"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Running     bool            `json:"running"`
	Progress    int             `json:"progress"`
	LastResult  string          `json:"last_result"`
}

// StatusResponse is the full console view
type StatusResponse struct {
	SessionOpen bool                       `json:"session_open"`
	Methods     []MethodResponse           `json:"methods"`
	Logs        []string                   `json:"logs"`
	Utilization []models.UtilizationSample `json:"utilization"`
}

// CreateScheduleRequest is the body of POST /api/schedules
type CreateScheduleRequest struct {
	JobType *models.MethodID `json:"job_type"` // required
	Hour    int              `json:"hour"`
	Minute  int              `json:"minute"`
	Days    models.DaySet    `json:"days"`
}

// UpdateScheduleRequest is the body of PUT /api/schedules/{id}
type UpdateScheduleRequest struct {
	Hour   int           `json:"hour"`
	Minute int           `json:"minute"`
	Days   models.DaySet `json:"days"`
}

// ScheduleResponse is a definition with its derived state
type ScheduleResponse struct {
	models.ScheduleDefinition
	State models.ScheduleState `json:"state"`
}

// NextRunResponse answers GET /api/schedules/{id}/next-run
type NextRunResponse struct {
	ID      int64      `json:"id"`
	State   string     `json:"state"`
	NextRun *time.Time `json:"next_run"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}
