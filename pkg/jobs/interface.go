package jobs

import (
	"context"
	"time"
)

// Job represents a schedulable job that can be executed by the cron service
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns a unique name for the job
	Name() string

	// Schedule returns the cron schedule expression for this job
	// Format: "minute hour day month weekday"
	// Examples: "30 2 * * 1,3" (02:30 on Monday and Wednesday)
	Schedule() string
}

// JobManager manages and schedules multiple jobs
type JobManager interface {
	// RegisterJob adds a job to the manager
	RegisterJob(job Job) error

	// UnregisterJob removes a job by name, reporting whether it was registered
	UnregisterJob(name string) bool

	// Start begins executing all registered jobs according to their schedules
	Start()

	// Stop gracefully shuts down the job manager
	Stop()

	// GetJobs returns all registered jobs
	GetJobs() []Job

	// GetJobStatus returns the registered jobs with their next fire time
	GetJobStatus(ctx context.Context) ([]JobStatus, error)
}

// JobStatus represents the current status of a job
type JobStatus struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	IsLocked bool      `json:"is_locked"`
}
