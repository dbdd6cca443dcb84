package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/labverse/sentinel-core/pkg/logger"
)

// DefaultExecTimeout bounds a single job execution
const DefaultExecTimeout = 30 * time.Minute

type cronJobManager struct {
	mu   sync.Mutex
	cron *cron.Cron
	jobs map[string]registeredJob

	logger      *logger.Logger
	lockManager JobLockManager
	lockConfig  *LockedJobConfig
	execTimeout time.Duration
}

type registeredJob struct {
	job   Job
	entry cron.EntryID
}

// ManagerConfig holds configuration for the job manager
type ManagerConfig struct {
	Location    *time.Location   // Timezone schedules are evaluated in, UTC when nil
	LockManager JobLockManager   // Wraps every job in a LockedJob when set
	LockConfig  *LockedJobConfig // Configuration for wrapped jobs
	ExecTimeout time.Duration    // Bound on a single execution
}

// NewJobManager creates a new job manager
func NewJobManager(config *ManagerConfig) JobManager {
	if config == nil {
		config = &ManagerConfig{}
	}
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := config.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	return &cronJobManager{
		cron:        cron.New(cron.WithLocation(loc)),
		jobs:        make(map[string]registeredJob),
		logger:      logger.New("job-manager"),
		lockManager: config.LockManager,
		lockConfig:  config.LockConfig,
		execTimeout: timeout,
	}
}

func (m *cronJobManager) RegisterJob(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	finalJob := job
	if m.lockManager != nil {
		if _, isLocked := job.(*LockedJob); !isLocked {
			finalJob = NewLockedJob(job, m.lockManager, m.lockConfig)
		}
	}

	m.logger.Info().
		Str("action", "register_job").
		Str("job_name", finalJob.Name()).
		Str("schedule", finalJob.Schedule()).
		Bool("locking_enabled", m.lockManager != nil).
		Msg("Registering job")

	id, err := m.cron.AddFunc(finalJob.Schedule(), func() {
		m.runJob(finalJob)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", finalJob.Name(), err)
	}

	m.jobs[finalJob.Name()] = registeredJob{job: finalJob, entry: id}
	return nil
}

func (m *cronJobManager) UnregisterJob(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.jobs[name]
	if !ok {
		return false
	}
	m.cron.Remove(reg.entry)
	delete(m.jobs, name)

	m.logger.Info().
		Str("action", "unregister_job").
		Str("job_name", name).
		Msg("Unregistered job")
	return true
}

// runJob executes one firing with a request id and a bounded context
func (m *cronJobManager) runJob(job Job) {
	requestID := uuid.New().String()
	jobLogger := m.logger.WithRequestID(requestID).WithJob(job.Name())

	ctx, cancel := context.WithTimeout(context.Background(), m.execTimeout)
	defer cancel()
	ctx = jobLogger.ToContext(ctx)

	jobLogger.LogJobStart(job.Name(), job.Schedule())
	start := time.Now()

	if err := job.Execute(ctx); err != nil {
		jobLogger.Error().
			Err(err).
			Str("action", "job_failed").
			Dur("duration", time.Since(start)).
			Msg("Job execution failed")
		return
	}
	jobLogger.LogJobComplete(job.Name(), time.Since(start))
}

func (m *cronJobManager) Start() {
	m.mu.Lock()
	count := len(m.jobs)
	m.mu.Unlock()

	m.logger.Info().
		Str("action", "start").
		Int("job_count", count).
		Bool("locking_enabled", m.lockManager != nil).
		Msg("Starting job manager")
	m.cron.Start()
}

func (m *cronJobManager) Stop() {
	m.logger.Info().
		Str("action", "stop_initiated").
		Msg("Stopping job manager")

	// Wait for running jobs to complete
	ctx := m.cron.Stop()
	<-ctx.Done()

	m.logger.Info().
		Str("action", "stopped").
		Msg("Job manager stopped")
}

func (m *cronJobManager) GetJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Job, 0, len(names))
	for _, name := range names {
		out = append(out, m.jobs[name].job)
	}
	return out
}

func (m *cronJobManager) GetJobStatus(ctx context.Context) ([]JobStatus, error) {
	m.mu.Lock()
	regs := make([]registeredJob, 0, len(m.jobs))
	for _, reg := range m.jobs {
		regs = append(regs, reg)
	}
	m.mu.Unlock()

	status := make([]JobStatus, 0, len(regs))
	for _, reg := range regs {
		s := JobStatus{
			Name:     reg.job.Name(),
			Schedule: reg.job.Schedule(),
			Next:     m.cron.Entry(reg.entry).Next,
		}
		if m.lockManager != nil {
			locked, err := m.lockManager.IsLocked(ctx, s.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to check lock status for job %s: %w", s.Name, err)
			}
			s.IsLocked = locked
		}
		status = append(status, s)
	}

	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status, nil
}
