package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labverse/sentinel-core/pkg/logger"
)

// LockedJob wraps a job so that only one instance fires each occurrence
type LockedJob struct {
	job         Job
	lockManager JobLockManager
	logger      *logger.Logger

	lockTimeout  time.Duration
	skipIfLocked bool
	holdFor      time.Duration
	retryOnError bool
	maxRetries   int
}

// LockedJobConfig holds configuration for the locking wrapper
type LockedJobConfig struct {
	LockTimeout  time.Duration // How long to wait for lock acquisition, zero tries once
	SkipIfLocked bool          // Skip execution if the lock is held elsewhere
	HoldFor      time.Duration // Minimum time the lock stays held after acquisition
	RetryOnError bool          // Retry job execution on failure
	MaxRetries   int           // Maximum retry attempts
}

// DefaultLockedJobConfig returns defaults for scheduled firings. Peers fire
// the same occurrence within the same minute, so the lock is held for 30s.
func DefaultLockedJobConfig() *LockedJobConfig {
	return &LockedJobConfig{
		LockTimeout:  0,
		SkipIfLocked: true,
		HoldFor:      30 * time.Second,
		RetryOnError: false,
		MaxRetries:   0,
	}
}

// NewLockedJob creates a locking job wrapper
func NewLockedJob(job Job, lockManager JobLockManager, config *LockedJobConfig) *LockedJob {
	if config == nil {
		config = DefaultLockedJobConfig()
	}

	return &LockedJob{
		job:          job,
		lockManager:  lockManager,
		logger:       logger.New("locked-job"),
		lockTimeout:  config.LockTimeout,
		skipIfLocked: config.SkipIfLocked,
		holdFor:      config.HoldFor,
		retryOnError: config.RetryOnError,
		maxRetries:   config.MaxRetries,
	}
}

// Name returns the underlying job name
func (p *LockedJob) Name() string {
	return p.job.Name()
}

// Schedule returns the underlying job schedule
func (p *LockedJob) Schedule() string {
	return p.job.Schedule()
}

// Unwrap returns the wrapped job
func (p *LockedJob) Unwrap() Job {
	return p.job
}

// Execute runs the job while holding the distributed lock
func (p *LockedJob) Execute(ctx context.Context) error {
	jobName := p.job.Name()
	startTime := time.Now()

	lockGuard := NewLockGuard(p.lockManager, jobName)

	var acquired bool
	var err error
	if p.lockTimeout > 0 {
		acquired, err = lockGuard.AcquireWithTimeout(ctx, p.lockTimeout)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			acquired, err = false, nil
		}
	} else {
		acquired, err = lockGuard.Acquire(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	if !acquired {
		if p.skipIfLocked {
			p.logger.Info().
				Str("job_name", jobName).
				Str("action", "job_skipped_locked").
				Msg("Job skipped - another instance fired this occurrence")
			return nil
		}
		return fmt.Errorf("could not acquire lock for job %s within timeout", jobName)
	}

	// Release on a fresh context so a cancelled run still unlocks
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if releaseErr := lockGuard.Release(releaseCtx); releaseErr != nil {
			p.logger.Error().
				Err(releaseErr).
				Str("job_name", jobName).
				Str("action", "lock_release_error").
				Msg("Failed to release distributed lock")
		}
	}()

	err = p.executeWithRetry(ctx)

	if err == nil && p.holdFor > 0 {
		if remaining := p.holdFor - time.Since(startTime); remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
			}
		}
	}

	return err
}

// executeWithRetry executes the job with retry logic if configured
func (p *LockedJob) executeWithRetry(ctx context.Context) error {
	var lastErr error
	maxAttempts := p.maxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			p.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Err(lastErr).
				Str("job_name", p.job.Name()).
				Str("action", "job_retry").
				Msg("Retrying job execution after failure")

			backoffDuration := time.Duration(1<<uint(attempt-2)) * retryBackoffUnit
			select {
			case <-time.After(backoffDuration):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := p.job.Execute(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.retryOnError || !shouldRetryError(err) {
			break
		}
	}

	return lastErr
}

// retryBackoffUnit is the first retry delay, doubled per attempt
var retryBackoffUnit = time.Second

func shouldRetryError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
