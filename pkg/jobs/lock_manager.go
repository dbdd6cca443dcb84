package jobs

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/labverse/sentinel-core/pkg/database"
	"github.com/labverse/sentinel-core/pkg/logger"
)

// JobLockManager serializes schedule firings across instances
type JobLockManager interface {
	// AcquireLock returns false without error when another holder has the lock
	AcquireLock(ctx context.Context, jobName string) (bool, error)
	ReleaseLock(ctx context.Context, jobName string) error
	IsLocked(ctx context.Context, jobName string) (bool, error)
	// AcquireLockWithTimeout polls AcquireLock until it succeeds or timeout passes
	AcquireLockWithTimeout(ctx context.Context, jobName string, timeout time.Duration) (bool, error)
}

// lockPollInterval is how often a waiting acquisition retries
var lockPollInterval = 100 * time.Millisecond

const (
	sqlTryAdvisoryLock = "SELECT pg_try_advisory_lock($1)"
	sqlAdvisoryUnlock  = "SELECT pg_advisory_unlock($1)"
	// A bigint advisory key is split into classid (high half) and objid (low half)
	sqlAdvisoryHeld = `SELECT EXISTS (
		SELECT 1 FROM pg_locks
		WHERE locktype = 'advisory' AND objsubid = 1
		  AND ((classid::bigint << 32) | objid::bigint) = $1)`
)

// PostgreSQLLockManager locks schedule firings with PostgreSQL advisory
// locks. Advisory locks are session scoped, so db must be a single
// connection rather than a pool. A pgx connection serves one statement at a
// time, so every statement goes through mu.
type PostgreSQLLockManager struct {
	mu     sync.Mutex
	db     database.DBTX
	logger *logger.Logger
}

func NewPostgreSQLLockManager(db database.DBTX) JobLockManager {
	return &PostgreSQLLockManager{
		db:     db,
		logger: logger.New("job-lock-manager"),
	}
}

// generateLockID maps a job name onto the non-negative advisory keyspace
func (p *PostgreSQLLockManager) generateLockID(jobName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("sentinel:" + jobName))

	lockID := int64(h.Sum64() >> 1)
	if lockID == 0 {
		lockID = 1
	}
	return lockID
}

func (p *PostgreSQLLockManager) queryBool(ctx context.Context, sql string, jobName string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out bool
	err := p.db.QueryRow(ctx, sql, p.generateLockID(jobName)).Scan(&out)
	return out, err
}

func (p *PostgreSQLLockManager) AcquireLock(ctx context.Context, jobName string) (bool, error) {
	acquired, err := p.queryBool(ctx, sqlTryAdvisoryLock, jobName)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("job_name", jobName).
			Str("action", "acquire_lock_failed").
			Msg("Failed to acquire advisory lock")
		return false, fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	logLockAttempt(p.logger, jobName, acquired)
	return acquired, nil
}

func (p *PostgreSQLLockManager) ReleaseLock(ctx context.Context, jobName string) error {
	released, err := p.queryBool(ctx, sqlAdvisoryUnlock, jobName)
	if err != nil {
		return fmt.Errorf("failed to release lock for job %s: %w", jobName, err)
	}

	logLockRelease(p.logger, jobName, released)
	return nil
}

// IsLocked reports whether any session, this one included, holds the lock
func (p *PostgreSQLLockManager) IsLocked(ctx context.Context, jobName string) (bool, error) {
	held, err := p.queryBool(ctx, sqlAdvisoryHeld, jobName)
	if err != nil {
		return false, fmt.Errorf("failed to check lock status for job %s: %w", jobName, err)
	}
	return held, nil
}

func (p *PostgreSQLLockManager) AcquireLockWithTimeout(ctx context.Context, jobName string, timeout time.Duration) (bool, error) {
	return pollAcquire(ctx, timeout, func(ctx context.Context) (bool, error) {
		return p.AcquireLock(ctx, jobName)
	})
}

// pollAcquire retries acquire until it succeeds, fails or the timeout passes
func pollAcquire(ctx context.Context, timeout time.Duration, acquire func(context.Context) (bool, error)) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := acquire(ctx)
	if err != nil || acquired {
		return acquired, err
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			acquired, err := acquire(ctx)
			if err != nil || acquired {
				return acquired, err
			}
		}
	}
}

func logLockAttempt(l *logger.Logger, jobName string, acquired bool) {
	if acquired {
		l.Info().
			Str("job_name", jobName).
			Str("action", "lock_acquired").
			Msg("Successfully acquired distributed lock")
		return
	}
	l.Debug().
		Str("job_name", jobName).
		Str("action", "lock_already_held").
		Msg("Lock already held by another instance")
}

func logLockRelease(l *logger.Logger, jobName string, released bool) {
	if released {
		l.Info().
			Str("job_name", jobName).
			Str("action", "lock_released").
			Msg("Successfully released distributed lock")
		return
	}
	l.Warn().
		Str("job_name", jobName).
		Str("action", "lock_not_held").
		Msg("Attempted to release lock that was not held")
}

// LockGuard tracks whether a lock is held so release is safe to defer
type LockGuard struct {
	lockManager JobLockManager
	jobName     string
	acquired    bool
}

// NewLockGuard creates a new lock guard
func NewLockGuard(lockManager JobLockManager, jobName string) *LockGuard {
	return &LockGuard{
		lockManager: lockManager,
		jobName:     jobName,
	}
}

// Acquire attempts to acquire the lock
func (lg *LockGuard) Acquire(ctx context.Context) (bool, error) {
	acquired, err := lg.lockManager.AcquireLock(ctx, lg.jobName)
	if err != nil {
		return false, err
	}
	lg.acquired = acquired
	return acquired, nil
}

// AcquireWithTimeout attempts to acquire the lock with timeout
func (lg *LockGuard) AcquireWithTimeout(ctx context.Context, timeout time.Duration) (bool, error) {
	acquired, err := lg.lockManager.AcquireLockWithTimeout(ctx, lg.jobName, timeout)
	if err != nil {
		return false, err
	}
	lg.acquired = acquired
	return acquired, nil
}

// Release releases the lock if it was acquired
func (lg *LockGuard) Release(ctx context.Context) error {
	if !lg.acquired {
		return nil
	}
	if err := lg.lockManager.ReleaseLock(ctx, lg.jobName); err != nil {
		return err
	}
	lg.acquired = false
	return nil
}

// IsAcquired returns whether the lock is currently held by this guard
func (lg *LockGuard) IsAcquired() bool {
	return lg.acquired
}
