package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockedJob_OnlyOneInstanceFires(t *testing.T) {
	shared := NewMockDB()
	job := &mockJob{name: "schedule_3_sftp", schedule: "0 2 * * 1"}
	cfg := &LockedJobConfig{SkipIfLocked: true, HoldFor: 100 * time.Millisecond}

	// Two instances fire the same occurrence concurrently
	instances := []*LockedJob{
		NewLockedJob(job, NewPostgreSQLLockManager(shared), cfg),
		NewLockedJob(job, NewPostgreSQLLockManager(shared), cfg),
	}

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(j *LockedJob) {
			defer wg.Done()
			if err := j.Execute(context.Background()); err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}(inst)
	}
	wg.Wait()

	if got := job.executions(); got != 1 {
		t.Errorf("Expected exactly one firing, got %d", got)
	}

	// The lock is released once the hold elapses
	if err := instances[0].Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := job.executions(); got != 2 {
		t.Errorf("Expected the next occurrence to fire, got %d executions", got)
	}
}

func TestLockedJob_HoldsLockForMinimum(t *testing.T) {
	job := &mockJob{name: "quick", schedule: "0 1 * * *"}
	lj := NewLockedJob(job, NewPostgreSQLLockManager(NewMockDB()), &LockedJobConfig{SkipIfLocked: true, HoldFor: 50 * time.Millisecond})

	start := time.Now()
	if err := lj.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected lock held for the minimum, returned after %v", elapsed)
	}
}

func TestLockedJob_FailIfLocked(t *testing.T) {
	locks := NewPostgreSQLLockManager(NewMockDB())
	job := &mockJob{name: "busy", schedule: "0 1 * * *"}
	_, _ = locks.AcquireLock(context.Background(), "busy")

	lj := NewLockedJob(job, locks, &LockedJobConfig{SkipIfLocked: false, LockTimeout: 150 * time.Millisecond})
	if err := lj.Execute(context.Background()); err == nil {
		t.Error("Expected error when lock cannot be acquired")
	}
	if job.executions() != 0 {
		t.Error("Job must not run without the lock")
	}
}

func TestLockedJob_Retry(t *testing.T) {
	old := retryBackoffUnit
	retryBackoffUnit = time.Millisecond
	defer func() { retryBackoffUnit = old }()

	var calls int32
	job := &mockJob{name: "flaky", schedule: "0 1 * * *", executeFunc: func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}

	lj := NewLockedJob(job, NewPostgreSQLLockManager(NewMockDB()), &LockedJobConfig{SkipIfLocked: true, RetryOnError: true, MaxRetries: 2})
	if err := lj.Execute(context.Background()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestLockedJob_DoesNotRetryCancellation(t *testing.T) {
	job := &mockJob{name: "cancelled", schedule: "0 1 * * *", executeFunc: func(ctx context.Context) error {
		return context.Canceled
	}}

	lj := NewLockedJob(job, NewPostgreSQLLockManager(NewMockDB()), &LockedJobConfig{SkipIfLocked: true, RetryOnError: true, MaxRetries: 5})
	if err := lj.Execute(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if job.executions() != 1 {
		t.Errorf("Expected a single attempt, got %d", job.executions())
	}
}

func TestLockedJob_Delegates(t *testing.T) {
	job := &mockJob{name: "inner", schedule: "5 4 * * 0"}
	lj := NewLockedJob(job, NewPostgreSQLLockManager(NewMockDB()), nil)

	if lj.Name() != "inner" || lj.Schedule() != "5 4 * * 0" || lj.Unwrap() != job {
		t.Errorf("Wrapper does not delegate: %s %s", lj.Name(), lj.Schedule())
	}
}
