package app

import (
	"context"
	"testing"

	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ARTIFACT_DIR", t.TempDir())
	t.Setenv("SCHEDULER_TZ", "UTC")
	return config.Load()
}

func TestNewWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if err := a.StartScheduler(ctx); err != nil {
		t.Fatalf("StartScheduler failed: %v", err)
	}
	if n := len(a.Jobs.GetJobs()); n != 0 {
		t.Fatalf("Expected no jobs on an empty store, got %d", n)
	}

	id, err := a.Store.Create(ctx, models.MethodSSH, 2, 30, models.NewDaySet(1, 3))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	jobs := a.Jobs.GetJobs()
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 registered job, got %d", len(jobs))
	}
	if jobs[0].Schedule() != "30 2 * * 1,3" {
		t.Errorf("Unexpected cron spec %q", jobs[0].Schedule())
	}

	// Clearing the days makes the definition dormant
	if err := a.Store.Update(ctx, id, 2, 30, models.DaySet(0)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if n := len(a.Jobs.GetJobs()); n != 0 {
		t.Errorf("Expected dormant schedule to be unregistered, got %d jobs", n)
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "schedule store",
			mutate: func(c *config.Config) { c.Database.ScheduleStore = "etcd" },
		},
		{
			name: "lock backend",
			mutate: func(c *config.Config) {
				c.Scheduler.Locking = true
				c.Scheduler.LockBackend = "zookeeper"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			if _, err := New(context.Background(), cfg, logger.Nop()); err == nil {
				t.Error("Expected error for unknown backend")
			}
		})
	}
}

func TestCloseStopsRunningDownloads(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	a.Session.Open(context.Background())
	a.Manager.Start(models.MethodCPanel)
	a.Close()

	if js := a.Board.Job(models.MethodCPanel); js != models.IdleJobState() {
		t.Errorf("Expected idle board after close, got %+v", js)
	}
	if n := a.Manager.ActiveRuns(); n != 0 {
		t.Errorf("Expected no active runs, got %d", n)
	}
}
