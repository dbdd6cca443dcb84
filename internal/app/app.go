// Package app assembles the sentinel components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/artifacts"
	"github.com/labverse/sentinel-core/pkg/console"
	"github.com/labverse/sentinel-core/pkg/database/pool"
	"github.com/labverse/sentinel-core/pkg/downloads"
	"github.com/labverse/sentinel-core/pkg/jobs"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/schedules"
	"github.com/labverse/sentinel-core/pkg/services"
	"github.com/labverse/sentinel-core/pkg/state"
	"github.com/labverse/sentinel-core/pkg/statussync"
	"github.com/labverse/sentinel-core/pkg/utilization"
)

// App holds every long-lived component
type App struct {
	Config       *config.Config
	Board        *state.Board
	Backend      *services.BackendClient
	Manager      *downloads.Manager
	Session      *console.Session
	Store        *schedules.Store
	Jobs         jobs.JobManager
	ScheduleSync *jobs.ScheduleSync

	logger  *logger.Logger
	closers []func()
}

// New wires the components. Database and Redis connections are opened only
// when configuration asks for them.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, logger: log}

	a.Board = state.NewBoard(state.WithUtilizationSamples(cfg.Utilization.Samples))
	a.Backend = services.NewBackendClient(cfg)

	a.Manager = downloads.NewManager(a.Board, artifacts.NewFileSink(cfg.Artifacts.Dir), a.Backend, &downloads.Config{
		TickInterval:   cfg.Transfer.TickInterval,
		Step:           cfg.Transfer.Step,
		TriggerTimeout: cfg.Transfer.TriggerTimeout,
	})
	a.closers = append(a.closers, a.Manager.StopAll)

	syncer := statussync.New(a.Backend, a.Board, &statussync.Config{Interval: cfg.Sync.Interval})
	var sampler *utilization.Sampler
	if cfg.Utilization.Interval > 0 {
		sampler = utilization.NewSampler(a.Board, cfg.Utilization.Interval, nil)
	}
	a.Session = console.NewSession(a.Board, a.Manager, syncer, sampler)

	var db *pgxpool.Pool
	if cfg.UsesPostgres() {
		var err error
		db, err = pool.New(ctx, cfg.DatabaseURL(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		log.Info().
			Str("action", "db_connected").
			Msg("Database connection pool established")
	}

	repo, err := a.scheduleRepository(ctx, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = schedules.NewStore(repo, &schedules.StoreConfig{Location: cfg.Location()})

	lockManager, err := a.lockManager(ctx, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Jobs = jobs.NewJobManager(&jobs.ManagerConfig{
		Location:    cfg.Location(),
		LockManager: lockManager,
	})
	a.ScheduleSync = jobs.NewScheduleSync(a.Jobs, a.Manager)
	a.Store.Subscribe(a.ScheduleSync)

	return a, nil
}

func (a *App) scheduleRepository(ctx context.Context, db *pgxpool.Pool) (schedules.Repository, error) {
	switch a.Config.Database.ScheduleStore {
	case "postgres":
		repo := schedules.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate schedules: %w", err)
		}
		return repo, nil
	case "memory", "":
		return schedules.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown schedule store %q", a.Config.Database.ScheduleStore)
	}
}

func (a *App) lockManager(ctx context.Context, db *pgxpool.Pool) (jobs.JobLockManager, error) {
	if !a.Config.Scheduler.Locking {
		return nil, nil
	}

	switch a.Config.Scheduler.LockBackend {
	case "postgres":
		// Advisory locks belong to a session, so pin one connection
		conn, err := db.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock connection: %w", err)
		}
		a.closers = append(a.closers, conn.Release)
		return jobs.NewPostgreSQLLockManager(conn.Conn()), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.Redis.Addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return jobs.NewRedisLockManager(client, jobs.DefaultRedisLockTTL), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", a.Config.Scheduler.LockBackend)
	}
}

// StartScheduler registers every stored definition and starts firing
func (a *App) StartScheduler(ctx context.Context) error {
	defs, err := a.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	if err := a.ScheduleSync.Apply(defs); err != nil {
		a.logger.Warn().
			Err(err).
			Str("action", "schedule_load_partial").
			Msg("Some stored schedules could not be registered")
	}

	a.Jobs.Start()
	a.closers = append(a.closers, a.Jobs.Stop)
	return nil
}

// Close releases everything in reverse order of acquisition
func (a *App) Close() {
	a.Session.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
