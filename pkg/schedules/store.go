// Package schedules owns the recurring download definitions and computes
// when each one next fires.
package schedules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

// Observer is told about the full definition set after every change
type Observer interface {
	SchedulesChanged(ctx context.Context, defs []models.ScheduleDefinition)
}

// Store is the only writer of schedule definitions. Hour, minute and day
// values are stored as given; range checks belong to the caller.
type Store struct {
	// mu orders each write with its observer notification
	mu        sync.Mutex
	repo      Repository
	location  *time.Location
	now       func() time.Time
	observers []Observer
	logger    *logger.Logger
}

// StoreConfig holds optional Store settings
type StoreConfig struct {
	Location *time.Location   // Timezone schedules are interpreted in, UTC when nil
	Clock    func() time.Time // Wall clock, time.Now when nil
}

// NewStore creates a store over repo
func NewStore(repo Repository, cfg *StoreConfig) *Store {
	s := &Store{
		repo:     repo,
		location: time.UTC,
		now:      time.Now,
		logger:   logger.New("schedule-store"),
	}
	if cfg != nil {
		if cfg.Location != nil {
			s.location = cfg.Location
		}
		if cfg.Clock != nil {
			s.now = cfg.Clock
		}
	}
	return s
}

// Subscribe registers an observer for schedule changes
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Location returns the timezone schedules are evaluated in
func (s *Store) Location() *time.Location {
	return s.location
}

// Create stores a new definition and returns its id
func (s *Store) Create(ctx context.Context, jobType models.MethodID, hour, minute int, days models.DaySet) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, err := s.repo.Create(ctx, models.ScheduleDefinition{
		JobType: jobType,
		Hour:    hour,
		Minute:  minute,
		Days:    days,
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("schedule_id", def.ID).
		Str("job_type", jobType.String()).
		Int("hour", hour).
		Int("minute", minute).
		Str("days", days.String()).
		Str("action", "schedule_created").
		Msg("Schedule created")

	s.notify(ctx)
	return def.ID, nil
}

// Update replaces hour, minute and days of an existing definition
func (s *Store) Update(ctx context.Context, id int64, hour, minute int, days models.DaySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	current.Hour = hour
	current.Minute = minute
	current.Days = days
	if err := s.repo.Update(ctx, current); err != nil {
		return err
	}

	s.logger.Info().
		Int64("schedule_id", id).
		Int("hour", hour).
		Int("minute", minute).
		Str("days", days.String()).
		Str("state", string(current.State())).
		Str("action", "schedule_updated").
		Msg("Schedule updated")

	s.notify(ctx)
	return nil
}

// Delete removes a definition
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().
		Int64("schedule_id", id).
		Str("action", "schedule_deleted").
		Msg("Schedule deleted")

	s.notify(ctx)
	return nil
}

// Get returns one definition with its next run filled in
func (s *Store) Get(ctx context.Context, id int64) (models.ScheduleDefinition, error) {
	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.ScheduleDefinition{}, err
	}
	return s.withNextRun(def, s.now()), nil
}

// List returns every definition with its next run filled in
func (s *Store) List(ctx context.Context) ([]models.ScheduleDefinition, error) {
	defs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	now := s.now()
	for i := range defs {
		defs[i] = s.withNextRun(defs[i], now)
	}
	return defs, nil
}

// NextRun returns the next firing of the definition with the given id. The
// boolean is false for dormant definitions.
func (s *Store) NextRun(ctx context.Context, id int64) (time.Time, bool, error) {
	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return time.Time{}, false, err
	}
	next, ok := NextRun(def, s.now().In(s.location))
	return next, ok, nil
}

func (s *Store) withNextRun(def models.ScheduleDefinition, now time.Time) models.ScheduleDefinition {
	def.NextRun = nil
	if next, ok := NextRun(def, now.In(s.location)); ok {
		def.NextRun = &next
	}
	return def
}

// notify runs with s.mu held
func (s *Store) notify(ctx context.Context) {
	if len(s.observers) == 0 {
		return
	}

	defs, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("action", "notify_failed").
			Msg("Failed to load schedules for observers")
		return
	}
	for _, o := range s.observers {
		o.SchedulesChanged(ctx, defs)
	}
}
