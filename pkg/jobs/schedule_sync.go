package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

// ScheduleSync keeps one cron entry per active schedule definition. It is
// notified with the full definition set after every store change.
type ScheduleSync struct {
	mu         sync.Mutex
	manager    JobManager
	starter    Starter
	registered map[string]string // job name -> cron spec
	logger     *logger.Logger
}

func NewScheduleSync(manager JobManager, starter Starter) *ScheduleSync {
	return &ScheduleSync{
		manager:    manager,
		starter:    starter,
		registered: make(map[string]string),
		logger:     logger.New("schedule-sync"),
	}
}

// SchedulesChanged re-registers cron entries for the new definition set
func (s *ScheduleSync) SchedulesChanged(ctx context.Context, defs []models.ScheduleDefinition) {
	if err := s.Apply(defs); err != nil {
		s.logger.Warn().
			Err(err).
			Str("action", "schedule_sync_partial").
			Msg("Some schedules could not be registered")
	}
}

// Apply makes the registered entries match defs. Dormant definitions are not
// registered. Definitions the cron parser rejects are skipped and reported.
func (s *ScheduleSync) Apply(defs []models.ScheduleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	desired := make(map[string]models.ScheduleDefinition, len(defs))
	for _, def := range defs {
		if def.State() != models.ScheduleActive {
			continue
		}
		desired[ScheduleJobName(def)] = def
	}

	for name, spec := range s.registered {
		def, keep := desired[name]
		if keep {
			if next, _ := CronSpec(def); next == spec {
				delete(desired, name)
				continue
			}
		}
		s.manager.UnregisterJob(name)
		delete(s.registered, name)
	}

	var errs []error
	for name, def := range desired {
		job := NewScheduledDownloadJob(def, s.starter)
		if err := s.manager.RegisterJob(job); err != nil {
			errs = append(errs, fmt.Errorf("schedule %d: %w", def.ID, err))
			continue
		}
		s.registered[name] = job.Schedule()
	}

	s.logger.Info().
		Int("registered", len(s.registered)).
		Int("definitions", len(defs)).
		Str("action", "schedule_sync").
		Msg("Schedule entries synchronized")

	return errors.Join(errs...)
}

// Registered returns the registered job names in order
func (s *ScheduleSync) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.registered))
	for name := range s.registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
