package schedules

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/labverse/sentinel-core/pkg/database"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

const schedulesTable = "schedules"

// ErrOutOfRange is returned for hour or minute values the integer columns cannot hold
var ErrOutOfRange = errors.New("value out of range for schedules table")

func toInt32(field string, v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s %d: %w", field, v, ErrOutOfRange)
	}
	return int32(v), nil
}

func timeOfDay(def models.ScheduleDefinition) (hour, minute int32, err error) {
	if hour, err = toInt32("hour", def.Hour); err != nil {
		return 0, 0, err
	}
	if minute, err = toInt32("minute", def.Minute); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

// PostgresRepository stores definitions in the schedules table
type PostgresRepository struct {
	queries *database.Queries
	logger  *logger.Logger
}

// NewPostgresRepository creates a repository over the given connection
func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{
		queries: database.New(db),
		logger:  logger.New("schedule-repository"),
	}
}

// Migrate creates the schedules table if needed
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if err := r.queries.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schedules table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, def models.ScheduleDefinition) (models.ScheduleDefinition, error) {
	hour, minute, err := timeOfDay(def)
	if err != nil {
		return models.ScheduleDefinition{}, err
	}

	start := time.Now()
	row, err := r.queries.CreateSchedule(ctx, database.CreateScheduleParams{
		JobType: def.JobType.String(),
		Hour:    hour,
		Minute:  minute,
		Days:    def.Days.Keys(),
	})
	r.logger.LogDatabaseOperation("insert", schedulesTable, 1, time.Since(start), err)
	if err != nil {
		return models.ScheduleDefinition{}, fmt.Errorf("failed to create schedule: %w", err)
	}
	return fromRow(row)
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (models.ScheduleDefinition, error) {
	row, err := r.queries.GetSchedule(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ScheduleDefinition{}, ErrNotFound
	}
	if err != nil {
		return models.ScheduleDefinition{}, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return fromRow(row)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.ScheduleDefinition, error) {
	rows, err := r.queries.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	defs := make([]models.ScheduleDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := fromRow(row)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Int64("schedule_id", row.ID).
				Str("action", "skip_invalid_row").
				Msg("Skipping unreadable schedule row")
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (r *PostgresRepository) Update(ctx context.Context, def models.ScheduleDefinition) error {
	hour, minute, err := timeOfDay(def)
	if err != nil {
		return err
	}

	start := time.Now()
	affected, err := r.queries.UpdateSchedule(ctx, database.UpdateScheduleParams{
		ID:     def.ID,
		Hour:   hour,
		Minute: minute,
		Days:   def.Days.Keys(),
	})
	r.logger.LogDatabaseOperation("update", schedulesTable, int(affected), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update schedule %d: %w", def.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	affected, err := r.queries.DeleteSchedule(ctx, id)
	r.logger.LogDatabaseOperation("delete", schedulesTable, int(affected), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func fromRow(row database.Schedule) (models.ScheduleDefinition, error) {
	method, err := models.ParseMethodID(row.JobType)
	if err != nil {
		return models.ScheduleDefinition{}, err
	}

	var days models.DaySet
	for _, name := range row.Days {
		d, err := models.ParseDay(name)
		if err != nil {
			return models.ScheduleDefinition{}, err
		}
		days = days.With(d)
	}

	return models.ScheduleDefinition{
		ID:      row.ID,
		JobType: method,
		Hour:    int(row.Hour),
		Minute:  int(row.Minute),
		Days:    days,
	}, nil
}
