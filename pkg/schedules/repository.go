package schedules

import (
	"context"
	"errors"

	"github.com/labverse/sentinel-core/pkg/models"
)

// ErrNotFound is returned for operations on an unknown schedule id
var ErrNotFound = errors.New("schedule not found")

// Repository persists schedule definitions. Implementations assign ids on
// Create and return ErrNotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, def models.ScheduleDefinition) (models.ScheduleDefinition, error)
	Get(ctx context.Context, id int64) (models.ScheduleDefinition, error)
	List(ctx context.Context) ([]models.ScheduleDefinition, error)
	Update(ctx context.Context, def models.ScheduleDefinition) error
	Delete(ctx context.Context, id int64) error
}
