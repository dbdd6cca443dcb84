package schedules

import (
	"context"
	"sort"
	"sync"

	"github.com/labverse/sentinel-core/pkg/models"
)

// MemoryRepository keeps definitions in process memory
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	defs   map[int64]models.ScheduleDefinition
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{defs: make(map[int64]models.ScheduleDefinition)}
}

func (r *MemoryRepository) Create(ctx context.Context, def models.ScheduleDefinition) (models.ScheduleDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	def.ID = r.nextID
	def.NextRun = nil
	r.defs[def.ID] = def
	return def, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (models.ScheduleDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[id]
	if !ok {
		return models.ScheduleDefinition{}, ErrNotFound
	}
	return def, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.ScheduleDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ScheduleDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, def models.ScheduleDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[def.ID]; !ok {
		return ErrNotFound
	}
	def.NextRun = nil
	r.defs[def.ID] = def
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[id]; !ok {
		return ErrNotFound
	}
	delete(r.defs, id)
	return nil
}
