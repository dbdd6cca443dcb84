// Package state owns the live console view: one JobState per download
// method, the operator log and the utilization history.
package state

import (
	"sync"
	"time"

	"github.com/labverse/sentinel-core/pkg/logstream"
	"github.com/labverse/sentinel-core/pkg/models"
)

// BootMessage is the log line shown before any activity
const BootMessage = "[SYSTEM] Initializing Sentinel Core..."

// DefaultUtilizationSamples bounds the utilization history
const DefaultUtilizationSamples = 40

// Board is the single aggregate shared by the download manager and the status
// synchronizer. Writes replace whole records; readers always get copies.
type Board struct {
	mu          sync.RWMutex
	jobs        [models.MethodCount]models.JobState
	utilization []models.UtilizationSample
	maxSamples  int

	logs *logstream.Stream
	now  func() time.Time
}

// Option configures a Board
type Option func(*Board)

// WithClock overrides the clock used to timestamp log entries
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithLogCapacity overrides the log ring size
func WithLogCapacity(n int) Option {
	return func(b *Board) { b.logs = logstream.New(n) }
}

// WithUtilizationSamples overrides the utilization history bound
func WithUtilizationSamples(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.maxSamples = n
		}
	}
}

// NewBoard creates a board with every method idle and the boot log line
func NewBoard(opts ...Option) *Board {
	b := &Board{
		logs:       logstream.New(logstream.DefaultCapacity),
		maxSamples: DefaultUtilizationSamples,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Reset()
	return b
}

// Reset returns every method to idle, clears utilization and restores the boot log
func (b *Board) Reset() {
	b.mu.Lock()
	for i := range b.jobs {
		b.jobs[i] = models.IdleJobState()
	}
	b.utilization = nil
	b.mu.Unlock()

	b.logs.Replace([]models.LogEntry{{Timestamp: b.now(), Message: BootMessage}})
}

// Job returns the current state of a method
func (b *Board) Job(id models.MethodID) models.JobState {
	if !id.Valid() {
		return models.JobState{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jobs[id]
}

// Jobs returns a copy of every method state indexed by MethodID
func (b *Board) Jobs() [models.MethodCount]models.JobState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jobs
}

// SetJob replaces the whole record for a method
func (b *Board) SetJob(id models.MethodID, js models.JobState) {
	if !id.Valid() {
		return
	}
	b.mu.Lock()
	b.jobs[id] = js
	b.mu.Unlock()
}

// UpdateJob applies fn to a copy of the record and stores the result as one replacement
func (b *Board) UpdateJob(id models.MethodID, fn func(models.JobState) models.JobState) models.JobState {
	if !id.Valid() {
		return models.JobState{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[id] = fn(b.jobs[id])
	return b.jobs[id]
}

// Log appends a timestamped line to the operator log
func (b *Board) Log(message string) {
	b.logs.Append(models.LogEntry{Timestamp: b.now(), Message: message})
}

// ReplaceLogs swaps the operator log for the given entries
func (b *Board) ReplaceLogs(entries []models.LogEntry) {
	b.logs.Replace(entries)
}

// Logs returns the operator log, oldest first
func (b *Board) Logs() []models.LogEntry {
	return b.logs.Entries()
}

// LogLines returns the operator log rendered for display
func (b *Board) LogLines() []string {
	return b.logs.Lines()
}

// AppendUtilization adds a sample, dropping the oldest beyond the bound
func (b *Board) AppendUtilization(sample models.UtilizationSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]models.UtilizationSample, 0, b.maxSamples)
	start := 0
	if len(b.utilization) >= b.maxSamples {
		start = len(b.utilization) - b.maxSamples + 1
	}
	next = append(next, b.utilization[start:]...)
	b.utilization = append(next, sample)
}

// ReplaceUtilization swaps the utilization history outright
func (b *Board) ReplaceUtilization(samples []models.UtilizationSample) {
	next := make([]models.UtilizationSample, len(samples))
	copy(next, samples)

	b.mu.Lock()
	b.utilization = next
	b.mu.Unlock()
}

// Utilization returns a copy of the utilization history
func (b *Board) Utilization() []models.UtilizationSample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.UtilizationSample, len(b.utilization))
	copy(out, b.utilization)
	return out
}

// Now returns the board clock reading
func (b *Board) Now() time.Time {
	return b.now()
}
