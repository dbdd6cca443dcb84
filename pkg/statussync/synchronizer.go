// Package statussync pulls authoritative status snapshots on a fixed cadence
// and merges them into the console board.
package statussync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/state"
)

// PlaceholderMessage replaces an empty authoritative log
const PlaceholderMessage = "[SYSTEM] Awaiting backup activity..."

// DefaultInterval is the pull cadence
const DefaultInterval = 2 * time.Second

// ErrSyncUnavailable wraps every failed or malformed pull
var ErrSyncUnavailable = errors.New("status sync unavailable")

// Source supplies status snapshots
type Source interface {
	PullStatus(ctx context.Context) (*models.StatusSnapshot, error)
}

// Synchronizer merges snapshots into a board. Merges are last-writer-wins
// against the download manager.
type Synchronizer struct {
	source   Source
	board    *state.Board
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Config holds synchronizer settings
type Config struct {
	Interval    time.Duration // Pull cadence
	PullTimeout time.Duration // Bound on a single pull, the interval when zero
}

// New creates a synchronizer. It does nothing until Start.
func New(source Source, board *state.Board, cfg *Config) *Synchronizer {
	s := &Synchronizer{
		source:   source,
		board:    board,
		interval: DefaultInterval,
		logger:   logger.New("status-sync"),
	}
	if cfg != nil {
		if cfg.Interval > 0 {
			s.interval = cfg.Interval
		}
		s.timeout = cfg.PullTimeout
	}
	if s.timeout <= 0 {
		s.timeout = s.interval
	}
	return s
}

// Start launches the pull loop: one immediate pull, then one per interval.
// Starting an already running synchronizer is a no-op.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info().
		Dur("interval", s.interval).
		Str("action", "sync_start").
		Msg("Starting status synchronizer")

	go s.loop(ctx, s.done)
}

// Stop ends the pull loop and waits for it to exit
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info().
		Str("action", "sync_stopped").
		Msg("Status synchronizer stopped")
}

// Running reports whether the pull loop is active
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Synchronizer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		// Errors only delay freshness; the next tick retries
		_ = s.SyncOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce performs one pull and merge. A failed pull leaves the board
// untouched and returns an error wrapping ErrSyncUnavailable.
func (s *Synchronizer) SyncOnce(ctx context.Context) error {
	pullCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	snap, err := s.source.PullStatus(pullCtx)
	if err == nil && snap == nil {
		err = errors.New("empty snapshot")
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Str("action", "sync_skipped").
			Msg("Status pull failed, keeping previous state")
		return fmt.Errorf("%w: %v", ErrSyncUnavailable, err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	Merge(s.board, snap)

	s.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("log_lines", len(snap.Logs)).
		Int("methods", len(snap.Methods)).
		Str("action", "sync_merged").
		Msg("Status snapshot merged")
	return nil
}

// Merge applies a snapshot to the board:
//   - supplied logs replace the operator log, an empty log becomes the placeholder line
//   - the global running flag overwrites running of the default method
//   - each reported method field overwrites the matching JobState field
//   - a supplied utilization history replaces the local one
func Merge(board *state.Board, snap *models.StatusSnapshot) {
	if snap.Logs != nil {
		now := board.Now()
		if len(snap.Logs) == 0 {
			board.ReplaceLogs([]models.LogEntry{{Message: PlaceholderMessage}})
		} else {
			entries := make([]models.LogEntry, len(snap.Logs))
			for i, line := range snap.Logs {
				entries[i] = models.ParseLogLine(line, now)
			}
			board.ReplaceLogs(entries)
		}
	}

	if snap.Running != nil {
		running := *snap.Running
		board.UpdateJob(models.DefaultMethod, func(js models.JobState) models.JobState {
			js.Running = running
			return js
		})
	}

	for id, ms := range snap.Methods {
		if !id.Valid() {
			continue
		}
		ms := ms
		board.UpdateJob(id, func(js models.JobState) models.JobState {
			if ms.Running != nil {
				js.Running = *ms.Running
			}
			if ms.Progress != nil {
				js.Progress = *ms.Progress
			}
			if ms.LastResult != nil {
				js.LastResult = *ms.LastResult
			}
			return js
		})
	}

	if snap.UtilizationHistory != nil {
		board.ReplaceUtilization(snap.UtilizationHistory)
	}
}
