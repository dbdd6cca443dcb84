// Package console wires the live console for one operator session.
package console

import (
	"context"
	"sync"

	"github.com/labverse/sentinel-core/pkg/downloads"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/state"
	"github.com/labverse/sentinel-core/pkg/statussync"
	"github.com/labverse/sentinel-core/pkg/utilization"
)

// Session owns the board and the loops feeding it. Opening starts the
// status synchronizer and sampler; closing stops every download and resets
// the board.
type Session struct {
	board   *state.Board
	manager *downloads.Manager
	syncer  *statussync.Synchronizer
	sampler *utilization.Sampler
	logger  *logger.Logger

	mu   sync.Mutex
	open bool
}

// NewSession composes a session. sampler may be nil.
func NewSession(board *state.Board, manager *downloads.Manager, syncer *statussync.Synchronizer, sampler *utilization.Sampler) *Session {
	return &Session{
		board:   board,
		manager: manager,
		syncer:  syncer,
		sampler: sampler,
		logger:  logger.New("console"),
	}
}

func (s *Session) Board() *state.Board {
	return s.board
}

func (s *Session) Manager() *downloads.Manager {
	return s.manager
}

// IsOpen reports whether the session is open
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Open starts background loops. Opening an open session is a no-op.
func (s *Session) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return
	}
	s.open = true

	// Loops outlive the request that opened the session
	bg := context.WithoutCancel(ctx)
	s.syncer.Start(bg)
	if s.sampler != nil {
		s.sampler.Start(bg)
	}

	s.logger.Info().
		Str("action", "session_open").
		Msg("Console session opened")
}

// Close stops the loops and every download, then resets the board
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}
	s.open = false

	s.syncer.Stop()
	if s.sampler != nil {
		s.sampler.Stop()
	}
	s.manager.StopAll()
	s.board.Reset()

	s.logger.Info().
		Str("action", "session_closed").
		Msg("Console session closed")
}
