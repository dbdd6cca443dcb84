package downloads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/state"
)

const (
	resultInitializing = "Initializing transfer..."
	resultComplete     = "Download complete."
	resultStopped      = "Stopped by user."
)

// Config holds tunables for the download manager
type Config struct {
	TickInterval   time.Duration              // Delay between progress ticks
	Step           int                        // Progress added per tick
	TriggerTimeout time.Duration              // Bound on remote run/stop calls
	NewTicker      func(time.Duration) Ticker // Ticker factory, time.NewTicker when nil
}

// DefaultConfig returns the console defaults: 10% every 600ms
func DefaultConfig() *Config {
	return &Config{
		TickInterval:   600 * time.Millisecond,
		Step:           10,
		TriggerTimeout: 10 * time.Second,
		NewTicker:      NewTimeTicker,
	}
}

// Manager drives at most one progress process per download method
type Manager struct {
	board  *state.Board
	sink   ArtifactSink
	remote RemoteTrigger
	cfg    Config
	logger *logger.Logger

	slots [models.MethodCount]slot
}

// slot serializes Start/Stop for one method. The progress goroutine never
// takes mu, so holding it while waiting for the goroutine cannot deadlock.
type slot struct {
	mu  sync.Mutex
	run *run
}

type run struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	progress  int
	completed bool // written by the goroutine before done is closed
}

// NewManager creates a download manager writing into board. sink and remote may be nil.
func NewManager(board *state.Board, sink ArtifactSink, remote RemoteTrigger, cfg *Config) *Manager {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	c := *cfg
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.Step <= 0 {
		c.Step = def.Step
	}
	if c.TriggerTimeout <= 0 {
		c.TriggerTimeout = def.TriggerTimeout
	}
	if c.NewTicker == nil {
		c.NewTicker = NewTimeTicker
	}

	return &Manager{
		board:  board,
		sink:   sink,
		remote: remote,
		cfg:    c,
		logger: logger.New("download-manager"),
	}
}

// Start begins a transfer for the method, replacing any process already running for it
func (m *Manager) Start(id models.MethodID) {
	if !id.Valid() {
		m.logger.Warn().
			Int("method_id", int(id)).
			Str("action", "start_rejected").
			Msg("Ignoring start for unknown download method")
		return
	}

	s := &m.slots[id]
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.retire(s) {
		m.logger.Debug().
			Str("method", id.String()).
			Str("action", "run_replaced").
			Msg("Cancelled previous run before restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.run = r

	m.board.SetJob(id, models.JobState{Running: true, Progress: 0, LastResult: resultInitializing})
	m.board.Log(id.Tag() + " " + resultInitializing)
	m.logger.WithMethod(id.String()).LogTransferStart(id.String(), r.id)

	ticker := m.cfg.NewTicker(m.cfg.TickInterval)
	go m.drive(ctx, id, r, ticker)

	if id == models.DefaultMethod && m.remote != nil {
		go m.callRemote(id, "start", m.remote.RunBackup)
	}
}

// Stop cancels the method's process and marks it stopped. Stopping an idle
// method changes nothing.
func (m *Manager) Stop(id models.MethodID) {
	if !id.Valid() {
		return
	}

	s := &m.slots[id]
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := m.retire(s)
	if !wasActive && !m.board.Job(id).Running {
		m.logger.Debug().
			Str("method", id.String()).
			Str("action", "stop_noop").
			Msg("Stop requested for idle method")
		return
	}

	m.board.SetJob(id, models.JobState{Running: false, Progress: 0, LastResult: resultStopped})
	m.board.Log(id.Tag() + " " + resultStopped)

	m.logger.Info().
		Str("method", id.String()).
		Bool("local_run", wasActive).
		Str("action", "transfer_stopped").
		Msg("Download stopped by user")

	if id == models.DefaultMethod && m.remote != nil {
		go m.callRemote(id, "stop", m.remote.StopBackup)
	}
}

// StopAll retires every process and resets every method to idle
func (m *Manager) StopAll() {
	for _, id := range models.AllMethods() {
		s := &m.slots[id]
		s.mu.Lock()
		m.retire(s)
		m.board.SetJob(id, models.IdleJobState())
		s.mu.Unlock()
	}

	m.logger.Info().
		Str("action", "stop_all").
		Msg("All download processes retired")
}

// ActiveRuns returns how many methods currently have a live progress process
func (m *Manager) ActiveRuns() int {
	count := 0
	for i := range m.slots {
		s := &m.slots[i]
		s.mu.Lock()
		if s.run != nil {
			select {
			case <-s.run.done:
			default:
				count++
			}
		}
		s.mu.Unlock()
	}
	return count
}

// retire cancels the slot's process and waits for its goroutine to exit.
// Returns true if the process was still in progress. Caller holds s.mu.
func (m *Manager) retire(s *slot) bool {
	r := s.run
	if r == nil {
		return false
	}
	s.run = nil
	r.cancel()
	<-r.done
	return !r.completed
}

func (m *Manager) drive(ctx context.Context, id models.MethodID, r *run, ticker Ticker) {
	defer close(r.done)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// select does not prefer ctx.Done, so re-check before writing
			if ctx.Err() != nil {
				return
			}

			r.progress += m.cfg.Step
			if r.progress > 100 {
				r.progress = 100
			}

			if r.progress < 100 {
				msg := fmt.Sprintf("Downloading... %d%%", r.progress)
				m.board.SetJob(id, models.JobState{Running: true, Progress: r.progress, LastResult: msg})
				m.board.Log(id.Tag() + " " + msg)
				continue
			}

			r.completed = true
			m.board.SetJob(id, models.JobState{Running: false, Progress: 100, LastResult: resultComplete})
			m.board.Log(id.Tag() + " " + resultComplete)
			m.complete(ctx, id, r, started)
			return
		}
	}
}

func (m *Manager) complete(ctx context.Context, id models.MethodID, r *run, started time.Time) {
	if m.sink == nil {
		m.logger.WithMethod(id.String()).LogTransferComplete(id.String(), r.id, time.Since(started), "", nil)
		return
	}

	// The artifact is written even if the run is retired mid-emission
	handle, err := m.sink.EmitArtifact(context.WithoutCancel(ctx), Artifact{
		Method:      id,
		RunID:       r.id,
		CompletedAt: m.board.Now(),
	})
	if err != nil {
		m.board.Log(fmt.Sprintf("%s Archiving Failed: %v", id.Tag(), err))
	} else {
		m.board.Log(fmt.Sprintf("%s Archive created: %s", id.Tag(), handle))
	}
	m.logger.WithMethod(id.String()).LogTransferComplete(id.String(), r.id, time.Since(started), handle, err)
}

func (m *Manager) callRemote(id models.MethodID, verb string, call func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TriggerTimeout)
	defer cancel()

	if err := call(ctx); err != nil {
		m.board.Log(fmt.Sprintf("%s Failed to %s download. Check backend connectivity.", id.Tag(), verb))
		m.logger.Error().
			Err(err).
			Str("method", id.String()).
			Str("action", "remote_"+verb+"_failed").
			Msg("Remote backend call failed")
	}
}
