// Package utilization samples host CPU load into the console board.
package utilization

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/state"
)

const sampleTimeLayout = "15:04:05"

// PercentFunc measures total CPU utilization over interval
type PercentFunc func(ctx context.Context, interval time.Duration) (float64, error)

// HostPercent measures total host CPU with gopsutil
func HostPercent(ctx context.Context, interval time.Duration) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}

// Sampler appends one utilization sample per interval to the board
type Sampler struct {
	board    *state.Board
	interval time.Duration
	percent  PercentFunc
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler creates a sampler. A nil percent uses HostPercent.
func NewSampler(board *state.Board, interval time.Duration, percent PercentFunc) *Sampler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if percent == nil {
		percent = HostPercent
	}
	return &Sampler{
		board:    board,
		interval: interval,
		percent:  percent,
		logger:   logger.New("utilization"),
	}
}

// Start begins sampling. Starting twice is a no-op.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
}

// Stop ends sampling and waits for the loop to exit
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SampleOnce takes a single measurement and appends it
func (s *Sampler) SampleOnce(ctx context.Context) error {
	// Zero interval compares against the previous call instead of blocking
	value, err := s.percent(ctx, 0)
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("action", "utilization_sample_failed").
			Msg("CPU sample failed")
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.board.AppendUtilization(models.UtilizationSample{
		Time:  s.board.Now().Format(sampleTimeLayout),
		Value: value,
	})
	return nil
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.SampleOnce(ctx)
		}
	}
}
