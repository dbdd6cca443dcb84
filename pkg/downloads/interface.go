package downloads

import (
	"context"
	"time"

	"github.com/labverse/sentinel-core/pkg/models"
)

// Artifact describes a completed download handed to the sink
type Artifact struct {
	Method      models.MethodID
	RunID       string
	CompletedAt time.Time
}

// ArtifactSink receives completed-download artifacts and returns an opaque handle
type ArtifactSink interface {
	EmitArtifact(ctx context.Context, artifact Artifact) (string, error)
}

// RemoteTrigger starts and cancels the external execution of the default method
type RemoteTrigger interface {
	RunBackup(ctx context.Context) error
	StopBackup(ctx context.Context) error
}

// Ticker is the periodic source driving progress. It mirrors time.Ticker so
// tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}
