package statussync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/labverse/sentinel-core/pkg/downloads"
	"github.com/labverse/sentinel-core/pkg/models"
	"github.com/labverse/sentinel-core/pkg/state"
)

type mockSource struct {
	mu    sync.Mutex
	snaps []*models.StatusSnapshot
	errs  []error
	calls int
}

func (m *mockSource) PullStatus(ctx context.Context) (*models.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.snaps) {
		return m.snaps[i], nil
	}
	return &models.StatusSnapshot{}, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type blockingSource struct{}

func (blockingSource) PullStatus(ctx context.Context) (*models.StatusSnapshot, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func TestMerge_LogsReplaceOutright(t *testing.T) {
	board := state.NewBoard()
	board.Log("local line")

	Merge(board, &models.StatusSnapshot{Logs: []string{"[10:00:01] Connecting to SFTP...", "Downloaded: wp-config.php"}})

	lines := board.LogLines()
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %v", lines)
	}
	if lines[0] != "[10:00:01] Connecting to SFTP..." || lines[1] != "Downloaded: wp-config.php" {
		t.Errorf("Unexpected merged log: %v", lines)
	}
}

func TestMerge_EmptyLogsBecomePlaceholder(t *testing.T) {
	board := state.NewBoard()

	Merge(board, &models.StatusSnapshot{Logs: []string{}})

	lines := board.LogLines()
	if len(lines) != 1 || lines[0] != PlaceholderMessage {
		t.Errorf("Expected placeholder, got %v", lines)
	}
}

func TestMerge_AbsentLogsKeepLocal(t *testing.T) {
	board := state.NewBoard()
	board.Log("keep me")
	before := board.LogLines()

	Merge(board, &models.StatusSnapshot{})

	if after := board.LogLines(); len(after) != len(before) {
		t.Errorf("Absent logs must not touch the stream: %v -> %v", before, after)
	}
}

func TestMerge_GlobalRunningTouchesDefaultOnly(t *testing.T) {
	board := state.NewBoard()
	board.SetJob(models.MethodSFTP, models.JobState{Running: false, Progress: 30, LastResult: "x"})

	Merge(board, &models.StatusSnapshot{Running: boolPtr(true)})

	if js := board.Job(models.MethodSFTP); !js.Running || js.Progress != 30 || js.LastResult != "x" {
		t.Errorf("Expected only running overwritten, got %+v", js)
	}
	if board.Job(models.MethodSSH).Running || board.Job(models.MethodCPanel).Running {
		t.Error("Global running flag leaked to other methods")
	}
}

func TestMerge_PerMethodFields(t *testing.T) {
	board := state.NewBoard()
	board.SetJob(models.MethodCPanel, models.JobState{Running: true, Progress: 70, LastResult: "Downloading... 70%"})

	Merge(board, &models.StatusSnapshot{Methods: map[models.MethodID]models.MethodStatus{
		models.MethodSSH:  {Running: boolPtr(true), Progress: intPtr(20), LastResult: strPtr("Verifying checksums")},
		models.MethodSFTP: {Progress: intPtr(55)},
	}})

	if js := board.Job(models.MethodSSH); !js.Running || js.Progress != 20 || js.LastResult != "Verifying checksums" {
		t.Errorf("Unexpected ssh state: %+v", js)
	}
	if js := board.Job(models.MethodSFTP); js.Running || js.Progress != 55 || js.LastResult != "Idle" {
		t.Errorf("Expected only sftp progress overwritten, got %+v", js)
	}
	if js := board.Job(models.MethodCPanel); js.Progress != 70 {
		t.Errorf("Unmentioned method was touched: %+v", js)
	}
}

func TestMerge_UtilizationReplaced(t *testing.T) {
	board := state.NewBoard()
	board.AppendUtilization(models.UtilizationSample{Time: "local", Value: 1})

	Merge(board, &models.StatusSnapshot{UtilizationHistory: []models.UtilizationSample{
		{Time: "10:00:00", Value: 12.5},
		{Time: "10:00:01", Value: 14},
	}})

	got := board.Utilization()
	if len(got) != 2 || got[0].Time != "10:00:00" {
		t.Errorf("Expected history replaced, got %v", got)
	}
}

func TestSyncOnce_FailureKeepsState(t *testing.T) {
	board := state.NewBoard()
	board.SetJob(models.MethodSFTP, models.JobState{Running: true, Progress: 10, LastResult: "Downloading... 10%"})
	before := board.Jobs()

	src := &mockSource{errs: []error{errors.New("connection refused")}}
	s := New(src, board, nil)

	err := s.SyncOnce(context.Background())
	if !errors.Is(err, ErrSyncUnavailable) {
		t.Fatalf("Expected ErrSyncUnavailable, got %v", err)
	}
	if board.Jobs() != before {
		t.Error("Failed pull changed the board")
	}
}

func TestSyncOnce_ServerOverwritesLocalStart(t *testing.T) {
	board := state.NewBoard()
	mgr := downloads.NewManager(board, nil, nil, &downloads.Config{TickInterval: time.Hour, Step: 10})
	defer mgr.StopAll()

	src := &mockSource{snaps: []*models.StatusSnapshot{{
		Methods: map[models.MethodID]models.MethodStatus{models.MethodSFTP: {Progress: intPtr(40)}},
	}}}
	s := New(src, board, nil)

	mgr.Start(models.MethodSFTP)
	if err := s.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce() error = %v", err)
	}

	if got := board.Job(models.MethodSFTP).Progress; got != 40 {
		t.Errorf("Expected server progress 40 to win, got %d", got)
	}
}

func TestSyncOnce_LocalStartWinsAfterPull(t *testing.T) {
	board := state.NewBoard()
	mgr := downloads.NewManager(board, nil, nil, &downloads.Config{TickInterval: time.Hour, Step: 10})
	defer mgr.StopAll()

	src := &mockSource{snaps: []*models.StatusSnapshot{{
		Methods: map[models.MethodID]models.MethodStatus{models.MethodSSH: {Running: boolPtr(false), Progress: intPtr(90)}},
	}}}
	s := New(src, board, nil)

	_ = s.SyncOnce(context.Background())
	mgr.Start(models.MethodSSH)

	if js := board.Job(models.MethodSSH); !js.Running || js.Progress != 0 {
		t.Errorf("Expected local start to win until next pull, got %+v", js)
	}
}

func TestSynchronizer_LoopSurvivesFailures(t *testing.T) {
	board := state.NewBoard()
	src := &mockSource{
		errs:  []error{errors.New("boom"), errors.New("boom again")},
		snaps: []*models.StatusSnapshot{nil, nil, {Running: boolPtr(true)}},
	}
	s := New(src, board, &Config{Interval: 5 * time.Millisecond})

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !board.Job(models.MethodSFTP).Running {
		time.Sleep(time.Millisecond)
	}
	if !board.Job(models.MethodSFTP).Running {
		t.Fatal("Loop stopped pulling after failures")
	}
	if src.callCount() < 3 {
		t.Errorf("Expected at least 3 pulls, got %d", src.callCount())
	}
}

func TestSynchronizer_StopWaitsForLoop(t *testing.T) {
	board := state.NewBoard()
	s := New(blockingSource{}, board, &Config{Interval: time.Hour})

	s.Start(context.Background())
	if !s.Running() {
		t.Fatal("Expected synchronizer running")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() hung on an in-flight pull")
	}
	if s.Running() {
		t.Error("Expected synchronizer stopped")
	}

	// Stopping twice is harmless
	s.Stop()
}

func TestSynchronizer_StartIsIdempotent(t *testing.T) {
	src := &mockSource{}
	s := New(src, state.NewBoard(), &Config{Interval: time.Hour})

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	if got := src.callCount(); got != 1 {
		t.Errorf("Expected a single loop with one immediate pull, got %d pulls", got)
	}
}
