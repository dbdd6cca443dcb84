package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/models"
)

// Mock HTTP transport
type mockRoundTripper struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []*http.Request
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(rt http.RoundTripper, maxFailures int) *BackendClient {
	cfg := &config.Config{Backend: config.BackendConfig{
		BaseURL:            "http://backend.test/",
		Timeout:            1,
		BreakerMaxFailures: maxFailures,
		BreakerTimeout:     time.Minute,
	}}
	c := NewBackendClient(cfg)
	c.client = &http.Client{Transport: rt}
	return c
}

func TestPullStatus_FullPayload(t *testing.T) {
	rt := &mockRoundTripper{status: http.StatusOK, body: `{
		"running": true,
		"logs": ["[10:00:01] Connecting to SFTP...", "Downloaded: index.php"],
		"cpu_history": [{"time": "10:00:00", "value": 12.5}],
		"methods": {
			"ssh": {"running": true, "progress": 30, "last_result": "Downloading... 30%"},
			"cpanel": {"progress": 100},
			"ftp": {"running": true}
		}
	}`}
	c := newTestClient(rt, 5)

	snap, err := c.PullStatus(context.Background())
	if err != nil {
		t.Fatalf("PullStatus() error = %v", err)
	}

	if snap.Running == nil || !*snap.Running {
		t.Error("Expected running=true")
	}
	if len(snap.Logs) != 2 {
		t.Errorf("Expected 2 log lines, got %d", len(snap.Logs))
	}
	if len(snap.UtilizationHistory) != 1 || snap.UtilizationHistory[0].Value != 12.5 {
		t.Errorf("Unexpected utilization history: %v", snap.UtilizationHistory)
	}
	if len(snap.Methods) != 2 {
		t.Fatalf("Expected unknown method dropped, got %v", snap.Methods)
	}
	ssh := snap.Methods[models.MethodSSH]
	if ssh.Running == nil || ssh.Progress == nil || *ssh.Progress != 30 || ssh.LastResult == nil {
		t.Errorf("Unexpected ssh status: %+v", ssh)
	}
	cp := snap.Methods[models.MethodCPanel]
	if cp.Running != nil || cp.LastResult != nil || *cp.Progress != 100 {
		t.Errorf("Expected only progress for cpanel, got %+v", cp)
	}

	if got := rt.requests[0].URL.String(); got != "http://backend.test/api/status" {
		t.Errorf("Unexpected request URL %s", got)
	}
}

func TestPullStatus_AbsentFieldsStayNil(t *testing.T) {
	c := newTestClient(&mockRoundTripper{status: http.StatusOK, body: `{"logs": []}`}, 5)

	snap, err := c.PullStatus(context.Background())
	if err != nil {
		t.Fatalf("PullStatus() error = %v", err)
	}
	if snap.Logs == nil || len(snap.Logs) != 0 {
		t.Errorf("Expected empty non-nil logs, got %#v", snap.Logs)
	}
	if snap.Running != nil || snap.UtilizationHistory != nil || snap.Methods != nil {
		t.Errorf("Expected absent fields to stay nil, got %+v", snap)
	}
}

func TestPullStatus_Errors(t *testing.T) {
	tests := []struct {
		name string
		rt   *mockRoundTripper
	}{
		{"transport error", &mockRoundTripper{err: errors.New("connection refused")}},
		{"server error", &mockRoundTripper{status: http.StatusInternalServerError, body: "oops"}},
		{"malformed body", &mockRoundTripper{status: http.StatusOK, body: "{not json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(tt.rt, 5)
			if _, err := c.PullStatus(context.Background()); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestRunAndStopBackup(t *testing.T) {
	rt := &mockRoundTripper{status: http.StatusOK, body: `{"status": "started"}`}
	c := newTestClient(rt, 5)

	if err := c.RunBackup(context.Background()); err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if err := c.StopBackup(context.Background()); err != nil {
		t.Fatalf("StopBackup() error = %v", err)
	}

	if len(rt.requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(rt.requests))
	}
	if rt.requests[0].Method != http.MethodPost || rt.requests[0].URL.Path != "/api/run" {
		t.Errorf("Unexpected run request %s %s", rt.requests[0].Method, rt.requests[0].URL.Path)
	}
	if rt.requests[1].URL.Path != "/api/stop" {
		t.Errorf("Unexpected stop request path %s", rt.requests[1].URL.Path)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	rt := &mockRoundTripper{err: errors.New("connection refused")}
	c := newTestClient(rt, 2)
	ctx := context.Background()

	_, _ = c.PullStatus(ctx)
	_, _ = c.PullStatus(ctx)

	if !c.IsBreakerOpen() {
		t.Fatal("Expected breaker open after 2 consecutive failures")
	}

	_, err := c.PullStatus(ctx)
	if !IsUnavailable(err) {
		t.Errorf("Expected breaker rejection, got %v", err)
	}
	if len(rt.requests) != 2 {
		t.Errorf("Open breaker must not reach the transport, got %d requests", len(rt.requests))
	}
	if err := c.RunBackup(ctx); !IsUnavailable(err) {
		t.Errorf("Expected RunBackup rejected by open breaker, got %v", err)
	}
}
