package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"
)

func captureLogger(t *testing.T, service string) (*Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stdout) })
	return New(service), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var fields map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &fields); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return fields
}

func TestNew_ServiceFields(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	log, buf := captureLogger(t, "test-service")

	log.WithMethod("sftp").Info().Str("action", "probe").Msg("hello")

	fields := decodeLine(t, buf)
	want := map[string]string{
		"service":     "test-service",
		"environment": "production",
		"method":      "sftp",
		"action":      "probe",
		"message":     "hello",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %v, want %q", k, fields[k], v)
		}
	}
	if _, ok := fields["@timestamp"]; !ok {
		t.Error("Expected @timestamp field")
	}
}

func TestOutcomeLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"success", nil, "info"},
		{"failure", errors.New("disk full"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := captureLogger(t, "test")

			log.LogTransferComplete("ssh", "run-1", time.Second, "backup.tar.gz", tt.err)

			fields := decodeLine(t, buf)
			if fields["level"] != tt.level {
				t.Errorf("level = %v, want %s", fields["level"], tt.level)
			}
			if fields["artifact_emitted"] != (tt.err == nil) {
				t.Errorf("artifact_emitted = %v", fields["artifact_emitted"])
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	log := Nop().WithRequestID("abc")
	ctx := log.ToContext(context.Background())

	if got := WithContext(ctx, "other"); got != log {
		t.Error("Expected logger stored in context")
	}
}

func TestNew_ConcurrentWithLogging(t *testing.T) {
	SetOutput(io.Discard)
	t.Cleanup(func() { SetOutput(os.Stdout) })

	active := New("active")
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			active.Info().Str("action", "tick").Msg("x")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			New("late")
		}
	}()

	wg.Wait()
}
