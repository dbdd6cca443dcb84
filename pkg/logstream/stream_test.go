package logstream

import (
	"fmt"
	"testing"
	"time"

	"github.com/labverse/sentinel-core/pkg/models"
)

func entry(i int) models.LogEntry {
	return models.LogEntry{Timestamp: time.Unix(int64(i), 0), Message: fmt.Sprintf("append #%d", i)}
}

func TestStream_EvictsOldestFirst(t *testing.T) {
	s := New(DefaultCapacity)

	for i := 1; i <= 150; i++ {
		s.Append(entry(i))
	}

	entries := s.Entries()
	if len(entries) != 100 {
		t.Fatalf("Expected 100 entries, got %d", len(entries))
	}
	if entries[0].Message != "append #51" {
		t.Errorf("Expected first entry to be append #51, got %q", entries[0].Message)
	}
	if entries[99].Message != "append #150" {
		t.Errorf("Expected last entry to be append #150, got %q", entries[99].Message)
	}
}

func TestStream_NeverExceedsCapacity(t *testing.T) {
	s := New(5)

	for i := 0; i < 23; i++ {
		s.Append(entry(i))
		if s.Len() > 5 {
			t.Fatalf("Stream grew to %d entries after %d appends", s.Len(), i+1)
		}
	}

	for i, e := range s.Entries() {
		want := fmt.Sprintf("append #%d", 18+i)
		if e.Message != want {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want)
		}
	}
}

func TestStream_Replace(t *testing.T) {
	tests := []struct {
		name      string
		prefill   int
		replace   int
		wantLen   int
		wantFirst string
	}{
		{name: "replace shorter", prefill: 10, replace: 3, wantLen: 3, wantFirst: "append #0"},
		{name: "replace empty", prefill: 4, replace: 0, wantLen: 0},
		{name: "replace overflowing keeps newest", prefill: 0, replace: 120, wantLen: 100, wantFirst: "append #20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultCapacity)
			for i := 0; i < tt.prefill; i++ {
				s.Append(entry(1000 + i))
			}

			var repl []models.LogEntry
			for i := 0; i < tt.replace; i++ {
				repl = append(repl, entry(i))
			}
			s.Replace(repl)

			entries := s.Entries()
			if len(entries) != tt.wantLen {
				t.Fatalf("Expected %d entries, got %d", tt.wantLen, len(entries))
			}
			if tt.wantLen > 0 && entries[0].Message != tt.wantFirst {
				t.Errorf("Expected first entry %q, got %q", tt.wantFirst, entries[0].Message)
			}
		})
	}
}

func TestStream_AppendAfterReplace(t *testing.T) {
	s := New(3)
	s.Replace([]models.LogEntry{entry(1), entry(2), entry(3)})
	s.Append(entry(4))

	entries := s.Entries()
	if entries[0].Message != "append #2" || entries[2].Message != "append #4" {
		t.Errorf("Unexpected order after append: %v", entries)
	}
}

func TestStream_Lines(t *testing.T) {
	s := New(2)
	ts := time.Date(2024, 7, 26, 14, 5, 9, 0, time.UTC)
	s.Append(models.LogEntry{Timestamp: ts, Message: "Connecting to SFTP..."})
	s.Append(models.LogEntry{Message: "raw"})

	lines := s.Lines()
	if lines[0] != "[14:05:09] Connecting to SFTP..." {
		t.Errorf("Unexpected rendered line %q", lines[0])
	}
	if lines[1] != "raw" {
		t.Errorf("Expected bare message for zero timestamp, got %q", lines[1])
	}
}
