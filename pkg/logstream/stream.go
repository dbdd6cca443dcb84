// Package logstream holds the bounded operator log shared by every producer.
package logstream

import (
	"sync"

	"github.com/labverse/sentinel-core/pkg/models"
)

// DefaultCapacity is the number of entries the console keeps
const DefaultCapacity = 100

// Stream is an append-only FIFO ring of log entries. When full, appending
// evicts the oldest entry.
type Stream struct {
	mu      sync.RWMutex
	entries []models.LogEntry
	head    int // index of the oldest entry
	size    int
}

// New creates a stream holding at most capacity entries
func New(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{entries: make([]models.LogEntry, capacity)}
}

// Cap returns the stream capacity
func (s *Stream) Cap() int {
	return len(s.entries)
}

// Len returns the number of entries held
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Append adds an entry, evicting the oldest one on overflow
func (s *Stream) Append(entry models.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entry)
}

func (s *Stream) appendLocked(entry models.LogEntry) {
	capacity := len(s.entries)
	if s.size < capacity {
		s.entries[(s.head+s.size)%capacity] = entry
		s.size++
		return
	}
	s.entries[s.head] = entry
	s.head = (s.head + 1) % capacity
}

// Replace swaps the whole content for the given entries. Only the newest
// Cap() entries are kept.
func (s *Stream) Replace(entries []models.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		s.entries[i] = models.LogEntry{}
	}
	s.head, s.size = 0, 0
	if over := len(entries) - len(s.entries); over > 0 {
		entries = entries[over:]
	}
	for _, e := range entries {
		s.appendLocked(e)
	}
}

// Entries returns a copy of the content, oldest first
func (s *Stream) Entries() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LogEntry, s.size)
	capacity := len(s.entries)
	for i := 0; i < s.size; i++ {
		out[i] = s.entries[(s.head+i)%capacity]
	}
	return out
}

// Lines returns the content rendered as "[HH:MM:SS] message" strings
func (s *Stream) Lines() []string {
	entries := s.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}
