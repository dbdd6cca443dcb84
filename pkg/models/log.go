package models

import (
	"strings"
	"time"
)

const logTimeLayout = "15:04:05"

// LogEntry is one line of the operator log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// String renders the entry as "[HH:MM:SS] message". Entries without a
// timestamp render the bare message.
func (e LogEntry) String() string {
	if e.Timestamp.IsZero() {
		return e.Message
	}
	return "[" + e.Timestamp.Format(logTimeLayout) + "] " + e.Message
}

// ParseLogLine converts a rendered "[HH:MM:SS] message" line back into an entry.
// The clock time is placed on the calendar day of ref. Lines without a
// recognizable time prefix keep the whole text as the message.
func ParseLogLine(line string, ref time.Time) LogEntry {
	if len(line) >= len(logTimeLayout)+3 && line[0] == '[' && line[len(logTimeLayout)+1] == ']' {
		clock, err := time.ParseInLocation(logTimeLayout, line[1:len(logTimeLayout)+1], ref.Location())
		if err == nil {
			ts := time.Date(ref.Year(), ref.Month(), ref.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, ref.Location())
			return LogEntry{
				Timestamp: ts,
				Message:   strings.TrimPrefix(line[len(logTimeLayout)+2:], " "),
			}
		}
	}
	return LogEntry{Message: line}
}
