package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DaySet is a set of weekdays stored as a bitmask indexed by time.Weekday
type DaySet uint8

var dayKeys = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// weekOrder lists weekdays Monday first, the order used for display
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// NewDaySet builds a set from the given weekdays
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns a copy of the set including d
func (s DaySet) With(d time.Weekday) DaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

// Has reports whether d is in the set
func (s DaySet) Has(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

// Empty reports whether the set contains no days
func (s DaySet) Empty() bool {
	return s&0x7f == 0
}

// Days returns the members Monday first
func (s DaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range weekOrder {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Keys returns the lowercase three-letter names of the members, Monday first
func (s DaySet) Keys() []string {
	keys := make([]string, 0, 7)
	for _, d := range s.Days() {
		keys = append(keys, dayKeys[d])
	}
	return keys
}

func (s DaySet) String() string {
	return strings.Join(s.Keys(), ",")
}

// ParseDay resolves a weekday name such as "mon" or "Monday"
func ParseDay(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if len(key) >= 3 {
		key = key[:3]
	}
	for i, k := range dayKeys {
		if k == key {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// ParseDaySet parses a comma separated list of weekday names. An empty string
// yields the empty set.
func ParseDaySet(s string) (DaySet, error) {
	var set DaySet
	if strings.TrimSpace(s) == "" {
		return set, nil
	}
	for _, part := range strings.Split(s, ",") {
		d, err := ParseDay(part)
		if err != nil {
			return 0, err
		}
		set = set.With(d)
	}
	return set, nil
}

func (s DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}

// UnmarshalJSON accepts either a list of names or a comma separated string
func (s *DaySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return fmt.Errorf("days must be a list of weekday names: %w", err)
		}
		set, err := ParseDaySet(joined)
		if err != nil {
			return err
		}
		*s = set
		return nil
	}

	var set DaySet
	for _, name := range names {
		d, err := ParseDay(name)
		if err != nil {
			return err
		}
		set = set.With(d)
	}
	*s = set
	return nil
}

// ScheduleState is the lifecycle state of a schedule definition
type ScheduleState string

const (
	ScheduleActive  ScheduleState = "active"
	ScheduleDormant ScheduleState = "dormant"
)

// ScheduleDefinition is a recurring download: one method, one time of day, a set of weekdays
type ScheduleDefinition struct {
	ID      int64      `json:"id"`
	JobType MethodID   `json:"job_type"`
	Hour    int        `json:"hour"`
	Minute  int        `json:"minute"`
	Days    DaySet     `json:"days"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// State reports Active when the definition has at least one weekday
func (d ScheduleDefinition) State() ScheduleState {
	if d.Days.Empty() {
		return ScheduleDormant
	}
	return ScheduleActive
}
