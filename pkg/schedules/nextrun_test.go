package schedules

import (
	"testing"
	"time"

	"github.com/labverse/sentinel-core/pkg/models"
)

// 2024-07-22 is a Monday
var monday10 = time.Date(2024, 7, 22, 10, 0, 0, 0, time.UTC)

func TestNextRun(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		def    models.ScheduleDefinition
		want   time.Time
		wantOK bool
	}{
		{
			name:   "time passed today rolls to next week",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 9, Minute: 0, Days: models.NewDaySet(time.Monday)},
			want:   time.Date(2024, 7, 29, 9, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "later today qualifies",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 11, Minute: 0, Days: models.NewDaySet(time.Monday)},
			want:   time.Date(2024, 7, 22, 11, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "exactly now qualifies",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 10, Minute: 0, Days: models.NewDaySet(time.Monday)},
			want:   monday10,
			wantOK: true,
		},
		{
			name:   "empty day set never fires",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 10, Minute: 0},
			wantOK: false,
		},
		{
			name:   "minimum over several days",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 2, Minute: 30, Days: models.NewDaySet(time.Friday, time.Wednesday, time.Monday)},
			want:   time.Date(2024, 7, 24, 2, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "sunday after saturday crosses week boundary",
			now:    time.Date(2024, 7, 27, 23, 0, 0, 0, time.UTC),
			def:    models.ScheduleDefinition{Hour: 1, Minute: 15, Days: models.NewDaySet(time.Sunday)},
			want:   time.Date(2024, 7, 28, 1, 15, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "month boundary",
			now:    time.Date(2024, 7, 31, 12, 0, 0, 0, time.UTC),
			def:    models.ScheduleDefinition{Hour: 8, Minute: 0, Days: models.NewDaySet(time.Thursday)},
			want:   time.Date(2024, 8, 1, 8, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "every day picks tomorrow when today passed",
			now:    monday10,
			def:    models.ScheduleDefinition{Hour: 9, Minute: 59, Days: models.NewDaySet(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)},
			want:   time.Date(2024, 7, 23, 9, 59, 0, 0, time.UTC),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextRun(tt.def, tt.now)
			if ok != tt.wantOK {
				t.Fatalf("NextRun() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRun_UsesLocation(t *testing.T) {
	loc := time.FixedZone("SAST", 2*60*60)
	now := time.Date(2024, 7, 22, 10, 0, 0, 0, loc)
	def := models.ScheduleDefinition{Hour: 11, Minute: 0, Days: models.NewDaySet(time.Monday)}

	got, ok := NextRun(def, now)
	if !ok {
		t.Fatal("Expected a next run")
	}
	if got.Location() != loc || got.Hour() != 11 {
		t.Errorf("Expected 11:00 in SAST, got %v", got)
	}
	if !got.Equal(time.Date(2024, 7, 22, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 09:00 UTC, got %v", got.UTC())
	}
}

func TestNextRun_NeverBeforeNow(t *testing.T) {
	def := models.ScheduleDefinition{Hour: 17, Minute: 45, Days: models.NewDaySet(time.Tuesday, time.Saturday)}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for h := 0; h < 24*14; h++ {
		now := start.Add(time.Duration(h)*time.Hour + 17*time.Minute)
		got, ok := NextRun(def, now)
		if !ok {
			t.Fatal("Expected a next run")
		}
		if got.Before(now) || got.Sub(now) > 7*24*time.Hour {
			t.Fatalf("NextRun(%v) = %v out of range", now, got)
		}
		if !def.Days.Has(got.Weekday()) || got.Hour() != 17 || got.Minute() != 45 {
			t.Fatalf("NextRun(%v) = %v does not match definition", now, got)
		}
	}
}
