package schedules

import (
	"time"

	"github.com/labverse/sentinel-core/pkg/models"
)

// NextRun returns the soonest instant at or after now that falls on one of the
// definition's weekdays at its hour:minute, in now's location. The boolean is
// false when the day set is empty and the definition never fires.
func NextRun(def models.ScheduleDefinition, now time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)

	for _, day := range def.Days.Days() {
		ahead := (int(day) - int(now.Weekday()) + 7) % 7
		candidate := time.Date(now.Year(), now.Month(), now.Day()+ahead,
			def.Hour, def.Minute, 0, 0, now.Location())
		if candidate.Before(now) {
			// Same weekday but the time of day has passed: next week
			candidate = time.Date(now.Year(), now.Month(), now.Day()+ahead+7,
				def.Hour, def.Minute, 0, 0, now.Location())
		}
		if !found || candidate.Before(best) {
			best = candidate
			found = true
		}
	}

	return best, found
}
