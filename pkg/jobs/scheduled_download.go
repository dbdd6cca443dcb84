package jobs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

// Starter begins a download for a method
type Starter interface {
	Start(id models.MethodID)
}

// ScheduledDownloadJob fires one schedule definition
type ScheduledDownloadJob struct {
	def     models.ScheduleDefinition
	starter Starter
}

// NewScheduledDownloadJob creates the cron job for an active definition
func NewScheduledDownloadJob(def models.ScheduleDefinition, starter Starter) *ScheduledDownloadJob {
	return &ScheduledDownloadJob{def: def, starter: starter}
}

// ScheduleJobName is the job name used for a definition id and type
func ScheduleJobName(def models.ScheduleDefinition) string {
	return fmt.Sprintf("schedule_%d_%s", def.ID, def.JobType)
}

// CronSpec renders a definition as "minute hour * * days", days numbered
// from Sunday=0. Empty day sets have no spec.
func CronSpec(def models.ScheduleDefinition) (string, bool) {
	days := def.Days.Days()
	if len(days) == 0 {
		return "", false
	}

	nums := make([]int, len(days))
	for i, d := range days {
		nums[i] = int(d)
	}
	sort.Ints(nums)

	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%d %d * * %s", def.Minute, def.Hour, strings.Join(parts, ",")), true
}

func (j *ScheduledDownloadJob) Name() string {
	return ScheduleJobName(j.def)
}

func (j *ScheduledDownloadJob) Schedule() string {
	spec, _ := CronSpec(j.def)
	return spec
}

// Definition returns the definition this job fires
func (j *ScheduledDownloadJob) Definition() models.ScheduleDefinition {
	return j.def
}

func (j *ScheduledDownloadJob) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := logger.WithContext(ctx, "scheduled-download").WithSchedule(j.def.ID, j.Name())
	log.Info().
		Str("method", j.def.JobType.String()).
		Str("action", "schedule_fired").
		Msg("Scheduled download firing")

	j.starter.Start(j.def.JobType)
	return nil
}
