package database

import (
	"context"
)

const createSchedulesTable = `
CREATE TABLE IF NOT EXISTS schedules (
    id         BIGSERIAL PRIMARY KEY,
    job_type   TEXT      NOT NULL,
    hour       INTEGER   NOT NULL,
    minute     INTEGER   NOT NULL,
    days       TEXT[]    NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the schedules table if it is missing
func (q *Queries) EnsureSchema(ctx context.Context) error {
	_, err := q.db.Exec(ctx, createSchedulesTable)
	return err
}

// Schedule is a row of the schedules table
type Schedule struct {
	ID      int64
	JobType string
	Hour    int32
	Minute  int32
	Days    []string
}

const createSchedule = `-- name: CreateSchedule :one
INSERT INTO schedules (job_type, hour, minute, days)
VALUES ($1, $2, $3, $4)
RETURNING id, job_type, hour, minute, days`

type CreateScheduleParams struct {
	JobType string
	Hour    int32
	Minute  int32
	Days    []string
}

func (q *Queries) CreateSchedule(ctx context.Context, arg CreateScheduleParams) (Schedule, error) {
	row := q.db.QueryRow(ctx, createSchedule, arg.JobType, arg.Hour, arg.Minute, arg.Days)
	var i Schedule
	err := row.Scan(&i.ID, &i.JobType, &i.Hour, &i.Minute, &i.Days)
	return i, err
}

const getSchedule = `-- name: GetSchedule :one
SELECT id, job_type, hour, minute, days FROM schedules
WHERE id = $1`

func (q *Queries) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	row := q.db.QueryRow(ctx, getSchedule, id)
	var i Schedule
	err := row.Scan(&i.ID, &i.JobType, &i.Hour, &i.Minute, &i.Days)
	return i, err
}

const listSchedules = `-- name: ListSchedules :many
SELECT id, job_type, hour, minute, days FROM schedules
ORDER BY id`

func (q *Queries) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := q.db.Query(ctx, listSchedules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Schedule
	for rows.Next() {
		var i Schedule
		if err := rows.Scan(&i.ID, &i.JobType, &i.Hour, &i.Minute, &i.Days); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateSchedule = `-- name: UpdateSchedule :execrows
UPDATE schedules
SET hour = $2, minute = $3, days = $4, updated_at = NOW()
WHERE id = $1`

type UpdateScheduleParams struct {
	ID     int64
	Hour   int32
	Minute int32
	Days   []string
}

func (q *Queries) UpdateSchedule(ctx context.Context, arg UpdateScheduleParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateSchedule, arg.ID, arg.Hour, arg.Minute, arg.Days)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteSchedule = `-- name: DeleteSchedule :execrows
DELETE FROM schedules
WHERE id = $1`

func (q *Queries) DeleteSchedule(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSchedule, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
