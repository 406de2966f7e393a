package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const jobColumns = `id, job_type, payload, status, priority, scheduled_at,
	attempts, max_attempts, error_message, created_at, started_at, completed_at`

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority, &j.ScheduledAt,
		&j.Attempts, &j.MaxAttempts, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	return j, err
}

const enqueueJob = `
INSERT INTO jobs (id, job_type, payload, status, priority, scheduled_at, max_attempts)
VALUES ($1, $2, $3, 'pending', $4, $5, $6)
RETURNING ` + jobColumns

// EnqueueJobParams holds the fields of a new job row.
type EnqueueJobParams struct {
	JobType     string
	Payload     json.RawMessage
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job.
func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	payload := pqtype.NullRawMessage{RawMessage: arg.Payload, Valid: len(arg.Payload) > 0}
	return scanJob(q.db.QueryRowContext(ctx, enqueueJob,
		uuid.New(), arg.JobType, payload, arg.Priority, arg.ScheduledAt, arg.MaxAttempts))
}

// Dequeue locks the row so concurrent workers never pick the same job.
const dequeueJob = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND scheduled_at <= now()
ORDER BY priority DESC, scheduled_at
LIMIT 1
FOR UPDATE SKIP LOCKED`

// DequeueJob selects the next runnable job inside the caller's
// transaction. Returns sql.ErrNoRows when the queue is empty.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, dequeueJob))
}

const updateJobStarted = `
UPDATE jobs
SET status = 'running', attempts = attempts + 1, started_at = now()
WHERE id = $1`

// UpdateJobStarted marks a job as running.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobStarted, id)
	return err
}

const updateJobCompleted = `
UPDATE jobs
SET status = 'completed', completed_at = now(), error_message = NULL
WHERE id = $1`

// UpdateJobCompleted marks a job as successfully finished.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobCompleted, id)
	return err
}

// A failed job is retried with linear backoff until max_attempts is
// reached, then parked as 'failed'.
const updateJobFailed = `
UPDATE jobs
SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
    scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at ELSE now() + (attempts * interval '1 minute') END,
    error_message = $2
WHERE id = $1`

// UpdateJobFailedParams records a job failure.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
}

// UpdateJobFailed reschedules or parks a failed job.
func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, updateJobFailed, arg.ID, arg.ErrorMessage)
	return err
}

const updateJobFailedPermanent = `
UPDATE jobs SET status = 'failed', error_message = $2 WHERE id = $1`

// UpdateJobFailedPermanent parks a job without further retries.
func (q *Queries) UpdateJobFailedPermanent(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, updateJobFailedPermanent, arg.ID, arg.ErrorMessage)
	return err
}

const recoverStaleJobs = `
UPDATE jobs
SET status = 'pending', started_at = NULL
WHERE status = 'running' AND started_at < now() - ($1 * interval '1 second')`

// RecoverStaleJobs resets jobs stuck in 'running' longer than the given
// threshold, typically left behind by a crashed worker.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, recoverStaleJobs, thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countPendingJobsByType = `
SELECT count(*) FROM jobs WHERE job_type = $1 AND status IN ('pending', 'running')`

// CountPendingJobsByType reports how many jobs of a type are queued or
// running, used by the scheduler to avoid duplicate maintenance jobs.
func (q *Queries) CountPendingJobsByType(ctx context.Context, jobType string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPendingJobsByType, jobType).Scan(&n)
	return n, err
}
