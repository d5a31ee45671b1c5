package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"panotrack/internal/sqliteutil"
)

// ClaimNext atomically moves the oldest available queued job of the given
// kinds to active and counts the attempt. It returns nil, nil when nothing is
// ready.
func (s *Store) ClaimNext(ctx context.Context, kinds ...Kind) (*Job, error) {
	if len(kinds) == 0 {
		kinds = AllKinds()
	}
	now := timestamp()
	args := []any{StatusActive, now, now, now, StatusQueued, now}
	for _, kind := range kinds {
		args = append(args, kind)
	}
	args = append(args, StatusQueued)
	query := `UPDATE import_jobs
        SET status = ?, attempts = attempts + 1, started_at = ?, last_heartbeat = ?, updated_at = ?,
            progress_phase = NULL, progress_message = NULL
        WHERE id = (
            SELECT id FROM import_jobs
            WHERE status = ? AND available_at <= ? AND kind IN (` + sqliteutil.Placeholders(len(kinds)) + `)
            ORDER BY available_at, id
            LIMIT 1
        ) AND status = ?
        RETURNING ` + jobColumns

	var job *Job
	err := sqliteutil.RetryOnBusy(ctx, func() error {
		var scanErr error
		job, scanErr = scanJob(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// UpdateProgress records the phase an active job is in.
func (s *Store) UpdateProgress(ctx context.Context, id int64, phase, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs SET progress_phase = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		sqliteutil.NullableString(phase),
		sqliteutil.NullableString(message),
		timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an active job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := timestamp()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusActive,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Complete marks an active job as completed and stores its result.
func (s *Store) Complete(ctx context.Context, id int64, result any) error {
	encoded, err := marshalNullable(result)
	if err != nil {
		return fmt.Errorf("complete job: result %w", err)
	}
	now := timestamp()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, result = ?, progress_phase = 'Completed', error_message = NULL, error_kind = NULL,
            last_heartbeat = NULL, finished_at = ?, updated_at = ?
        WHERE id = ?`,
		StatusCompleted, encoded, now, now, id,
	); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// ScheduleRetry returns a job to the queue after a transient failure. Workers
// will not claim it before availableAt.
func (s *Store) ScheduleRetry(ctx context.Context, id int64, message, kind string, availableAt time.Time) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, error_message = ?, error_kind = ?, available_at = ?,
            progress_phase = 'Retry scheduled', last_heartbeat = NULL, updated_at = ?
        WHERE id = ?`,
		StatusQueued,
		sqliteutil.NullableString(message),
		sqliteutil.NullableString(kind),
		sqliteutil.FormatTime(availableAt),
		timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// Fail marks a job as terminally failed.
func (s *Store) Fail(ctx context.Context, id int64, message, kind string, unrecoverable bool) error {
	now := timestamp()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, error_message = ?, error_kind = ?, unrecoverable = ?, progress_phase = 'Failed',
            last_heartbeat = NULL, finished_at = ?, updated_at = ?
        WHERE id = ?`,
		StatusFailed,
		sqliteutil.NullableString(message),
		sqliteutil.NullableString(kind),
		sqliteutil.BoolToInt(unrecoverable),
		now, now, id,
	); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// Requeue returns an active job to the queue without consuming an attempt.
// Used when a job is interrupted by shutdown rather than failing.
func (s *Store) Requeue(ctx context.Context, id int64) error {
	now := timestamp()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, attempts = MAX(attempts - 1, 0), available_at = ?, progress_phase = 'Interrupted',
            last_heartbeat = NULL, started_at = NULL, updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusQueued, now, now, id, StatusActive,
	); err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// ReclaimStale returns active jobs whose heartbeat is older than cutoff to the
// queue. The attempt already counted stays counted.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, available_at = ?, progress_phase = 'Reclaimed from stale processing',
            last_heartbeat = NULL, updated_at = ?
        WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusQueued, now, now, StatusActive, sqliteutil.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetActive returns every active job to the queue with its attempt refunded.
// The daemon calls it at startup, when no worker can own an active job.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE import_jobs
        SET status = ?, attempts = MAX(attempts - 1, 0), available_at = ?,
            progress_phase = 'Reset from stuck processing', last_heartbeat = NULL, updated_at = ?
        WHERE status = ?`,
		StatusQueued, now, now, StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("reset active jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to the queue with a fresh attempt budget.
// Without ids every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := timestamp()
	query := `UPDATE import_jobs
        SET status = ?, attempts = 0, unrecoverable = 0, error_message = NULL, error_kind = NULL,
            progress_phase = 'Retry requested', progress_message = NULL, available_at = ?,
            finished_at = NULL, result = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, now, now, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + sqliteutil.Placeholders(len(ids)) + `)`
		args = append(args, idArgs(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}
