package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"panotrack/internal/sqliteutil"
)

const insertJob = `INSERT INTO import_jobs (
        kind, name, job_key, payload, status, attempts, max_attempts,
        unrecoverable, available_at, created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, 0, ?, 0, ?, ?, ?)`

func (s *Store) insertArgs(req Request) ([]any, error) {
	if _, ok := ParseKind(string(req.Kind)); !ok {
		return nil, fmt.Errorf("unknown job kind %q", req.Kind)
	}
	if strings.TrimSpace(req.Key) == "" {
		return nil, errors.New("job key must be set")
	}
	payload, err := marshalNullable(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("job payload: %w", err)
	}
	if payload == nil {
		payload = "{}"
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.maxAttempts
	}
	now := timestamp()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = req.Key
	}
	return []any{req.Kind, name, req.Key, payload, StatusQueued, maxAttempts, now, now, now}, nil
}

// Enqueue inserts a queued job that is immediately available to workers.
func (s *Store) Enqueue(ctx context.Context, req Request) (*Job, error) {
	args, err := s.insertArgs(req)
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(ctx, insertJob, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// EnqueueBatch inserts all requests in one transaction.
func (s *Store) EnqueueBatch(ctx context.Context, reqs []Request) ([]*Job, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	argSets := make([][]any, 0, len(reqs))
	for _, req := range reqs {
		args, err := s.insertArgs(req)
		if err != nil {
			return nil, err
		}
		argSets = append(argSets, args)
	}
	ids := make([]int64, 0, len(reqs))
	err := sqliteutil.InTx(ctx, s.db, func(tx *sql.Tx) error {
		ids = ids[:0]
		for _, args := range argSets {
			res, err := tx.ExecContext(ctx, insertJob, args...)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert job batch: %w", err)
	}
	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// GetByID fetches a job by identifier. A missing job returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Kinds) > 0 {
		where = append(where, "kind IN ("+sqliteutil.Placeholders(len(filter.Kinds))+")")
		for _, kind := range filter.Kinds {
			args = append(args, kind)
		}
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+sqliteutil.Placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	query := `SELECT ` + jobColumns + ` FROM import_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// HasPending reports whether a queued or active job of kind exists for key.
func (s *Store) HasPending(ctx context.Context, kind Kind, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM import_jobs WHERE kind = ? AND job_key = ? AND status IN (?, ?))`,
		kind, key, StatusQueued, StatusActive,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pending job lookup: %w", err)
	}
	return exists != 0, nil
}
