package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"panotrack/internal/sqliteutil"
)

const jobColumns = "id, kind, name, job_key, payload, status, progress_phase, progress_message, error_message, error_kind, result, attempts, max_attempts, unrecoverable, available_at, last_heartbeat, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job             Job
		kind            string
		status          string
		payload         string
		progressPhase   sql.NullString
		progressMessage sql.NullString
		errorMessage    sql.NullString
		errorKind       sql.NullString
		result          sql.NullString
		unrecoverable   int
		availableRaw    string
		heartbeatRaw    sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&job.ID,
		&kind,
		&job.Name,
		&job.Key,
		&payload,
		&status,
		&progressPhase,
		&progressMessage,
		&errorMessage,
		&errorKind,
		&result,
		&job.Attempts,
		&job.MaxAttempts,
		&unrecoverable,
		&availableRaw,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job.Kind = Kind(kind)
	job.Status = Status(status)
	job.Payload = json.RawMessage(payload)
	job.ProgressPhase = progressPhase.String
	job.ProgressMessage = progressMessage.String
	job.ErrorMessage = errorMessage.String
	job.ErrorKind = errorKind.String
	if result.Valid && result.String != "" {
		job.Result = json.RawMessage(result.String)
	}
	job.Unrecoverable = unrecoverable != 0

	if t, err := sqliteutil.ParseTime(availableRaw); err == nil {
		job.AvailableAt = t
	}
	if t, err := sqliteutil.ParseTime(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := sqliteutil.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	job.LastHeartbeat = sqliteutil.ParseNullTime(heartbeatRaw)
	job.StartedAt = sqliteutil.ParseNullTime(startedRaw)
	job.FinishedAt = sqliteutil.ParseNullTime(finishedRaw)
	return &job, nil
}

func marshalNullable(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return string(raw), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

func timestamp() string {
	return sqliteutil.FormatTime(time.Now())
}

func idArgs(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
