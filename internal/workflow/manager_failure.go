package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"panotrack/internal/logging"
	"panotrack/internal/metrics"
	"panotrack/internal/queue"
	"panotrack/internal/services"
)

const maxRetryDelay = time.Hour

// RetryDelay returns base doubled for every attempt after the first, capped at one hour.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// handleJobFailure applies the retry policy and returns the metrics outcome.
func (m *Manager) handleJobFailure(ctx context.Context, lane *laneState, logger *slog.Logger, job *queue.Job, jobErr error) string {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()

	if ctx.Err() != nil && errors.Is(jobErr, context.Canceled) {
		if err := m.store.Requeue(persistCtx, job.ID); err != nil {
			logger.Error("failed to requeue interrupted job", logging.Error(err))
		} else {
			logger.Info("job interrupted by shutdown; requeued",
				logging.String(logging.FieldEventType, "job_requeued"),
			)
		}
		return metrics.OutcomeRequeued
	}

	m.setLastError(jobErr)
	message := services.FailureMessage(jobErr)
	kind := queue.FailureKind(jobErr)
	details := services.Details(jobErr)
	unrecoverable := services.IsUnrecoverable(jobErr)
	terminal := unrecoverable || errors.Is(jobErr, services.ErrValidation) || !job.AttemptsLeft()

	if !terminal {
		delay := RetryDelay(m.retryBackoff, job.Attempts)
		if err := m.store.ScheduleRetry(persistCtx, job.ID, message, kind, time.Now().Add(delay)); err != nil {
			logger.Error("failed to schedule job retry", logging.Error(err))
		}
		logging.WarnWithContext(logger, "job failed; retry scheduled", "job_retry_scheduled",
			logging.String(logging.FieldErrorKind, kind),
			logging.String("error_message", message),
			logging.Int("attempt", job.Attempts),
			logging.Duration("retry_in", delay),
			logging.Error(jobErr),
			logging.String(logging.FieldImpact, "the job will run again after the backoff"),
			logging.String(logging.FieldErrorHint, hintOr(details.Hint, "check the job log for the failing phase")),
		)
		return metrics.OutcomeRetried
	}

	if err := m.store.Fail(persistCtx, job.ID, message, kind, unrecoverable); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "job failed", "stage_failure",
		logging.Alert("job_failure"),
		logging.String(logging.FieldErrorKind, kind),
		logging.String("error_message", message),
		logging.Bool("unrecoverable", unrecoverable),
		logging.Int("attempt", job.Attempts),
		logging.Error(jobErr),
		logging.String(logging.FieldErrorHint, hintOr(details.Hint, "fix the cause and run 'panotrack jobs retry'")),
	)
	lane.handler.OnFailure(persistCtx, job, jobErr)
	return metrics.OutcomeFailed
}

func hintOr(hint, fallback string) string {
	if hint != "" {
		return hint
	}
	return fallback
}
