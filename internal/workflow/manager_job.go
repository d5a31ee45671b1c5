package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"panotrack/internal/logging"
	"panotrack/internal/metrics"
	"panotrack/internal/queue"
	"panotrack/internal/stage"
)

const persistTimeout = 10 * time.Second

// imageCounter is implemented by results that stored frames.
type imageCounter interface {
	StoredImages() int
}

func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *queue.Job) {
	requestID := uuid.NewString()
	jobCtx := withJobContext(ctx, lane, job, requestID)
	logger, closeLog := m.jobLogger(jobCtx, laneLogger, job)
	defer closeLog()

	m.trackActive(lane.kind, 1)
	m.metrics.JobStarted(string(lane.kind))
	start := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("job_name", job.Name),
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts),
	)

	result, execErr := m.executeWithHeartbeat(jobCtx, lane.handler, job, m.progressReporter(logger, job))
	var outcome string
	if execErr != nil {
		outcome = m.handleJobFailure(jobCtx, lane, logger, job, execErr)
	} else {
		outcome = m.completeJob(jobCtx, lane, logger, job, result, time.Since(start))
	}

	elapsed := time.Since(start)
	m.trackActive(lane.kind, -1)
	m.metrics.JobFinished(string(lane.kind), outcome, elapsed)
	m.refreshLastJob(job.ID)
}

func (m *Manager) completeJob(ctx context.Context, lane *laneState, logger *slog.Logger, job *queue.Job, result any, elapsed time.Duration) string {
	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	if err := m.store.Complete(persistCtx, job.ID, result); err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist job result", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "the job stays active until the reclaimer requeues it"),
		)
		return metrics.OutcomeFailed
	}
	switch lane.kind {
	case queue.KindTrackImport:
		m.metrics.TrackImported()
	case queue.KindImageImport:
		if counted, ok := result.(imageCounter); ok {
			m.metrics.ImagesImported(counted.StoredImages())
		}
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", elapsed),
	)
	return metrics.OutcomeCompleted
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job, progress stage.ProgressReporter) (any, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	result, err := handler.Execute(ctx, job, progress)
	hbCancel()
	hbWG.Wait()
	return result, err
}

func (m *Manager) progressReporter(logger *slog.Logger, job *queue.Job) stage.ProgressReporter {
	return stage.ProgressFunc(func(ctx context.Context, phase stage.Phase, message string) {
		logger.Debug("phase changed",
			logging.String("phase", string(phase)),
			logging.String("progress_message", message),
		)
		if err := m.store.UpdateProgress(ctx, job.ID, string(phase), message); err != nil {
			logging.WarnWithContext(logger, "progress update failed", "progress_update_failed",
				logging.String("phase", string(phase)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job listing shows a stale phase"),
			)
		}
	})
}

// persistContext detaches from shutdown so terminal transitions still land.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func (m *Manager) trackActive(kind queue.Kind, delta int) {
	m.mu.Lock()
	m.active[kind] += delta
	m.mu.Unlock()
}

func (m *Manager) refreshLastJob(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	job, err := m.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return
	}
	m.setLastJob(job)
}
