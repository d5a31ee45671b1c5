package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/services"
)

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", lane.name)),
		logging.String(logging.FieldLane, lane.name),
	)
}

// jobLogger returns the lane logger tee'd into the job's own log file. The
// returned func releases the file.
func (m *Manager) jobLogger(ctx context.Context, laneLogger *slog.Logger, job *queue.Job) (*slog.Logger, func()) {
	base := laneLogger.With(logging.String("job_kind", string(job.Kind)))
	closeFn := func() {}
	if m.jobLogs != nil {
		handler, closer, err := m.jobLogs.Open(job.ID)
		if err != nil {
			logging.WarnWithContext(laneLogger, "job log unavailable", "job_log_unavailable",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job output only appears in the daemon log"),
			)
		} else {
			base = logging.TeeLogger(base, handler)
			closeFn = func() { _ = closer.Close() }
		}
	}
	return logging.WithContext(ctx, base), closeFn
}

func withJobContext(ctx context.Context, lane *laneState, job *queue.Job, requestID string) context.Context {
	scope := services.JobScope{RequestID: requestID}
	if job != nil {
		scope.JobID = job.ID
		scope.Stage = string(job.Kind)
	}
	if lane != nil {
		scope.Lane = lane.name
	}
	return services.WithJobScope(ctx, scope)
}
