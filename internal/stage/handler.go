package stage

import (
	"context"

	"panotrack/internal/queue"
)

// Handler describes the contract the workflow manager needs from each job kind.
//
// Execute runs one attempt and returns a result stored on the completed job.
// OnFailure is called once per job, only when a failure is terminal.
type Handler interface {
	Execute(ctx context.Context, job *queue.Job, progress ProgressReporter) (any, error)
	OnFailure(ctx context.Context, job *queue.Job, err error)
	HealthCheck(ctx context.Context) Health
}

// Phase names a step of a job's pipeline.
type Phase string

const (
	PhaseCompleted Phase = "Completed"
	PhaseFailed    Phase = "Failed"
)

// ProgressReporter receives phase transitions of a running job.
type ProgressReporter interface {
	Report(ctx context.Context, phase Phase, message string)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(ctx context.Context, phase Phase, message string)

// Report implements ProgressReporter.
func (f ProgressFunc) Report(ctx context.Context, phase Phase, message string) {
	if f != nil {
		f(ctx, phase, message)
	}
}

// NopProgress discards progress.
var NopProgress ProgressReporter = ProgressFunc(nil)

// Health is a handler's readiness as reported in status output.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports name as ready.
func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy reports name as not ready, with detail naming the cause.
func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }
