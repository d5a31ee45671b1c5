package stage

import (
	"panotrack/internal/queue"
	"panotrack/internal/services"
)

// DecodePayload unmarshals the job payload into v.
// On failure it returns a services.ErrValidation suitable for Execute methods.
func DecodePayload(job *queue.Job, v any) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "stage", "decode payload", "Job is missing", nil)
	}
	if err := job.DecodePayload(v); err != nil {
		return services.Wrap(
			services.ErrValidation, "stage", "decode payload",
			"Job payload missing or invalid; remove and re-submit the job", err)
	}
	return nil
}
