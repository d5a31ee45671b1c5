// Package workflow drives queued import jobs through their stage handlers.
//
// The Manager runs one lane per job kind (track-import, image-import), each
// with a configurable number of workers. Workers claim jobs from the queue,
// run the kind's stage.Handler under a heartbeat, persist progress phases and
// apply the retry policy: unrecoverable and validation failures fail the job
// at once, transient failures are rescheduled with exponential backoff until
// attempts run out, and shutdown interruptions are requeued without consuming
// an attempt. A reclaimer returns jobs whose heartbeat expired to the queue.
//
// Each job attempt logs to its own JSON file under log_dir/jobs in addition
// to the daemon log, tagged with a per-attempt correlation id.
package workflow
