package ipc

import "panotrack/internal/api"

// Wire DTOs shared with the HTTP API.
type (
	Job                = api.Job
	Track              = api.Track
	Image              = api.Image
	ImportDirectory    = api.ImportDirectory
	NotificationTarget = api.NotificationTarget
	DaemonStatus       = api.DaemonStatus
)

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse wraps the combined daemon and workflow status.
type StatusResponse struct {
	Status DaemonStatus `json:"status"`
}

// ImportRequest queues a track import for a clip.
type ImportRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// JobResponse carries a single queued job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ImageImportRequest queues frame extraction for a stored track.
type ImageImportRequest struct {
	TrackID int64 `json:"track_id"`
}

// MissingImagesRequest queues frame extraction for every track without images.
type MissingImagesRequest struct{}

// MissingImagesResponse reports queued and skipped tracks.
type MissingImagesResponse struct {
	Enqueued []Job `json:"enqueued"`
	Skipped  int   `json:"skipped"`
}

// JobsListRequest filters the job listing.
type JobsListRequest struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

// JobsListResponse returns jobs newest first.
type JobsListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobShowRequest fetches one job.
type JobShowRequest struct {
	ID int64 `json:"id"`
}

// JobShowResponse carries the job when it exists.
type JobShowResponse struct {
	Job   Job  `json:"job"`
	Found bool `json:"found"`
}

// JobRetryRequest requeues failed jobs. An empty ID list retries every failure.
type JobRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// JobClearRequest removes finished jobs. Scope is all, completed or failed.
type JobClearRequest struct {
	Scope string `json:"scope"`
}

// JobRemoveRequest deletes specific non-active jobs.
type JobRemoveRequest struct {
	IDs []int64 `json:"ids"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// TracksListRequest filters the track listing. Dates accept RFC3339 or
// YYYY-MM-DD; BBox is "minLon,minLat,maxLon,maxLat".
type TracksListRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	BBox  string `json:"bbox"`
	Order string `json:"order"`
	Limit int    `json:"limit"`
}

// TracksListResponse returns catalogued tracks.
type TracksListResponse struct {
	Tracks []Track `json:"tracks"`
}

// TrackShowRequest fetches a track and its images.
type TrackShowRequest struct {
	ID int64 `json:"id"`
}

// TrackShowResponse carries the track and its frames.
type TrackShowResponse struct {
	Track  Track   `json:"track"`
	Images []Image `json:"images"`
}

// DirsListRequest lists watched directories.
type DirsListRequest struct{}

// DirsListResponse returns watched directories.
type DirsListResponse struct {
	Directories []ImportDirectory `json:"directories"`
}

// DirAddRequest registers a watched directory.
type DirAddRequest struct {
	Path string `json:"path"`
}

// DirRemoveRequest unregisters a watched directory.
type DirRemoveRequest struct {
	ID int64 `json:"id"`
}

// DirResponse carries one watched directory.
type DirResponse struct {
	Directory ImportDirectory `json:"directory"`
}

// TargetsListRequest lists apprise targets.
type TargetsListRequest struct{}

// TargetsListResponse returns apprise targets.
type TargetsListResponse struct {
	Targets []NotificationTarget `json:"targets"`
}

// TargetAddRequest registers an apprise URL.
type TargetAddRequest struct {
	URL string `json:"url"`
}

// TargetAddResponse carries the stored target.
type TargetAddResponse struct {
	Target NotificationTarget `json:"target"`
}

// TargetRemoveRequest deletes an apprise target.
type TargetRemoveRequest struct {
	ID int64 `json:"id"`
}

// RemoveResponse acknowledges a deletion.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports delivery outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// RescanRequest rescans every import directory.
type RescanRequest struct{}

// RescanResponse reports how many imports the rescan queued.
type RescanResponse struct {
	Queued int `json:"queued"`
}
