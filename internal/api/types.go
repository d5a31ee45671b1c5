package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes an import job in a transport-friendly format.
type Job struct {
	ID            int64           `json:"id" yaml:"id"`
	Kind          string          `json:"kind" yaml:"kind"`
	Name          string          `json:"name" yaml:"name"`
	Key           string          `json:"key" yaml:"key"`
	Status        string          `json:"status" yaml:"status"`
	Progress      JobProgress     `json:"progress" yaml:"progress"`
	ErrorMessage  string          `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	ErrorKind     string          `json:"errorKind,omitempty" yaml:"errorKind,omitempty"`
	Attempts      int             `json:"attempts" yaml:"attempts"`
	MaxAttempts   int             `json:"maxAttempts" yaml:"maxAttempts"`
	Unrecoverable bool            `json:"unrecoverable" yaml:"unrecoverable"`
	Result        json.RawMessage `json:"result,omitempty" yaml:"-"`
	AvailableAt   string          `json:"availableAt,omitempty" yaml:"availableAt,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	StartedAt     string          `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	FinishedAt    string          `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
}

// JobProgress captures the last phase a job reported.
type JobProgress struct {
	Phase   string `json:"phase" yaml:"phase"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Track describes an imported track without its geometry.
type Track struct {
	ID           int64      `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	FilePath     string     `json:"filePath" yaml:"filePath"`
	FileHash     string     `json:"fileHash" yaml:"fileHash"`
	CaptureDate  string     `json:"captureDate" yaml:"captureDate"`
	ImportDate   string     `json:"importDate" yaml:"importDate"`
	UpdatedAt    string     `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	HasImages    bool       `json:"hasImages" yaml:"hasImages"`
	PointCount   int        `json:"pointCount" yaml:"pointCount"`
	LengthMeters float64    `json:"lengthMeters" yaml:"lengthMeters"`
	BBox         [4]float64 `json:"bbox" yaml:"bbox"`
}

// Image describes one frame of a track.
type Image struct {
	ID             int64    `json:"id" yaml:"id"`
	TrackID        int64    `json:"trackId" yaml:"trackId"`
	SequenceNumber int      `json:"sequenceNumber" yaml:"sequenceNumber"`
	CaptureDate    string   `json:"captureDate" yaml:"captureDate"`
	Longitude      float64  `json:"longitude" yaml:"longitude"`
	Latitude       float64  `json:"latitude" yaml:"latitude"`
	Heading        *float64 `json:"heading,omitempty" yaml:"heading,omitempty"`
	FilePath       string   `json:"filePath" yaml:"filePath"`
}

// ImportDirectory describes a watched directory.
type ImportDirectory struct {
	ID        int64  `json:"id" yaml:"id"`
	Path      string `json:"path" yaml:"path"`
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
}

// NotificationTarget describes an apprise URL.
type NotificationTarget struct {
	ID         int64  `json:"id" yaml:"id"`
	AppriseURL string `json:"appriseUrl" yaml:"appriseUrl"`
	CreatedAt  string `json:"createdAt" yaml:"createdAt"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running" yaml:"running"`
	QueueStats  map[string]int `json:"queueStats" yaml:"queueStats"`
	LastError   string         `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty" yaml:"lastJob,omitempty"`
	Lanes       []Lane         `json:"lanes" yaml:"lanes"`
	StageHealth []StageHealth  `json:"stageHealth" yaml:"stageHealth"`
}

// Lane reports the worker pool of one job kind.
type Lane struct {
	Kind    string `json:"kind" yaml:"kind"`
	Name    string `json:"name" yaml:"name"`
	Workers int    `json:"workers" yaml:"workers"`
	Active  int    `json:"active" yaml:"active"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name" yaml:"name"`
	Ready  bool   `json:"ready" yaml:"ready"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// DependencyStatus captures availability of an external program.
type DependencyStatus struct {
	Name        string `json:"name" yaml:"name"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description" yaml:"description"`
	Optional    bool   `json:"optional" yaml:"optional"`
	Available   bool   `json:"available" yaml:"available"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CheckResult is one preflight check.
type CheckResult struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running" yaml:"running"`
	PID          int                `json:"pid" yaml:"pid"`
	StartedAt    string             `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	CatalogPath  string             `json:"catalogPath" yaml:"catalogPath"`
	QueuePath    string             `json:"queuePath" yaml:"queuePath"`
	LockFilePath string             `json:"lockFilePath" yaml:"lockFilePath"`
	LogPath      string             `json:"logPath,omitempty" yaml:"logPath,omitempty"`
	TrackCount   int                `json:"trackCount" yaml:"trackCount"`
	ImageCount   int                `json:"imageCount" yaml:"imageCount"`
	Watching     []string           `json:"watching" yaml:"watching"`
	Workflow     WorkflowStatus     `json:"workflow" yaml:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies" yaml:"dependencies"`
	Checks       []CheckResult      `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// ImportRequest starts a track import of Path.
type ImportRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// MissingImagesResult reports image jobs queued for tracks without frames.
type MissingImagesResult struct {
	Enqueued []Job `json:"enqueued" yaml:"enqueued"`
	Skipped  int   `json:"skipped" yaml:"skipped"`
}

// CountResult reports how many rows an action touched.
type CountResult struct {
	Count int64 `json:"count" yaml:"count"`
}
