package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies which workflow lane processes a job.
type Kind string

const (
	KindTrackImport Kind = "track-import"
	KindImageImport Kind = "image-import"
)

// AllKinds returns the known job kinds in lane order.
func AllKinds() []Kind {
	return []Kind{KindTrackImport, KindImageImport}
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	switch kind {
	case KindTrackImport, KindImageImport:
		return kind, true
	}
	return "", false
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusQueued, StatusActive, StatusCompleted, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status. "waiting" is accepted as
// an alias for queued.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "waiting" {
		return StatusQueued, true
	}
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status only changes through an explicit retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a unit of import work persisted in SQLite.
type Job struct {
	ID              int64
	Kind            Kind
	Name            string
	Key             string
	Payload         json.RawMessage
	Status          Status
	ProgressPhase   string
	ProgressMessage string
	ErrorMessage    string
	ErrorKind       string
	Result          json.RawMessage
	Attempts        int
	MaxAttempts     int
	Unrecoverable   bool
	AvailableAt     time.Time
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// AttemptsLeft reports whether a transient failure may be retried.
func (j Job) AttemptsLeft() bool {
	return j.Attempts < j.MaxAttempts
}

// DecodePayload unmarshals the job payload into v.
func (j Job) DecodePayload(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %d has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode job %d payload: %w", j.ID, err)
	}
	return nil
}

// TrackImportPayload is the payload of a track-import job.
type TrackImportPayload struct {
	FilePath string `json:"filePath"`
	Force    bool   `json:"force"`
}

// ImageImportPayload is the payload of an image-import job.
type ImageImportPayload struct {
	TrackID int64 `json:"trackId"`
}

// Request describes a job to enqueue. Key identifies the subject of the job
// (a file path or a track) so callers can detect pending duplicates.
type Request struct {
	Kind        Kind
	Name        string
	Key         string
	Payload     any
	MaxAttempts int
}

// TrackImportRequest builds the request for importing path.
func TrackImportRequest(name, path string, force bool) Request {
	return Request{
		Kind:    KindTrackImport,
		Name:    name,
		Key:     path,
		Payload: TrackImportPayload{FilePath: path, Force: force},
	}
}

// ImageImportRequest builds the request for extracting frames of a track.
func ImageImportRequest(name string, trackID int64) Request {
	return Request{
		Kind:    KindImageImport,
		Name:    name,
		Key:     ImageJobKey(trackID),
		Payload: ImageImportPayload{TrackID: trackID},
	}
}

// ImageJobKey is the Key used by image-import jobs of a track.
func ImageJobKey(trackID int64) string {
	return fmt.Sprintf("track:%d", trackID)
}

// Filter narrows List.
type Filter struct {
	Kinds    []Kind
	Statuses []Status
	Limit    int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Active    int
	Completed int
	Failed    int
}
