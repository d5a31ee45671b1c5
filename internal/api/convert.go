package api

import (
	"slices"
	"time"

	"panotrack/internal/deps"
	"panotrack/internal/gpx"
	"panotrack/internal/preflight"
	"panotrack/internal/queue"
	"panotrack/internal/stage"
	"panotrack/internal/tracks"
	"panotrack/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:     job.ID,
		Kind:   string(job.Kind),
		Name:   job.Name,
		Key:    job.Key,
		Status: string(job.Status),
		Progress: JobProgress{
			Phase:   job.ProgressPhase,
			Message: job.ProgressMessage,
		},
		ErrorMessage:  job.ErrorMessage,
		ErrorKind:     job.ErrorKind,
		Attempts:      job.Attempts,
		MaxAttempts:   job.MaxAttempts,
		Unrecoverable: job.Unrecoverable,
		Result:        job.Result,
		AvailableAt:   formatTime(job.AvailableAt),
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
		StartedAt:     formatOptional(job.StartedAt),
		FinishedAt:    formatOptional(job.FinishedAt),
	}
}

// FromJobs converts a slice of queue records.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job != nil {
			out = append(out, FromJob(job))
		}
	}
	return out
}

// FromTrack converts a catalog track, deriving its length and bounding box
// from the stored geometry.
func FromTrack(track *tracks.Track) Track {
	if track == nil {
		return Track{}
	}
	bound := track.Bound
	if bound.IsZero() && len(track.Geometry) > 0 {
		bound = track.Geometry.Bound()
	}
	return Track{
		ID:           track.ID,
		Name:         track.Name,
		FilePath:     track.FilePath,
		FileHash:     track.FileHash,
		CaptureDate:  formatTime(track.CaptureDate),
		ImportDate:   formatTime(track.ImportDate),
		UpdatedAt:    formatTime(track.UpdatedAt),
		HasImages:    track.HasImages,
		PointCount:   len(track.Geometry),
		LengthMeters: lineLength(track),
		BBox:         [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()},
	}
}

func lineLength(track *tracks.Track) float64 {
	var total float64
	for i := 1; i < len(track.Geometry); i++ {
		a, b := track.Geometry[i-1], track.Geometry[i]
		total += gpx.Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
	}
	return total
}

// FromTracks converts a slice of catalog tracks.
func FromTracks(list []*tracks.Track) []Track {
	out := make([]Track, 0, len(list))
	for _, track := range list {
		if track != nil {
			out = append(out, FromTrack(track))
		}
	}
	return out
}

// FromImage converts a catalog frame.
func FromImage(image *tracks.Image) Image {
	if image == nil {
		return Image{}
	}
	return Image{
		ID:             image.ID,
		TrackID:        image.TrackID,
		SequenceNumber: image.SequenceNumber,
		CaptureDate:    formatTime(image.CaptureDate),
		Longitude:      image.Point.Lon(),
		Latitude:       image.Point.Lat(),
		Heading:        image.Heading,
		FilePath:       image.FilePath,
	}
}

// FromImages converts a slice of catalog frames.
func FromImages(images []*tracks.Image) []Image {
	out := make([]Image, 0, len(images))
	for _, image := range images {
		if image != nil {
			out = append(out, FromImage(image))
		}
	}
	return out
}

// FromDirectory converts a watched directory row.
func FromDirectory(dir *tracks.ImportDirectory) ImportDirectory {
	if dir == nil {
		return ImportDirectory{}
	}
	return ImportDirectory{ID: dir.ID, Path: dir.Path, CreatedAt: formatTime(dir.CreatedAt)}
}

// FromTarget converts a notification target row.
func FromTarget(target *tracks.NotificationTarget) NotificationTarget {
	if target == nil {
		return NotificationTarget{}
	}
	return NotificationTarget{ID: target.ID, AppriseURL: target.AppriseURL, CreatedAt: formatTime(target.CreatedAt)}
}

// MergeQueueStats returns counts for every status, including zero entries.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		LastError:   summary.LastError,
		Lanes:       make([]Lane, 0, len(summary.Lanes)),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		status.LastJob = &job
	}
	for _, lane := range summary.Lanes {
		status.Lanes = append(status.Lanes, Lane{
			Kind:    string(lane.Kind),
			Name:    lane.Name,
			Workers: lane.Workers,
			Active:  lane.Active,
		})
	}
	return status
}

// StageHealthSlice orders stage health by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts program availability.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}
