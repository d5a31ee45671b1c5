package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"panotrack/internal/events"
	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/tracks"
)

// JobQueue is the subset of the queue store used by ImportService.
type JobQueue interface {
	Enqueue(ctx context.Context, req queue.Request) (*queue.Job, error)
	EnqueueBatch(ctx context.Context, reqs []queue.Request) ([]*queue.Job, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	List(ctx context.Context, filter queue.Filter) ([]*queue.Job, error)
	HasPending(ctx context.Context, kind queue.Kind, key string) (bool, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
	Remove(ctx context.Context, ids ...int64) (int64, error)
	Clear(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
}

// TrackLookup is the subset of the catalog ImportService needs.
type TrackLookup interface {
	Get(ctx context.Context, id int64) (*tracks.Track, error)
	GetByFilePath(ctx context.Context, path string) (*tracks.Track, error)
	TracksWithoutImages(ctx context.Context) ([]*tracks.Track, error)
}

// Waker nudges idle workers of a lane after an enqueue.
type Waker interface {
	Wake(kind queue.Kind)
}

// Subscriber registers bus handlers.
type Subscriber interface {
	Subscribe(topic, name string, handler events.Handler) func()
}

// ClearScope selects which jobs ClearJobs removes.
type ClearScope string

const (
	ClearAll       ClearScope = "all"
	ClearCompleted ClearScope = "completed"
	ClearFailed    ClearScope = "failed"
)

// ImportQuery narrows ListImports.
type ImportQuery struct {
	Kind   string
	Status string
	Limit  int
}

// ImportService starts imports and manages the job queue.
type ImportService struct {
	jobs    JobQueue
	catalog TrackLookup
	waker   Waker
	logger  *slog.Logger
}

// NewImportService constructs the import facade. waker may be nil when no
// workflow is running in-process.
func NewImportService(jobs JobQueue, catalog TrackLookup, waker Waker, logger *slog.Logger) *ImportService {
	return &ImportService{
		jobs:    jobs,
		catalog: catalog,
		waker:   waker,
		logger:  logging.NewComponentLogger(logger, "import-service"),
	}
}

// StartImport enqueues a track import of path. A missing file is reported
// synchronously and no job is created.
func (s *ImportService) StartImport(ctx context.Context, path string, force bool) (Job, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Job{}, fmt.Errorf("%w: path must be set", services.ErrValidation)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Job{}, fmt.Errorf("%w: resolve %s: %v", services.ErrValidation, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Job{}, services.FileNotFound(abs)
		}
		return Job{}, services.IO("stat import file", err)
	}
	if info.IsDir() {
		return Job{}, fmt.Errorf("%w: %s is a directory", services.ErrValidation, abs)
	}

	job, err := s.jobs.Enqueue(ctx, queue.TrackImportRequest(filepath.Base(abs), abs, force))
	if err != nil {
		return Job{}, services.Persistence("enqueue track import", err)
	}
	s.wake(queue.KindTrackImport)
	s.logger.Info("track import queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("file_path", abs),
		logging.Bool("force", force),
		logging.String(logging.FieldEventType, "import_queued"),
	)
	return FromJob(job), nil
}

// ImportIfNew enqueues path unless it is already catalogued or queued. It is
// used by directory watchers and rescans, which must not create duplicates.
func (s *ImportService) ImportIfNew(ctx context.Context, path string) (bool, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return false, fmt.Errorf("%w: resolve %s: %v", services.ErrValidation, path, err)
	}
	existing, err := s.catalog.GetByFilePath(ctx, abs)
	if err != nil {
		return false, services.Persistence("lookup track by path", err)
	}
	if existing != nil {
		return false, nil
	}
	pending, err := s.jobs.HasPending(ctx, queue.KindTrackImport, abs)
	if err != nil {
		return false, services.Persistence("check pending imports", err)
	}
	if pending {
		return false, nil
	}
	if _, err := s.StartImport(ctx, abs, false); err != nil {
		return false, err
	}
	return true, nil
}

// StartImageImport enqueues frame extraction for a stored track.
func (s *ImportService) StartImageImport(ctx context.Context, trackID int64) (Job, error) {
	track, err := s.catalog.Get(ctx, trackID)
	if err != nil {
		return Job{}, services.Persistence("lookup track", err)
	}
	if track == nil {
		return Job{}, fmt.Errorf("track %d: %w", trackID, services.ErrNotFound)
	}
	job, err := s.enqueueImages(ctx, track.ID, track.Name)
	if err != nil {
		return Job{}, err
	}
	if job == nil {
		return Job{}, fmt.Errorf("%w: image import of track %d is already pending", services.ErrValidation, trackID)
	}
	return FromJob(job), nil
}

// ProcessMissingImages queues an image import for every track without frames
// that has no image job pending.
func (s *ImportService) ProcessMissingImages(ctx context.Context) (MissingImagesResult, error) {
	missing, err := s.catalog.TracksWithoutImages(ctx)
	if err != nil {
		return MissingImagesResult{}, services.Persistence("list tracks without images", err)
	}
	result := MissingImagesResult{Enqueued: []Job{}}
	reqs := make([]queue.Request, 0, len(missing))
	for _, track := range missing {
		pending, err := s.jobs.HasPending(ctx, queue.KindImageImport, queue.ImageJobKey(track.ID))
		if err != nil {
			return MissingImagesResult{}, services.Persistence("check pending image imports", err)
		}
		if pending {
			result.Skipped++
			continue
		}
		reqs = append(reqs, queue.ImageImportRequest(track.Name, track.ID))
	}
	if len(reqs) == 0 {
		return result, nil
	}
	jobs, err := s.jobs.EnqueueBatch(ctx, reqs)
	if err != nil {
		return MissingImagesResult{}, services.Persistence("enqueue image imports", err)
	}
	s.wake(queue.KindImageImport)
	result.Enqueued = FromJobs(jobs)
	s.logger.Info("missing image imports queued",
		logging.Int("enqueued", len(jobs)),
		logging.Int("skipped", result.Skipped),
		logging.String(logging.FieldEventType, "missing_images_queued"),
	)
	return result, nil
}

// HandleTrackImported queues the image import of a freshly imported track.
// Redelivered signals are absorbed by the pending check.
func (s *ImportService) HandleTrackImported(ctx context.Context, evt events.Event) error {
	var payload events.TrackImported
	if err := evt.Decode(&payload); err != nil {
		s.logger.Warn("dropping malformed track.imported signal",
			logging.Error(err),
			logging.String(logging.FieldEventType, "signal_malformed"),
			logging.String(logging.FieldErrorHint, "publisher sent a payload without id and name"),
			logging.String(logging.FieldImpact, "no image import is queued for this track"),
		)
		return nil
	}
	job, err := s.enqueueImages(ctx, payload.ID, payload.Name)
	if err != nil {
		return err
	}
	if job != nil {
		s.logger.Info("image import queued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldTrackID, payload.ID),
			logging.String(logging.FieldEventType, "image_import_queued"),
		)
	}
	return nil
}

// Attach subscribes HandleTrackImported to the bus.
func (s *ImportService) Attach(bus Subscriber) func() {
	return bus.Subscribe(events.TopicTrackImported, "image-import-trigger", s.HandleTrackImported)
}

func (s *ImportService) enqueueImages(ctx context.Context, trackID int64, name string) (*queue.Job, error) {
	pending, err := s.jobs.HasPending(ctx, queue.KindImageImport, queue.ImageJobKey(trackID))
	if err != nil {
		return nil, services.Persistence("check pending image imports", err)
	}
	if pending {
		return nil, nil
	}
	job, err := s.jobs.Enqueue(ctx, queue.ImageImportRequest(name, trackID))
	if err != nil {
		return nil, services.Persistence("enqueue image import", err)
	}
	s.wake(queue.KindImageImport)
	return job, nil
}

// ListImports returns jobs, newest first, optionally narrowed by kind and status.
func (s *ImportService) ListImports(ctx context.Context, query ImportQuery) ([]Job, error) {
	filter := queue.Filter{Limit: query.Limit}
	if value := strings.TrimSpace(query.Kind); value != "" {
		kind, ok := queue.ParseKind(value)
		if !ok {
			return nil, fmt.Errorf("%w: unknown job kind %q", services.ErrValidation, value)
		}
		filter.Kinds = []queue.Kind{kind}
	}
	if value := strings.TrimSpace(query.Status); value != "" {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("%w: unknown job status %q", services.ErrValidation, value)
		}
		filter.Statuses = []queue.Status{status}
	}
	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, services.Persistence("list jobs", err)
	}
	return FromJobs(jobs), nil
}

// DescribeJob fetches one job. A missing job returns nil without error.
func (s *ImportService) DescribeJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, services.Persistence("get job", err)
	}
	if job == nil {
		return nil, nil
	}
	dto := FromJob(job)
	return &dto, nil
}

// RetryFailed requeues failed jobs. No ids retries every failed job.
func (s *ImportService) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	updated, err := s.jobs.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, services.Persistence("retry failed jobs", err)
	}
	if updated > 0 {
		s.wake(queue.KindTrackImport)
		s.wake(queue.KindImageImport)
	}
	return updated, nil
}

// RemoveJobs deletes non-active jobs by id.
func (s *ImportService) RemoveJobs(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: at least one job id is required", services.ErrValidation)
	}
	removed, err := s.jobs.Remove(ctx, ids...)
	if err != nil {
		return 0, services.Persistence("remove jobs", err)
	}
	return removed, nil
}

// ClearJobs deletes jobs within scope. ClearAll removes everything not currently active.
func (s *ImportService) ClearJobs(ctx context.Context, scope ClearScope) (int64, error) {
	var (
		removed int64
		err     error
	)
	switch scope {
	case ClearAll, "":
		removed, err = s.jobs.Clear(ctx)
	case ClearCompleted:
		removed, err = s.jobs.ClearCompleted(ctx)
	case ClearFailed:
		removed, err = s.jobs.ClearFailed(ctx)
	default:
		return 0, fmt.Errorf("%w: unknown clear scope %q", services.ErrValidation, scope)
	}
	if err != nil {
		return 0, services.Persistence("clear jobs", err)
	}
	return removed, nil
}

func (s *ImportService) wake(kind queue.Kind) {
	if s.waker != nil {
		s.waker.Wake(kind)
	}
}
