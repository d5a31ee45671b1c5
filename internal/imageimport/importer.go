package imageimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"panotrack/internal/cmdrun"
	"panotrack/internal/config"
	"panotrack/internal/deps"
	"panotrack/internal/events"
	"panotrack/internal/extract"
	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/stage"
	"panotrack/internal/tracks"
)

// Phases of an image import, in order.
const (
	PhaseLocatingTrack    stage.Phase = "LocatingTrack"
	PhaseExtractingFrames stage.Phase = "ExtractingFrames"
	PhaseParsingManifest  stage.Phase = "ParsingManifest"
	PhasePersisting       stage.Phase = "Persisting"
)

// Catalog is the subset of the tracks store used by image imports.
type Catalog interface {
	Get(ctx context.Context, id int64) (*tracks.Track, error)
	ReplaceImages(ctx context.Context, trackID int64, images []tracks.ImageInput) ([]*tracks.Image, error)
}

// FrameExtractor samples frames from a clip and reports where they landed.
type FrameExtractor interface {
	Extract(ctx context.Context, source string) (extract.Frames, error)
}

// Publisher emits bus signals.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (events.Event, error)
}

// Result is stored on the completed job.
type Result struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ImageCount int    `json:"imageCount"`
}

// StoredImages reports the number of frames persisted.
func (r Result) StoredImages() int { return r.ImageCount }

// Importer is the stage handler for image-import jobs.
type Importer struct {
	catalog   Catalog
	extractor FrameExtractor
	publisher Publisher
	location  *time.Location
	logger    *slog.Logger
	required  []deps.Requirement
}

// NewImporter constructs the importer around the configured mapillary_tools binary.
func NewImporter(cfg *config.Config, catalog Catalog, publisher Publisher, runner cmdrun.Runner, logger *slog.Logger) *Importer {
	importer := NewImporterWithDependencies(
		cfg.Location(),
		catalog,
		extract.NewFrameExtractor(runner, cfg.Tools.MapillaryTools, cfg.Import.SampleDistance),
		publisher,
		logger,
	)
	importer.required = []deps.Requirement{
		{Name: "mapillary_tools", Command: cfg.Tools.MapillaryTools, Description: "frame sampler"},
	}
	return importer
}

// NewImporterWithDependencies allows injecting collaborators (used in tests).
// Capture times are read in loc; nil means the local zone.
func NewImporterWithDependencies(loc *time.Location, catalog Catalog, extractor FrameExtractor, publisher Publisher, logger *slog.Logger) *Importer {
	return &Importer{
		catalog:   catalog,
		extractor: extractor,
		publisher: publisher,
		location:  loc,
		logger:    logging.NewComponentLogger(logger, "image-import"),
	}
}

// Execute implements stage.Handler.
func (i *Importer) Execute(ctx context.Context, job *queue.Job, progress stage.ProgressReporter) (any, error) {
	var payload queue.ImageImportPayload
	if err := stage.DecodePayload(job, &payload); err != nil {
		return nil, err
	}
	return i.Import(ctx, payload, progress)
}

// Import runs one frame extraction for a stored track.
func (i *Importer) Import(ctx context.Context, payload queue.ImageImportPayload, progress stage.ProgressReporter) (Result, error) {
	if progress == nil {
		progress = stage.NopProgress
	}
	logger := logging.WithContext(ctx, i.logger).With(logging.Int64(logging.FieldTrackID, payload.TrackID))
	if payload.TrackID <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, string(PhaseLocatingTrack), "payload", "Job has no track id", nil)
	}

	progress.Report(ctx, PhaseLocatingTrack, "Locating track")
	track, err := i.catalog.Get(ctx, payload.TrackID)
	if err != nil {
		return Result{}, services.Persistence("get track", err)
	}
	if track == nil {
		return Result{}, services.Wrap(services.ErrNotFound, string(PhaseLocatingTrack), "get track",
			fmt.Sprintf("track %d not found", payload.TrackID), nil)
	}
	logger.Info("image import started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("file_path", track.FilePath),
	)

	progress.Report(ctx, PhaseExtractingFrames, "Extracting frames")
	frames, err := i.extractor.Extract(ctx, track.FilePath)
	if err != nil {
		return Result{}, err
	}

	progress.Report(ctx, PhaseParsingManifest, "Reading image descriptions")
	descriptions, err := extract.ParseManifestFile(frames.ManifestPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrIO, string(PhaseParsingManifest), "parse manifest",
			"could not read image descriptions", err)
	}
	images, err := i.buildImages(frames.Dir, descriptions)
	if err != nil {
		return Result{}, services.Wrap(services.ErrIO, string(PhaseParsingManifest), "capture time",
			"could not read image descriptions", err)
	}

	progress.Report(ctx, PhasePersisting, fmt.Sprintf("Storing %d images", len(images)))
	stored, err := i.catalog.ReplaceImages(ctx, track.ID, images)
	if err != nil {
		if errors.Is(err, tracks.ErrNotFound) {
			return Result{}, services.Wrap(services.ErrNotFound, string(PhasePersisting), "replace images",
				fmt.Sprintf("track %d was removed during import", track.ID), err)
		}
		return Result{}, services.Persistence("replace images", err)
	}

	signal := events.ImagesImported{ID: track.ID, Name: track.Name, ImageCount: len(stored)}
	if _, err := i.publisher.Publish(ctx, events.TopicTrackImagesImported, signal); err != nil {
		logging.WarnWithContext(logger, "images imported signal not published", "signal_publish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "images imported notification skipped"),
		)
	}

	progress.Report(ctx, stage.PhaseCompleted, "Images imported")
	logger.Info("image import completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("image_count", len(stored)),
		logging.String("frames_dir", frames.Dir),
	)
	return Result{ID: track.ID, Name: track.Name, ImageCount: len(stored)}, nil
}

func (i *Importer) buildImages(dir string, descriptions []extract.ImageDescription) ([]tracks.ImageInput, error) {
	loc := i.location
	if loc == nil {
		loc = time.Local
	}
	images := make([]tracks.ImageInput, 0, len(descriptions))
	for idx, desc := range descriptions {
		captured, err := extract.ParseCaptureTime(desc.CaptureTime, loc)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", idx, desc.Filename, err)
		}
		path := strings.TrimSpace(desc.Filename)
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		images = append(images, tracks.ImageInput{
			SequenceNumber: idx,
			CaptureDate:    captured,
			Point:          orb.Point{*desc.Longitude, *desc.Latitude},
			Heading:        desc.Heading(),
			FilePath:       path,
		})
	}
	return images, nil
}

// OnFailure records a terminally failed extraction. Image failures raise no signal.
func (i *Importer) OnFailure(ctx context.Context, job *queue.Job, cause error) {
	var payload queue.ImageImportPayload
	if job != nil {
		if err := job.DecodePayload(&payload); err != nil {
			i.logger.Debug("image import payload undecodable", logging.Int64("job_id", job.ID), logging.Error(err))
		}
	}
	logging.ErrorWithContext(logging.WithContext(ctx, i.logger), "image import failed", "image_import_failed",
		logging.Int64(logging.FieldTrackID, payload.TrackID),
		logging.String(logging.FieldErrorKind, queue.FailureKind(cause)),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "track has no images"),
		logging.String(logging.FieldErrorHint, "run 'panotrack images import <track-id>' to retry"),
	)
}

// HealthCheck implements stage.Handler.
func (i *Importer) HealthCheck(context.Context) stage.Health {
	const name = "image-import"
	if missing := deps.MissingRequired(deps.CheckBinaries(i.required)); len(missing) > 0 {
		return stage.Unhealthy(name, fmt.Sprintf("missing tools: %s", strings.Join(missing, ", ")))
	}
	return stage.Healthy(name)
}
