package trackimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/config"
	"panotrack/internal/deps"
	"panotrack/internal/events"
	"panotrack/internal/extract"
	"panotrack/internal/fileutil"
	"panotrack/internal/gpx"
	"panotrack/internal/logging"
	"panotrack/internal/media/capture"
	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/stage"
	"panotrack/internal/tracks"
)

// Phases of a track import, in order.
const (
	PhaseHashingFile           stage.Phase = "HashingFile"
	PhaseCheckingDuplicate     stage.Phase = "CheckingDuplicate"
	PhaseConvertingToGPX       stage.Phase = "ConvertingToGPX"
	PhaseParsingAndCleaningGPX stage.Phase = "ParsingAndCleaningGPX"
	PhaseExtractingCaptureDate stage.Phase = "ExtractingCaptureDate"
	PhasePersisting            stage.Phase = "Persisting"
)

// Hasher computes the content hash of a file.
type Hasher interface {
	HashFile(ctx context.Context, path string) (string, error)
}

// Catalog is the subset of the tracks store used by imports.
type Catalog interface {
	ExistsByFileHash(ctx context.Context, hash string) (bool, error)
	Upsert(ctx context.Context, input tracks.TrackInput) (*tracks.Track, error)
}

// Converter turns a clip into a GPX file and returns its path.
type Converter interface {
	Extract(ctx context.Context, source string) (string, error)
}

// DateResolver determines when a clip was recorded. It never fails.
type DateResolver interface {
	Resolve(ctx context.Context, path string) time.Time
}

// Publisher emits bus signals.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (events.Event, error)
}

// Result is stored on the completed job.
type Result struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Importer is the stage handler for track-import jobs.
type Importer struct {
	hasher    Hasher
	catalog   Catalog
	converter Converter
	resolver  DateResolver
	publisher Publisher
	logger    *slog.Logger
	required  []deps.Requirement
}

// NewImporter constructs the importer using the configured external tools.
func NewImporter(cfg *config.Config, catalog Catalog, publisher Publisher, runner cmdrun.Runner, logger *slog.Logger) *Importer {
	importer := NewImporterWithDependencies(
		fileutil.Hasher{},
		catalog,
		extract.NewGPXExtractor(runner, cfg.Tools.GoPro2GPX),
		capture.NewResolver(runner, cfg.Tools.FFprobe, cfg.Location(), logger),
		publisher,
		logger,
	)
	importer.required = []deps.Requirement{
		{Name: "gopro2gpx", Command: cfg.Tools.GoPro2GPX, Description: "GPS telemetry converter"},
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "capture date probe"},
	}
	return importer
}

// NewImporterWithDependencies allows injecting collaborators (used in tests).
func NewImporterWithDependencies(hasher Hasher, catalog Catalog, converter Converter, resolver DateResolver, publisher Publisher, logger *slog.Logger) *Importer {
	return &Importer{
		hasher:    hasher,
		catalog:   catalog,
		converter: converter,
		resolver:  resolver,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "track-import"),
	}
}

// Execute implements stage.Handler.
func (i *Importer) Execute(ctx context.Context, job *queue.Job, progress stage.ProgressReporter) (any, error) {
	var payload queue.TrackImportPayload
	if err := stage.DecodePayload(job, &payload); err != nil {
		return nil, err
	}
	return i.Import(ctx, payload, progress)
}

// Import runs one track import.
func (i *Importer) Import(ctx context.Context, payload queue.TrackImportPayload, progress stage.ProgressReporter) (Result, error) {
	if progress == nil {
		progress = stage.NopProgress
	}
	logger := logging.WithContext(ctx, i.logger).With(logging.String("file_path", payload.FilePath))
	path := strings.TrimSpace(payload.FilePath)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, string(PhaseHashingFile), "payload", "Job has no file path", nil)
	}
	logger.Info("track import started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Bool("force", payload.Force),
	)

	progress.Report(ctx, PhaseHashingFile, "Obtaining file hash")
	hash, err := i.hasher.HashFile(ctx, path)
	if err != nil {
		return Result{}, hashError(path, err)
	}

	progress.Report(ctx, PhaseCheckingDuplicate, "Checking for earlier imports")
	if !payload.Force {
		exists, err := i.catalog.ExistsByFileHash(ctx, hash)
		if err != nil {
			return Result{}, services.Persistence("hash lookup", err)
		}
		if exists {
			return Result{}, services.DuplicateFile(hash)
		}
	}

	progress.Report(ctx, PhaseConvertingToGPX, "Converting telemetry to GPX")
	gpxPath, err := i.converter.Extract(ctx, path)
	if err != nil {
		return Result{}, err
	}

	progress.Report(ctx, PhaseParsingAndCleaningGPX, "Processing GPX data")
	points, err := gpx.ParseFile(gpxPath)
	if err != nil {
		return Result{}, services.GPXProcessing(services.ErrConversion, "parse gpx", err)
	}
	line, err := gpx.Clean(points)
	if err != nil {
		return Result{}, services.GPXProcessing(services.ErrInsufficientTrackData, "clean gpx", err)
	}
	logger.Debug("gpx cleaned",
		logging.Int("raw_points", len(points)),
		logging.Int("kept_points", len(line)),
	)

	progress.Report(ctx, PhaseExtractingCaptureDate, "Extracting capture date")
	captureDate := i.resolver.Resolve(ctx, path)

	progress.Report(ctx, PhasePersisting, "Finalizing import")
	track, err := i.catalog.Upsert(ctx, tracks.TrackInput{
		Name:        filepath.Base(path),
		FilePath:    path,
		FileHash:    hash,
		CaptureDate: captureDate,
		Geometry:    line,
	})
	if err != nil {
		return Result{}, services.Persistence("upsert track", err)
	}

	if _, err := i.publisher.Publish(ctx, events.TopicTrackImported, events.TrackImported{ID: track.ID, Name: track.Name}); err != nil {
		logging.WarnWithContext(logger, "track imported signal not published", "signal_publish_failed",
			logging.Int64(logging.FieldTrackID, track.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frame extraction will not be queued automatically"),
			logging.String(logging.FieldErrorHint, "run 'panotrack images missing' to queue it"),
		)
	}

	progress.Report(ctx, stage.PhaseCompleted, "Track imported")
	logger.Info("track import completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int64(logging.FieldTrackID, track.ID),
		logging.String("capture_date", captureDate.Format(time.RFC3339)),
		logging.Int("points", len(line)),
	)
	return Result{ID: track.ID, Name: track.Name}, nil
}

// OnFailure publishes track.importFailure for a terminally failed job.
func (i *Importer) OnFailure(ctx context.Context, job *queue.Job, cause error) {
	var payload queue.TrackImportPayload
	if job != nil {
		if err := job.DecodePayload(&payload); err != nil {
			i.logger.Debug("track import payload undecodable", logging.Int64("job_id", job.ID), logging.Error(err))
		}
	}
	failure := events.ImportFailure{
		FilePath: payload.FilePath,
		Error:    services.FailureMessage(cause),
	}
	if _, err := i.publisher.Publish(ctx, events.TopicTrackImportFailure, failure); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, i.logger), "import failure signal not published", "signal_publish_failed",
			logging.String("file_path", payload.FilePath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "failure notification skipped"),
		)
	}
}

// HealthCheck implements stage.Handler.
func (i *Importer) HealthCheck(context.Context) stage.Health {
	const name = "track-import"
	if missing := deps.MissingRequired(deps.CheckBinaries(i.required)); len(missing) > 0 {
		return stage.Unhealthy(name, fmt.Sprintf("missing tools: %s", strings.Join(missing, ", ")))
	}
	return stage.Healthy(name)
}

func hashError(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrFileNotFound, string(PhaseHashingFile), "hash file",
			fmt.Sprintf("file %s does not exist", path), err)
	}
	return services.Wrap(services.ErrIO, string(PhaseHashingFile), "hash file", "could not read source file", err)
}
