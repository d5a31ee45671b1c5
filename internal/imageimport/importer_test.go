package imageimport_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/events"
	"panotrack/internal/extract"
	"panotrack/internal/imageimport"
	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/stage"
	"panotrack/internal/testsupport"
	"panotrack/internal/tracks"
)

const manifest = `[
  {"filename": "GS010042_000000.jpg", "MAPCaptureTime": "2024_01_01_10_00_00_123", "MAPLatitude": 52.5, "MAPLongitude": 13.4, "MAPCompassHeading": {"TrueHeading": 91.5, "MagneticHeading": 90.0}},
  {"filename": "GS010042_000001.jpg", "MAPCaptureTime": "2024_01_01_10_00_02_000", "MAPLatitude": 52.5001, "MAPLongitude": 13.4001},
  {"filename": "GS010042_000002.jpg", "error": {"type": "MapillaryGeoTaggingError", "message": "no GPS"}},
  {"filename": "GS010042_000003.jpg", "MAPCaptureTime": "2024_01_01_10_00_04_500", "MAPLatitude": 52.5002, "MAPLongitude": 13.4002}
]`

type fakeExtractor struct {
	t        *testing.T
	manifest string
	err      error
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, source string) (extract.Frames, error) {
	f.calls++
	if f.err != nil {
		return extract.Frames{}, f.err
	}
	dir := extract.OutputDir(source)
	path := filepath.Join(dir, extract.ManifestName)
	testsupport.WriteContent(f.t, path, []byte(f.manifest))
	return extract.Frames{Dir: dir, ManifestPath: path}, nil
}

type harness struct {
	importer  *imageimport.Importer
	catalog   *tracks.Store
	extractor *fakeExtractor
	signals   chan events.Event
	track     *tracks.Track
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	catalog := testsupport.MustOpenTracks(t, cfg)
	bus := events.New(events.Options{RetryDelay: time.Millisecond})
	t.Cleanup(bus.Close)
	signals := make(chan events.Event, 8)
	bus.Subscribe(events.TopicTrackImagesImported, "test", func(_ context.Context, evt events.Event) error {
		signals <- evt
		return nil
	})
	source := filepath.Join(testsupport.BaseDir(cfg), "media", "GS010042.360")
	testsupport.WriteFile(t, source, 1024)
	track := testsupport.NewTrack(t, catalog, source, "abc123")
	extractor := &fakeExtractor{t: t, manifest: manifest}
	importer := imageimport.NewImporterWithDependencies(time.UTC, catalog, extractor, bus, nil)
	return &harness{importer: importer, catalog: catalog, extractor: extractor, signals: signals, track: track}
}

type phaseRecorder struct{ phases []stage.Phase }

func (r *phaseRecorder) Report(_ context.Context, phase stage.Phase, _ string) {
	r.phases = append(r.phases, phase)
}

func TestImportStoresManifestEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	progress := &phaseRecorder{}

	result, err := h.importer.Import(ctx, queue.ImageImportPayload{TrackID: h.track.ID}, progress)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ImageCount != 3 || result.ID != h.track.ID || result.Name != "GS010042.360" {
		t.Fatalf("unexpected result %#v", result)
	}

	images, err := h.catalog.ListImages(ctx, h.track.ID)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	for idx, img := range images {
		if img.SequenceNumber != idx {
			t.Fatalf("image %d has sequence number %d", idx, img.SequenceNumber)
		}
	}
	first := images[0]
	if want := time.Date(2024, 1, 1, 10, 0, 0, 123_000_000, time.UTC); !first.CaptureDate.Equal(want) {
		t.Fatalf("capture date = %v, want %v", first.CaptureDate, want)
	}
	if first.Point[0] != 13.4 || first.Point[1] != 52.5 {
		t.Fatalf("expected lon/lat ordering, got %v", first.Point)
	}
	if first.Heading == nil || *first.Heading != 91.5 {
		t.Fatalf("expected true heading 91.5, got %v", first.Heading)
	}
	if images[1].Heading != nil {
		t.Fatalf("expected nil heading, got %v", *images[1].Heading)
	}
	wantPath := filepath.Join(extract.OutputDir(h.track.FilePath), "GS010042_000003.jpg")
	if images[2].FilePath != wantPath {
		t.Fatalf("file path = %q, want %q", images[2].FilePath, wantPath)
	}

	select {
	case evt := <-h.signals:
		var payload events.ImagesImported
		if err := evt.Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.ImageCount != 3 || payload.ID != h.track.ID {
			t.Fatalf("unexpected payload %#v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for images imported signal")
	}

	want := []stage.Phase{
		imageimport.PhaseLocatingTrack,
		imageimport.PhaseExtractingFrames,
		imageimport.PhaseParsingManifest,
		imageimport.PhasePersisting,
		stage.PhaseCompleted,
	}
	if fmt.Sprint(progress.phases) != fmt.Sprint(want) {
		t.Fatalf("unexpected phases %v", progress.phases)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := h.importer.Import(ctx, queue.ImageImportPayload{TrackID: h.track.ID}, nil); err != nil {
			t.Fatalf("Import %d: %v", i, err)
		}
	}
	images, err := h.catalog.ListImages(ctx, h.track.ID)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images after redelivery, got %d", len(images))
	}
}

func TestImportUnknownTrackIsTransient(t *testing.T) {
	h := newHarness(t)
	_, err := h.importer.Import(context.Background(), queue.ImageImportPayload{TrackID: 9999}, nil)
	if !errors.Is(err, services.ErrNotFound) || services.IsUnrecoverable(err) {
		t.Fatalf("expected transient not-found error, got %v", err)
	}
	if h.extractor.calls != 0 {
		t.Fatalf("extractor must not run for a missing track")
	}
}

func TestImportFailuresAreTransient(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		err      error
		marker   error
	}{
		{name: "tool", err: services.ToolExecution("mapillary_tools", 1, "boom", nil), marker: services.ErrToolExecution},
		{name: "malformed manifest", manifest: "{", marker: services.ErrIO},
		{name: "bad capture time", manifest: `[{"filename":"a.jpg","MAPCaptureTime":"2024-01-01","MAPLatitude":1,"MAPLongitude":2}]`, marker: services.ErrIO},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.extractor.manifest = tc.manifest
			h.extractor.err = tc.err
			_, err := h.importer.Import(context.Background(), queue.ImageImportPayload{TrackID: h.track.ID}, nil)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if services.IsUnrecoverable(err) {
				t.Fatalf("image import errors must be retryable: %v", err)
			}
		})
	}
}

func TestExecuteDecodesPayload(t *testing.T) {
	h := newHarness(t)
	job := &queue.Job{ID: 1, Kind: queue.KindImageImport, Payload: []byte(fmt.Sprintf(`{"trackId":%d}`, h.track.ID))}
	out, err := h.importer.Execute(context.Background(), job, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result, ok := out.(imageimport.Result); !ok || result.ImageCount != 3 {
		t.Fatalf("unexpected result %#v", out)
	}
	if _, err := h.importer.Execute(context.Background(), &queue.Job{ID: 2, Payload: []byte("[")}, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImporterRunsMapillaryTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("gopro2gpx", "ffprobe"))
	binDir := filepath.Join(testsupport.BaseDir(cfg), "bin")
	// video_process --video_sample_distance N <video> <outDir>
	testsupport.WriteStub(t, filepath.Join(binDir, "mapillary_tools"), `mkdir -p "$5"
cat > "$5/mapillary_image_description.json" <<'JSON'
[{"filename":"f0.jpg","MAPCaptureTime":"2024_01_01_10_00_00_000","MAPLatitude":52.5,"MAPLongitude":13.4}]
JSON`)
	cfg.Tools.MapillaryTools = filepath.Join(binDir, "mapillary_tools")

	catalog := testsupport.MustOpenTracks(t, cfg)
	bus := events.New(events.Options{})
	t.Cleanup(bus.Close)
	source := filepath.Join(testsupport.BaseDir(cfg), "media", "GS010050.360")
	testsupport.WriteFile(t, source, 512)
	track := testsupport.NewTrack(t, catalog, source, "def456")

	importer := imageimport.NewImporter(cfg, catalog, bus, cmdrun.NewExecRunner(), nil)
	if health := importer.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy importer, got %#v", health)
	}
	result, err := importer.Import(context.Background(), queue.ImageImportPayload{TrackID: track.ID}, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ImageCount != 1 {
		t.Fatalf("expected 1 image, got %d", result.ImageCount)
	}
	if _, err := os.Stat(filepath.Join(extract.OutputDir(source), extract.ManifestName)); err != nil {
		t.Fatalf("expected manifest in output dir: %v", err)
	}
}
