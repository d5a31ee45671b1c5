package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/services"
)

type scriptedRunner struct {
	calls  []cmdrun.Command
	result cmdrun.Result
	err    error
	effect func(cmdrun.Command)
}

func (r *scriptedRunner) Run(_ context.Context, cmd cmdrun.Command) (cmdrun.Result, error) {
	r.calls = append(r.calls, cmd)
	if r.effect != nil {
		r.effect(cmd)
	}
	return r.result, r.err
}

func TestGPXExtractorSuccess(t *testing.T) {
	source := filepath.Join(t.TempDir(), "GS010001.360")
	runner := &scriptedRunner{
		result: cmdrun.Result{Stdout: "parsed 120 samples\n"},
		effect: func(cmd cmdrun.Command) {
			_ = os.WriteFile(cmd.Args[len(cmd.Args)-1]+".gpx", []byte("<gpx/>"), 0o644)
		},
	}
	out, err := NewGPXExtractor(runner, "").Extract(context.Background(), source)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out != source+".gpx" {
		t.Fatalf("unexpected output path %q", out)
	}
	call := runner.calls[0]
	if call.Name != "gopro2gpx" || call.Class != cmdrun.ClassConversion {
		t.Fatalf("unexpected command %+v", call)
	}
	want := "--skip-dop --dop-limit 500 -s " + source + " " + source
	if got := strings.Join(call.Args, " "); got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestGPXExtractorFailureLineIsUnrecoverable(t *testing.T) {
	runner := &scriptedRunner{result: cmdrun.Result{Stdout: "reading\nCan't create file: no GPS data\n"}}
	_, err := NewGPXExtractor(runner, "gopro2gpx").Extract(context.Background(), "/clips/a.360")
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if !services.IsUnrecoverable(err) {
		t.Fatal("conversion failure must be unrecoverable")
	}
	if got := services.FailureMessage(err); got != "Failed to process GPX data: Could not convert to GPX: Can't create file: no GPS data" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestGPXExtractorFailureLineWinsOverExitCode(t *testing.T) {
	runner := &scriptedRunner{
		result: cmdrun.Result{Stdout: "Can't create file x\n", ExitCode: 1},
		err:    services.ToolExecution("gopro2gpx", 1, "", nil),
	}
	_, err := NewGPXExtractor(runner, "gopro2gpx").Extract(context.Background(), "/clips/a.360")
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
}

func TestGPXExtractorNonZeroExitIsTransient(t *testing.T) {
	runner := &scriptedRunner{err: services.ToolExecution("gopro2gpx", 2, "segfault", nil)}
	_, err := NewGPXExtractor(runner, "gopro2gpx").Extract(context.Background(), "/clips/a.360")
	if !errors.Is(err, services.ErrToolExecution) || services.IsUnrecoverable(err) {
		t.Fatalf("expected transient tool error, got %v", err)
	}
}

func TestGPXExtractorMissingOutput(t *testing.T) {
	runner := &scriptedRunner{}
	_, err := NewGPXExtractor(runner, "gopro2gpx").Extract(context.Background(), filepath.Join(t.TempDir(), "a.360"))
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if !services.IsUnrecoverable(err) {
		t.Fatalf("missing converter output should not be retried: %v", err)
	}
}

func TestFrameExtractorArgsAndManifest(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "GS010001.360")
	runner := &scriptedRunner{effect: func(cmd cmdrun.Command) {
		outDir := cmd.Args[len(cmd.Args)-1]
		_ = os.MkdirAll(outDir, 0o755)
		_ = os.WriteFile(filepath.Join(outDir, ManifestName), []byte("[]"), 0o644)
	}}
	frames, err := NewFrameExtractor(runner, "", 0).Extract(context.Background(), source)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	wantDir := filepath.Join(dir, "GS010001")
	if frames.Dir != wantDir || frames.ManifestPath != filepath.Join(wantDir, ManifestName) {
		t.Fatalf("unexpected frames %+v", frames)
	}
	call := runner.calls[0]
	want := "video_process --video_sample_distance 10 " + source + " " + wantDir
	if got := strings.Join(call.Args, " "); got != want || call.Name != "mapillary_tools" {
		t.Fatalf("command = %s %q, want %q", call.Name, got, want)
	}
	if call.Class != cmdrun.ClassExtraction {
		t.Fatalf("unexpected class %q", call.Class)
	}
}

func TestFrameExtractorMissingManifestIsTransient(t *testing.T) {
	_, err := NewFrameExtractor(&scriptedRunner{}, "mapillary_tools", 10).Extract(context.Background(), filepath.Join(t.TempDir(), "a.360"))
	if err == nil || services.IsUnrecoverable(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestParseManifest(t *testing.T) {
	manifest := `[
  {"filename": "/out/a/0001.jpg", "MAPCaptureTime": "2024_01_01_10_00_00_123", "MAPLatitude": 47.1, "MAPLongitude": 8.1, "MAPCompassHeading": {"TrueHeading": 90.5, "MagneticHeading": 88}},
  {"filename": "/out/a/0002.jpg", "MAPCaptureTime": "2024_01_01_10_00_01_000", "MAPLatitude": 47.2, "MAPLongitude": 8.2},
  {"filename": "/out/a/0003.jpg", "error": {"type": "MapillaryGeoTaggingError"}},
  {"filename": "/out/a/0004.jpg", "MAPCaptureTime": "2024_01_01_10_00_02_500", "MAPLatitude": 47.3, "MAPLongitude": 8.3}
]`
	entries, err := ParseManifest(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected error entry dropped, got %d entries", len(entries))
	}
	if h := entries[0].Heading(); h == nil || *h != 90.5 {
		t.Fatalf("unexpected heading %v", h)
	}
	if entries[1].Heading() != nil {
		t.Fatal("expected no heading on second entry")
	}
}

func TestParseManifestRejectsIncompleteEntry(t *testing.T) {
	_, err := ParseManifest(strings.NewReader(`[{"filename": "a.jpg", "MAPCaptureTime": "2024_01_01_10_00_00_000"}]`))
	if err == nil {
		t.Fatal("expected error for entry without coordinates")
	}
}

func TestParseCaptureTime(t *testing.T) {
	got, err := ParseCaptureTime("2024_01_01_10_00_00_123", time.UTC)
	if err != nil {
		t.Fatalf("ParseCaptureTime: %v", err)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 123_000_000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseCaptureTime = %s, want %s", got, want)
	}
	for _, bad := range []string{"2024-01-01", "2024_13_01_10_00_00_000", ""} {
		if _, err := ParseCaptureTime(bad, time.UTC); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
