package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"panotrack/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrToolExecution, "ConvertingToGPX", "gopro2gpx", "failed", base)
	if !errors.Is(err, services.ErrToolExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected cause in error string %q", err.Error())
	}
}

func TestUnrecoverableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", services.DuplicateFile("abc"), true},
		{"conversion", services.Conversion("Can't create file x.gpx"), true},
		{"insufficient", services.GPXProcessing(services.ErrInsufficientTrackData, "simplify", nil), true},
		{"gpx parse", services.GPXProcessing(nil, "parse", errors.New("bad xml")), true},
		{"tool", services.ToolExecution("ffprobe", 1, "boom", nil), false},
		{"persistence", services.Persistence("upsert", errors.New("locked")), false},
		{"io", services.IO("read", errors.New("eof")), false},
		{"wrapped duplicate", fmt.Errorf("job 3: %w", services.DuplicateFile("abc")), true},
		{"plain", errors.New("plain"), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsUnrecoverable(tc.err); got != tc.want {
				t.Fatalf("IsUnrecoverable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFailureMessages(t *testing.T) {
	if got := services.FailureMessage(services.DuplicateFile("abc")); got != "File has already been processed" {
		t.Fatalf("duplicate message = %q", got)
	}
	got := services.FailureMessage(services.Conversion("Can't create file a.gpx\n"))
	if got != "Failed to process GPX data: Could not convert to GPX: Can't create file a.gpx" {
		t.Fatalf("conversion message = %q", got)
	}
	got = services.FailureMessage(services.GPXProcessing(services.ErrInsufficientTrackData, "simplify", nil))
	if got != "Failed to process GPX data: Cleaned GPX yielded insignificant data" {
		t.Fatalf("insufficient message = %q", got)
	}
}

func TestDetailsReportsKind(t *testing.T) {
	details := services.Details(services.ToolExecution("mapillary_tools", 2, "line one\nlast line\n", nil))
	if details.Kind != "tool_execution" {
		t.Fatalf("kind = %q", details.Kind)
	}
	if !strings.Contains(details.Message, "last line") {
		t.Fatalf("expected stderr tail in message, got %q", details.Message)
	}
	plain := services.Details(fmt.Errorf("outer: %w", services.ErrTimeout))
	if plain.Kind != "timeout" {
		t.Fatalf("plain kind = %q", plain.Kind)
	}
}
