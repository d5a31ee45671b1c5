package ffprobe

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"panotrack/internal/cmdrun"
)

type fakeRunner struct {
	got    cmdrun.Command
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd cmdrun.Command) (cmdrun.Result, error) {
	f.got = cmd
	return cmdrun.Result{Stdout: f.stdout}, f.err
}

func TestInspectReadsCreationTime(t *testing.T) {
	runner := &fakeRunner{stdout: `{"format":{"filename":"a.360","duration":"12.5","tags":{"creation_time":"2024-01-01T10:00:00.000000Z"}}}`}
	result, err := Inspect(context.Background(), runner, "", "/media/a.360")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := strings.Join(runner.got.Args, " "); got != "-v quiet -print_format json -show_format /media/a.360" {
		t.Fatalf("unexpected args %q", got)
	}
	if runner.got.Name != "ffprobe" || runner.got.Class != cmdrun.ClassProbe {
		t.Fatalf("unexpected command %+v", runner.got)
	}
	value, ok := result.CreationTime()
	if !ok || value != "2024-01-01T10:00:00.000000Z" {
		t.Fatalf("unexpected creation time %q %v", value, ok)
	}
	if result.DurationSeconds() != 12.5 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
}

func TestInspectPropagatesRunnerError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Inspect(context.Background(), &fakeRunner{err: boom}, "ffprobe", "a"); !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestCreationTimeAbsent(t *testing.T) {
	result, err := Parse([]byte(`{"format":{"duration":"bad"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := result.CreationTime(); ok {
		t.Fatal("expected no creation time")
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN duration, got %v", result.DurationSeconds())
	}
}
