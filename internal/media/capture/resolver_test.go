package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/logging"
)

type stubRunner struct {
	stdout string
	err    error
}

func (s stubRunner) Run(context.Context, cmdrun.Command) (cmdrun.Result, error) {
	return cmdrun.Result{Stdout: s.stdout}, s.err
}

func TestResolveUsesCreationTimeWithoutZone(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	resolver := NewResolver(stubRunner{stdout: `{"format":{"tags":{"creation_time":"2024-01-01T10:00:00Z"}}}`}, "ffprobe", loc, logging.NewNop())
	resolver.birthTime = func(string) (time.Time, error) {
		t.Fatal("birth time must not be consulted")
		return time.Time{}, nil
	}

	got := resolver.Resolve(context.Background(), "/media/a.360")
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Resolve = %s, want %s", got, want)
	}
}

func TestResolveFallsBackWhenTagMissing(t *testing.T) {
	birth := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	resolver := NewResolver(stubRunner{stdout: `{"format":{"tags":{}}}`}, "ffprobe", time.UTC, logging.NewNop())
	resolver.birthTime = func(string) (time.Time, error) { return birth, nil }

	if got := resolver.Resolve(context.Background(), "a"); !got.Equal(birth) {
		t.Fatalf("Resolve = %s, want birth time %s", got, birth)
	}
}

func TestResolveFallsBackWhenProbeFails(t *testing.T) {
	birth := time.Date(2023, 6, 1, 8, 30, 0, 0, time.UTC)
	resolver := NewResolver(stubRunner{err: errors.New("exit 1")}, "ffprobe", time.UTC, logging.NewNop())
	resolver.birthTime = func(string) (time.Time, error) { return birth, nil }

	if got := resolver.Resolve(context.Background(), "a"); !got.Equal(birth) {
		t.Fatalf("Resolve = %s, want birth time %s", got, birth)
	}
}

func TestParseNaiveLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T10:00:00.000000Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-01-01T10:00:00.5Z", time.Date(2024, 1, 1, 10, 0, 0, 500_000_000, time.UTC)},
		{"2024-01-01 10:00:00", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseNaive(tc.in, time.UTC)
		if err != nil {
			t.Fatalf("ParseNaive(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseNaive(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if _, err := ParseNaive("yesterday", time.UTC); err == nil {
		t.Fatal("expected parse error")
	}
}
