// Package capture resolves when a clip was recorded.
package capture

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/fileutil"
	"panotrack/internal/logging"
	"panotrack/internal/media/ffprobe"
)

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Resolver reads container metadata and falls back to the file birth time.
type Resolver struct {
	runner    cmdrun.Runner
	binary    string
	location  *time.Location
	logger    *slog.Logger
	birthTime func(string) (time.Time, error)
}

// NewResolver builds a resolver that probes with binary through runner. Naive
// timestamps are interpreted in loc (local time when nil).
func NewResolver(runner cmdrun.Runner, binary string, loc *time.Location, logger *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		runner:    runner,
		binary:    binary,
		location:  loc,
		logger:    logging.NewComponentLogger(logger, "capture"),
		birthTime: fileutil.BirthTime,
	}
}

// Resolve never fails. The result is the container creation_time when it is
// present and parsable, else the filesystem birth time, else the current time.
func (r *Resolver) Resolve(ctx context.Context, path string) time.Time {
	logger := logging.WithContext(ctx, r.logger)
	result, err := ffprobe.Inspect(ctx, r.runner, r.binary, path)
	if err != nil {
		logging.WarnWithContext(logger, "capture date probe failed; using file birth time", "capture_date_fallback",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is readable"),
			logging.String(logging.FieldImpact, "track capture date may reflect the copy time"),
		)
		return r.fallback(logger, path)
	}
	raw, ok := result.CreationTime()
	if !ok {
		logger.Debug("no creation_time tag; using file birth time", logging.String("path", path))
		return r.fallback(logger, path)
	}
	parsed, err := ParseNaive(raw, r.location)
	if err != nil {
		logging.WarnWithContext(logger, "creation_time unparsable; using file birth time", "capture_date_fallback",
			logging.String("path", path),
			logging.String("creation_time", raw),
			logging.Error(err),
		)
		return r.fallback(logger, path)
	}
	return parsed
}

func (r *Resolver) fallback(logger *slog.Logger, path string) time.Time {
	birth, err := r.birthTime(path)
	if err != nil {
		logging.WarnWithContext(logger, "file birth time unavailable; using current time", "capture_date_fallback",
			logging.String("path", path),
			logging.Error(err),
		)
		return time.Now()
	}
	return birth
}

// ParseNaive strips a trailing Z and parses value as wall-clock time in loc.
func ParseNaive(value string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	var firstErr error
	for _, layout := range naiveLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, loc)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
