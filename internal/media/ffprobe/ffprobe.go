package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"panotrack/internal/cmdrun"
)

// Result represents the parsed output from an ffprobe format inspection.
type Result struct {
	Format Format `json:"format"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Args returns the ffprobe argument list for a format-only probe of path.
func Args(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_format", path}
}

// Inspect executes ffprobe through runner and decodes the JSON response.
func Inspect(ctx context.Context, runner cmdrun.Runner, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	out, err := runner.Run(ctx, cmdrun.Command{Name: binary, Args: Args(path), Class: cmdrun.ClassProbe})
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse([]byte(out.Stdout))
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// CreationTime returns format.tags.creation_time when present.
func (r Result) CreationTime() (string, bool) {
	value, ok := r.Format.Tags["creation_time"]
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// DurationSeconds returns the container duration in seconds, NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	value := strings.TrimSpace(r.Format.Duration)
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
