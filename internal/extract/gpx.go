package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"panotrack/internal/cmdrun"
	"panotrack/internal/services"
)

// ConversionFailurePrefix marks gopro2gpx output for a clip without usable telemetry.
const ConversionFailurePrefix = "Can't create file"

// GPXExtractor converts embedded telemetry into a GPX file.
type GPXExtractor struct {
	runner cmdrun.Runner
	binary string
}

// NewGPXExtractor returns an extractor that invokes binary through runner.
func NewGPXExtractor(runner cmdrun.Runner, binary string) *GPXExtractor {
	if strings.TrimSpace(binary) == "" {
		binary = "gopro2gpx"
	}
	return &GPXExtractor{runner: runner, binary: binary}
}

// GPXPath returns where the converter writes output for source.
func GPXPath(source string) string {
	return source + ".gpx"
}

// ConversionArgs returns the converter argument list for source.
func ConversionArgs(source string) []string {
	return []string{"--skip-dop", "--dop-limit", "500", "-s", source, source}
}

// Extract runs the converter and returns the GPX path. A failure line in the
// output is reported as services.ErrConversion regardless of the exit code.
func (e *GPXExtractor) Extract(ctx context.Context, source string) (string, error) {
	result, runErr := e.runner.Run(ctx, cmdrun.Command{
		Name:  e.binary,
		Args:  ConversionArgs(source),
		Class: cmdrun.ClassConversion,
	})
	if line, failed := cmdrun.HasFailurePrefix(result.Stdout, ConversionFailurePrefix); failed {
		return "", services.Conversion(line)
	}
	if runErr != nil {
		return "", runErr
	}
	out := GPXPath(source)
	if _, err := os.Stat(out); err != nil {
		return "", services.GPXProcessing(services.ErrConversion, "read gpx",
			fmt.Errorf("converter reported success but %s is unreadable: %w", out, err))
	}
	return out, nil
}
