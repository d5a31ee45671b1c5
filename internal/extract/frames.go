package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"panotrack/internal/cmdrun"
	"panotrack/internal/services"
)

// ManifestName is the file mapillary_tools writes next to sampled frames.
const ManifestName = "mapillary_image_description.json"

// DefaultSampleDistance is the metres between sampled frames.
const DefaultSampleDistance = 10

// Frames locates the output of one extraction.
type Frames struct {
	Dir          string
	ManifestPath string
}

// FrameExtractor samples geotagged frames from a clip.
type FrameExtractor struct {
	runner         cmdrun.Runner
	binary         string
	sampleDistance int
}

// NewFrameExtractor returns an extractor invoking binary through runner,
// sampling one frame every sampleDistance metres.
func NewFrameExtractor(runner cmdrun.Runner, binary string, sampleDistance int) *FrameExtractor {
	if strings.TrimSpace(binary) == "" {
		binary = "mapillary_tools"
	}
	if sampleDistance <= 0 {
		sampleDistance = DefaultSampleDistance
	}
	return &FrameExtractor{runner: runner, binary: binary, sampleDistance: sampleDistance}
}

// OutputDir is the source's directory joined with its basename minus the extension.
func OutputDir(source string) string {
	base := filepath.Base(source)
	return filepath.Join(filepath.Dir(source), strings.TrimSuffix(base, filepath.Ext(base)))
}

// Args returns the mapillary_tools argument list for source.
func (e *FrameExtractor) Args(source string) []string {
	return []string{
		"video_process",
		"--video_sample_distance", strconv.Itoa(e.sampleDistance),
		source,
		OutputDir(source),
	}
}

// Extract runs the sampler. Every failure, including a missing manifest, is transient.
func (e *FrameExtractor) Extract(ctx context.Context, source string) (Frames, error) {
	frames := Frames{Dir: OutputDir(source)}
	frames.ManifestPath = filepath.Join(frames.Dir, ManifestName)
	if _, err := e.runner.Run(ctx, cmdrun.Command{
		Name:  e.binary,
		Args:  e.Args(source),
		Class: cmdrun.ClassExtraction,
	}); err != nil {
		return Frames{}, err
	}
	if _, err := os.Stat(frames.ManifestPath); err != nil {
		return Frames{}, services.Wrap(services.ErrIO, "ExtractingFrames", "stat manifest",
			fmt.Sprintf("manifest %s missing after extraction", frames.ManifestPath), err)
	}
	return frames, nil
}
