// Package ffprobe provides a typed wrapper around ffprobe format output.
//
// Inspect runs `ffprobe -v quiet -print_format json -show_format <path>`
// through a cmdrun.Runner so the probe shares the probe-class deadline.
package ffprobe
