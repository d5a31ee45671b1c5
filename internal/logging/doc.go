// Package logging assembles structured slog loggers and formatting helpers used
// across panotrack.
//
// It owns the console and JSON handlers, the tee handler used for per-job log
// files, and context-aware helpers so pipeline code automatically tags log
// lines with job IDs, phases, lanes, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
