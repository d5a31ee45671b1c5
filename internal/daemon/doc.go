// Package daemon coordinates the long-running panotrack process and its
// system integration points.
//
// It wires the job queue, the track catalog, the signal bus, the workflow
// manager and the directory watcher into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon serves the HTTP API and
// notification stream, rescans import directories when removable media
// appears, and reports dependency health.
//
// Keep orchestration logic here: pipeline steps live in trackimport and
// imageimport while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
