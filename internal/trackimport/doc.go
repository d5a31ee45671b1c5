// Package trackimport turns a recorded 360° clip into a catalog track.
//
// One import hashes the file, refuses content already in the catalog unless
// forced, converts the embedded telemetry to GPX, parses, smooths and
// simplifies the line, resolves the capture date, upserts the track keyed by
// its file path, and publishes track.imported. Duplicate content, converter
// failure lines, and unusable telemetry are unrecoverable; tool and store
// failures are retried by the workflow.
package trackimport
