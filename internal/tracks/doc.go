// Package tracks persists the catalog of imported tracks, the panorama frames
// attached to them, and the operator-managed import directories and
// notification targets.
//
// The catalog lives in its own SQLite database next to the job queue. Track
// geometry is stored as GeoJSON text alongside its bounding envelope so bbox
// queries can prefilter in SQL before an exact clip test in Go.
package tracks
