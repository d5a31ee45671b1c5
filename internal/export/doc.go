// Package export writes the track catalog to Parquet files for offline
// analysis. Tracks are flattened to one row per vertex; images keep one row
// per frame.
package export
