// Package services defines shared utilities consumed by the import pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, lanes, and correlation
//     identifiers for logging.
//   - The import failure taxonomy: marker errors, the ServiceError carrier,
//     and the classification helpers the workflow uses to decide between an
//     immediate failure and a scheduled retry.
//
// Use these helpers when wiring new pipeline steps so retries and operator
// facing failure reasons stay uniform.
package services
