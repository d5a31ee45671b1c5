// Package api is the service facade shared by the HTTP server, the JSON-RPC
// server and the CLI. It translates queue and catalog models into
// transport-friendly DTOs and owns the operations that start imports.
//
// # Services
//
// ImportService: enqueues track and image imports, lists and retries jobs,
// and reacts to track.imported signals by queueing the image import of the
// new track.
//
// TrackService: read access to tracks, their frames, and GeoJSON renderings.
//
// DirectoryService and TargetService: CRUD over watched import directories
// and apprise notification targets.
//
// # Design Notes
//
// DTOs use camelCase JSON tags and matching YAML tags so the CLI can print
// either format. Timestamps use RFC3339 with milliseconds. Validation errors
// wrap services.ErrValidation and missing rows wrap services.ErrNotFound so
// transports can map them to status codes.
package api
