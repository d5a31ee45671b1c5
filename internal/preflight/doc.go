// Package preflight provides readiness checks for the filesystem paths and
// external programs panotrack depends on.
//
// The workflow manager runs RunAll when it starts and records any failure as
// its last error so `panotrack status` can surface it. The CLI status command
// calls the individual checks directly to render the dependency table.
package preflight
