package preflight

import (
	"context"
	"fmt"
	"strings"

	"panotrack/internal/config"
	"panotrack/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the directory, disk space and program checks for cfg. Extra
// import directories registered at runtime are checked after the configured
// paths.
func RunAll(ctx context.Context, cfg *config.Config, importDirs ...string) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Data volume", cfg.Paths.DataDir, MinFreeBytes),
	}
	for _, dir := range importDirs {
		if ctx.Err() != nil {
			break
		}
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		results = append(results, CheckDirectoryAccess("Import directory", dir))
	}
	results = append(results, DependencyResults(CheckSystemDeps(cfg))...)
	return results
}

// DependencyResults converts program availability into check results. Missing
// optional programs pass with a note.
func DependencyResults(statuses []deps.Status) []Result {
	out := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Passed = true
			result.Detail = fmt.Sprintf("optional: %s", status.Detail)
		default:
			result.Detail = status.Detail
		}
		out = append(out, result)
	}
	return out
}

// Failures renders each failed result as "name: detail".
func Failures(results []Result) []string {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	return failures
}
