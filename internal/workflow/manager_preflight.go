package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"panotrack/internal/logging"
	"panotrack/internal/preflight"
)

// runPreflightChecks validates directories and external programs before the
// lanes start. Failures are logged and returned joined; jobs still run so a
// missing frame extractor does not block track imports.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, m.cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			logging.String(logging.FieldImpact, "jobs depending on this check will fail"),
		)
	}
	if failures := preflight.Failures(results); len(failures) > 0 {
		return errors.New("preflight checks failed: " + strings.Join(failures, "; "))
	}
	return nil
}
