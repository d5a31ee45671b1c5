package workflow

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"panotrack/internal/config"
	"panotrack/internal/logging"
)

// JobLogger manages the per-job JSON log files under log_dir/jobs.
type JobLogger struct {
	dir   string
	level string
}

// NewJobLogger creates the job log writer for cfg.
func NewJobLogger(cfg *config.Config) *JobLogger {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	return &JobLogger{
		dir:   filepath.Join(cfg.Paths.LogDir, "jobs"),
		level: cfg.Logging.Level,
	}
}

// Dir is the directory job logs are written to.
func (j *JobLogger) Dir() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// Path returns the log file of job id.
func (j *JobLogger) Path(id int64) string {
	if j == nil {
		return ""
	}
	return filepath.Join(j.dir, fmt.Sprintf("%d.log", id))
}

// Open returns a handler appending to the log of job id. Every attempt of a
// job appends to the same file.
func (j *JobLogger) Open(id int64) (slog.Handler, io.Closer, error) {
	if j == nil {
		return nil, nil, fmt.Errorf("job log directory not configured")
	}
	return logging.NewJSONFileHandler(j.Path(id), j.level)
}
