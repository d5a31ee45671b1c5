package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Tools names the external programs and the deadline of each invocation class.
type Tools struct {
	GoPro2GPX         string `toml:"gopro2gpx"`
	FFprobe           string `toml:"ffprobe"`
	MapillaryTools    string `toml:"mapillary_tools"`
	Apprise           string `toml:"apprise"`
	ConversionTimeout int    `toml:"conversion_timeout"`
	ProbeTimeout      int    `toml:"probe_timeout"`
	ExtractionTimeout int    `toml:"extraction_timeout"`
	NotifyTimeout     int    `toml:"notify_timeout"`
}

// Import controls which files are picked up and how frames are sampled.
type Import struct {
	Extensions         []string `toml:"extensions"`
	WriteSettleSeconds int      `toml:"write_settle_seconds"`
	SampleDistance     int      `toml:"sample_distance"`
	Timezone           string   `toml:"timezone"`
	MediaRescanDelay   int      `toml:"media_rescan_delay"`
}

// Workflow contains configuration for job processing.
type Workflow struct {
	TrackWorkers       int `toml:"track_workers"`
	ImageWorkers       int `toml:"image_workers"`
	MaxAttempts        int `toml:"max_attempts"`
	RetryBackoff       int `toml:"retry_backoff"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Notifications contains configuration for ntfy and apprise delivery.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Apprise        bool   `toml:"apprise"`
	TrackImported  bool   `toml:"track_imported"`
	ImagesImported bool   `toml:"images_imported"`
	ImportFailed   bool   `toml:"import_failed"`
}

// API contains configuration for the HTTP surface.
type API struct {
	Enabled bool `toml:"enabled"`
	Metrics bool `toml:"metrics"`
}

// Events controls the in-process signal bus.
type Events struct {
	HistorySize      int `toml:"history_size"`
	DeliveryAttempts int `toml:"delivery_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for panotrack.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories, API bind address and token
//   - Tools: external program names and per-class timeouts
//   - Import: watched extensions, write settling, frame sampling
//   - Workflow: worker counts, retry policy, polling and heartbeats
//   - Notifications: ntfy topic, apprise delivery, per-event toggles
//   - API: HTTP surface and metrics endpoint
//   - Events: signal history and delivery attempts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Import        Import        `toml:"import"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("panotrack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath is the SQLite file holding tracks, images, directories and targets.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "panotrack.db")
}

// QueuePath is the SQLite file holding import jobs.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SocketPath is the unix socket the daemon serves JSON-RPC on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "panotrack.sock")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "panotrack.lock")
}

// Location returns the zone naive capture timestamps are interpreted in.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Import.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// WatchesExtension reports whether files with ext are imported by directory watchers.
func (c *Config) WatchesExtension(ext string) bool {
	for _, candidate := range c.Import.Extensions {
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// ConversionTimeout bounds a single GPX conversion.
func (c *Config) ConversionTimeout() time.Duration { return seconds(c.Tools.ConversionTimeout) }

// ProbeTimeout bounds a single ffprobe invocation.
func (c *Config) ProbeTimeout() time.Duration { return seconds(c.Tools.ProbeTimeout) }

// ExtractionTimeout bounds a single frame extraction.
func (c *Config) ExtractionTimeout() time.Duration { return seconds(c.Tools.ExtractionTimeout) }

// NotifyTimeout bounds a single apprise delivery.
func (c *Config) NotifyTimeout() time.Duration { return seconds(c.Tools.NotifyTimeout) }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
