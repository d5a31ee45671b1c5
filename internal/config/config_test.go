package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"panotrack/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PANOTRACK_DATA_DIR", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "panotrack")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7495" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if len(cfg.Import.Extensions) != 1 || cfg.Import.Extensions[0] != ".360" {
		t.Fatalf("unexpected extensions: %v", cfg.Import.Extensions)
	}
	if cfg.Import.SampleDistance != 10 {
		t.Fatalf("unexpected sample distance: %d", cfg.Import.SampleDistance)
	}
	if cfg.CatalogPath() != filepath.Join(wantData, "panotrack.db") {
		t.Fatalf("unexpected catalog path: %q", cfg.CatalogPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

func TestLoadCustomConfigNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PANOTRACK_DATA_DIR", "")
	t.Setenv("PANOTRACK_API_TOKEN", "from-env")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[paths]
data_dir = "~/tracks"

[import]
extensions = ["360", ".MP4", ".360"]

[workflow]
max_attempts = 5

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "tracks") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if got := strings.Join(cfg.Import.Extensions, ","); got != ".360,.mp4" {
		t.Fatalf("unexpected normalized extensions: %q", got)
	}
	if !cfg.WatchesExtension(".MP4") || cfg.WatchesExtension(".mov") {
		t.Fatalf("unexpected extension matching for %v", cfg.Import.Extensions)
	}
	if cfg.Workflow.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Paths.APIToken != "from-env" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PANOTRACK_NTFY_TOPIC", "")
	os.Unsetenv("PANOTRACK_NTFY_TOPIC")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PANOTRACK_NTFY_TOPIC=https://ntfy.example/topic\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/topic" {
		t.Fatalf("expected ntfy topic from .env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no extensions", func(c *config.Config) { c.Import.Extensions = nil }, "import.extensions"},
		{"zero workers", func(c *config.Config) { c.Workflow.TrackWorkers = 0 }, "workflow.track_workers"},
		{"heartbeat", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }, "workflow.heartbeat_timeout"},
		{"timeout", func(c *config.Config) { c.Tools.ExtractionTimeout = 0 }, "tools.extraction_timeout"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bind", func(c *config.Config) { c.Paths.APIBind = "nonsense" }, "paths.api_bind"},
		{"timezone", func(c *config.Config) { c.Import.Timezone = "Mars/Olympus" }, "import.timezone"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLocationParsesTimezone(t *testing.T) {
	cfg := config.Default()
	if cfg.Location() != time.Local {
		t.Fatal("expected local location by default")
	}
	cfg.Import.Timezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Fatalf("unexpected location %q", cfg.Location())
	}
}

func TestSampleConfigDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Workflow.MaxAttempts != config.Default().Workflow.MaxAttempts {
		t.Fatalf("sample max_attempts drifted from defaults: %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Tools.ConversionTimeout != config.Default().Tools.ConversionTimeout {
		t.Fatalf("sample conversion_timeout drifted from defaults: %d", cfg.Tools.ConversionTimeout)
	}
}
