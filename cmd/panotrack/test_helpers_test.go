package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"panotrack/internal/config"
	"panotrack/internal/daemon"
	"panotrack/internal/events"
	"panotrack/internal/ipc"
	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/stage"
	"panotrack/internal/testsupport"
	"panotrack/internal/tracks"
	"panotrack/internal/workflow"
)

type noopHandler struct{}

func (noopHandler) Execute(context.Context, *queue.Job, stage.ProgressReporter) (any, error) {
	return nil, nil
}
func (noopHandler) OnFailure(context.Context, *queue.Job, error) {}
func (noopHandler) HealthCheck(context.Context) stage.Health  { return stage.Healthy("noop") }

type cliTestEnv struct {
	cfg        *config.Config
	jobs       *queue.Store
	catalog    *tracks.Store
	socketPath string
	configPath string
}

// newOfflineEnv writes a config file without starting any daemon.
func newOfflineEnv(t *testing.T, mutators ...func(*config.Config)) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.API.Enabled = false
	for _, mutate := range mutators {
		mutate(cfg)
	}
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		socketPath: filepath.Join(testsupport.BaseDir(cfg), "none.sock"),
		configPath: configPath,
	}
}

// setupCLITestEnv serves a daemon over IPC. The workflow is not started so
// queued jobs stay observable.
func setupCLITestEnv(t *testing.T, mutators ...func(*config.Config)) *cliTestEnv {
	t.Helper()
	env := newOfflineEnv(t, mutators...)
	cfg := env.cfg
	env.jobs = testsupport.MustOpenQueue(t, cfg)
	env.catalog = testsupport.MustOpenTracks(t, cfg)

	logger := logging.NewNop()
	bus := events.New(events.Options{Logger: logger})
	t.Cleanup(bus.Close)
	mgr := workflow.NewManager(cfg, env.jobs, logger)
	mgr.ConfigureStages(workflow.HandlerSet{TrackImport: noopHandler{}, ImageImport: noopHandler{}})

	d, err := daemon.New(daemon.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Jobs:     env.jobs,
		Catalog:  env.catalog,
		Bus:      bus,
		Workflow: mgr,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.socketPath = cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger, ipc.WithShutdown(cancel))
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.socketPath, e.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[import]\ntimezone = \"UTC\"\n\n[api]\nenabled = false\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
