package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"panotrack/internal/cmdrun"
	"panotrack/internal/config"
	"panotrack/internal/daemon"
	"panotrack/internal/deps"
	"panotrack/internal/events"
	"panotrack/internal/imageimport"
	"panotrack/internal/ipc"
	"panotrack/internal/logging"
	"panotrack/internal/metrics"
	"panotrack/internal/notifications"
	"panotrack/internal/queue"
	"panotrack/internal/trackimport"
	"panotrack/internal/tracks"
	"panotrack/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the panotrack daemon runtime loop and blocks until SIGINT,
// SIGTERM or an IPC stop request.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("panotrack-%s.log", runID))
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update panotrack.log link: %v\n", err)
	}
	jobLogs := workflow.NewJobLogger(cfg)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "panotrack-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: jobLogs.Dir(), Pattern: "*.log"},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "panotrack.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	jobs, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_open_failed"),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}
	catalog, err := tracks.Open(cfg)
	if err != nil {
		_ = jobs.Close()
		logger.Error("open track catalog",
			logging.Error(err),
			logging.String(logging.FieldEventType, "catalog_open_failed"),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.String(logging.FieldImpact, "daemon cannot start"),
		)
		return err
	}

	m := metrics.New()
	bus := events.New(events.Options{
		HistorySize:      cfg.Events.HistorySize,
		DeliveryAttempts: cfg.Events.DeliveryAttempts,
		Logger:           logger,
		OnDrop:           func(string, events.Event) { m.SignalDropped() },
	})
	runner := newRunner(cfg, m, logger)
	notifier := newNotifier(cfg, runner, catalog, bus, logger)

	manager := workflow.NewManager(cfg, jobs, logger, workflow.WithMetrics(m), workflow.WithJobLogs(jobLogs))
	manager.ConfigureStages(workflow.HandlerSet{
		TrackImport: trackimport.NewImporter(cfg, catalog, bus, runner, logger),
		ImageImport: imageimport.NewImporter(cfg, catalog, bus, runner, logger),
	})

	d, err := daemon.New(daemon.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Jobs:     jobs,
		Catalog:  catalog,
		Bus:      bus,
		Workflow: manager,
		Notifier: notifier,
		Metrics:  m,
		LogPath:  logPath,
	})
	if err != nil {
		bus.Close()
		_ = jobs.Close()
		_ = catalog.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger, ipc.WithShutdown(cancel))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon may not process imports"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("panotrack daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func newRunner(cfg *config.Config, observer cmdrun.Observer, logger *slog.Logger) *cmdrun.ExecRunner {
	return cmdrun.NewExecRunner(
		cmdrun.WithTimeout(cmdrun.ClassConversion, cfg.ConversionTimeout()),
		cmdrun.WithTimeout(cmdrun.ClassProbe, cfg.ProbeTimeout()),
		cmdrun.WithTimeout(cmdrun.ClassExtraction, cfg.ExtractionTimeout()),
		cmdrun.WithTimeout(cmdrun.ClassNotification, cfg.NotifyTimeout()),
		cmdrun.WithObserver(observer),
		cmdrun.WithLogger(logger),
	)
}

func newNotifier(cfg *config.Config, runner cmdrun.Runner, targets notifications.TargetSource, bus *events.Bus, logger *slog.Logger) notifications.Service {
	opts := []notifications.Option{
		notifications.WithLogger(logger),
		notifications.WithEcho(bus),
	}
	if cfg.Notifications.Apprise {
		opts = append(opts, notifications.WithApprise(runner, cfg.Tools.Apprise, targets))
	}
	return notifications.NewService(cfg, opts...)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "panotrack.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	attrs := make([]any, 0, len(statuses)*2+1)
	attrs = append(attrs, logging.String(logging.FieldEventType, "dependency_snapshot"))
	for _, status := range statuses {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", attrs...)
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Warn("required tools missing",
			logging.Any("tools", missing),
			logging.String(logging.FieldEventType, "dependency_missing"),
			logging.String(logging.FieldErrorHint, "install the tools or set their paths under [tools]"),
			logging.String(logging.FieldImpact, "imports needing these tools will fail"),
		)
	}
}
