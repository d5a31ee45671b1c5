package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"panotrack/internal/api"
	"panotrack/internal/config"
	"panotrack/internal/events"
	"panotrack/internal/logging"
	"panotrack/internal/metrics"
	"panotrack/internal/notifications"
	"panotrack/internal/preflight"
	"panotrack/internal/queue"
	"panotrack/internal/tracks"
	"panotrack/internal/watcher"
	"panotrack/internal/workflow"
)

// Dependencies groups the components a Daemon coordinates. Notifier and
// Metrics are optional.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Jobs     *queue.Store
	Catalog  *tracks.Store
	Bus      *events.Bus
	Workflow *workflow.Manager
	Notifier notifications.Service
	Metrics  *metrics.Metrics
	LogPath  string
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	jobs     *queue.Store
	catalog  *tracks.Store
	bus      *events.Bus
	workflow *workflow.Manager
	notifier notifications.Service
	metrics  *metrics.Metrics
	logPath  string

	imports *api.ImportService
	tracks  *api.TrackService
	dirs    *api.DirectoryService
	targets *api.TargetService
	watcher *watcher.Watcher

	http    *apiServer
	monitor *netlinkMonitor

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	detach    []func()
}

// New constructs a daemon with initialized dependencies.
func New(deps Dependencies) (*Daemon, error) {
	if deps.Config == nil || deps.Jobs == nil || deps.Catalog == nil || deps.Bus == nil || deps.Workflow == nil {
		return nil, errors.New("daemon requires config, job queue, catalog, bus, and workflow manager")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(deps.Config, notifications.WithLogger(logger))
	}

	d := &Daemon{
		cfg:      deps.Config,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		jobs:     deps.Jobs,
		catalog:  deps.Catalog,
		bus:      deps.Bus,
		workflow: deps.Workflow,
		notifier: notifier,
		metrics:  deps.Metrics,
		logPath:  deps.LogPath,
		lockPath: deps.Config.LockPath(),
		lock:     flock.New(deps.Config.LockPath()),
	}
	d.imports = api.NewImportService(deps.Jobs, deps.Catalog, deps.Workflow, logger)
	d.tracks = api.NewTrackService(deps.Catalog)
	d.dirs = api.NewDirectoryService(deps.Catalog, deps.Bus, logger)
	d.targets = api.NewTargetService(deps.Catalog)
	d.watcher = watcher.New(deps.Config, d.imports, deps.Catalog, logger)
	d.http = newAPIServer(deps.Config, d, logger)
	d.monitor = newNetlinkMonitor(deps.Config, logger, d.Rescan)
	return d, nil
}

// Start acquires the daemon lock, returns interrupted jobs to the queue, and
// launches the workflow, the watcher, the HTTP API and the media monitor.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another panotrack daemon instance is already running")
	}

	reset, err := d.jobs.ResetActive(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset active jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("returned interrupted jobs to the queue",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "jobs_reset"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.detach = []func(){
		d.imports.Attach(d.bus),
		d.watcher.Attach(d.bus),
		notifications.NewImportNotifier(d.notifier, d.logger).Attach(d.bus),
	}

	if err := d.workflow.Start(runCtx); err != nil {
		d.abortStart(cancel)
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.watcher.Start(runCtx); err != nil {
		d.workflow.Stop()
		d.abortStart(cancel)
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.http.start(runCtx); err != nil {
		d.watcher.Stop()
		d.workflow.Stop()
		d.abortStart(cancel)
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.monitor.Start(runCtx); err != nil {
		d.logger.Warn("media monitor unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "media_monitor_failed"),
			logging.String(logging.FieldErrorHint, "run panotrack rescan after inserting a card"),
			logging.String(logging.FieldImpact, "inserted cards are not scanned automatically"),
		)
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("panotrack daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart(cancel context.CancelFunc) {
	cancel()
	for _, fn := range d.detach {
		fn()
	}
	d.detach = nil
	_ = d.lock.Unlock()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.http.stop()
	d.watcher.Stop()
	d.workflow.Stop()
	for _, fn := range d.detach {
		fn()
	}
	d.detach = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
			logging.String(logging.FieldImpact, "next daemon start may be refused"),
		)
	}
	d.running.Store(false)
	d.logger.Info("panotrack daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases its stores and bus.
func (d *Daemon) Close() error {
	d.Stop()
	d.bus.Close()
	return errors.Join(d.jobs.Close(), d.catalog.Close())
}

// Running reports whether Start has succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Imports exposes the import facade.
func (d *Daemon) Imports() *api.ImportService { return d.imports }

// Tracks exposes catalog queries.
func (d *Daemon) Tracks() *api.TrackService { return d.tracks }

// Directories exposes import directory management.
func (d *Daemon) Directories() *api.DirectoryService { return d.dirs }

// Targets exposes notification target management.
func (d *Daemon) Targets() *api.TargetService { return d.targets }

// Bus returns the signal bus backing the notification stream.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Rescan re-adds unavailable directories and imports untracked files.
func (d *Daemon) Rescan(ctx context.Context) (int, error) {
	return d.watcher.Rescan(ctx)
}

// TestNotification sends a test notification through every configured sink.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	if !d.hasNotificationSink(ctx) {
		return true, "no notification sink configured; test published to the stream only", nil
	}
	return true, "test notification sent", nil
}

// hasNotificationSink reports whether a message can leave the process. Apprise
// only counts once at least one target is registered.
func (d *Daemon) hasNotificationSink(ctx context.Context) bool {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "" {
		return true
	}
	if !d.cfg.Notifications.Apprise {
		return false
	}
	urls, err := d.catalog.TargetURLs(ctx)
	if err != nil {
		d.logger.Debug("notification targets unavailable", logging.Error(err))
		return false
	}
	return len(urls) > 0
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		CatalogPath:  d.catalog.Path(),
		QueuePath:    d.jobs.Path(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Watching:     []string{},
		Workflow:     api.FromStatusSummary(d.workflow.Status(ctx)),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
	}
	if status.Running {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}
	if trackCount, imageCount, err := d.tracks.Counts(ctx); err == nil {
		status.TrackCount = trackCount
		status.ImageCount = imageCount
	} else {
		d.logger.Debug("catalog counts unavailable", logging.Error(err))
	}

	dirs := d.watcher.Directories()
	roots := make([]string, 0, len(dirs))
	for root, available := range dirs {
		if available {
			status.Watching = append(status.Watching, root)
		}
		roots = append(roots, root)
	}
	sort.Strings(status.Watching)
	sort.Strings(roots)
	status.Checks = api.FromChecks(preflight.RunAll(ctx, d.cfg, roots...))
	return status
}
