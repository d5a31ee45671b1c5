package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"panotrack/internal/config"
	"panotrack/internal/events"
	"panotrack/internal/logging"
	"panotrack/internal/tracks"
)

// Importer accepts settled files. It must skip paths that are already
// catalogued or queued.
type Importer interface {
	ImportIfNew(ctx context.Context, path string) (bool, error)
}

// DirectorySource lists the registered import directories.
type DirectorySource interface {
	ListDirectories(ctx context.Context) ([]*tracks.ImportDirectory, error)
}

// Subscriber registers bus handlers.
type Subscriber interface {
	Subscribe(topic, name string, handler events.Handler) func()
}

// Watcher watches import directories and imports settled files.
type Watcher struct {
	cfg      *config.Config
	importer Importer
	source   DirectorySource
	logger   *slog.Logger
	settle   time.Duration

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roots    map[string]bool
	pending  map[string]*pendingFile
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

type pendingFile struct {
	debounced func(func())
	size      int64
}

// New constructs a Watcher. It does nothing until Start.
func New(cfg *config.Config, importer Importer, source DirectorySource, logger *slog.Logger) *Watcher {
	settle := time.Duration(cfg.Import.WriteSettleSeconds) * time.Second
	if settle <= 0 {
		settle = time.Second
	}
	return &Watcher{
		cfg:      cfg,
		importer: importer,
		source:   source,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		settle:   settle,
		roots:    make(map[string]bool),
		pending:  make(map[string]*pendingFile),
	}
}

// SetSettle overrides the write settle time. It must be called before Start.
func (w *Watcher) SetSettle(d time.Duration) {
	if d > 0 {
		w.settle = d
	}
}

// Start begins watching every registered directory. Existing files are not
// imported.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	w.mu.Unlock()

	dirs, err := w.registered(ctx)
	if err != nil {
		w.Stop()
		return err
	}
	for _, dir := range dirs {
		if err := w.addRoot(dir); err != nil {
			w.logger.Warn("import directory unavailable",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_directory_unavailable"),
				logging.String(logging.FieldErrorHint, "mount the directory; it is retried on the next rescan"),
				logging.String(logging.FieldImpact, "new files in this directory are not imported"),
			)
		}
	}

	w.wg.Add(1)
	go w.loop(fsw)
	w.logger.Info("watcher started",
		logging.Int("directories", len(dirs)),
		logging.Duration("settle", w.settle),
		logging.String(logging.FieldEventType, "watcher_started"),
	)
	return nil
}

// Stop closes the fsnotify watcher and waits for in-flight imports.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close()
	w.wg.Wait()
	w.inflight.Wait()
}

// Directories returns the watched roots and whether each is available.
func (w *Watcher) Directories() map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]bool, len(w.roots))
	for root, ok := range w.roots {
		out[root] = ok
	}
	return out
}

// AddDirectory watches path and imports the files already inside it.
func (w *Watcher) AddDirectory(ctx context.Context, path string) (int, error) {
	path = filepath.Clean(path)
	if err := w.addRoot(path); err != nil {
		return 0, err
	}
	return w.scan(ctx, path), nil
}

// RemoveDirectory stops watching path and everything below it.
func (w *Watcher) RemoveDirectory(path string) {
	path = filepath.Clean(path)
	w.mu.Lock()
	delete(w.roots, path)
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	for _, watched := range fsw.WatchList() {
		if watched == path || strings.HasPrefix(watched, path+string(filepath.Separator)) {
			_ = fsw.Remove(watched)
		}
	}
	w.logger.Info("import directory removed",
		logging.String("path", path),
		logging.String(logging.FieldEventType, "watch_directory_removed"),
	)
}

// Rescan re-adds unavailable directories and imports every untracked file in
// every registered directory. It returns the number of imports queued.
func (w *Watcher) Rescan(ctx context.Context) (int, error) {
	dirs, err := w.registered(ctx)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, dir := range dirs {
		if err := w.addRoot(dir); err != nil {
			w.logger.Debug("rescan skipped unavailable directory", logging.String("path", dir), logging.Error(err))
			continue
		}
		queued += w.scan(ctx, dir)
	}
	w.logger.Info("rescan finished",
		logging.Int("directories", len(dirs)),
		logging.Int("queued", queued),
		logging.String(logging.FieldEventType, "rescan_finished"),
	)
	return queued, nil
}

// Attach keeps the watch list in sync with directory signals.
func (w *Watcher) Attach(bus Subscriber) func() {
	created := bus.Subscribe(events.TopicImportDirectoryCreated, "watcher-add", func(ctx context.Context, evt events.Event) error {
		var payload events.ImportDirectoryChanged
		if err := evt.Decode(&payload); err != nil {
			return nil
		}
		_, err := w.AddDirectory(ctx, payload.Path)
		return err
	})
	deleted := bus.Subscribe(events.TopicImportDirectoryDeleted, "watcher-remove", func(_ context.Context, evt events.Event) error {
		var payload events.ImportDirectoryChanged
		if err := evt.Decode(&payload); err != nil {
			return nil
		}
		w.RemoveDirectory(payload.Path)
		return nil
	})
	return func() {
		created()
		deleted()
	}
}

func (w *Watcher) registered(ctx context.Context) ([]string, error) {
	if w.source == nil {
		return nil, nil
	}
	dirs, err := w.source.ListDirectories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, filepath.Clean(dir.Path))
	}
	return out, nil
}

// addRoot records root and adds watches for it and every subdirectory.
func (w *Watcher) addRoot(root string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.roots[root] = false
	w.mu.Unlock()
	if fsw == nil {
		return errors.New("watcher not running")
	}

	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(root + " is not a directory")
	}
	if err := w.addTree(fsw, root); err != nil {
		return err
	}
	w.mu.Lock()
	if _, ok := w.roots[root]; ok {
		w.roots[root] = true
	}
	w.mu.Unlock()
	return nil
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	watched := fsw.WatchList()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() || slices.Contains(watched, path) {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("subdirectory not watched", logging.String("path", path), logging.Error(err))
		}
		return nil
	})
}

// scan imports every matching file under dir and returns how many were queued.
func (w *Watcher) scan(ctx context.Context, dir string) int {
	queued := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !w.matches(path) {
			return nil
		}
		if w.importFile(ctx, path) {
			queued++
		}
		return nil
	})
	return queued
}

func (w *Watcher) matches(path string) bool {
	return w.cfg.WatchesExtension(filepath.Ext(path))
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case evt, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, evt)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if the limit was reached"),
				logging.String(logging.FieldImpact, "some file arrivals may be missed until the next rescan"),
			)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, evt fsnotify.Event) {
	path := filepath.Clean(evt.Name)
	switch {
	case evt.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(fsw, path); err == nil {
				w.inflight.Add(1)
				go func() {
					defer w.inflight.Done()
					w.scan(w.ctx, path)
				}()
			}
			return
		}
		w.schedule(path, info.Size())
	case evt.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.schedule(path, info.Size())
		}
	case evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename):
		w.mu.Lock()
		if _, ok := w.roots[path]; ok {
			w.roots[path] = false
		}
		delete(w.pending, path)
		w.mu.Unlock()
	}
}

// schedule restarts the settle timer of path.
func (w *Watcher) schedule(path string, size int64) {
	if !w.matches(path) {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	entry, ok := w.pending[path]
	if !ok {
		entry = &pendingFile{debounced: debounce.New(w.settle)}
		w.pending[path] = entry
	}
	entry.size = size
	w.mu.Unlock()

	entry.debounced(func() { w.settled(path) })
}

// settled runs once path has been quiet for the settle time. A size change
// since the last event means the writer is still going.
func (w *Watcher) settled(path string) {
	info, err := os.Stat(path)
	w.mu.Lock()
	entry, ok := w.pending[path]
	if !ok || !w.running {
		w.mu.Unlock()
		return
	}
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != entry.size {
		w.mu.Unlock()
		w.schedule(path, info.Size())
		return
	}
	delete(w.pending, path)
	w.inflight.Add(1)
	ctx := w.ctx
	w.mu.Unlock()

	defer w.inflight.Done()
	w.importFile(ctx, path)
}

func (w *Watcher) importFile(ctx context.Context, path string) bool {
	queued, err := w.importer.ImportIfNew(ctx, path)
	if err != nil {
		w.logger.Warn("file not queued for import",
			logging.String("file_path", path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "watch_import_failed"),
			logging.String(logging.FieldErrorHint, "run panotrack import on the file or wait for the next rescan"),
			logging.String(logging.FieldImpact, "file was not imported"),
		)
		return false
	}
	if queued {
		w.logger.Info("file queued for import",
			logging.String("file_path", path),
			logging.String(logging.FieldEventType, "watch_import_queued"),
		)
	}
	return queued
}
