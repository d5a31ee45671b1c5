package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"panotrack/internal/events"
	"panotrack/internal/testsupport"
	"panotrack/internal/tracks"
	"panotrack/internal/watcher"
)

type recordingImporter struct {
	mu    sync.Mutex
	seen  map[string]bool
	paths []string
}

func (r *recordingImporter) ImportIfNew(_ context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[path] {
		return false, nil
	}
	r.seen[path] = true
	r.paths = append(r.paths, path)
	return true, nil
}

func (r *recordingImporter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

func (r *recordingImporter) waitFor(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Contains(r.snapshot(), path) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s, imported %v", path, r.snapshot())
}

type staticSource []string

func (s staticSource) ListDirectories(context.Context) ([]*tracks.ImportDirectory, error) {
	out := make([]*tracks.ImportDirectory, 0, len(s))
	for i, path := range s {
		out = append(out, &tracks.ImportDirectory{ID: int64(i + 1), Path: path})
	}
	return out, nil
}

func startWatcher(t *testing.T, dirs ...string) (*watcher.Watcher, *recordingImporter) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	importer := &recordingImporter{}
	w := watcher.New(cfg, importer, staticSource(dirs), nil)
	w.SetSettle(50 * time.Millisecond)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, importer
}

func TestStartIgnoresExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.360")
	testsupport.WriteFile(t, existing, 32)

	w, importer := startWatcher(t, dir)

	fresh := filepath.Join(dir, "new.360")
	testsupport.WriteFile(t, fresh, 32)
	importer.waitFor(t, fresh)

	if slices.Contains(importer.snapshot(), existing) {
		t.Fatal("existing file must not be imported on start")
	}
	if !w.Directories()[dir] {
		t.Fatalf("expected %s to be watched, got %v", dir, w.Directories())
	}
}

func TestSettledFileImportedOnceAndExtensionsFiltered(t *testing.T) {
	dir := t.TempDir()
	_, importer := startWatcher(t, dir)

	path := filepath.Join(dir, "clip.360")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 8)

	importer.waitFor(t, path)
	time.Sleep(150 * time.Millisecond)
	paths := importer.snapshot()
	if len(paths) != 1 || paths[0] != path {
		t.Fatalf("expected exactly one import of %s, got %v", path, paths)
	}
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	_, importer := startWatcher(t, dir)

	sub := filepath.Join(dir, "DCIM")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(sub, "GS010003.360")
	testsupport.WriteFile(t, path, 16)
	importer.waitFor(t, path)
}

func TestAddDirectoryAndRescanImportExistingFiles(t *testing.T) {
	watched := t.TempDir()
	w, importer := startWatcher(t, watched)

	added := t.TempDir()
	inAdded := filepath.Join(added, "a.360")
	testsupport.WriteFile(t, inAdded, 16)
	queued, err := w.AddDirectory(context.Background(), added)
	if err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}
	if queued != 1 || !slices.Contains(importer.snapshot(), inAdded) {
		t.Fatalf("expected existing file to be imported, queued=%d paths=%v", queued, importer.snapshot())
	}

	w.RemoveDirectory(added)
	if _, ok := w.Directories()[added]; ok {
		t.Fatal("expected removed directory to be forgotten")
	}

	inWatched := filepath.Join(watched, "b.360")
	testsupport.WriteFile(t, inWatched, 16)
	queued, err = w.Rescan(context.Background())
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if !slices.Contains(importer.snapshot(), inWatched) {
		t.Fatalf("expected rescan to import %s, got %v (queued %d)", inWatched, importer.snapshot(), queued)
	}
}

func TestAttachFollowsDirectorySignals(t *testing.T) {
	w, importer := startWatcher(t)
	bus := events.New(events.Options{RetryDelay: time.Millisecond})
	t.Cleanup(bus.Close)
	detach := w.Attach(bus)
	defer detach()

	dir := t.TempDir()
	path := filepath.Join(dir, "c.360")
	testsupport.WriteFile(t, path, 16)
	if _, err := bus.Publish(context.Background(), events.TopicImportDirectoryCreated, events.ImportDirectoryChanged{ID: 1, Path: dir}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	importer.waitFor(t, path)
}
