package api_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"panotrack/internal/api"
	"panotrack/internal/events"
	"panotrack/internal/queue"
	"panotrack/internal/services"
	"panotrack/internal/testsupport"
	"panotrack/internal/tracks"
)

type recordingWaker struct {
	mu    sync.Mutex
	kinds []queue.Kind
}

func (w *recordingWaker) Wake(kind queue.Kind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kinds = append(w.kinds, kind)
}

func (w *recordingWaker) count(kind queue.Kind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, k := range w.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type importEnv struct {
	jobs    *queue.Store
	catalog *tracks.Store
	waker   *recordingWaker
	service *api.ImportService
	dir     string
}

func newImportEnv(t *testing.T) *importEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	env := &importEnv{
		jobs:    testsupport.MustOpenQueue(t, cfg),
		catalog: testsupport.MustOpenTracks(t, cfg),
		waker:   &recordingWaker{},
		dir:     t.TempDir(),
	}
	env.service = api.NewImportService(env.jobs, env.catalog, env.waker, nil)
	return env
}

func TestStartImportMissingFileCreatesNoJob(t *testing.T) {
	env := newImportEnv(t)
	_, err := env.service.StartImport(context.Background(), filepath.Join(env.dir, "missing.360"), false)
	if !errors.Is(err, services.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	jobs, err := env.jobs.List(context.Background(), queue.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestStartImportRejectsDirectory(t *testing.T) {
	env := newImportEnv(t)
	if _, err := env.service.StartImport(context.Background(), env.dir, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStartImportQueuesTrackJob(t *testing.T) {
	env := newImportEnv(t)
	path := filepath.Join(env.dir, "GS010001.360")
	testsupport.WriteFile(t, path, 64)

	job, err := env.service.StartImport(context.Background(), path, true)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if job.Kind != string(queue.KindTrackImport) || job.Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Name != "GS010001.360" || job.Key != path {
		t.Fatalf("unexpected name/key %q %q", job.Name, job.Key)
	}
	stored, err := env.jobs.GetByID(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	var payload queue.TrackImportPayload
	if err := stored.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.FilePath != path || !payload.Force {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if env.waker.count(queue.KindTrackImport) != 1 {
		t.Fatal("expected track lane to be woken")
	}
}

func TestImportIfNewSkipsTrackedAndQueuedPaths(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()

	tracked := filepath.Join(env.dir, "tracked.360")
	testsupport.WriteFile(t, tracked, 16)
	testsupport.NewTrack(t, env.catalog, tracked, "hash-tracked")

	fresh := filepath.Join(env.dir, "fresh.360")
	testsupport.WriteFile(t, fresh, 16)

	queued, err := env.service.ImportIfNew(ctx, tracked)
	if err != nil || queued {
		t.Fatalf("expected tracked path to be skipped, got %v %v", queued, err)
	}
	queued, err = env.service.ImportIfNew(ctx, fresh)
	if err != nil || !queued {
		t.Fatalf("expected fresh path to be queued, got %v %v", queued, err)
	}
	queued, err = env.service.ImportIfNew(ctx, fresh)
	if err != nil || queued {
		t.Fatalf("expected pending path to be skipped, got %v %v", queued, err)
	}
}

func TestHandleTrackImportedQueuesImageJobOnce(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "a.360"), "hash-a")

	bus := events.New(events.Options{RetryDelay: time.Millisecond})
	t.Cleanup(bus.Close)
	detach := env.service.Attach(bus)
	defer detach()

	payload := events.TrackImported{ID: track.ID, Name: track.Name}
	for i := 0; i < 2; i++ {
		if _, err := bus.Publish(ctx, events.TopicTrackImported, payload); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.waker.count(queue.KindImageImport) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	bus.Close()

	jobs, err := env.jobs.List(ctx, queue.Filter{Kinds: []queue.Kind{queue.KindImageImport}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one image job, got %d", len(jobs))
	}
	var image queue.ImageImportPayload
	if err := jobs[0].DecodePayload(&image); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if image.TrackID != track.ID || jobs[0].Key != queue.ImageJobKey(track.ID) {
		t.Fatalf("unexpected image job %+v", jobs[0])
	}
}

func TestHandleTrackImportedDropsMalformedPayload(t *testing.T) {
	env := newImportEnv(t)
	err := env.service.HandleTrackImported(context.Background(), events.Event{Topic: events.TopicTrackImported, Payload: []byte(`"nope"`)})
	if err != nil {
		t.Fatalf("expected malformed payload to be dropped, got %v", err)
	}
}

func TestStartImageImport(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	track := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "b.360"), "hash-b")

	if _, err := env.service.StartImageImport(ctx, track.ID+100); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown track, got %v", err)
	}
	job, err := env.service.StartImageImport(ctx, track.ID)
	if err != nil {
		t.Fatalf("StartImageImport: %v", err)
	}
	if job.Kind != string(queue.KindImageImport) {
		t.Fatalf("unexpected kind %q", job.Kind)
	}
	if _, err := env.service.StartImageImport(ctx, track.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected pending duplicate to be rejected, got %v", err)
	}
}

func TestProcessMissingImages(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	first := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "1.360"), "hash-1")
	second := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "2.360"), "hash-2")
	withImages := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "3.360"), "hash-3")
	if _, err := env.catalog.ReplaceImages(ctx, withImages.ID, []tracks.ImageInput{{
		CaptureDate: time.Now(),
		FilePath:    "/tmp/frame.jpg",
	}}); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}
	if _, err := env.service.StartImageImport(ctx, second.ID); err != nil {
		t.Fatalf("StartImageImport: %v", err)
	}

	result, err := env.service.ProcessMissingImages(ctx)
	if err != nil {
		t.Fatalf("ProcessMissingImages: %v", err)
	}
	if len(result.Enqueued) != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Enqueued[0].Key != queue.ImageJobKey(first.ID) {
		t.Fatalf("expected job for track %d, got %+v", first.ID, result.Enqueued[0])
	}
}

func TestListImportsFiltersAndValidates(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	path := filepath.Join(env.dir, "c.360")
	testsupport.WriteFile(t, path, 16)
	if _, err := env.service.StartImport(ctx, path, false); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	track := testsupport.NewTrack(t, env.catalog, filepath.Join(env.dir, "d.360"), "hash-d")
	if _, err := env.service.StartImageImport(ctx, track.ID); err != nil {
		t.Fatalf("StartImageImport: %v", err)
	}

	tests := []struct {
		name  string
		query api.ImportQuery
		want  int
	}{
		{name: "all", query: api.ImportQuery{}, want: 2},
		{name: "kind", query: api.ImportQuery{Kind: "image-import"}, want: 1},
		{name: "status", query: api.ImportQuery{Status: "failed"}, want: 0},
		{name: "limit", query: api.ImportQuery{Limit: 1}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jobs, err := env.service.ListImports(ctx, tc.query)
			if err != nil {
				t.Fatalf("ListImports: %v", err)
			}
			if len(jobs) != tc.want {
				t.Fatalf("expected %d jobs, got %d", tc.want, len(jobs))
			}
		})
	}

	if _, err := env.service.ListImports(ctx, api.ImportQuery{Kind: "encode"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown kind, got %v", err)
	}
	if _, err := env.service.ClearJobs(ctx, "everything"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown scope, got %v", err)
	}
	if _, err := env.service.RemoveJobs(ctx); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation without ids, got %v", err)
	}
}

func TestRetryFailedWakesLanes(t *testing.T) {
	env := newImportEnv(t)
	ctx := context.Background()
	path := filepath.Join(env.dir, "e.360")
	testsupport.WriteFile(t, path, 16)
	job, err := env.service.StartImport(ctx, path, false)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	claimed, err := env.jobs.ClaimNext(ctx, queue.KindTrackImport)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if err := env.jobs.Fail(ctx, job.ID, "boom", "conversion", true); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	updated, err := env.service.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 retried job, got %d", updated)
	}
	if env.waker.count(queue.KindImageImport) != 1 {
		t.Fatal("expected image lane to be woken after retry")
	}
	described, err := env.service.DescribeJob(ctx, job.ID)
	if err != nil || described == nil {
		t.Fatalf("DescribeJob: %v", err)
	}
	if described.Status != string(queue.StatusQueued) {
		t.Fatalf("expected queued after retry, got %q", described.Status)
	}
}
