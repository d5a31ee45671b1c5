package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"panotrack/internal/daemon"
	"panotrack/internal/events"
	"panotrack/internal/ipc"
	"panotrack/internal/logging"
	"panotrack/internal/queue"
	"panotrack/internal/stage"
	"panotrack/internal/testsupport"
	"panotrack/internal/workflow"
)

type noopHandler struct{}

func (noopHandler) Execute(context.Context, *queue.Job, stage.ProgressReporter) (any, error) {
	return nil, nil
}
func (noopHandler) OnFailure(context.Context, *queue.Job, error) {}
func (noopHandler) HealthCheck(context.Context) stage.Health  { return stage.Healthy("noop") }

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Enabled = false
	jobs := testsupport.MustOpenQueue(t, cfg)
	catalog := testsupport.MustOpenTracks(t, cfg)
	logger := logging.NewNop()
	bus := events.New(events.Options{Logger: logger})
	t.Cleanup(bus.Close)
	mgr := workflow.NewManager(cfg, jobs, logger)
	mgr.ConfigureStages(workflow.HandlerSet{TrackImport: noopHandler{}, ImageImport: noopHandler{}})

	d, err := daemon.New(daemon.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Jobs:     jobs,
		Catalog:  catalog,
		Bus:      bus,
		Workflow: mgr,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var stopped atomic.Bool
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, ipc.WithShutdown(func() { stopped.Store(true) }))
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Status.QueuePath != jobs.Path() {
		t.Fatalf("unexpected queue path %q", status.Status.QueuePath)
	}

	source := filepath.Join(testsupport.BaseDir(cfg), "clips", "ride.360")
	testsupport.WriteFile(t, source, 32)
	imported, err := client.Import(source, false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.Job.Key != source || imported.Job.Status != string(queue.StatusQueued) {
		t.Fatalf("unexpected import job %+v", imported.Job)
	}
	if _, err := client.Import(source+".missing", false); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing file error, got %v", err)
	}

	list, err := client.JobsList(ipc.JobsListRequest{Kind: string(queue.KindTrackImport)})
	if err != nil {
		t.Fatalf("JobsList failed: %v", err)
	}
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(list.Jobs))
	}
	shown, err := client.JobShow(imported.Job.ID)
	if err != nil || !shown.Found {
		t.Fatalf("JobShow: found=%v err=%v", shown != nil && shown.Found, err)
	}
	missing, err := client.JobShow(9999)
	if err != nil || missing.Found {
		t.Fatalf("expected unknown job to be absent, err=%v", err)
	}

	track := testsupport.NewTrack(t, catalog, "/media/other.360", "hash-2")
	image, err := client.ImageImport(track.ID)
	if err != nil {
		t.Fatalf("ImageImport failed: %v", err)
	}
	if image.Job.Kind != string(queue.KindImageImport) {
		t.Fatalf("unexpected image job %+v", image.Job)
	}
	missingImages, err := client.MissingImages()
	if err != nil {
		t.Fatalf("MissingImages failed: %v", err)
	}
	if missingImages.Skipped != 1 || len(missingImages.Enqueued) != 0 {
		t.Fatalf("unexpected missing images response %+v", missingImages)
	}

	tracksResp, err := client.TracksList(ipc.TracksListRequest{})
	if err != nil {
		t.Fatalf("TracksList failed: %v", err)
	}
	if len(tracksResp.Tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracksResp.Tracks))
	}
	shownTrack, err := client.TrackShow(track.ID)
	if err != nil {
		t.Fatalf("TrackShow failed: %v", err)
	}
	if shownTrack.Track.FilePath != "/media/other.360" || len(shownTrack.Images) != 0 {
		t.Fatalf("unexpected track %+v", shownTrack)
	}
	if _, err := client.TracksList(ipc.TracksListRequest{BBox: "nope"}); err == nil {
		t.Fatal("expected malformed bbox to fail")
	}

	removed, err := client.JobRemove([]int64{imported.Job.ID})
	if err != nil || removed.Count != 1 {
		t.Fatalf("JobRemove: %+v %v", removed, err)
	}
	cleared, err := client.JobClear("all")
	if err != nil {
		t.Fatalf("JobClear failed: %v", err)
	}
	if cleared.Count != 1 {
		t.Fatalf("expected the queued image job to be cleared, removed %d", cleared.Count)
	}
	retried, err := client.JobRetry(nil)
	if err != nil || retried.Count != 0 {
		t.Fatalf("JobRetry: %+v %v", retried, err)
	}

	dir := filepath.Join(testsupport.BaseDir(cfg), "clips")
	added, err := client.DirAdd(dir)
	if err != nil {
		t.Fatalf("DirAdd failed: %v", err)
	}
	dirs, err := client.DirsList()
	if err != nil || len(dirs.Directories) != 1 {
		t.Fatalf("DirsList: %+v %v", dirs, err)
	}
	if _, err := client.DirRemove(added.Directory.ID); err != nil {
		t.Fatalf("DirRemove failed: %v", err)
	}

	target, err := client.TargetAdd("json://localhost")
	if err != nil {
		t.Fatalf("TargetAdd failed: %v", err)
	}
	targets, err := client.TargetsList()
	if err != nil || len(targets.Targets) != 1 {
		t.Fatalf("TargetsList: %+v %v", targets, err)
	}
	if resp, err := client.TargetRemove(target.Target.ID); err != nil || !resp.Removed {
		t.Fatalf("TargetRemove: %+v %v", resp, err)
	}

	notify, err := client.TestNotification()
	if err != nil || !notify.Sent {
		t.Fatalf("TestNotification: %+v %v", notify, err)
	}
	rescan, err := client.Rescan()
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if rescan.Queued != 0 {
		t.Fatalf("no directories are registered, queued %d", rescan.Queued)
	}

	stop, err := client.Stop()
	if err != nil || !stop.Stopping {
		t.Fatalf("Stop: %+v %v", stop, err)
	}
	deadline := time.Now().Add(time.Second)
	for !stopped.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !stopped.Load() {
		t.Fatal("expected shutdown hook to run")
	}
}
