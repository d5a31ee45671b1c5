package main

import (
	"context"
	"errors"

	"panotrack/internal/api"
	"panotrack/internal/config"
	"panotrack/internal/ipc"
	"panotrack/internal/logging"
	"panotrack/internal/preflight"
	"panotrack/internal/queue"
	"panotrack/internal/tracks"
)

// backend is the operation set shared by the daemon client and the direct
// store fallback.
type backend interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
	Import(ctx context.Context, path string, force bool) (api.Job, error)
	ImageImport(ctx context.Context, trackID int64) (api.Job, error)
	MissingImages(ctx context.Context) (api.MissingImagesResult, error)
	Jobs(ctx context.Context, query api.ImportQuery) ([]api.Job, error)
	Job(ctx context.Context, id int64) (*api.Job, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Clear(ctx context.Context, scope api.ClearScope) (int64, error)
	Remove(ctx context.Context, ids []int64) (int64, error)
	Tracks(ctx context.Context, req ipc.TracksListRequest) ([]api.Track, error)
	Track(ctx context.Context, id int64) (api.Track, []api.Image, error)
	Directories(ctx context.Context) ([]api.ImportDirectory, error)
	AddDirectory(ctx context.Context, path string) (api.ImportDirectory, error)
	RemoveDirectory(ctx context.Context, id int64) (api.ImportDirectory, error)
	Targets(ctx context.Context) ([]api.NotificationTarget, error)
	AddTarget(ctx context.Context, url string) (api.NotificationTarget, error)
	RemoveTarget(ctx context.Context, id int64) error
	// Live reports whether a daemon will pick up queued work.
	Live() bool
}

// --- IPC adapter ---

type ipcBackend struct {
	client *ipc.Client
}

func (b *ipcBackend) Live() bool { return true }

func (b *ipcBackend) Status(context.Context) (api.DaemonStatus, error) {
	resp, err := b.client.Status()
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return resp.Status, nil
}

func (b *ipcBackend) Import(_ context.Context, path string, force bool) (api.Job, error) {
	resp, err := b.client.Import(path, force)
	if err != nil {
		return api.Job{}, err
	}
	return resp.Job, nil
}

func (b *ipcBackend) ImageImport(_ context.Context, trackID int64) (api.Job, error) {
	resp, err := b.client.ImageImport(trackID)
	if err != nil {
		return api.Job{}, err
	}
	return resp.Job, nil
}

func (b *ipcBackend) MissingImages(context.Context) (api.MissingImagesResult, error) {
	resp, err := b.client.MissingImages()
	if err != nil {
		return api.MissingImagesResult{}, err
	}
	return api.MissingImagesResult{Enqueued: resp.Enqueued, Skipped: resp.Skipped}, nil
}

func (b *ipcBackend) Jobs(_ context.Context, query api.ImportQuery) ([]api.Job, error) {
	resp, err := b.client.JobsList(ipc.JobsListRequest{Kind: query.Kind, Status: query.Status, Limit: query.Limit})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (b *ipcBackend) Job(_ context.Context, id int64) (*api.Job, error) {
	resp, err := b.client.JobShow(id)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return &resp.Job, nil
}

func (b *ipcBackend) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := b.client.JobRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (b *ipcBackend) Clear(_ context.Context, scope api.ClearScope) (int64, error) {
	resp, err := b.client.JobClear(string(scope))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (b *ipcBackend) Remove(_ context.Context, ids []int64) (int64, error) {
	resp, err := b.client.JobRemove(ids)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (b *ipcBackend) Tracks(_ context.Context, req ipc.TracksListRequest) ([]api.Track, error) {
	resp, err := b.client.TracksList(req)
	if err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

func (b *ipcBackend) Track(_ context.Context, id int64) (api.Track, []api.Image, error) {
	resp, err := b.client.TrackShow(id)
	if err != nil {
		return api.Track{}, nil, err
	}
	return resp.Track, resp.Images, nil
}

func (b *ipcBackend) Directories(context.Context) ([]api.ImportDirectory, error) {
	resp, err := b.client.DirsList()
	if err != nil {
		return nil, err
	}
	return resp.Directories, nil
}

func (b *ipcBackend) AddDirectory(_ context.Context, path string) (api.ImportDirectory, error) {
	resp, err := b.client.DirAdd(path)
	if err != nil {
		return api.ImportDirectory{}, err
	}
	return resp.Directory, nil
}

func (b *ipcBackend) RemoveDirectory(_ context.Context, id int64) (api.ImportDirectory, error) {
	resp, err := b.client.DirRemove(id)
	if err != nil {
		return api.ImportDirectory{}, err
	}
	return resp.Directory, nil
}

func (b *ipcBackend) Targets(context.Context) ([]api.NotificationTarget, error) {
	resp, err := b.client.TargetsList()
	if err != nil {
		return nil, err
	}
	return resp.Targets, nil
}

func (b *ipcBackend) AddTarget(_ context.Context, url string) (api.NotificationTarget, error) {
	resp, err := b.client.TargetAdd(url)
	if err != nil {
		return api.NotificationTarget{}, err
	}
	return resp.Target, nil
}

func (b *ipcBackend) RemoveTarget(_ context.Context, id int64) error {
	resp, err := b.client.TargetRemove(id)
	if err != nil {
		return err
	}
	if !resp.Removed {
		return errors.New("target was not removed")
	}
	return nil
}

// --- direct store adapter ---

type localBackend struct {
	cfg     *config.Config
	jobs    *queue.Store
	catalog *tracks.Store
	imports *api.ImportService
	tracks  *api.TrackService
	dirs    *api.DirectoryService
	targets *api.TargetService
}

func openLocalBackend(cfg *config.Config) (*localBackend, error) {
	jobs, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := tracks.Open(cfg)
	if err != nil {
		_ = jobs.Close()
		return nil, err
	}
	logger := logging.NewNop()
	return &localBackend{
		cfg:     cfg,
		jobs:    jobs,
		catalog: catalog,
		imports: api.NewImportService(jobs, catalog, nil, logger),
		tracks:  api.NewTrackService(catalog),
		dirs:    api.NewDirectoryService(catalog, nil, logger),
		targets: api.NewTargetService(catalog),
	}, nil
}

func (b *localBackend) Close() error {
	return errors.Join(b.jobs.Close(), b.catalog.Close())
}

func (b *localBackend) Live() bool { return false }

// Status reports the stored state visible without a daemon.
func (b *localBackend) Status(ctx context.Context) (api.DaemonStatus, error) {
	status := api.DaemonStatus{
		CatalogPath:  b.catalog.Path(),
		QueuePath:    b.jobs.Path(),
		LockFilePath: b.cfg.LockPath(),
		Watching:     []string{},
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(b.cfg)),
	}
	trackCount, imageCount, err := b.tracks.Counts(ctx)
	if err != nil {
		return status, err
	}
	status.TrackCount = trackCount
	status.ImageCount = imageCount
	stats, err := b.jobs.Stats(ctx)
	if err != nil {
		return status, err
	}
	status.Workflow.QueueStats = api.MergeQueueStats(stats)
	dirs, err := b.catalog.ListDirectories(ctx)
	if err != nil {
		return status, err
	}
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		roots = append(roots, dir.Path)
	}
	status.Checks = api.FromChecks(preflight.RunAll(ctx, b.cfg, roots...))
	return status, nil
}

func (b *localBackend) Import(ctx context.Context, path string, force bool) (api.Job, error) {
	return b.imports.StartImport(ctx, path, force)
}

func (b *localBackend) ImageImport(ctx context.Context, trackID int64) (api.Job, error) {
	return b.imports.StartImageImport(ctx, trackID)
}

func (b *localBackend) MissingImages(ctx context.Context) (api.MissingImagesResult, error) {
	return b.imports.ProcessMissingImages(ctx)
}

func (b *localBackend) Jobs(ctx context.Context, query api.ImportQuery) ([]api.Job, error) {
	return b.imports.ListImports(ctx, query)
}

func (b *localBackend) Job(ctx context.Context, id int64) (*api.Job, error) {
	return b.imports.DescribeJob(ctx, id)
}

func (b *localBackend) Retry(ctx context.Context, ids []int64) (int64, error) {
	return b.imports.RetryFailed(ctx, ids...)
}

func (b *localBackend) Clear(ctx context.Context, scope api.ClearScope) (int64, error) {
	return b.imports.ClearJobs(ctx, scope)
}

func (b *localBackend) Remove(ctx context.Context, ids []int64) (int64, error) {
	return b.imports.RemoveJobs(ctx, ids...)
}

func (b *localBackend) Tracks(ctx context.Context, req ipc.TracksListRequest) ([]api.Track, error) {
	filter, err := api.ParseFilter(req.Start, req.End, req.BBox, req.Order)
	if err != nil {
		return nil, err
	}
	filter.Limit = req.Limit
	return b.tracks.List(ctx, filter)
}

func (b *localBackend) Track(ctx context.Context, id int64) (api.Track, []api.Image, error) {
	track, err := b.tracks.Get(ctx, id)
	if err != nil {
		return api.Track{}, nil, err
	}
	images, err := b.tracks.Images(ctx, id)
	if err != nil {
		return api.Track{}, nil, err
	}
	return *track, images, nil
}

func (b *localBackend) Directories(ctx context.Context) ([]api.ImportDirectory, error) {
	return b.dirs.List(ctx)
}

func (b *localBackend) AddDirectory(ctx context.Context, path string) (api.ImportDirectory, error) {
	return b.dirs.Create(ctx, path)
}

func (b *localBackend) RemoveDirectory(ctx context.Context, id int64) (api.ImportDirectory, error) {
	return b.dirs.Delete(ctx, id)
}

func (b *localBackend) Targets(ctx context.Context) ([]api.NotificationTarget, error) {
	return b.targets.List(ctx)
}

func (b *localBackend) AddTarget(ctx context.Context, url string) (api.NotificationTarget, error) {
	return b.targets.Create(ctx, url)
}

func (b *localBackend) RemoveTarget(ctx context.Context, id int64) error {
	return b.targets.Delete(ctx, id)
}
