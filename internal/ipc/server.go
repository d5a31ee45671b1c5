package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"panotrack/internal/api"
	"panotrack/internal/daemon"
	"panotrack/internal/logging"
)

// ServiceName is the RPC receiver name clients call through.
const ServiceName = "Panotrack"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption customizes a Server.
type ServerOption func(*service)

// WithShutdown sets the function the Stop call invokes to end the daemon
// process.
func WithShutdown(fn func()) ServerOption {
	return func(s *service) {
		s.shutdown = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, logger: logger, ctx: serverCtx}
	for _, opt := range opts {
		opt(svc)
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	if s.shutdown == nil {
		return errors.New("daemon shutdown is not available over IPC")
	}
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	resp.Stopping = true
	// Reply before the listener goes away.
	go s.shutdown()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Import(req ImportRequest, resp *JobResponse) error {
	job, err := s.daemon.Imports().StartImport(s.ctx, req.Path, req.Force)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) ImageImport(req ImageImportRequest, resp *JobResponse) error {
	job, err := s.daemon.Imports().StartImageImport(s.ctx, req.TrackID)
	if err != nil {
		return err
	}
	resp.Job = job
	return nil
}

func (s *service) MissingImages(_ MissingImagesRequest, resp *MissingImagesResponse) error {
	result, err := s.daemon.Imports().ProcessMissingImages(s.ctx)
	if err != nil {
		return err
	}
	resp.Enqueued = result.Enqueued
	resp.Skipped = result.Skipped
	return nil
}

func (s *service) JobsList(req JobsListRequest, resp *JobsListResponse) error {
	jobs, err := s.daemon.Imports().ListImports(s.ctx, api.ImportQuery{Kind: req.Kind, Status: req.Status, Limit: req.Limit})
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	return nil
}

func (s *service) JobShow(req JobShowRequest, resp *JobShowResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.daemon.Imports().DescribeJob(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if job != nil {
		resp.Job = *job
		resp.Found = true
	}
	return nil
}

func (s *service) JobRetry(req JobRetryRequest, resp *CountResponse) error {
	s.logger.Debug("job retry requested", logging.Int("job_count", len(req.IDs)))
	updated, err := s.daemon.Imports().RetryFailed(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Count = updated
	s.logger.Info("jobs retried",
		logging.String(logging.FieldEventType, "jobs_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) JobClear(req JobClearRequest, resp *CountResponse) error {
	removed, err := s.daemon.Imports().ClearJobs(s.ctx, api.ClearScope(req.Scope))
	if err != nil {
		return err
	}
	resp.Count = removed
	s.logger.Info("jobs cleared",
		logging.String(logging.FieldEventType, "jobs_clear"),
		logging.String("scope", req.Scope),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) JobRemove(req JobRemoveRequest, resp *CountResponse) error {
	removed, err := s.daemon.Imports().RemoveJobs(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Count = removed
	return nil
}

func (s *service) TracksList(req TracksListRequest, resp *TracksListResponse) error {
	filter, err := api.ParseFilter(req.Start, req.End, req.BBox, req.Order)
	if err != nil {
		return err
	}
	filter.Limit = req.Limit
	tracks, err := s.daemon.Tracks().List(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Tracks = tracks
	return nil
}

func (s *service) TrackShow(req TrackShowRequest, resp *TrackShowResponse) error {
	track, err := s.daemon.Tracks().Get(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("track %d not found", req.ID)
	}
	images, err := s.daemon.Tracks().Images(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Track = *track
	resp.Images = images
	return nil
}

func (s *service) DirsList(_ DirsListRequest, resp *DirsListResponse) error {
	dirs, err := s.daemon.Directories().List(s.ctx)
	if err != nil {
		return err
	}
	resp.Directories = dirs
	return nil
}

func (s *service) DirAdd(req DirAddRequest, resp *DirResponse) error {
	dir, err := s.daemon.Directories().Create(s.ctx, req.Path)
	if err != nil {
		return err
	}
	resp.Directory = dir
	return nil
}

func (s *service) DirRemove(req DirRemoveRequest, resp *DirResponse) error {
	dir, err := s.daemon.Directories().Delete(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Directory = dir
	return nil
}

func (s *service) TargetsList(_ TargetsListRequest, resp *TargetsListResponse) error {
	targets, err := s.daemon.Targets().List(s.ctx)
	if err != nil {
		return err
	}
	resp.Targets = targets
	return nil
}

func (s *service) TargetAdd(req TargetAddRequest, resp *TargetAddResponse) error {
	target, err := s.daemon.Targets().Create(s.ctx, req.URL)
	if err != nil {
		return err
	}
	resp.Target = target
	return nil
}

func (s *service) TargetRemove(req TargetRemoveRequest, resp *RemoveResponse) error {
	if err := s.daemon.Targets().Delete(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Rescan(_ RescanRequest, resp *RescanResponse) error {
	queued, err := s.daemon.Rescan(s.ctx)
	if err != nil {
		return err
	}
	resp.Queued = queued
	return nil
}
