package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"panotrack/internal/api"
	"panotrack/internal/config"
	"panotrack/internal/logging"
	"panotrack/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil || !cfg.API.Enabled {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.API.Metrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(withMetrics bool) http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(s.token, fn))
	}

	handle("GET /api/status", s.handleStatus)

	handle("GET /api/tracks", s.handleTracks)
	handle("GET /api/tracks/{id}", s.handleTrack)
	handle("GET /api/tracks/{id}/gpx", s.handleTrackGPX)
	handle("GET /api/tracks/{id}/images", s.handleTrackImages)
	handle("POST /api/tracks/{id}/images/import", s.handleImageImport)
	handle("POST /api/tracks/images/missing", s.handleMissingImages)
	handle("GET /api/images/{id}/file", s.handleImageFile)

	handle("GET /api/imports", s.handleListImports)
	handle("POST /api/imports", s.handleStartImport)
	handle("POST /api/imports/retry", s.handleRetryImports)

	handle("GET /api/import-directories", s.handleListDirectories)
	handle("POST /api/import-directories", s.handleCreateDirectory)
	handle("DELETE /api/import-directories/{id}", s.handleDeleteDirectory)

	handle("GET /api/notification-targets", s.handleListTargets)
	handle("POST /api/notification-targets", s.handleCreateTarget)
	handle("DELETE /api/notification-targets/{id}", s.handleDeleteTarget)

	handle("GET /api/notifications", s.handleNotifications)

	if withMetrics && s.daemon.metrics != nil {
		metricsHandler := s.daemon.metrics.Handler()
		handle("GET /metrics", metricsHandler.ServeHTTP)
	}
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
				logging.String(logging.FieldErrorHint, "check api_bind and restart the daemon"),
				logging.String(logging.FieldImpact, "HTTP API unavailable"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
		logging.String(logging.FieldEventType, "api_server_started"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listener address, useful when binding port 0.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := api.ParseFilter(query.Get("start"), query.Get("end"), query.Get("bbox"), query.Get("order"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if wantsGeoJSON(r) {
		fc, err := s.daemon.tracks.FeatureCollection(r.Context(), filter)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeGeoJSON(w, fc)
		return
	}
	list, err := s.daemon.tracks.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tracks": list})
}

func (s *apiServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	track, err := s.daemon.tracks.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *apiServer) handleTrackGPX(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	path, err := s.daemon.tracks.GPXPath(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/gpx+xml")
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleTrackImages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if wantsGeoJSON(r) {
		fc, err := s.daemon.tracks.ImageFeatureCollection(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeGeoJSON(w, fc)
		return
	}
	images, err := s.daemon.tracks.Images(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *apiServer) handleImageImport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	job, err := s.daemon.imports.StartImageImport(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *apiServer) handleMissingImages(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.imports.ProcessMissingImages(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, result)
}

func (s *apiServer) handleImageFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	path, err := s.daemon.tracks.ImagePath(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleListImports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := api.ImportQuery{Kind: query.Get("kind"), Status: query.Get("status")}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = limit
	}
	jobs, err := s.daemon.imports.ListImports(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"imports": jobs})
}

func (s *apiServer) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req api.ImportRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.daemon.imports.StartImport(r.Context(), req.Path, req.Force)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *apiServer) handleRetryImports(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	updated, err := s.daemon.imports.RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResult{Count: updated})
}

func (s *apiServer) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	dirs, err := s.daemon.dirs.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"importDirectories": dirs})
}

func (s *apiServer) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	dir, err := s.daemon.dirs.Create(r.Context(), req.Path)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, dir)
}

func (s *apiServer) handleDeleteDirectory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	dir, err := s.daemon.dirs.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dir)
}

func (s *apiServer) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.daemon.targets.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notificationTargets": targets})
}

func (s *apiServer) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppriseURL string `json:"appriseUrl"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	target, err := s.daemon.targets.Create(r.Context(), req.AppriseURL)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, target)
}

func (s *apiServer) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.targets.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func wantsGeoJSON(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "geojson")
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrFileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		details := services.Details(err)
		s.logger.Warn("api request failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.String(logging.FieldErrorHint, "check daemon logs and database health"),
			logging.String(logging.FieldImpact, "request was not served"),
		)
	}
	s.writeError(w, code, err.Error())
}

func (s *apiServer) writeGeoJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("api response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("api response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
