package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"panotrack/internal/config"
	"panotrack/internal/events"
	"panotrack/internal/logging"
	"panotrack/internal/services"
	"panotrack/internal/tracks"
)

// DirectoryStore persists watched directories.
type DirectoryStore interface {
	ListDirectories(ctx context.Context) ([]*tracks.ImportDirectory, error)
	CreateDirectory(ctx context.Context, path string) (*tracks.ImportDirectory, error)
	DeleteDirectory(ctx context.Context, id int64) (*tracks.ImportDirectory, error)
}

// Publisher emits bus signals.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (events.Event, error)
}

// DirectoryService manages watched import directories. Creating or deleting
// a directory publishes a signal the watcher reacts to.
type DirectoryService struct {
	store     DirectoryStore
	publisher Publisher
	logger    *slog.Logger
}

// NewDirectoryService constructs a DirectoryService. publisher may be nil.
func NewDirectoryService(store DirectoryStore, publisher Publisher, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{
		store:     store,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "directories"),
	}
}

// List returns every watched directory.
func (s *DirectoryService) List(ctx context.Context) ([]ImportDirectory, error) {
	dirs, err := s.store.ListDirectories(ctx)
	if err != nil {
		return nil, services.Persistence("list import directories", err)
	}
	out := make([]ImportDirectory, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, FromDirectory(dir))
	}
	return out, nil
}

// Create registers an existing directory for watching.
func (s *DirectoryService) Create(ctx context.Context, path string) (ImportDirectory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ImportDirectory{}, fmt.Errorf("%w: path must be set", services.ErrValidation)
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return ImportDirectory{}, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	info, err := os.Stat(expanded)
	if err != nil || !info.IsDir() {
		return ImportDirectory{}, fmt.Errorf("%w: %s is not a directory", services.ErrValidation, expanded)
	}
	dir, err := s.store.CreateDirectory(ctx, expanded)
	if err != nil {
		if errors.Is(err, tracks.ErrExists) {
			return ImportDirectory{}, fmt.Errorf("%w: %s is already watched", services.ErrValidation, expanded)
		}
		return ImportDirectory{}, services.Persistence("create import directory", err)
	}
	s.publish(ctx, events.TopicImportDirectoryCreated, dir)
	return FromDirectory(dir), nil
}

// Delete stops watching a directory.
func (s *DirectoryService) Delete(ctx context.Context, id int64) (ImportDirectory, error) {
	dir, err := s.store.DeleteDirectory(ctx, id)
	if err != nil {
		if errors.Is(err, tracks.ErrNotFound) {
			return ImportDirectory{}, fmt.Errorf("import directory %d: %w", id, services.ErrNotFound)
		}
		return ImportDirectory{}, services.Persistence("delete import directory", err)
	}
	s.publish(ctx, events.TopicImportDirectoryDeleted, dir)
	return FromDirectory(dir), nil
}

func (s *DirectoryService) publish(ctx context.Context, topic string, dir *tracks.ImportDirectory) {
	if s.publisher == nil {
		return
	}
	payload := events.ImportDirectoryChanged{ID: dir.ID, Path: dir.Path}
	if _, err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.Warn("directory signal not published",
			logging.String("topic", topic),
			logging.String("path", dir.Path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "signal_publish_failed"),
			logging.String(logging.FieldErrorHint, "restart the daemon so the watcher reloads directories"),
		)
	}
}

// TargetStore persists apprise notification targets.
type TargetStore interface {
	ListTargets(ctx context.Context) ([]*tracks.NotificationTarget, error)
	CreateTarget(ctx context.Context, url string) (*tracks.NotificationTarget, error)
	DeleteTarget(ctx context.Context, id int64) error
}

// TargetService manages apprise notification targets.
type TargetService struct {
	store TargetStore
}

// NewTargetService constructs a TargetService.
func NewTargetService(store TargetStore) *TargetService {
	return &TargetService{store: store}
}

// List returns every notification target.
func (s *TargetService) List(ctx context.Context) ([]NotificationTarget, error) {
	targets, err := s.store.ListTargets(ctx)
	if err != nil {
		return nil, services.Persistence("list notification targets", err)
	}
	out := make([]NotificationTarget, 0, len(targets))
	for _, target := range targets {
		out = append(out, FromTarget(target))
	}
	return out, nil
}

// Create registers an apprise URL.
func (s *TargetService) Create(ctx context.Context, url string) (NotificationTarget, error) {
	url = strings.TrimSpace(url)
	if url == "" || !strings.Contains(url, "://") {
		return NotificationTarget{}, fmt.Errorf("%w: %q is not an apprise url", services.ErrValidation, url)
	}
	target, err := s.store.CreateTarget(ctx, url)
	if err != nil {
		if errors.Is(err, tracks.ErrExists) {
			return NotificationTarget{}, fmt.Errorf("%w: target already registered", services.ErrValidation)
		}
		return NotificationTarget{}, services.Persistence("create notification target", err)
	}
	return FromTarget(target), nil
}

// Delete removes a notification target.
func (s *TargetService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTarget(ctx, id); err != nil {
		if errors.Is(err, tracks.ErrNotFound) {
			return fmt.Errorf("notification target %d: %w", id, services.ErrNotFound)
		}
		return services.Persistence("delete notification target", err)
	}
	return nil
}
