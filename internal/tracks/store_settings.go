package tracks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"panotrack/internal/sqliteutil"
)

// ListDirectories returns the watched import directories.
func (s *Store) ListDirectories(ctx context.Context) ([]*ImportDirectory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, directory_path, created_at FROM import_directories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list import directories: %w", err)
	}
	defer rows.Close()

	var out []*ImportDirectory
	for rows.Next() {
		var (
			dir        ImportDirectory
			createdRaw string
		)
		if err := rows.Scan(&dir.ID, &dir.Path, &createdRaw); err != nil {
			return nil, err
		}
		if t, err := sqliteutil.ParseTime(createdRaw); err == nil {
			dir.CreatedAt = t
		}
		out = append(out, &dir)
	}
	return out, rows.Err()
}

// GetDirectory fetches one import directory. A missing row returns nil, nil.
func (s *Store) GetDirectory(ctx context.Context, id int64) (*ImportDirectory, error) {
	var (
		dir        ImportDirectory
		createdRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, directory_path, created_at FROM import_directories WHERE id = ?`, id,
	).Scan(&dir.ID, &dir.Path, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import directory %d: %w", id, err)
	}
	if t, err := sqliteutil.ParseTime(createdRaw); err == nil {
		dir.CreatedAt = t
	}
	return &dir, nil
}

// CreateDirectory registers a directory for watching. Paths are cleaned before
// storage; registering the same path twice returns ErrExists.
func (s *Store) CreateDirectory(ctx context.Context, path string) (*ImportDirectory, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("create import directory: path must be set")
	}
	path = filepath.Clean(path)
	now := time.Now().UTC()
	res, err := sqliteutil.Exec(ctx, s.db,
		`INSERT INTO import_directories (directory_path, created_at) VALUES (?, ?)`,
		path, sqliteutil.FormatTime(now))
	if err != nil {
		if sqliteutil.IsConstraint(err) {
			return nil, fmt.Errorf("import directory %s: %w", path, ErrExists)
		}
		return nil, fmt.Errorf("create import directory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create import directory: %w", err)
	}
	return &ImportDirectory{ID: id, Path: path, CreatedAt: now}, nil
}

// DeleteDirectory removes a watched directory and returns the removed row.
func (s *Store) DeleteDirectory(ctx context.Context, id int64) (*ImportDirectory, error) {
	dir, err := s.GetDirectory(ctx, id)
	if err != nil {
		return nil, err
	}
	if dir == nil {
		return nil, fmt.Errorf("import directory %d: %w", id, ErrNotFound)
	}
	if _, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM import_directories WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete import directory %d: %w", id, err)
	}
	return dir, nil
}

// ListTargets returns the apprise notification targets.
func (s *Store) ListTargets(ctx context.Context) ([]*NotificationTarget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, apprise_url, created_at FROM notification_targets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notification targets: %w", err)
	}
	defer rows.Close()

	var out []*NotificationTarget
	for rows.Next() {
		var (
			target     NotificationTarget
			createdRaw string
		)
		if err := rows.Scan(&target.ID, &target.AppriseURL, &createdRaw); err != nil {
			return nil, err
		}
		if t, err := sqliteutil.ParseTime(createdRaw); err == nil {
			target.CreatedAt = t
		}
		out = append(out, &target)
	}
	return out, rows.Err()
}

// TargetURLs returns the apprise URLs of every target.
func (s *Store) TargetURLs(ctx context.Context) ([]string, error) {
	targets, err := s.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(targets))
	for _, target := range targets {
		urls = append(urls, target.AppriseURL)
	}
	return urls, nil
}

// CreateTarget registers an apprise URL.
func (s *Store) CreateTarget(ctx context.Context, url string) (*NotificationTarget, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("create notification target: apprise url must be set")
	}
	if !strings.Contains(url, "://") {
		return nil, fmt.Errorf("create notification target: %q is not an apprise url", url)
	}
	now := time.Now().UTC()
	res, err := sqliteutil.Exec(ctx, s.db,
		`INSERT INTO notification_targets (apprise_url, created_at) VALUES (?, ?)`,
		url, sqliteutil.FormatTime(now))
	if err != nil {
		if sqliteutil.IsConstraint(err) {
			return nil, fmt.Errorf("notification target: %w", ErrExists)
		}
		return nil, fmt.Errorf("create notification target: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create notification target: %w", err)
	}
	return &NotificationTarget{ID: id, AppriseURL: url, CreatedAt: now}, nil
}

// DeleteTarget removes a notification target.
func (s *Store) DeleteTarget(ctx context.Context, id int64) error {
	res, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM notification_targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification target %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification target %d: %w", id, ErrNotFound)
	}
	return nil
}
