package tracks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/clip"

	"panotrack/internal/sqliteutil"
)

// ExistsByFileHash reports whether any track was imported from content with this hash.
func (s *Store) ExistsByFileHash(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tracks WHERE file_hash = ?)`, hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("track hash lookup: %w", err)
	}
	return exists != 0, nil
}

// Get fetches a track by id. A missing track returns nil, nil.
func (s *Store) Get(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks t WHERE t.id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track %d: %w", id, err)
	}
	return track, nil
}

// GetByFilePath fetches the track imported from path. A missing track returns nil, nil.
func (s *Store) GetByFilePath(ctx context.Context, path string) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks t WHERE t.file_path = ?`, path)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track by path: %w", err)
	}
	return track, nil
}

// Upsert inserts a track or merges the input into the track already stored
// for the same file path. The id and import date of an existing row survive.
func (s *Store) Upsert(ctx context.Context, input TrackInput) (*Track, error) {
	if strings.TrimSpace(input.FilePath) == "" {
		return nil, errors.New("upsert track: file path must be set")
	}
	if len(input.Geometry) < 2 {
		return nil, errors.New("upsert track: geometry needs at least two points")
	}
	geometry, err := encodeLine(input.Geometry)
	if err != nil {
		return nil, err
	}
	bound := input.Geometry.Bound()
	now := sqliteutil.FormatTime(time.Now())

	var id int64
	err = sqliteutil.RetryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO tracks (name, file_path, file_hash, capture_date, geometry,
                min_lon, min_lat, max_lon, max_lat, import_date, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(file_path) DO UPDATE SET
                name = excluded.name,
                file_hash = excluded.file_hash,
                capture_date = excluded.capture_date,
                geometry = excluded.geometry,
                min_lon = excluded.min_lon,
                min_lat = excluded.min_lat,
                max_lon = excluded.max_lon,
                max_lat = excluded.max_lat,
                updated_at = excluded.updated_at
             RETURNING id`,
			input.Name,
			input.FilePath,
			input.FileHash,
			sqliteutil.FormatTime(input.CaptureDate),
			geometry,
			bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1],
			now,
			now,
		).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert track: %w", err)
	}
	track, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("upsert track: row %d vanished", id)
	}
	return track, nil
}

// List returns tracks matching filter ordered by capture date.
//
// The bounding box is first applied as an envelope overlap in SQL; survivors
// are then clipped against the box so only lines that actually cross it remain.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Track, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if filter.Start != nil {
		where = append(where, "t.capture_date >= ?")
		args = append(args, sqliteutil.FormatTime(*filter.Start))
	}
	if filter.End != nil {
		where = append(where, "t.capture_date <= ?")
		args = append(args, sqliteutil.FormatTime(*filter.End))
	}
	if filter.BBox != nil {
		b := filter.BBox
		where = append(where, "t.max_lon >= ? AND t.min_lon <= ? AND t.max_lat >= ? AND t.min_lat <= ?")
		args = append(args, b.Min[0], b.Max[0], b.Min[1], b.Max[1])
	}
	query := `SELECT ` + trackColumns + ` FROM tracks t`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	direction := "ASC"
	if filter.Order == OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY t.capture_date %s, t.id %s", direction, direction)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		if filter.BBox != nil && len(clip.LineString(*filter.BBox, track.Geometry)) == 0 {
			continue
		}
		out = append(out, track)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, rows.Err()
}

// Count returns the number of stored tracks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tracks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tracks: %w", err)
	}
	return count, nil
}

// TracksWithoutImages returns tracks that have no persisted frames, oldest first.
func (s *Store) TracksWithoutImages(ctx context.Context) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks t
         WHERE NOT EXISTS(SELECT 1 FROM track_images i WHERE i.track_id = t.id)
         ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("list tracks without images: %w", err)
	}
	defer rows.Close()

	var out []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, track)
	}
	return out, rows.Err()
}

// Delete removes a track and, through the foreign key cascade, its images.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := sqliteutil.Exec(ctx, s.db, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete track %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete track %d: %w", id, ErrNotFound)
	}
	return nil
}
