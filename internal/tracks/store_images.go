package tracks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"panotrack/internal/sqliteutil"
)

// ReplaceImages stores images as the complete frame set of a track. Earlier
// images of the track are removed in the same transaction, so a repeated
// import leaves exactly one copy.
func (s *Store) ReplaceImages(ctx context.Context, trackID int64, images []ImageInput) ([]*Image, error) {
	err := sqliteutil.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tracks WHERE id = ?)`, trackID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("track %d: %w", trackID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM track_images WHERE track_id = ?`, trackID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO track_images (track_id, sequence_number, capture_date, lon, lat, heading, file_path)
             VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, image := range images {
			if _, err := stmt.ExecContext(ctx,
				trackID,
				image.SequenceNumber,
				sqliteutil.FormatTime(image.CaptureDate),
				image.Point[0],
				image.Point[1],
				nullableHeading(image.Heading),
				image.FilePath,
			); err != nil {
				return fmt.Errorf("image %d: %w", image.SequenceNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("replace images: %w", err)
	}
	return s.ListImages(ctx, trackID)
}

// ListImages returns the frames of a track in sequence order.
func (s *Store) ListImages(ctx context.Context, trackID int64) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM track_images WHERE track_id = ? ORDER BY sequence_number`, trackID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []*Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, image)
	}
	return out, rows.Err()
}

// GetImage fetches one frame. A missing image returns nil, nil.
func (s *Store) GetImage(ctx context.Context, id int64) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM track_images WHERE id = ?`, id)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, err)
	}
	return image, nil
}

// CountImages returns the total number of stored frames.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM track_images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}
