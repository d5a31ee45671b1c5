package tracks

import (
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"panotrack/internal/sqliteutil"
)

const trackColumns = `t.id, t.name, t.file_path, t.file_hash, t.capture_date, t.geometry,
	t.min_lon, t.min_lat, t.max_lon, t.max_lat, t.import_date, t.updated_at,
	EXISTS(SELECT 1 FROM track_images i WHERE i.track_id = t.id) AS has_images`

const imageColumns = "id, track_id, sequence_number, capture_date, lon, lat, heading, file_path"

type scanner interface{ Scan(dest ...any) error }

func scanTrack(row scanner) (*Track, error) {
	var (
		track       Track
		captureRaw  string
		geometryRaw string
		importRaw   string
		updatedRaw  string
		hasImages   int
	)
	if err := row.Scan(
		&track.ID,
		&track.Name,
		&track.FilePath,
		&track.FileHash,
		&captureRaw,
		&geometryRaw,
		&track.Bound.Min[0],
		&track.Bound.Min[1],
		&track.Bound.Max[0],
		&track.Bound.Max[1],
		&importRaw,
		&updatedRaw,
		&hasImages,
	); err != nil {
		return nil, err
	}
	line, err := decodeLine(geometryRaw)
	if err != nil {
		return nil, fmt.Errorf("track %d: %w", track.ID, err)
	}
	track.Geometry = line
	track.HasImages = hasImages != 0
	if t, err := sqliteutil.ParseTime(captureRaw); err == nil {
		track.CaptureDate = t
	}
	if t, err := sqliteutil.ParseTime(importRaw); err == nil {
		track.ImportDate = t
	}
	if t, err := sqliteutil.ParseTime(updatedRaw); err == nil {
		track.UpdatedAt = t
	}
	return &track, nil
}

func scanImage(row scanner) (*Image, error) {
	var (
		image      Image
		captureRaw string
		heading    sql.NullFloat64
	)
	if err := row.Scan(
		&image.ID,
		&image.TrackID,
		&image.SequenceNumber,
		&captureRaw,
		&image.Point[0],
		&image.Point[1],
		&heading,
		&image.FilePath,
	); err != nil {
		return nil, err
	}
	if heading.Valid {
		h := heading.Float64
		image.Heading = &h
	}
	if t, err := sqliteutil.ParseTime(captureRaw); err == nil {
		image.CaptureDate = t
	}
	return &image, nil
}

func encodeLine(line orb.LineString) (string, error) {
	data, err := geojson.NewGeometry(line).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	return string(data), nil
}

func decodeLine(raw string) (orb.LineString, error) {
	geometry, err := geojson.UnmarshalGeometry([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	line, ok := geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("decode geometry: %q is not a LineString", geometry.Type)
	}
	return line, nil
}

func nullableHeading(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}
