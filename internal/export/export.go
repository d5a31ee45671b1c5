package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"panotrack/internal/tracks"
)

// Source is the catalog view an export reads from.
type Source interface {
	List(ctx context.Context, filter tracks.Filter) ([]*tracks.Track, error)
	ListImages(ctx context.Context, trackID int64) ([]*tracks.Image, error)
}

// VertexRow is one point of a track line.
type VertexRow struct {
	TrackID       int64   `parquet:"track_id"`
	TrackName     string  `parquet:"track_name"`
	FilePath      string  `parquet:"file_path"`
	Sequence      int32   `parquet:"sequence"`
	Longitude     float64 `parquet:"longitude"`
	Latitude      float64 `parquet:"latitude"`
	CaptureUnixMS int64   `parquet:"capture_unix_ms"`
}

// ImageRow is one extracted frame.
type ImageRow struct {
	ImageID        int64    `parquet:"image_id"`
	TrackID        int64    `parquet:"track_id"`
	SequenceNumber int32    `parquet:"sequence_number"`
	CaptureUnixMS  int64    `parquet:"capture_unix_ms"`
	Longitude      float64  `parquet:"longitude"`
	Latitude       float64  `parquet:"latitude"`
	Heading        *float64 `parquet:"heading,optional"`
	FilePath       string   `parquet:"file_path"`
}

// Result reports how many rows a file export wrote.
type Result struct {
	Tracks   int `json:"tracks" yaml:"tracks"`
	Vertices int `json:"vertices" yaml:"vertices"`
	Images   int `json:"images" yaml:"images"`
}

// VertexRows flattens tracks into vertex rows in track then vertex order.
func VertexRows(list []*tracks.Track) []VertexRow {
	rows := make([]VertexRow, 0, len(list))
	for _, track := range list {
		if track == nil {
			continue
		}
		for i, point := range track.Geometry {
			rows = append(rows, VertexRow{
				TrackID:       track.ID,
				TrackName:     track.Name,
				FilePath:      track.FilePath,
				Sequence:      int32(i),
				Longitude:     point.Lon(),
				Latitude:      point.Lat(),
				CaptureUnixMS: track.CaptureDate.UnixMilli(),
			})
		}
	}
	return rows
}

// ImageRows converts catalog images to rows.
func ImageRows(images []*tracks.Image) []ImageRow {
	rows := make([]ImageRow, 0, len(images))
	for _, image := range images {
		if image == nil {
			continue
		}
		rows = append(rows, ImageRow{
			ImageID:        image.ID,
			TrackID:        image.TrackID,
			SequenceNumber: int32(image.SequenceNumber),
			CaptureUnixMS:  image.CaptureDate.UnixMilli(),
			Longitude:      image.Point.Lon(),
			Latitude:       image.Point.Lat(),
			Heading:        image.Heading,
			FilePath:       image.FilePath,
		})
	}
	return rows
}

// WriteRows writes rows as a single Parquet file to w.
func WriteRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			_ = writer.Close()
			return fmt.Errorf("write rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ToFiles exports the tracks matching filter to tracksPath and, when
// imagesPath is set, their images to imagesPath. Files are written to a
// temporary sibling first and renamed into place.
func ToFiles(ctx context.Context, src Source, filter tracks.Filter, tracksPath, imagesPath string) (Result, error) {
	var result Result
	if src == nil {
		return result, errors.New("export source is required")
	}
	if tracksPath == "" {
		return result, errors.New("tracks output path is required")
	}
	list, err := src.List(ctx, filter)
	if err != nil {
		return result, fmt.Errorf("list tracks: %w", err)
	}
	result.Tracks = len(list)
	vertices := VertexRows(list)
	result.Vertices = len(vertices)
	if err := writeFile(tracksPath, vertices); err != nil {
		return result, err
	}
	if imagesPath == "" {
		return result, nil
	}

	var images []ImageRow
	for _, track := range list {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		frames, err := src.ListImages(ctx, track.ID)
		if err != nil {
			return result, fmt.Errorf("list images for track %d: %w", track.ID, err)
		}
		images = append(images, ImageRows(frames)...)
	}
	result.Images = len(images)
	if err := writeFile(imagesPath, images); err != nil {
		return result, err
	}
	return result, nil
}

func writeFile[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.parquet")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := WriteRows(tmp, rows); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}
