package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"panotrack/internal/extract"
	"panotrack/internal/services"
	"panotrack/internal/tracks"
)

// TrackReader is the subset of the catalog TrackService reads from.
type TrackReader interface {
	List(ctx context.Context, filter tracks.Filter) ([]*tracks.Track, error)
	Get(ctx context.Context, id int64) (*tracks.Track, error)
	ListImages(ctx context.Context, trackID int64) ([]*tracks.Image, error)
	GetImage(ctx context.Context, id int64) (*tracks.Image, error)
	Count(ctx context.Context) (int, error)
	CountImages(ctx context.Context) (int, error)
}

// TrackService exposes read-only catalog queries returning API DTOs.
type TrackService struct {
	store TrackReader
}

// NewTrackService constructs a TrackService around the provided reader.
func NewTrackService(store TrackReader) *TrackService {
	return &TrackService{store: store}
}

// ParseFilter builds a catalog filter from query-string style values. Dates
// accept RFC3339 or YYYY-MM-DD; bbox is "minLon,minLat,maxLon,maxLat".
func ParseFilter(start, end, bbox, order string) (tracks.Filter, error) {
	var filter tracks.Filter
	if value := strings.TrimSpace(start); value != "" {
		t, err := parseDate(value)
		if err != nil {
			return tracks.Filter{}, fmt.Errorf("%w: start: %v", services.ErrValidation, err)
		}
		filter.Start = &t
	}
	if value := strings.TrimSpace(end); value != "" {
		t, err := parseDate(value)
		if err != nil {
			return tracks.Filter{}, fmt.Errorf("%w: end: %v", services.ErrValidation, err)
		}
		filter.End = &t
	}
	if value := strings.TrimSpace(bbox); value != "" {
		bound, err := parseBBox(value)
		if err != nil {
			return tracks.Filter{}, fmt.Errorf("%w: bbox: %v", services.ErrValidation, err)
		}
		filter.BBox = &bound
	}
	filter.Order = tracks.Order(strings.ToLower(strings.TrimSpace(order)))
	if err := filter.Validate(); err != nil {
		return tracks.Filter{}, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return filter, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, value, time.UTC)
}

func parseBBox(value string) (orb.Bound, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("expected minLon,minLat,maxLon,maxLat")
	}
	var coords [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		coords[i] = f
	}
	return orb.Bound{Min: orb.Point{coords[0], coords[1]}, Max: orb.Point{coords[2], coords[3]}}, nil
}

// List returns tracks matching filter.
func (s *TrackService) List(ctx context.Context, filter tracks.Filter) ([]Track, error) {
	list, err := s.list(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromTracks(list), nil
}

// FeatureCollection renders the tracks matching filter as GeoJSON.
func (s *TrackService) FeatureCollection(ctx context.Context, filter tracks.Filter) (*geojson.FeatureCollection, error) {
	list, err := s.list(ctx, filter)
	if err != nil {
		return nil, err
	}
	return tracks.FeatureCollection(list), nil
}

func (s *TrackService) list(ctx context.Context, filter tracks.Filter) ([]*tracks.Track, error) {
	list, err := s.store.List(ctx, filter)
	if err != nil {
		if errors.Is(err, tracks.ErrInvalidFilter) {
			return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
		}
		return nil, services.Persistence("list tracks", err)
	}
	return list, nil
}

// Get fetches one track. A missing track returns nil without error.
func (s *TrackService) Get(ctx context.Context, id int64) (*Track, error) {
	track, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, services.Persistence("get track", err)
	}
	if track == nil {
		return nil, nil
	}
	dto := FromTrack(track)
	return &dto, nil
}

// Track returns the catalog model including geometry.
func (s *TrackService) Track(ctx context.Context, id int64) (*tracks.Track, error) {
	track, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, services.Persistence("get track", err)
	}
	if track == nil {
		return nil, fmt.Errorf("track %d: %w", id, services.ErrNotFound)
	}
	return track, nil
}

// Images lists the frames of a track in sequence order.
func (s *TrackService) Images(ctx context.Context, trackID int64) ([]Image, error) {
	images, err := s.images(ctx, trackID)
	if err != nil {
		return nil, err
	}
	return FromImages(images), nil
}

// ImageFeatureCollection renders the frames of a track as GeoJSON points.
func (s *TrackService) ImageFeatureCollection(ctx context.Context, trackID int64) (*geojson.FeatureCollection, error) {
	images, err := s.images(ctx, trackID)
	if err != nil {
		return nil, err
	}
	return tracks.ImageFeatureCollection(images), nil
}

func (s *TrackService) images(ctx context.Context, trackID int64) ([]*tracks.Image, error) {
	if _, err := s.Track(ctx, trackID); err != nil {
		return nil, err
	}
	images, err := s.store.ListImages(ctx, trackID)
	if err != nil {
		return nil, services.Persistence("list images", err)
	}
	return images, nil
}

// GPXPath returns the converter output stored beside the source clip.
func (s *TrackService) GPXPath(ctx context.Context, trackID int64) (string, error) {
	track, err := s.Track(ctx, trackID)
	if err != nil {
		return "", err
	}
	return existingFile(extract.GPXPath(track.FilePath))
}

// ImagePath returns the file of one extracted frame.
func (s *TrackService) ImagePath(ctx context.Context, imageID int64) (string, error) {
	image, err := s.store.GetImage(ctx, imageID)
	if err != nil {
		return "", services.Persistence("get image", err)
	}
	if image == nil {
		return "", fmt.Errorf("image %d: %w", imageID, services.ErrNotFound)
	}
	return existingFile(image.FilePath)
}

// Counts returns the number of stored tracks and images.
func (s *TrackService) Counts(ctx context.Context) (int, int, error) {
	trackCount, err := s.store.Count(ctx)
	if err != nil {
		return 0, 0, services.Persistence("count tracks", err)
	}
	imageCount, err := s.store.CountImages(ctx)
	if err != nil {
		return 0, 0, services.Persistence("count images", err)
	}
	return trackCount, imageCount, nil
}

func existingFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.FileNotFound(path)
		}
		return "", services.IO("stat file", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", services.ErrValidation, path)
	}
	return path, nil
}
