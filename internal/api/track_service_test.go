package api_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"panotrack/internal/api"
	"panotrack/internal/extract"
	"panotrack/internal/services"
	"panotrack/internal/testsupport"
	"panotrack/internal/tracks"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		bbox    string
		order   string
		wantErr bool
	}{
		{name: "empty"},
		{name: "dates", start: "2024-01-01", end: "2024-01-02T00:00:00Z", order: "DESC"},
		{name: "bbox", bbox: "13.0, 52.0, 14.0, 53.0"},
		{name: "bad date", start: "yesterday", wantErr: true},
		{name: "start after end", start: "2024-02-01", end: "2024-01-01", wantErr: true},
		{name: "short bbox", bbox: "1,2,3", wantErr: true},
		{name: "inverted bbox", bbox: "14,53,13,52", wantErr: true},
		{name: "bad order", order: "sideways", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter, err := api.ParseFilter(tc.start, tc.end, tc.bbox, tc.order)
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilter: %v", err)
			}
			if tc.order != "" && filter.Order != tracks.OrderDesc {
				t.Fatalf("expected lower-cased order, got %q", filter.Order)
			}
			if tc.bbox != "" && (filter.BBox == nil || filter.BBox.Max.Lat() != 53) {
				t.Fatalf("unexpected bbox %+v", filter.BBox)
			}
		})
	}
}

func TestFromTrackDerivesLengthAndBBox(t *testing.T) {
	track := &tracks.Track{
		ID:       7,
		Geometry: orb.LineString{{0, 0}, {0, 1}},
	}
	dto := api.FromTrack(track)
	if dto.PointCount != 2 {
		t.Fatalf("expected 2 points, got %d", dto.PointCount)
	}
	if math.Abs(dto.LengthMeters-111195) > 100 {
		t.Fatalf("unexpected length %.1f", dto.LengthMeters)
	}
	if dto.BBox != [4]float64{0, 0, 0, 1} {
		t.Fatalf("unexpected bbox %v", dto.BBox)
	}
	if dto.CaptureDate != "" {
		t.Fatalf("expected zero capture date to be omitted, got %q", dto.CaptureDate)
	}
}

func TestTrackServiceQueries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenTracks(t, cfg)
	svc := api.NewTrackService(store)
	ctx := context.Background()
	dir := t.TempDir()

	source := filepath.Join(dir, "GS010002.360")
	track := testsupport.NewTrack(t, store, source, "hash-q")
	frame := filepath.Join(dir, "frames", "0001.jpg")
	testsupport.WriteFile(t, frame, 8)
	heading := 45.0
	if _, err := store.ReplaceImages(ctx, track.ID, []tracks.ImageInput{{
		SequenceNumber: 0,
		CaptureDate:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Point:          orb.Point{13.4, 52.5},
		Heading:        &heading,
		FilePath:       frame,
	}}); err != nil {
		t.Fatalf("ReplaceImages: %v", err)
	}

	list, err := svc.List(ctx, tracks.Filter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v (%d)", err, len(list))
	}
	if !list[0].HasImages {
		t.Fatal("expected track to report images")
	}

	missing, err := svc.Get(ctx, track.ID+1)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown track, got %v %v", missing, err)
	}

	images, err := svc.Images(ctx, track.ID)
	if err != nil || len(images) != 1 {
		t.Fatalf("Images: %v (%d)", err, len(images))
	}
	if images[0].Longitude != 13.4 || images[0].Latitude != 52.5 || *images[0].Heading != 45 {
		t.Fatalf("unexpected image %+v", images[0])
	}
	if _, err := svc.Images(ctx, track.ID+1); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	path, err := svc.ImagePath(ctx, images[0].ID)
	if err != nil || path != frame {
		t.Fatalf("ImagePath: %q %v", path, err)
	}

	if _, err := svc.GPXPath(ctx, track.ID); !errors.Is(err, services.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound before conversion output exists, got %v", err)
	}
	testsupport.WriteFile(t, extract.GPXPath(source), 8)
	gpxPath, err := svc.GPXPath(ctx, track.ID)
	if err != nil || gpxPath != extract.GPXPath(source) {
		t.Fatalf("GPXPath: %q %v", gpxPath, err)
	}

	fc, err := svc.ImageFeatureCollection(ctx, track.ID)
	if err != nil || len(fc.Features) != 1 {
		t.Fatalf("ImageFeatureCollection: %v", err)
	}
	trackCount, imageCount, err := svc.Counts(ctx)
	if err != nil || trackCount != 1 || imageCount != 1 {
		t.Fatalf("Counts: %d %d %v", trackCount, imageCount, err)
	}
}
