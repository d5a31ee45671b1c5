package gpx

import (
	"errors"
	"fmt"
	"os"
	"time"

	gpxgo "github.com/tkrajina/gpxgo/gpx"
)

// ErrNoSegment is returned when the document has no track segment to read.
var ErrNoSegment = errors.New("gpx: no track segment")

// RawPoint is one fix as read from GPX. Ele and Time are optional.
type RawPoint struct {
	Lat  float64
	Lon  float64
	Ele  *float64
	Time *time.Time
}

// ParseFile reads and parses the GPX document at path.
func ParseFile(path string) ([]RawPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gpx %s: %w", path, err)
	}
	return Parse(data)
}

// Parse extracts the points of the first segment of the first track.
func Parse(data []byte) ([]RawPoint, error) {
	doc, err := gpxgo.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	if len(doc.Tracks) == 0 || len(doc.Tracks[0].Segments) == 0 {
		return nil, ErrNoSegment
	}
	segment := doc.Tracks[0].Segments[0]
	points := make([]RawPoint, 0, len(segment.Points))
	for i := range segment.Points {
		pt := &segment.Points[i]
		raw := RawPoint{Lat: pt.Latitude, Lon: pt.Longitude}
		if pt.Elevation.NotNull() {
			ele := pt.Elevation.Value()
			raw.Ele = &ele
		}
		if !pt.Timestamp.IsZero() {
			ts := pt.Timestamp
			raw.Time = &ts
		}
		points = append(points, raw)
	}
	return points, nil
}
