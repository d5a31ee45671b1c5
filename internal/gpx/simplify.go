package gpx

import (
	"errors"

	"github.com/paulmach/orb"
)

const (
	// Tolerance is the Ramer–Douglas–Peucker threshold in metres.
	Tolerance = 1.0
	// MinDeviation is the smallest recorded deviation a simplified point may carry.
	MinDeviation = 1.0
	// MinPoints is the fewest vertices a cleaned track may have.
	MinPoints = 5
)

// ErrInsufficientData is returned when cleaning leaves fewer than MinPoints vertices.
var ErrInsufficientData = errors.New("gpx: cleaned track has too few points")

// SimplifiedPoint is a surviving vertex. Distance is its deviation from the
// chord it was split on; endpoints have none.
type SimplifiedPoint struct {
	Point    RawPoint
	Distance *float64
}

// Simplify applies Ramer–Douglas–Peucker with spherical cross-track distance.
func Simplify(points []RawPoint, tolerance float64) []SimplifiedPoint {
	switch len(points) {
	case 0:
		return nil
	case 1:
		return []SimplifiedPoint{{Point: points[0]}}
	}
	out := make([]SimplifiedPoint, 0, len(points))
	out = append(out, SimplifiedPoint{Point: points[0]})
	out = simplifyRange(points, tolerance, 0, len(points)-1, out)
	return append(out, SimplifiedPoint{Point: points[len(points)-1]})
}

func simplifyRange(points []RawPoint, tolerance float64, start, end int, out []SimplifiedPoint) []SimplifiedPoint {
	index, largest := 0, 0.0
	for i := start + 1; i < end; i++ {
		if d := crossArc(points[start], points[end], points[i]); d > largest {
			index, largest = i, d
		}
	}
	if largest <= tolerance {
		return out
	}
	out = simplifyRange(points, tolerance, start, index, out)
	distance := largest
	out = append(out, SimplifiedPoint{Point: points[index], Distance: &distance})
	return simplifyRange(points, tolerance, index, end, out)
}

// FilterDeviation keeps points without a distance or with distance >= min.
func FilterDeviation(points []SimplifiedPoint, min float64) []SimplifiedPoint {
	out := points[:0:0]
	for _, pt := range points {
		if pt.Distance == nil || *pt.Distance >= min {
			out = append(out, pt)
		}
	}
	return out
}

// Clean runs Smooth, Simplify and FilterDeviation and returns the track as
// (lon, lat) vertices.
func Clean(points []RawPoint) (orb.LineString, error) {
	kept := FilterDeviation(Simplify(Smooth(points), Tolerance), MinDeviation)
	if len(kept) < MinPoints {
		return nil, ErrInsufficientData
	}
	line := make(orb.LineString, 0, len(kept))
	for _, pt := range kept {
		line = append(line, orb.Point{pt.Point.Lon, pt.Point.Lat})
	}
	return line, nil
}
