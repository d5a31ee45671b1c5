package gpx

import (
	"errors"
	"math"
	"testing"
	"time"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="gopro2gpx" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <trkseg>
      <trkpt lat="47.0" lon="8.0"><ele>400.5</ele><time>2024-01-01T10:00:00Z</time></trkpt>
      <trkpt lat="47.0001" lon="8.0"><time>2024-01-01T10:00:01Z</time></trkpt>
      <trkpt lat="47.0002" lon="8.0"></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="1" lon="1"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func at(base time.Time, seconds float64) *time.Time {
	ts := base.Add(time.Duration(seconds * float64(time.Second)))
	return &ts
}

func TestParseFirstSegment(t *testing.T) {
	points, err := Parse([]byte(sampleGPX))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points from first segment, got %d", len(points))
	}
	if points[0].Ele == nil || *points[0].Ele != 400.5 {
		t.Fatalf("expected elevation on first point, got %+v", points[0])
	}
	if points[1].Ele != nil {
		t.Fatalf("expected no elevation on second point, got %v", *points[1].Ele)
	}
	if points[2].Time != nil {
		t.Fatalf("expected missing time on third point, got %v", points[2].Time)
	}
	want := time.Date(2024, 1, 1, 10, 0, 1, 0, time.UTC)
	if points[1].Time == nil || !points[1].Time.Equal(want) {
		t.Fatalf("unexpected time %v", points[1].Time)
	}
}

func TestParseWithoutTrack(t *testing.T) {
	_, err := Parse([]byte(`<?xml version="1.0"?><gpx version="1.1" creator="x"></gpx>`))
	if !errors.Is(err, ErrNoSegment) {
		t.Fatalf("expected ErrNoSegment, got %v", err)
	}
}

func TestSmoothInterpolatesFastFix(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	points := []RawPoint{
		{Lat: 47.0, Lon: 8.0, Time: at(base, 0)},
		// ~1.1 km in one second.
		{Lat: 47.01, Lon: 8.0, Time: at(base, 1)},
		{Lat: 47.0002, Lon: 8.0, Time: at(base, 20)},
	}

	out := Smooth(points)
	if len(out) != 3 {
		t.Fatalf("expected 3 points, got %d", len(out))
	}
	mid := out[1]
	if math.Abs(mid.Lat-47.0001) > 1e-9 || mid.Lon != 8.0 {
		t.Fatalf("expected midpoint 47.0001,8.0 got %v,%v", mid.Lat, mid.Lon)
	}
	if mid.Time == nil || !mid.Time.Equal(base.Add(10*time.Second)) {
		t.Fatalf("expected interpolated time at 10s, got %v", mid.Time)
	}
}

func TestSmoothRejectsMissingOrNonIncreasingTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	points := []RawPoint{
		{Lat: 47.0, Lon: 8.0, Time: at(base, 0)},
		{Lat: 47.00001, Lon: 8.0},
		{Lat: 47.00002, Lon: 8.0, Time: at(base, 0)},
		{Lat: 47.00004, Lon: 8.0, Time: at(base, 3)},
	}
	out := Smooth(points)
	if len(out) != 4 {
		t.Fatalf("expected 2 interpolated + 2 accepted points, got %d", len(out))
	}
	if math.Abs(out[1].Lat-(47.0+0.00004/3)) > 1e-9 {
		t.Fatalf("unexpected first interpolation %v", out[1].Lat)
	}
}

func TestSmoothDiscardsTrailingRun(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	points := []RawPoint{
		{Lat: 47.0, Lon: 8.0, Time: at(base, 0)},
		{Lat: 47.0001, Lon: 8.0, Time: at(base, 2)},
		{Lat: 48.0, Lon: 8.0, Time: at(base, 3)},
		{Lat: 48.1, Lon: 8.0},
	}
	if out := Smooth(points); len(out) != 2 {
		t.Fatalf("expected trailing rejected run dropped, got %d points", len(out))
	}
}

func TestSmoothInterpolatesElevationOnlyWhenBothKnown(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	e1, e2 := 100.0, 200.0
	withEle := Smooth([]RawPoint{
		{Lat: 47.0, Lon: 8.0, Ele: &e1, Time: at(base, 0)},
		{Lat: 50.0, Lon: 8.0, Time: at(base, 1)},
		{Lat: 47.0002, Lon: 8.0, Ele: &e2, Time: at(base, 20)},
	})
	if withEle[1].Ele == nil || *withEle[1].Ele != 150 {
		t.Fatalf("expected elevation 150, got %v", withEle[1].Ele)
	}
	withoutEle := Smooth([]RawPoint{
		{Lat: 47.0, Lon: 8.0, Ele: &e1, Time: at(base, 0)},
		{Lat: 50.0, Lon: 8.0, Time: at(base, 1)},
		{Lat: 47.0002, Lon: 8.0, Time: at(base, 20)},
	})
	if withoutEle[1].Ele != nil {
		t.Fatalf("expected no elevation, got %v", *withoutEle[1].Ele)
	}
}

func TestSimplifyColinearKeepsEndpoints(t *testing.T) {
	points := make([]RawPoint, 0, 10)
	for i := 0; i < 10; i++ {
		points = append(points, RawPoint{Lat: 47.0 + float64(i)*0.0001, Lon: 8.0})
	}
	out := Simplify(points, Tolerance)
	if len(out) != 2 {
		t.Fatalf("expected only endpoints, got %d", len(out))
	}
	if out[0].Distance != nil || out[1].Distance != nil {
		t.Fatal("endpoints must not carry a distance")
	}
}

func TestSimplifyKeepsDeviatingVertex(t *testing.T) {
	points := []RawPoint{
		{Lat: 47.0, Lon: 8.0},
		{Lat: 47.0005, Lon: 8.001},
		{Lat: 47.001, Lon: 8.0},
	}
	out := Simplify(points, Tolerance)
	if len(out) != 3 {
		t.Fatalf("expected corner kept, got %d", len(out))
	}
	if out[1].Distance == nil || *out[1].Distance < 70 || *out[1].Distance > 80 {
		t.Fatalf("expected roughly 75m deviation, got %v", out[1].Distance)
	}
}

func TestFilterDeviation(t *testing.T) {
	small, large := 0.5, 2.0
	in := []SimplifiedPoint{{}, {Distance: &small}, {Distance: &large}, {}}
	if out := FilterDeviation(in, MinDeviation); len(out) != 3 {
		t.Fatalf("expected 3 survivors, got %d", len(out))
	}
}

func zigzag(n int) []RawPoint {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	points := make([]RawPoint, 0, n)
	for i := 0; i < n; i++ {
		lon := 8.0
		if i%2 == 1 {
			lon = 8.0005
		}
		points = append(points, RawPoint{Lat: 47.0 + float64(i)*0.0005, Lon: lon, Time: at(base, float64(i)*10)})
	}
	return points
}

func TestCleanReturnsLonLatLine(t *testing.T) {
	line, err := Clean(zigzag(7))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(line) != 7 {
		t.Fatalf("expected all zigzag vertices kept, got %d", len(line))
	}
	if math.Abs(line[1][0]-8.0005) > 1e-9 || math.Abs(line[1][1]-47.0005) > 1e-9 {
		t.Fatalf("expected (lon, lat) ordering, got %v", line[1])
	}
}

func TestCleanInsufficientData(t *testing.T) {
	if _, err := Clean(zigzag(4)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	colinear := make([]RawPoint, 0, 20)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		colinear = append(colinear, RawPoint{Lat: 47.0 + float64(i)*0.0001, Lon: 8.0, Time: at(base, float64(i)*5)})
	}
	if _, err := Clean(colinear); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected straight line to collapse below minimum, got %v", err)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	d := Haversine(0, 0, 0, 1)
	want := EarthRadius * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("Haversine = %v, want %v", d, want)
	}
}
