package gpx

import "time"

// MaxSpeed is the fastest plausible movement between fixes, in metres per second.
const MaxSpeed = 17.8

// Smooth drops fixes that imply movement faster than MaxSpeed from the last
// accepted fix, or that lack a usable timestamp. A run of dropped fixes
// followed by an accepted one is replaced by the same number of points
// interpolated between the two accepted neighbours. A run still pending at
// the end of the input is discarded. Interpolated points are not re-checked.
func Smooth(points []RawPoint) []RawPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]RawPoint, 0, len(points))
	out = append(out, points[0])
	last := points[0]
	rejected := 0

	for _, current := range points[1:] {
		if !plausible(last, current) {
			rejected++
			continue
		}
		if rejected > 0 {
			out = append(out, interpolate(last, current, rejected)...)
			rejected = 0
		}
		out = append(out, current)
		last = current
	}
	return out
}

func plausible(from, to RawPoint) bool {
	if from.Time == nil || to.Time == nil {
		return false
	}
	elapsed := to.Time.Sub(*from.Time).Seconds()
	if elapsed <= 0 {
		return false
	}
	return Haversine(from.Lat, from.Lon, to.Lat, to.Lon)/elapsed <= MaxSpeed
}

func interpolate(a, b RawPoint, n int) []RawPoint {
	out := make([]RawPoint, 0, n)
	for i := 1; i <= n; i++ {
		f := float64(i) / float64(n+1)
		pt := RawPoint{
			Lat: a.Lat + (b.Lat-a.Lat)*f,
			Lon: a.Lon + (b.Lon-a.Lon)*f,
		}
		if a.Ele != nil && b.Ele != nil {
			ele := *a.Ele + (*b.Ele-*a.Ele)*f
			pt.Ele = &ele
		}
		if a.Time != nil && b.Time != nil {
			span := b.Time.Sub(*a.Time)
			ts := a.Time.Add(time.Duration(float64(span) * f))
			pt.Time = &ts
		}
		out = append(out, pt)
	}
	return out
}
