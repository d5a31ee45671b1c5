package gpx

import "math"

// EarthRadius is the mean Earth radius in metres used by all distance math here.
const EarthRadius = 6_371_000.0

const rad = math.Pi / 180

// Haversine returns the great-circle distance in metres between two fixes.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func bearing(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Atan2(
		math.Sin(lon2-lon1)*math.Cos(lat2),
		math.Cos(lat1)*math.Sin(lat2)-math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1),
	)
}

// crossArc returns the shortest distance in metres from p to the great-circle
// arc a→b. Points whose projection falls outside the arc measure to the
// nearer endpoint.
func crossArc(a, b, p RawPoint) float64 {
	lat1, lon1 := a.Lat*rad, a.Lon*rad
	lat2, lon2 := b.Lat*rad, b.Lon*rad
	lat3, lon3 := p.Lat*rad, p.Lon*rad

	d13 := Haversine(a.Lat, a.Lon, p.Lat, p.Lon)
	if d13 == 0 {
		return 0
	}
	bear12 := bearing(lat1, lon1, lat2, lon2)
	bear13 := bearing(lat1, lon1, lat3, lon3)
	diff := math.Abs(bear13 - bear12)
	if diff > math.Pi {
		diff = 2*math.Pi - diff
	}
	if diff > math.Pi/2 {
		return d13
	}

	dxt := math.Asin(math.Sin(d13/EarthRadius)*math.Sin(bear13-bear12)) * EarthRadius
	d12 := Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
	cosAlong := math.Cos(d13/EarthRadius) / math.Cos(dxt/EarthRadius)
	d14 := math.Acos(math.Max(-1, math.Min(1, cosAlong))) * EarthRadius
	if d14 > d12 {
		return Haversine(b.Lat, b.Lon, p.Lat, p.Lon)
	}
	return math.Abs(dxt)
}
