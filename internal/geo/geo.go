package geo

import (
	"math"

	"livetrack.fleetops.io/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceMeters returns the great-circle distance between two points in
// meters.
func DistanceMeters(a, b models.LatLng) float64 {
	return HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon) * 1000
}

// Interpolate returns the point a fraction t of the way from a to b.
// t is clamped to [0, 1].
func Interpolate(a, b models.LatLng, t float64) models.LatLng {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return models.LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// PathLengthMeters returns the summed segment lengths of a polyline.
func PathLengthMeters(path []models.LatLng) float64 {
	var total float64
	for i := 0; i+1 < len(path); i++ {
		total += DistanceMeters(path[i], path[i+1])
	}
	return total
}

// PointAlongPath maps a progress fraction in [0, 1] onto a polyline,
// interpolating piecewise-linearly across segments weighted by their
// length. Degenerate paths (empty, single point, zero length) return the
// nearest defined endpoint.
func PointAlongPath(path []models.LatLng, frac float64) models.LatLng {
	switch len(path) {
	case 0:
		return models.LatLng{}
	case 1:
		return path[0]
	}
	if frac <= 0 {
		return path[0]
	}
	if frac >= 1 {
		return path[len(path)-1]
	}

	total := PathLengthMeters(path)
	if total <= 0 {
		return path[len(path)-1]
	}

	target := frac * total
	var covered float64
	for i := 0; i+1 < len(path); i++ {
		seg := DistanceMeters(path[i], path[i+1])
		if covered+seg >= target {
			if seg <= 0 {
				return path[i+1]
			}
			return Interpolate(path[i], path[i+1], (target-covered)/seg)
		}
		covered += seg
	}
	return path[len(path)-1]
}
