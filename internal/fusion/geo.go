package fusion

import "math"

// kmPerDegree is the equirectangular approximation used for correlation
// distances. Not geodesic; adequate at the scale the engine correlates over.
const kmPerDegree = 111.0

// DistanceKM returns the approximate planar distance in kilometers between
// two lat/lon points: delta degrees scaled by 111 km/deg on each axis,
// combined euclidean.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat1 - lat2) * kmPerDegree
	dLon := (lon1 - lon2) * kmPerDegree
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
