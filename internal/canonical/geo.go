package canonical

import "math"

const (
	earthRadiusMeters = 6371000.0

	// MatchRadiusMeters is the dedup radius for user-authored stops. Two
	// stops in the same city at most this far apart share a canonical stop.
	MatchRadiusMeters = 50.0
)

// DistanceMeters approximates the ground distance between two points with an
// equirectangular projection scaled by the mean latitude. It is accurate well
// beyond the match radius.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180
	x := dLambda * math.Cos((phi1+phi2)/2)
	y := phi2 - phi1
	return earthRadiusMeters * math.Sqrt(x*x+y*y)
}
