package geo

import (
	"math"

	"github.com/Nexoracode/khadamat/internal/types"
)

const earthRadiusKm = 6371

// PlanarDistance is the Euclidean distance in raw degree space. It is only a
// ranking key: good enough at city scale, meaningless as a length.
func PlanarDistance(a, b types.GeoPoint) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// DistanceKm calculates the distance between two coordinates using the
// Haversine formula. Returns distance in kilometers.
func DistanceKm(a, b types.GeoPoint) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lon1Rad := a.Lng * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	lon2Rad := b.Lng * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// NearestOfExpertise returns the candidate with exactly the given expertise
// that is closest to origin. Ties keep the earliest candidate. The boolean is
// false when no candidate has that expertise.
func NearestOfExpertise(candidates []types.Specialist, origin types.GeoPoint, expertise string) (types.Specialist, bool) {
	var (
		best     types.Specialist
		bestDist float64
		found    bool
	)
	for _, s := range candidates {
		if s.Expertise != expertise {
			continue
		}
		d := PlanarDistance(s.Location, origin)
		if !found || d < bestDist {
			best, bestDist, found = s, d, true
		}
	}
	return best, found
}
