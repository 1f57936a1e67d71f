package community

import "math"

const earthRadiusKM = 6371.0

type Coordinate struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

// DistanceKM returns the great-circle distance between two coordinates using
// the haversine formula.
func DistanceKM(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Resolve returns the nearest city community within the registry's max
// distance, or the global community when there is no coordinate or no city
// close enough.
func (r *Registry) Resolve(coord *Coordinate) Community {
	if coord == nil {
		return r.global
	}

	closest := r.global
	minDistance := math.Inf(1)

	for _, c := range r.entries {
		if c.IsGlobal() {
			continue
		}

		dist := DistanceKM(*coord, Coordinate{Lat: c.Lat, Lng: c.Lng})
		if dist < minDistance && dist <= r.maxDistanceKM {
			minDistance = dist
			closest = c
		}
	}

	return closest
}
