package agents

import (
	"math"
	"sort"
	"strings"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Rank orders agents for a pickup in city at pickup.
// Agents in the pickup city are preferred; if there are none, every agent is considered.
// Within the pool AVAILABLE agents come first, then ascending distance. Ties keep
// fewer active pickups first, then higher rating.
func Rank(city string, pickup Location, all []*Agent) []Candidate {
	var pool []*Agent
	for _, a := range all {
		if strings.EqualFold(strings.TrimSpace(a.City), strings.TrimSpace(city)) {
			pool = append(pool, a)
		}
	}
	sameCity := len(pool) > 0
	if !sameCity {
		pool = all
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, a := range pool {
		d := math.Inf(1)
		if !pickup.IsZero() && !a.Location.IsZero() {
			d = DistanceKm(a.Location, pickup)
		}
		candidates = append(candidates, Candidate{Agent: a, DistanceKm: d, SameCity: sameCity})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ai, aj := candidates[i].Agent, candidates[j].Agent
		availI := ai.Availability == AvailabilityAvailable
		availJ := aj.Availability == AvailabilityAvailable
		if availI != availJ {
			return availI
		}
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		if ai.ActivePickups != aj.ActivePickups {
			return ai.ActivePickups < aj.ActivePickups
		}
		return ai.Rating > aj.Rating
	})

	return candidates
}
