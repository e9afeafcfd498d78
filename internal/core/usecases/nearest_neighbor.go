package usecases

import (
	"math"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
)

// Waypoint is a customer with a resolved location.
type Waypoint struct {
	Customer domain.Customer
	Point    domain.GeoPoint
}

// Leg is one hop chosen by NearestNeighbor. DistanceKm is measured from the
// previous leg's waypoint (or the origin for the first leg).
type Leg struct {
	Waypoint   Waypoint
	DistanceKm float64
}

// NearestNeighbor orders waypoints with a greedy nearest-neighbour walk from
// origin: each step moves to the closest unvisited waypoint, ties going to the
// lowest customer id. O(n²), deterministic, not globally optimal.
func NearestNeighbor(origin domain.GeoPoint, waypoints []Waypoint) ([]Leg, error) {
	if err := origin.Validate(); err != nil {
		return nil, err
	}

	visited := make([]bool, len(waypoints))
	legs := make([]Leg, 0, len(waypoints))
	current := origin

	for len(legs) < len(waypoints) {
		best := -1
		bestDist := math.Inf(1)

		for i, wp := range waypoints {
			if visited[i] {
				continue
			}
			d, err := geospatial.DistanceKm(current, wp.Point)
			if err != nil {
				return nil, err
			}
			if d < bestDist || (d == bestDist && wp.Customer.ID < waypoints[best].Customer.ID) {
				best = i
				bestDist = d
			}
		}

		visited[best] = true
		legs = append(legs, Leg{Waypoint: waypoints[best], DistanceKm: bestDist})
		current = waypoints[best].Point
	}

	return legs, nil
}
