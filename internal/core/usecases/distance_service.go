package usecases

import (
	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
)

// DistanceService answers ad-hoc point-to-point distance queries. It holds no
// mutable state and is safe for concurrent use.
type DistanceService struct {
	estimator geospatial.TravelEstimator
}

// NewDistanceService creates a new DistanceService.
func NewDistanceService(estimator geospatial.TravelEstimator) *DistanceService {
	return &DistanceService{estimator: estimator}
}

// Compute returns the great-circle distance between a and b in km and miles
// (two decimals) together with a driving-time estimate.
func (s *DistanceService) Compute(a, b domain.GeoPoint) (domain.DistanceResult, error) {
	km, err := geospatial.DistanceKm(a, b)
	if err != nil {
		return domain.DistanceResult{}, err
	}

	minutes := s.estimator.Minutes(km)
	return domain.DistanceResult{
		DistanceKm:           geospatial.Round(km, 2),
		DistanceMi:           geospatial.Round(geospatial.ToMiles(km), 2),
		EstimatedTimeMinutes: minutes,
		EstimatedTimeText:    geospatial.FormatMinutes(minutes),
	}, nil
}
