package geospatial

import (
	"fmt"
	"math"
)

// DefaultSpeedKmh is the average urban driving speed used for estimates.
const DefaultSpeedKmh = 50.0

// TravelEstimator converts distances into driving-time estimates using a
// constant average speed.
type TravelEstimator struct {
	SpeedKmh float64
}

// NewTravelEstimator returns an estimator; non-positive speeds fall back to DefaultSpeedKmh.
func NewTravelEstimator(speedKmh float64) TravelEstimator {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		speedKmh = DefaultSpeedKmh
	}
	return TravelEstimator{SpeedKmh: speedKmh}
}

// Minutes returns the whole number of minutes needed to cover km, rounded to
// the nearest minute. Never negative.
func (e TravelEstimator) Minutes(km float64) int {
	if km <= 0 || math.IsNaN(km) {
		return 0
	}
	speed := e.SpeedKmh
	if speed <= 0 {
		speed = DefaultSpeedKmh
	}
	return int(math.Round(km / speed * 60))
}

// FormatMinutes renders minutes as "1h 20m" or "45m". The hour part is
// omitted when zero.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
