package domain

import (
	"strings"
	"time"
)

// AgentPosition is the latest known position of a sales representative.
type AgentPosition struct {
	AgentID    int64     `json:"agent_id"`
	Name       string    `json:"name,omitempty"`
	Point      GeoPoint  `json:"point"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Pipeline stages used by the external customer store.
const (
	StageNew       = "New"
	StageContacted = "Contacted"
	StageProposal  = "Proposal"
	StageClosed    = "Closed"
)

// Stages lists the pipeline stages in board order.
var Stages = []string{StageNew, StageContacted, StageProposal, StageClosed}

// Customer is a read-only projection of a CRM customer record.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// Location returns the customer's point, or false when either coordinate is missing.
func (c Customer) Location() (GeoPoint, bool) {
	if c.Lat == nil || c.Lng == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: *c.Lat, Lon: *c.Lng}, true
}

// IsClosed reports whether the customer reached the final pipeline stage.
func (c Customer) IsClosed() bool {
	return strings.EqualFold(strings.TrimSpace(c.Stage), StageClosed)
}

// Interaction is a read-only projection of a logged customer interaction.
type Interaction struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// DistanceResult is a point-to-point distance with a travel estimate.
type DistanceResult struct {
	DistanceKm           float64 `json:"distance_km"`
	DistanceMi           float64 `json:"distance_mi"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
	EstimatedTimeText    string  `json:"estimated_time_text"`
}

// RouteStop is one visit in a planned route.
type RouteStop struct {
	CustomerID             int64   `json:"customer_id"`
	CustomerName           string  `json:"customer_name"`
	CustomerCompany        string  `json:"customer_company"`
	DistanceFromPreviousKm float64 `json:"distance_from_previous"`
	EstimatedTimeMinutes   int     `json:"estimated_time_minutes"`
	SequenceIndex          int     `json:"sequence_index"`
}

// RouteResult is an ordered itinerary. SkippedIDs lists input ids that had no
// resolvable location; Reason is set when the route is empty.
type RouteResult struct {
	Route                     []RouteStop `json:"route"`
	TotalDistanceKm           float64     `json:"total_distance_km"`
	TotalEstimatedTimeMinutes int         `json:"total_estimated_time_minutes"`
	SkippedCount              int         `json:"skipped_count"`
	SkippedIDs                []int64     `json:"skipped_ids,omitempty"`
	Reason                    string      `json:"reason,omitempty"`
}

// Warning returns a partial-resolution error describing skipped ids, or nil.
func (r *RouteResult) Warning() *Error {
	if r.SkippedCount == 0 {
		return nil
	}
	return NewError(KindPartialResolution, pluralize(r.SkippedCount, "customer", "customers")+" could not be located and were left out of the route")
}

// AnalyticsSummary holds dashboard figures derived from store snapshots.
type AnalyticsSummary struct {
	RecentCustomersCount       int            `json:"recent_customers_count"`
	RecentInteractionsCount    int            `json:"recent_interactions_count"`
	ConversionRate             float64        `json:"conversion_rate"`
	AvgInteractionsPerCustomer float64        `json:"avg_interactions_per_customer"`
	TotalCustomers             int            `json:"total_customers"`
	TotalInteractions          int            `json:"total_interactions"`
	StageCounts                map[string]int `json:"stage_counts"`
}
