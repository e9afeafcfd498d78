package usecases

import (
	"strings"
	"time"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
)

// Default look-back windows for the dashboard's "recent" figures.
const (
	DefaultRecentCustomerWindow    = 30 * 24 * time.Hour
	DefaultRecentInteractionWindow = 7 * 24 * time.Hour
)

// AnalyticsAggregator derives dashboard figures from store snapshots. It has
// no state beyond its windows; zero windows fall back to the defaults.
type AnalyticsAggregator struct {
	RecentCustomerWindow    time.Duration
	RecentInteractionWindow time.Duration
}

// Summarize computes the summary with the default windows.
func Summarize(customers []domain.Customer, interactions []domain.Interaction, now time.Time) domain.AnalyticsSummary {
	return AnalyticsAggregator{}.Summarize(customers, interactions, now)
}

// Summarize computes the summary over the given snapshots. Records at or after
// now minus the window count as recent.
func (a AnalyticsAggregator) Summarize(customers []domain.Customer, interactions []domain.Interaction, now time.Time) domain.AnalyticsSummary {
	customerWindow := a.RecentCustomerWindow
	if customerWindow <= 0 {
		customerWindow = DefaultRecentCustomerWindow
	}
	interactionWindow := a.RecentInteractionWindow
	if interactionWindow <= 0 {
		interactionWindow = DefaultRecentInteractionWindow
	}

	summary := domain.AnalyticsSummary{
		TotalCustomers:    len(customers),
		TotalInteractions: len(interactions),
		StageCounts:       make(map[string]int, len(domain.Stages)),
	}
	for _, stage := range domain.Stages {
		summary.StageCounts[stage] = 0
	}

	customerCutoff := now.Add(-customerWindow)
	closed := 0
	for _, c := range customers {
		if !c.CreatedAt.Before(customerCutoff) {
			summary.RecentCustomersCount++
		}
		if c.IsClosed() {
			closed++
		}
		summary.StageCounts[canonicalStage(c.Stage)]++
	}

	interactionCutoff := now.Add(-interactionWindow)
	for _, i := range interactions {
		if !i.Timestamp.Before(interactionCutoff) {
			summary.RecentInteractionsCount++
		}
	}

	if len(customers) > 0 {
		total := float64(len(customers))
		summary.ConversionRate = geospatial.Round(float64(closed)/total*100, 1)
		summary.AvgInteractionsPerCustomer = geospatial.Round(float64(len(interactions))/total, 2)
	}

	return summary
}

// canonicalStage maps free-form stage values onto the board stages; anything
// unrecognised is counted under its own name.
func canonicalStage(stage string) string {
	for _, s := range domain.Stages {
		if equalFoldTrim(stage, s) {
			return s
		}
	}
	if stage == "" {
		return domain.StageNew
	}
	return stage
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}
