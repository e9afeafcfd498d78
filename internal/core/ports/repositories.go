package ports

import (
	"context"
	"time"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// CustomerRepository reads customer and interaction snapshots from the
// external CRM store. The engine never writes through it.
type CustomerRepository interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	// GetByIDs returns the customers that exist; unknown ids are simply absent.
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error)
	// ListInteractions returns all interactions, or only those of customerID when non-nil.
	ListInteractions(ctx context.Context, customerID *int64) ([]domain.Interaction, error)
}

// AgentDirectory resolves agent ids to display names.
type AgentDirectory interface {
	Names(ctx context.Context, agentIDs []int64) (map[int64]string, error)
}

// LocationHistoryRepository appends accepted position reports and serves the
// latest row per agent for warm starts.
type LocationHistoryRepository interface {
	Append(ctx context.Context, pos domain.AgentPosition) error
	LatestPerAgent(ctx context.Context, since time.Time) ([]domain.AgentPosition, error)
}

// LocationStore holds the latest position per agent.
type LocationStore interface {
	// Upsert stores pos unless a newer report for the same agent is already held.
	Upsert(pos domain.AgentPosition) bool
	Get(agentID int64) (domain.AgentPosition, error)
	CurrentFleet(now time.Time, maxAge time.Duration) []domain.AgentPosition
	Sweep(olderThan time.Time) int
	Count() int
}
