package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldgeo/internal/core/usecases"
)

// Pinger is a backend that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Locations *usecases.LocationService
	Distance  *usecases.DistanceService
	Routes    *usecases.RoutePlanner
	Analytics *usecases.AnalyticsService

	// NATS feeds the /ws/fleet relay; nil serves snapshots only.
	NATS  *nats.Conn
	DB    Pinger
	Cache Pinger

	// IdentityHeader names the header carrying the caller's user id.
	IdentityHeader string
	// RequestTimeout bounds each /api handler; zero uses 10s.
	RequestTimeout time.Duration
	// RateLimit is requests per minute per caller; zero uses 120.
	RateLimit int
	// AnalyticsCacheTTL is the server-side analytics cache lifetime; zero
	// tells clients to revalidate every time.
	AnalyticsCacheTTL time.Duration
	Version           string
}

func (d *Dependencies) identityHeader() string {
	if d.IdentityHeader == "" {
		return "X-User-ID"
	}
	return d.IdentityHeader
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return d.RequestTimeout
}

func (d *Dependencies) rateLimit() int {
	if d.RateLimit <= 0 {
		return 120
	}
	return d.RateLimit
}
