package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/ports"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
	"github.com/samirrijal/fieldgeo/internal/pkg/metrics"
	"github.com/samirrijal/fieldgeo/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/samirrijal/fieldgeo/internal/core/usecases")

// RoutePlannerConfig tunes RoutePlanner.
type RoutePlannerConfig struct {
	// LookupTimeout bounds the customer lookup when the caller set no earlier deadline.
	LookupTimeout time.Duration
	// MaxCustomers caps the number of distinct ids per request; 0 means no cap.
	MaxCustomers int
	// CacheTTL enables the customer read-through cache when positive.
	CacheTTL time.Duration
}

// PlanOptions are per-request routing switches.
type PlanOptions struct {
	// ReturnToOrigin adds the closing leg back to the origin to the totals.
	ReturnToOrigin bool
}

// RoutePlanner sequences customer visits into a route.
type RoutePlanner struct {
	customers ports.CustomerRepository
	cache     ports.CacheService
	estimator geospatial.TravelEstimator
	cfg       RoutePlannerConfig
}

// NewRoutePlanner creates a new RoutePlanner. cache may be nil.
func NewRoutePlanner(customers ports.CustomerRepository, cache ports.CacheService, estimator geospatial.TravelEstimator, cfg RoutePlannerConfig) *RoutePlanner {
	return &RoutePlanner{customers: customers, cache: cache, estimator: estimator, cfg: cfg}
}

// PlanRoute orders the requested customers into a route starting at origin.
// Ids without a usable location are skipped and reported; a route with no
// resolvable ids is returned empty with a Reason rather than as an error.
func (p *RoutePlanner) PlanRoute(ctx context.Context, origin domain.GeoPoint, customerIDs []int64, opts PlanOptions) (result *domain.RouteResult, err error) {
	ctx, span := tracer.Start(ctx, "RoutePlanner.PlanRoute")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RoutePlanDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		switch {
		case err != nil:
			outcome = string(domain.KindOf(err))
		case len(result.Route) == 0:
			outcome = "empty"
		case result.SkippedCount > 0:
			outcome = "partial"
		}
		metrics.RoutePlans.WithLabelValues(outcome).Inc()
		if err != nil {
			span.RecordError(err)
		}
	}()

	if err := origin.Validate(); err != nil {
		return nil, err
	}

	ids := dedupeIDs(customerIDs)
	span.SetAttributes(telemetry.AttrRouteRequested.Int(len(ids)))
	if p.cfg.MaxCustomers > 0 && len(ids) > p.cfg.MaxCustomers {
		return nil, domain.NewError(domain.KindBadRequest,
			fmt.Sprintf("at most %d customers can be routed at once, got %d", p.cfg.MaxCustomers, len(ids)))
	}
	if len(ids) == 0 {
		return &domain.RouteResult{Route: []domain.RouteStop{}, Reason: "no customers requested"}, nil
	}

	found, err := p.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	waypoints := make([]Waypoint, 0, len(ids))
	var skipped []int64
	for _, id := range ids {
		c, ok := found[id]
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		pt, ok := c.Location()
		if !ok || pt.Validate() != nil {
			skipped = append(skipped, id)
			continue
		}
		waypoints = append(waypoints, Waypoint{Customer: c, Point: pt})
	}

	result = &domain.RouteResult{
		Route:        make([]domain.RouteStop, 0, len(waypoints)),
		SkippedCount: len(skipped),
		SkippedIDs:   skipped,
	}
	metrics.RouteStopsSkipped.Add(float64(len(skipped)))
	span.SetAttributes(telemetry.AttrRouteSkipped.Int(len(skipped)))

	if len(waypoints) == 0 {
		result.Reason = "none of the requested customers has a known location"
		return result, nil
	}

	legs, err := NearestNeighbor(origin, waypoints)
	if err != nil {
		return nil, err
	}

	var totalKm float64
	for i, leg := range legs {
		km := geospatial.Round(leg.DistanceKm, 2)
		minutes := p.estimator.Minutes(leg.DistanceKm)
		result.Route = append(result.Route, domain.RouteStop{
			CustomerID:             leg.Waypoint.Customer.ID,
			CustomerName:           leg.Waypoint.Customer.Name,
			CustomerCompany:        leg.Waypoint.Customer.Company,
			DistanceFromPreviousKm: km,
			EstimatedTimeMinutes:   minutes,
			SequenceIndex:          i + 1,
		})
		totalKm += km
		result.TotalEstimatedTimeMinutes += minutes
	}

	if opts.ReturnToOrigin {
		last := legs[len(legs)-1].Waypoint.Point
		back, err := geospatial.DistanceKm(last, origin)
		if err != nil {
			return nil, err
		}
		totalKm += geospatial.Round(back, 2)
		result.TotalEstimatedTimeMinutes += p.estimator.Minutes(back)
	}

	result.TotalDistanceKm = geospatial.Round(totalKm, 2)
	span.SetAttributes(telemetry.AttrRouteStops.Int(len(result.Route)))

	if len(skipped) > 0 {
		logging.FromContext(ctx).Info("route planned with unresolved customers",
			"stops", len(result.Route), "skipped", len(skipped))
	}
	return result, nil
}

// lookup resolves ids through the cache and the customer store. It returns
// once ctx is done even if the store ignores cancellation.
func (p *RoutePlanner) lookup(ctx context.Context, ids []int64) (map[int64]domain.Customer, error) {
	if p.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.LookupTimeout)
		defer cancel()
	}

	type lookupResult struct {
		customers map[int64]domain.Customer
		err       error
	}
	done := make(chan lookupResult, 1)
	go func() {
		customers, err := p.fetch(ctx, ids)
		done <- lookupResult{customers: customers, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, domain.WrapError(domain.KindTimeout, "customer lookup timed out", r.err)
			}
			return nil, fmt.Errorf("customer lookup: %w", r.err)
		}
		return r.customers, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.KindTimeout, "customer lookup timed out", ctx.Err())
		}
		return nil, fmt.Errorf("customer lookup: %w", ctx.Err())
	}
}

func (p *RoutePlanner) fetch(ctx context.Context, ids []int64) (map[int64]domain.Customer, error) {
	found := make(map[int64]domain.Customer, len(ids))
	misses := ids

	useCache := p.cache != nil && p.cfg.CacheTTL > 0
	if useCache {
		misses = make([]int64, 0, len(ids))
		for _, id := range ids {
			if data, err := p.cache.Get(ctx, customerCacheKey(id)); err == nil {
				var c domain.Customer
				if err := json.Unmarshal(data, &c); err == nil {
					found[id] = c
					metrics.CacheHits.WithLabelValues("customer").Inc()
					continue
				}
			}
			metrics.CacheMisses.WithLabelValues("customer").Inc()
			misses = append(misses, id)
		}
	}

	if len(misses) == 0 {
		return found, nil
	}

	customers, err := p.customers.GetByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		found[c.ID] = c
		if useCache {
			if data, err := json.Marshal(c); err == nil {
				_ = p.cache.Set(ctx, customerCacheKey(c.ID), data, int(p.cfg.CacheTTL.Seconds()))
			}
		}
	}
	return found, nil
}

func customerCacheKey(id int64) string {
	return "customers:id:" + strconv.FormatInt(id, 10)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
