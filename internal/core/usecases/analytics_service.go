package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/ports"
	"github.com/samirrijal/fieldgeo/internal/pkg/metrics"
	"github.com/samirrijal/fieldgeo/internal/pkg/telemetry"
)

const analyticsCacheKey = "analytics:summary"

// AnalyticsConfig tunes AnalyticsService.
type AnalyticsConfig struct {
	Aggregator AnalyticsAggregator
	// Timeout bounds the snapshot fetch when positive.
	Timeout time.Duration
	// CacheTTL caches the computed summary when positive. Off by default.
	CacheTTL time.Duration
}

// AnalyticsService fetches store snapshots and summarises them.
type AnalyticsService struct {
	customers ports.CustomerRepository
	cache     ports.CacheService
	cfg       AnalyticsConfig
	now       func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService. cache may be nil.
func NewAnalyticsService(customers ports.CustomerRepository, cache ports.CacheService, cfg AnalyticsConfig) *AnalyticsService {
	return &AnalyticsService{customers: customers, cache: cache, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

// Summary returns the dashboard summary computed from fresh snapshots.
func (s *AnalyticsService) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Summary")
	defer span.End()

	useCache := s.cache != nil && s.cfg.CacheTTL > 0
	if useCache {
		if data, err := s.cache.Get(ctx, analyticsCacheKey); err == nil {
			var summary domain.AnalyticsSummary
			if err := json.Unmarshal(data, &summary); err == nil {
				metrics.CacheHits.WithLabelValues("analytics").Inc()
				span.SetAttributes(telemetry.AttrAnalyticsCached.Bool(true))
				return &summary, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("analytics").Inc()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		customers    []domain.Customer
		interactions []domain.Interaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.customers.ListCustomers(gctx)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		interactions, err = s.customers.ListInteractions(gctx, nil)
		if err != nil {
			return fmt.Errorf("list interactions: %w", err)
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				span.RecordError(err)
				return nil, domain.WrapError(domain.KindTimeout, "analytics snapshot timed out", err)
			}
			span.RecordError(err)
			return nil, err
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.WrapError(domain.KindTimeout, "analytics snapshot timed out", ctx.Err())
		}
		return nil, ctx.Err()
	}

	summary := s.cfg.Aggregator.Summarize(customers, interactions, s.now())

	if useCache {
		if data, err := json.Marshal(summary); err == nil {
			_ = s.cache.Set(ctx, analyticsCacheKey, data, int(s.cfg.CacheTTL.Seconds()))
		}
	}
	return &summary, nil
}
