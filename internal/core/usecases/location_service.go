package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/ports"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
	"github.com/samirrijal/fieldgeo/internal/pkg/metrics"
	"github.com/samirrijal/fieldgeo/internal/pkg/workerpool"
)

// LocationConfig tunes LocationService.
type LocationConfig struct {
	// StaleAfter is the default staleness window for fleet queries.
	StaleAfter time.Duration
	// Retention is how long a silent agent is kept before the sweep drops it.
	Retention time.Duration
	// SweepInterval is the period of RunSweeper.
	SweepInterval time.Duration
	// MaxClockSkew rejects replicated reports stamped further in the future.
	MaxClockSkew time.Duration
	// Workers and QueueSize size the side-effect pool (history, publish).
	Workers   int
	QueueSize int
}

// DefaultLocationConfig matches a 60s client reporting cadence.
func DefaultLocationConfig() LocationConfig {
	return LocationConfig{
		StaleAfter:    5 * time.Minute,
		Retention:     24 * time.Hour,
		SweepInterval: time.Minute,
		MaxClockSkew:  2 * time.Minute,
		Workers:       4,
		QueueSize:     1024,
	}
}

// LocationService records agent positions and serves the live fleet.
type LocationService struct {
	store     ports.LocationStore
	agents    ports.AgentDirectory
	history   ports.LocationHistoryRepository
	publisher ports.EventPublisher
	pool      *workerpool.Pool
	cfg       LocationConfig
	now       func() time.Time
}

// NewLocationService creates a new LocationService. agents, history and
// publisher may be nil.
func NewLocationService(
	store ports.LocationStore,
	agents ports.AgentDirectory,
	history ports.LocationHistoryRepository,
	publisher ports.EventPublisher,
	cfg LocationConfig,
) *LocationService {
	def := DefaultLocationConfig()
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = def.MaxClockSkew
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &LocationService{
		store:     store,
		agents:    agents,
		history:   history,
		publisher: publisher,
		pool:      workerpool.New(cfg.Workers, cfg.QueueSize),
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides the time source; used by tests.
func (s *LocationService) WithClock(now func() time.Time) *LocationService {
	s.now = now
	return s
}

// StaleAfter returns the configured staleness window.
func (s *LocationService) StaleAfter() time.Duration {
	return s.cfg.StaleAfter
}

// Report records a position for agentID stamped with the server clock.
// A report that loses to a newer stored one is not an error; accepted is false.
func (s *LocationService) Report(ctx context.Context, agentID int64, point domain.GeoPoint) (accepted bool, err error) {
	if err := point.Validate(); err != nil {
		metrics.PositionReports.WithLabelValues("client", "invalid").Inc()
		return false, err
	}

	pos := domain.AgentPosition{AgentID: agentID, Point: point, RecordedAt: s.now().UTC()}
	if !s.store.Upsert(pos) {
		metrics.PositionReports.WithLabelValues("client", "stale").Inc()
		logging.FromContext(ctx).Debug("stale position report discarded", "agent_id", agentID)
		return false, nil
	}
	metrics.PositionReports.WithLabelValues("client", "accepted").Inc()

	s.afterAccept(pos)
	return true, nil
}

// Apply merges a position produced elsewhere (another replica, a warm start).
// It follows the same freshest-wins rule and is not re-published.
func (s *LocationService) Apply(ctx context.Context, pos domain.AgentPosition) (bool, error) {
	if err := pos.Point.Validate(); err != nil {
		metrics.PositionReports.WithLabelValues("replica", "invalid").Inc()
		return false, err
	}
	if pos.RecordedAt.IsZero() {
		return false, domain.NewError(domain.KindBadRequest, "position has no timestamp")
	}
	if pos.RecordedAt.After(s.now().Add(s.cfg.MaxClockSkew)) {
		metrics.PositionReports.WithLabelValues("replica", "invalid").Inc()
		return false, domain.NewError(domain.KindBadRequest,
			fmt.Sprintf("position for agent %d is stamped in the future", pos.AgentID))
	}

	if !s.store.Upsert(pos) {
		metrics.PositionReports.WithLabelValues("replica", "stale").Inc()
		return false, nil
	}
	metrics.PositionReports.WithLabelValues("replica", "accepted").Inc()
	return true, nil
}

// afterAccept hands history persistence and publication to the worker pool so
// neither is on the caller's critical path.
func (s *LocationService) afterAccept(pos domain.AgentPosition) {
	if s.history != nil {
		ok := s.pool.TrySubmit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.history.Append(ctx, pos); err != nil {
				slog.Warn("position history append failed", "agent_id", pos.AgentID, "error", err)
			}
		})
		if !ok {
			metrics.SideEffectsDropped.WithLabelValues("history").Inc()
		}
	}
	if s.publisher != nil {
		ok := s.pool.TrySubmit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.publisher.PublishAgentPosition(ctx, pos); err != nil {
				slog.Warn("position publish failed", "agent_id", pos.AgentID, "error", err)
			}
		})
		if !ok {
			metrics.SideEffectsDropped.WithLabelValues("publish").Inc()
		}
	}
}

// Get returns the stored position for an agent, fresh or not.
func (s *LocationService) Get(ctx context.Context, agentID int64) (domain.AgentPosition, error) {
	pos, err := s.store.Get(agentID)
	if err != nil {
		return pos, err
	}
	named := []domain.AgentPosition{pos}
	s.fillNames(ctx, named)
	return named[0], nil
}

// IsStale reports whether pos is older than the staleness window.
func (s *LocationService) IsStale(pos domain.AgentPosition) bool {
	return s.now().Sub(pos.RecordedAt) > s.cfg.StaleAfter
}

// FreshPosition returns the agent's position only if it is within the
// staleness window.
func (s *LocationService) FreshPosition(agentID int64) (domain.AgentPosition, error) {
	pos, err := s.store.Get(agentID)
	if err != nil {
		return pos, err
	}
	if s.IsStale(pos) {
		return domain.AgentPosition{}, domain.NewError(domain.KindNotFound,
			fmt.Sprintf("position for agent %d is stale", agentID))
	}
	return pos, nil
}

// Fleet returns agents with a position no older than maxAge, named from the
// agent directory. maxAge <= 0 uses the configured staleness window.
func (s *LocationService) Fleet(ctx context.Context, maxAge time.Duration) []domain.AgentPosition {
	if maxAge <= 0 {
		maxAge = s.cfg.StaleAfter
	}
	fleet := s.store.CurrentFleet(s.now(), maxAge)
	s.fillNames(ctx, fleet)
	return fleet
}

// FleetNear is Fleet restricted to agents within radiusMeters of center.
func (s *LocationService) FleetNear(ctx context.Context, center domain.GeoPoint, radiusMeters float64, maxAge time.Duration) ([]domain.AgentPosition, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, domain.NewError(domain.KindBadRequest, "radius must be positive")
	}
	if maxAge <= 0 {
		maxAge = s.cfg.StaleAfter
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(center.Lat, center.Lon, radiusMeters)
	var near []domain.AgentPosition
	for _, p := range s.store.CurrentFleet(s.now(), maxAge) {
		pt := p.Point
		if !geospatial.InBoundingBox(pt.Lat, pt.Lon, minLat, minLon, maxLat, maxLon) {
			continue
		}
		if geospatial.Haversine(center.Lat, center.Lon, pt.Lat, pt.Lon) <= radiusMeters {
			near = append(near, p)
		}
	}
	s.fillNames(ctx, near)
	return near, nil
}

// fillNames resolves missing display names in place. Directory failures only
// cost the names.
func (s *LocationService) fillNames(ctx context.Context, positions []domain.AgentPosition) {
	if s.agents == nil || len(positions) == 0 {
		return
	}
	var missing []int64
	for _, p := range positions {
		if p.Name == "" {
			missing = append(missing, p.AgentID)
		}
	}
	if len(missing) == 0 {
		return
	}

	names, err := s.agents.Names(ctx, missing)
	if err != nil {
		logging.FromContext(ctx).Warn("agent name lookup failed", "error", err)
		return
	}
	for i := range positions {
		if positions[i].Name == "" {
			positions[i].Name = names[positions[i].AgentID]
		}
	}
}

// Sweep drops entries older than the retention window and refreshes gauges.
func (s *LocationService) Sweep() int {
	now := s.now()
	removed := s.store.Sweep(now.Add(-s.cfg.Retention))

	metrics.SweepRemoved.Add(float64(removed))
	metrics.TrackedAgents.Set(float64(s.store.Count()))
	metrics.FleetSize.Set(float64(len(s.store.CurrentFleet(now, s.cfg.StaleAfter))))
	return removed
}

// RunSweeper sweeps every SweepInterval until ctx is cancelled.
func (s *LocationService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("location sweeper started", "interval", s.cfg.SweepInterval.String(), "retention", s.cfg.Retention.String())
	for {
		select {
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.Info("swept expired positions", "removed", removed)
			}
		case <-ctx.Done():
			slog.Info("location sweeper stopping")
			return
		}
	}
}

// WarmStart loads the latest persisted position per agent within the
// retention window.
func (s *LocationService) WarmStart(ctx context.Context) (int, error) {
	if s.history == nil {
		return 0, nil
	}
	positions, err := s.history.LatestPerAgent(ctx, s.now().Add(-s.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("load latest positions: %w", err)
	}
	loaded := 0
	for _, p := range positions {
		if p.Point.Validate() != nil {
			continue
		}
		if s.store.Upsert(p) {
			loaded++
		}
	}
	return loaded, nil
}

// Close drains pending history writes and publications.
func (s *LocationService) Close() {
	s.pool.Shutdown()
}
