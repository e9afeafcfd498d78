package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldgeo",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldgeo",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Location tracking
	PositionReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "location",
		Name:      "reports_total",
		Help:      "Position reports by outcome (accepted, stale, invalid)",
	}, []string{"source", "result"})

	FleetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldgeo",
		Subsystem: "location",
		Name:      "fleet_size",
		Help:      "Agents with a fresh position at the last sweep",
	})

	TrackedAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldgeo",
		Subsystem: "location",
		Name:      "tracked_agents",
		Help:      "Entries held by the location store, fresh or stale",
	})

	SweepRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "location",
		Name:      "sweep_removed_total",
		Help:      "Entries removed by the periodic sweep",
	})

	SideEffectsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "location",
		Name:      "side_effects_dropped_total",
		Help:      "History writes or publications dropped because the worker queue was full",
	}, []string{"kind"})

	// Routing
	RoutePlans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "routing",
		Name:      "plans_total",
		Help:      "Route plans by outcome",
	}, []string{"outcome"})

	RouteStopsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "routing",
		Name:      "stops_skipped_total",
		Help:      "Requested customers left out of a route for lack of a location",
	})

	RoutePlanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fieldgeo",
		Subsystem: "routing",
		Name:      "plan_duration_seconds",
		Help:      "Route planning latency including customer lookup",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldgeo",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldgeo",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldgeo",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldgeo",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool gauges from a pgxpool.Stat. The interface
// keeps this package free of a pgx import.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
