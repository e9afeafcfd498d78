package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/fieldgeo/internal/adapters/http"
	"github.com/samirrijal/fieldgeo/internal/adapters/memory"
	natsadapter "github.com/samirrijal/fieldgeo/internal/adapters/nats"
	"github.com/samirrijal/fieldgeo/internal/adapters/postgres"
	"github.com/samirrijal/fieldgeo/internal/adapters/valkey"
	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/ports"
	"github.com/samirrijal/fieldgeo/internal/core/usecases"
	"github.com/samirrijal/fieldgeo/internal/pkg/config"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
	"github.com/samirrijal/fieldgeo/internal/pkg/metrics"
	"github.com/samirrijal/fieldgeo/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load("fieldgeo-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. Interfaces stay nil when the backend is off or unreachable.
	var (
		cache       ports.CacheService
		cachePinger http.Pinger
	)
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache, cachePinger = vc, vc
		}
	}

	// NATS: publisher for accepted reports, subscriber for other replicas,
	// raw connection for the WebSocket relay.
	origin := uuid.NewString()
	var (
		publisher ports.EventPublisher
		natsConn  *nats.Conn
		sub       *natsadapter.Subscriber
	)
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL, origin)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats relay conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Drain()
			sub = natsadapter.NewSubscriber(natsConn, origin)
			defer sub.Close()
		}
	}

	// Repos
	customerRepo := postgres.NewCustomerRepo(db)
	agentRepo := postgres.NewAgentRepo(db)
	historyRepo := postgres.NewLocationHistoryRepo(db)

	// Use cases
	estimator := geospatial.NewTravelEstimator(cfg.Routing.SpeedKmh)

	locationSvc := usecases.NewLocationService(memory.NewLocationStore(), agentRepo, historyRepo, publisher, usecases.LocationConfig{
		StaleAfter:    cfg.Location.StaleAfter,
		Retention:     cfg.Location.Retention,
		SweepInterval: cfg.Location.SweepInterval,
		Workers:       cfg.Location.HistoryWorkers,
	})
	defer locationSvc.Close()

	if n, err := locationSvc.WarmStart(ctx); err != nil {
		slog.Warn("warm start failed", "error", err)
	} else {
		slog.Info("warm start complete", "agents", n)
	}

	if sub != nil {
		if err := sub.SubscribeAgentPositions(ctx, func(ctx context.Context, pos domain.AgentPosition) error {
			_, err := locationSvc.Apply(ctx, pos)
			return err
		}); err != nil {
			slog.Warn("replica sync disabled", "error", err)
		}
	}

	routePlanner := usecases.NewRoutePlanner(customerRepo, cache, estimator, usecases.RoutePlannerConfig{
		LookupTimeout: cfg.Routing.LookupTimeout,
		MaxCustomers:  cfg.Routing.MaxCustomers,
		CacheTTL:      cfg.Routing.CustomerCacheTTL,
	})
	analyticsSvc := usecases.NewAnalyticsService(customerRepo, cache, usecases.AnalyticsConfig{
		Aggregator: usecases.AnalyticsAggregator{
			RecentCustomerWindow:    cfg.Analytics.RecentCustomerWindow(),
			RecentInteractionWindow: cfg.Analytics.RecentInteractionWindow(),
		},
		Timeout:  cfg.Analytics.Timeout,
		CacheTTL: cfg.Analytics.CacheTTL,
	})

	deps := &http.Dependencies{
		Locations:         locationSvc,
		Distance:          usecases.NewDistanceService(estimator),
		Routes:            routePlanner,
		Analytics:         analyticsSvc,
		NATS:              natsConn,
		DB:                db,
		Cache:             cachePinger,
		IdentityHeader:    cfg.Server.IdentityHeader,
		RequestTimeout:    time.Duration(cfg.Server.RequestTimeout) * time.Second,
		AnalyticsCacheTTL: cfg.Analytics.CacheTTL,
		Version:           version,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Field Geo API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + cfg.Server.IdentityHeader,
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "origin", origin)
		return app.Listen(addr)
	})

	g.Go(func() error {
		locationSvc.RunSweeper(gctx)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		// Give in-flight requests up to 10s to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		return
	}
	slog.Info("server stopped")
}
