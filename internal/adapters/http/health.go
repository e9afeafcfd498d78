package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// readinessProbe checks one backend. Optional probes report but never fail
// readiness.
type readinessProbe struct {
	name     string
	optional bool
	check    func(ctx context.Context) error
}

func readinessProbes(deps *Dependencies) []readinessProbe {
	probes := []readinessProbe{{name: "database", check: pingOrMissing(deps.DB)}}
	if deps.NATS != nil {
		probes = append(probes, readinessProbe{name: "nats", optional: true, check: func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	if deps.Cache != nil {
		probes = append(probes, readinessProbe{name: "cache", optional: true, check: deps.Cache.Ping})
	}
	return probes
}

func pingOrMissing(p Pinger) func(ctx context.Context) error {
	if p == nil {
		return func(context.Context) error { return errors.New("not configured") }
	}
	return p.Ping
}

// ReadyHandler reports 503 until the customer store answers. The position
// relay and the customer cache degrade gracefully, so they only appear in
// the checks map.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	probes := readinessProbes(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string, len(probes))
		ready := true
		for _, p := range probes {
			if err := p.check(ctx); err != nil {
				checks[p.name] = "error: " + err.Error()
				if !p.optional {
					ready = false
				}
				continue
			}
			checks[p.name] = "ok"
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": checks})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}
