package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/fieldgeo/internal/adapters/memory"
	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/ports"
	"github.com/samirrijal/fieldgeo/internal/core/usecases"
)

var bilbao = domain.GeoPoint{Lat: 43.2630, Lon: -2.9350}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLocationService(agents *mockAgents, history *mockHistory, pub *mockPublisher) (*usecases.LocationService, *testClock) {
	clock := &testClock{t: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}
	var (
		dir       ports.AgentDirectory
		hist      ports.LocationHistoryRepository
		publisher ports.EventPublisher
	)
	if agents != nil {
		dir = agents
	}
	if history != nil {
		hist = history
	}
	if pub != nil {
		publisher = pub
	}
	svc := usecases.NewLocationService(memory.NewLocationStore(), dir, hist, publisher, usecases.LocationConfig{}).
		WithClock(clock.now)
	return svc, clock
}

func TestLocationService_ReportAndGet(t *testing.T) {
	history := &mockHistory{}
	pub := &mockPublisher{}
	agents := &mockAgents{namesFn: func(ctx context.Context, ids []int64) (map[int64]string, error) {
		return map[int64]string{7: "Ane"}, nil
	}}
	svc, _ := newLocationService(agents, history, pub)

	accepted, err := svc.Report(context.Background(), 7, bilbao)
	if err != nil || !accepted {
		t.Fatalf("Report = %v, %v", accepted, err)
	}

	pos, err := svc.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Point != bilbao || pos.Name != "Ane" {
		t.Errorf("unexpected position %+v", pos)
	}

	svc.Close()
	if history.count() != 1 || pub.count() != 1 {
		t.Errorf("expected one history row and one event, got %d/%d", history.count(), pub.count())
	}
}

func TestLocationService_ReportInvalid(t *testing.T) {
	svc, _ := newLocationService(nil, nil, nil)
	defer svc.Close()

	_, err := svc.Report(context.Background(), 1, domain.GeoPoint{Lat: -91, Lon: 0})
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected invalid coordinate, got %v", err)
	}
	if _, err := svc.Get(context.Background(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("invalid report must not be stored, got %v", err)
	}
}

func TestLocationService_FleetStaleness(t *testing.T) {
	svc, clock := newLocationService(nil, nil, nil)
	defer svc.Close()
	ctx := context.Background()

	svc.Report(ctx, 1, bilbao)
	clock.advance(4 * time.Minute)
	svc.Report(ctx, 2, bilbao)
	clock.advance(2 * time.Minute)

	fleet := svc.Fleet(ctx, 0)
	if len(fleet) != 1 || fleet[0].AgentID != 2 {
		t.Fatalf("expected only agent 2 in the default window, got %+v", fleet)
	}
	if fleet := svc.Fleet(ctx, 10*time.Minute); len(fleet) != 2 {
		t.Errorf("expected both agents with a 10m window, got %d", len(fleet))
	}

	if _, err := svc.FreshPosition(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected stale position to be not_found, got %v", err)
	}
	if _, err := svc.FreshPosition(2); err != nil {
		t.Errorf("expected fresh position for agent 2, got %v", err)
	}
}

func TestLocationService_FleetNameLookupFailure(t *testing.T) {
	agents := &mockAgents{namesFn: func(ctx context.Context, ids []int64) (map[int64]string, error) {
		return nil, errors.New("users table unavailable")
	}}
	svc, _ := newLocationService(agents, nil, nil)
	defer svc.Close()

	svc.Report(context.Background(), 3, bilbao)
	fleet := svc.Fleet(context.Background(), 0)
	if len(fleet) != 1 || fleet[0].Name != "" {
		t.Errorf("expected unnamed position, got %+v", fleet)
	}
}

func TestLocationService_FleetNear(t *testing.T) {
	svc, _ := newLocationService(nil, nil, nil)
	defer svc.Close()
	ctx := context.Background()

	getxo := domain.GeoPoint{Lat: 43.3569, Lon: -3.0117}
	svc.Report(ctx, 1, bilbao)
	svc.Report(ctx, 2, getxo)
	svc.Report(ctx, 3, domain.GeoPoint{Lat: 43.2640, Lon: -2.9360})

	near, err := svc.FleetNear(ctx, bilbao, 2000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(near) != 2 || near[0].AgentID != 1 || near[1].AgentID != 3 {
		t.Errorf("expected agents 1 and 3 within 2km, got %+v", near)
	}

	if _, err := svc.FleetNear(ctx, domain.GeoPoint{Lat: 95}, 1000, 0); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Errorf("expected invalid coordinate, got %v", err)
	}
	if _, err := svc.FleetNear(ctx, bilbao, 0, 0); domain.KindOf(err) != domain.KindBadRequest {
		t.Errorf("expected bad_request for zero radius, got %v", err)
	}
}

func TestLocationService_FleetNearAcrossAntimeridian(t *testing.T) {
	svc, _ := newLocationService(nil, nil, nil)
	defer svc.Close()
	ctx := context.Background()

	svc.Report(ctx, 1, domain.GeoPoint{Lat: -17, Lon: -179.95})
	svc.Report(ctx, 2, domain.GeoPoint{Lat: -17, Lon: 179.90})
	svc.Report(ctx, 3, domain.GeoPoint{Lat: -17, Lon: 178.00})

	near, err := svc.FleetNear(ctx, domain.GeoPoint{Lat: -17, Lon: 179.95}, 50_000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(near) != 2 || near[0].AgentID != 1 || near[1].AgentID != 2 {
		t.Errorf("expected agents 1 and 2 across the antimeridian, got %+v", near)
	}
}

func TestLocationService_FleetNearPole(t *testing.T) {
	svc, _ := newLocationService(nil, nil, nil)
	defer svc.Close()
	ctx := context.Background()

	svc.Report(ctx, 1, domain.GeoPoint{Lat: 89.95, Lon: 135})
	near, err := svc.FleetNear(ctx, domain.GeoPoint{Lat: 89.9, Lon: -45}, 50_000, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(near) != 1 {
		t.Errorf("expected the agent across the pole, got %+v", near)
	}
}

func TestLocationService_IsStale(t *testing.T) {
	svc, clock := newLocationService(nil, nil, nil)
	defer svc.Close()

	svc.Report(context.Background(), 1, bilbao)
	pos, _ := svc.Get(context.Background(), 1)
	if svc.IsStale(pos) {
		t.Fatal("fresh report reported stale")
	}
	clock.advance(svc.StaleAfter() + time.Second)
	if !svc.IsStale(pos) {
		t.Error("expected stale after the window under the injected clock")
	}
}

func TestLocationService_Apply(t *testing.T) {
	pub := &mockPublisher{}
	svc, clock := newLocationService(nil, nil, pub)
	ctx := context.Background()

	newer := domain.AgentPosition{AgentID: 4, Point: bilbao, RecordedAt: clock.now()}
	if ok, err := svc.Apply(ctx, newer); err != nil || !ok {
		t.Fatalf("Apply = %v, %v", ok, err)
	}

	older := newer
	older.RecordedAt = newer.RecordedAt.Add(-time.Minute)
	older.Point = domain.GeoPoint{Lat: 40, Lon: -3}
	if ok, _ := svc.Apply(ctx, older); ok {
		t.Error("older replica position must lose")
	}

	future := newer
	future.RecordedAt = clock.now().Add(time.Hour)
	if _, err := svc.Apply(ctx, future); domain.KindOf(err) != domain.KindBadRequest {
		t.Errorf("expected future-stamped position to be rejected, got %v", err)
	}

	svc.Close()
	if pub.count() != 0 {
		t.Errorf("applied positions must not be re-published, got %d", pub.count())
	}
	pos, _ := svc.Get(ctx, 4)
	if pos.Point != bilbao {
		t.Errorf("expected newest position to win, got %+v", pos.Point)
	}
}

func TestLocationService_Sweep(t *testing.T) {
	svc, clock := newLocationService(nil, nil, nil)
	defer svc.Close()
	ctx := context.Background()

	svc.Report(ctx, 1, bilbao)
	clock.advance(23 * time.Hour)
	svc.Report(ctx, 2, bilbao)
	clock.advance(2 * time.Hour)

	if removed := svc.Sweep(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := svc.Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected agent 1 swept, got %v", err)
	}
	if _, err := svc.Get(ctx, 2); err != nil {
		t.Errorf("agent 2 should remain, got %v", err)
	}
}

func TestLocationService_RunSweeperStops(t *testing.T) {
	svc := usecases.NewLocationService(memory.NewLocationStore(), nil, nil, nil,
		usecases.LocationConfig{SweepInterval: 5 * time.Millisecond})
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestLocationService_WarmStart(t *testing.T) {
	var since time.Time
	history := &mockHistory{latestFn: func(ctx context.Context, s time.Time) ([]domain.AgentPosition, error) {
		since = s
		return []domain.AgentPosition{
			{AgentID: 1, Point: bilbao, RecordedAt: s.Add(time.Hour)},
			{AgentID: 2, Point: domain.GeoPoint{Lat: 120}, RecordedAt: s.Add(time.Hour)},
		}, nil
	}}
	svc, clock := newLocationService(nil, history, nil)
	defer svc.Close()

	loaded, err := svc.WarmStart(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != 1 {
		t.Errorf("loaded = %d, want 1", loaded)
	}
	if want := clock.now().Add(-24 * time.Hour); !since.Equal(want) {
		t.Errorf("since = %v, want %v", since, want)
	}
}
