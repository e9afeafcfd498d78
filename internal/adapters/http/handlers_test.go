package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/fieldgeo/internal/adapters/http"
	"github.com/samirrijal/fieldgeo/internal/adapters/memory"
	"github.com/samirrijal/fieldgeo/internal/core/domain"
	"github.com/samirrijal/fieldgeo/internal/core/usecases"
	"github.com/samirrijal/fieldgeo/internal/pkg/geospatial"
)

// ---- Mocks ----

type mockCustomerRepo struct {
	listCustomersFn    func(ctx context.Context) ([]domain.Customer, error)
	getByIDsFn         func(ctx context.Context, ids []int64) ([]domain.Customer, error)
	listInteractionsFn func(ctx context.Context, customerID *int64) ([]domain.Interaction, error)
}

func (m *mockCustomerRepo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	if m.listCustomersFn != nil {
		return m.listCustomersFn(ctx)
	}
	return nil, nil
}
func (m *mockCustomerRepo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Customer, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}
func (m *mockCustomerRepo) ListInteractions(ctx context.Context, customerID *int64) ([]domain.Interaction, error) {
	if m.listInteractionsFn != nil {
		return m.listInteractionsFn(ctx, customerID)
	}
	return nil, nil
}

type mockAgents struct {
	names map[int64]string
}

func (m *mockAgents) Names(ctx context.Context, ids []int64) (map[int64]string, error) {
	return m.names, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

func ptr(v float64) *float64 { return &v }

func bilbaoCustomers() []domain.Customer {
	return []domain.Customer{
		{ID: 1, Name: "Ane", Company: "Txakoli SL", Lat: ptr(43.2630), Lng: ptr(-2.9350), Stage: "Closed"},
		{ID: 2, Name: "Mikel", Company: "Pintxo Co", Lat: ptr(43.3569), Lng: ptr(-3.0117), Stage: "New"},
		{ID: 3, Name: "Leire", Company: "No Geo SA", Stage: "Contacted"},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	customers := bilbaoCustomers()
	repo := &mockCustomerRepo{
		listCustomersFn: func(ctx context.Context) ([]domain.Customer, error) { return customers, nil },
		getByIDsFn: func(ctx context.Context, ids []int64) ([]domain.Customer, error) {
			var out []domain.Customer
			for _, c := range customers {
				for _, id := range ids {
					if c.ID == id {
						out = append(out, c)
					}
				}
			}
			return out, nil
		},
	}
	estimator := geospatial.NewTravelEstimator(50)
	d := &handler.Dependencies{
		Locations: usecases.NewLocationService(memory.NewLocationStore(),
			&mockAgents{names: map[int64]string{7: "Ane", 8: "Jon"}}, nil, nil, usecases.LocationConfig{}),
		Distance:  usecases.NewDistanceService(estimator),
		Routes:    usecases.NewRoutePlanner(repo, nil, estimator, usecases.RoutePlannerConfig{}),
		Analytics: usecases.NewAnalyticsService(repo, nil, usecases.AnalyticsConfig{}),
		DB:        &mockPinger{},
		RateLimit: 1000,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func doJSON(t *testing.T, app *fiber.App, method, path string, userID string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decodeError(t *testing.T, data []byte) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(data, &apiErr); err != nil {
		t.Fatalf("decode error body %q: %v", data, err)
	}
	return apiErr
}

// ---- Identity ----

func TestIdentity_MissingHeader(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "GET", "/api/locations", "", nil)
	if status != 401 {
		t.Fatalf("expected 401, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "unauthorized" {
		t.Errorf("expected unauthorized, got %s", e.Code)
	}
}

func TestIdentity_InvalidHeader(t *testing.T) {
	app := setupApp(makeDeps())

	for _, v := range []string{"abc", "-4", "0"} {
		status, _ := doJSON(t, app, "GET", "/api/locations", v, nil)
		if status != 401 {
			t.Errorf("header %q: expected 401, got %d", v, status)
		}
	}
}

func TestIdentity_CustomHeader(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.IdentityHeader = "X-Rep-ID" }))

	req := httptest.NewRequest("GET", "/api/locations", nil)
	req.Header.Set("X-Rep-ID", "7")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ---- Locations ----

func TestPostLocation_Created(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)

	status, body := doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 43.263, "longitude": -2.935})
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), "Location updated successfully") {
		t.Errorf("unexpected body %s", body)
	}

	pos, err := deps.Locations.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("position not stored: %v", err)
	}
	if pos.Point.Lat != 43.263 {
		t.Errorf("stored lat = %v", pos.Point.Lat)
	}
}

func TestPostLocation_InvalidCoordinate(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 91, "longitude": 0})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "invalid_coordinate" {
		t.Errorf("expected invalid_coordinate, got %s", e.Code)
	}
}

func TestPostLocation_MissingFields(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 43})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "bad_request" {
		t.Errorf("expected bad_request, got %s", e.Code)
	}
}

func TestListLocations(t *testing.T) {
	deps := makeDeps()
	app := setupApp(deps)

	doJSON(t, app, "POST", "/api/locations", "8", map[string]float64{"latitude": 43.3, "longitude": -2.9})
	doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 43.2, "longitude": -2.8})

	status, body := doJSON(t, app, "GET", "/api/locations", "7", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var fleet []struct {
		UserID    int64   `json:"user_id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Timestamp string  `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &fleet); err != nil {
		t.Fatal(err)
	}
	if len(fleet) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(fleet))
	}
	if fleet[0].UserID != 7 || fleet[0].Name != "Ane" || fleet[1].Name != "Jon" {
		t.Errorf("unexpected fleet %+v", fleet)
	}
	if _, err := time.Parse(handler.TimestampLayout, fleet[0].Timestamp); err != nil {
		t.Errorf("timestamp %q not in YYYY-MM-DD HH:MM:SS: %v", fleet[0].Timestamp, err)
	}
}

func TestListLocations_NoStore(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/api/locations", nil)
	req.Header.Set("X-User-ID", "7")
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
	if resp.Header.Get("ETag") != "" {
		t.Error("live fleet must not carry an ETag")
	}
}

func TestListLocations_BadMaxAge(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doJSON(t, app, "GET", "/api/locations?max_age=-5", "7", nil)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestListLocations_Near(t *testing.T) {
	app := setupApp(makeDeps())
	doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 43.2630, "longitude": -2.9350})
	doJSON(t, app, "POST", "/api/locations", "8", map[string]float64{"latitude": 43.3569, "longitude": -3.0117})

	status, body := doJSON(t, app, "GET", "/api/locations?near_lat=43.263&near_lng=-2.935&radius_m=1500", "7", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if !strings.Contains(string(body), `"user_id":7`) || strings.Contains(string(body), `"user_id":8`) {
		t.Errorf("expected only agent 7, got %s", body)
	}

	status, _ = doJSON(t, app, "GET", "/api/locations?near_lat=43.263", "7", nil)
	if status != 400 {
		t.Errorf("expected 400 for partial near filter, got %d", status)
	}
}

func TestGetLocation_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "GET", "/api/locations/99", "7", nil)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "not_found" {
		t.Errorf("expected not_found, got %s", e.Code)
	}
}

func TestGetLocation_StaleUsesServiceClock(t *testing.T) {
	future := time.Now().Add(time.Hour)
	deps := makeDeps()
	deps.Locations.WithClock(func() time.Time { return future.Add(-time.Hour) })
	app := setupApp(deps)
	doJSON(t, app, "POST", "/api/locations", "8", map[string]float64{"latitude": 43.3, "longitude": -2.9})

	deps.Locations.WithClock(func() time.Time { return future })
	status, body := doJSON(t, app, "GET", "/api/locations/8", "7", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"stale":true`) {
		t.Errorf("expected stale under the service clock, got %s", body)
	}
}

func TestGetLocation_Found(t *testing.T) {
	app := setupApp(makeDeps())
	doJSON(t, app, "POST", "/api/locations", "8", map[string]float64{"latitude": 43.3, "longitude": -2.9})

	status, body := doJSON(t, app, "GET", "/api/locations/8", "7", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"name":"Jon"`) || !strings.Contains(string(body), `"stale":false`) {
		t.Errorf("unexpected body %s", body)
	}
}

// ---- Distance ----

func TestDistance_Success(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/distance", "7", map[string]float64{
		"lat1": 51.5074, "lng1": -0.1278, "lat2": 48.8566, "lng2": 2.3522,
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res domain.DistanceResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.DistanceKm < 343 || res.DistanceKm > 344.5 {
		t.Errorf("distance_km = %v", res.DistanceKm)
	}
	if res.EstimatedTimeText == "" {
		t.Error("expected estimated_time_text")
	}
}

func TestDistance_MissingField(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doJSON(t, app, "POST", "/api/distance", "7", map[string]float64{"lat1": 1, "lng1": 1, "lat2": 2})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestDistance_InvalidCoordinate(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/distance", "7", map[string]float64{"lat1": 0, "lng1": 181, "lat2": 0, "lng2": 0})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "invalid_coordinate" {
		t.Errorf("expected invalid_coordinate, got %s", e.Code)
	}
}

// ---- Route planning ----

type routeBody struct {
	Route []struct {
		CustomerID    int64   `json:"customer_id"`
		Distance      float64 `json:"distance_from_previous"`
		SequenceIndex int     `json:"sequence_index"`
	} `json:"route"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	SkippedCount    int     `json:"skipped_count"`
	SkippedIDs      []int64 `json:"skipped_ids"`
	Warning         string  `json:"warning"`
	Reason          string  `json:"reason"`
}

func TestRoutePlanning_ExplicitOrigin(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{2, 1, 3, 404},
		"origin":       map[string]float64{"latitude": 43.2627, "longitude": -2.9253},
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res routeBody
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Route) != 2 || res.Route[0].CustomerID != 1 || res.Route[1].CustomerID != 2 {
		t.Fatalf("unexpected route %+v", res.Route)
	}
	if res.SkippedCount != 2 || res.Warning == "" {
		t.Errorf("expected 2 skipped with a warning, got %+v", res)
	}
	if res.Route[1].SequenceIndex != 2 {
		t.Errorf("sequence_index = %d", res.Route[1].SequenceIndex)
	}
}

func TestRoutePlanning_CallerPositionAsOrigin(t *testing.T) {
	app := setupApp(makeDeps())
	doJSON(t, app, "POST", "/api/locations", "7", map[string]float64{"latitude": 43.3569, "longitude": -3.0117})

	status, body := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{1, 2},
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res routeBody
	json.Unmarshal(body, &res)
	if len(res.Route) != 2 || res.Route[0].CustomerID != 2 {
		t.Fatalf("expected customer 2 first from the caller's position, got %+v", res.Route)
	}
	if res.Route[0].Distance != 0 {
		t.Errorf("first leg should be 0 km, got %v", res.Route[0].Distance)
	}
}

func TestRoutePlanning_OriginUnknown(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{1},
	})
	if status != 422 {
		t.Fatalf("expected 422, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "origin_unknown" {
		t.Errorf("expected origin_unknown, got %s", e.Code)
	}
}

func TestRoutePlanning_EmptyIDs(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{},
		"origin":       map[string]float64{"latitude": 43, "longitude": -3},
	})
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestRoutePlanning_AllUnresolved(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{3, 500},
		"origin":       map[string]float64{"latitude": 43, "longitude": -3},
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res routeBody
	json.Unmarshal(body, &res)
	if len(res.Route) != 0 || res.SkippedCount != 2 || res.Reason == "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRoutePlanning_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	deps := makeDeps(func(d *handler.Dependencies) {
		slow := &mockCustomerRepo{getByIDsFn: func(ctx context.Context, ids []int64) ([]domain.Customer, error) {
			<-release
			return nil, nil
		}}
		d.Routes = usecases.NewRoutePlanner(slow, nil, geospatial.NewTravelEstimator(50),
			usecases.RoutePlannerConfig{LookupTimeout: 20 * time.Millisecond})
	})
	app := setupApp(deps)

	status, body := doJSON(t, app, "POST", "/api/route-planning", "7", map[string]interface{}{
		"customer_ids": []int64{1},
		"origin":       map[string]float64{"latitude": 43, "longitude": -3},
	})
	if status != 504 {
		t.Fatalf("expected 504, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "timeout" {
		t.Errorf("expected timeout, got %s", e.Code)
	}
}

// ---- Analytics ----

func TestCustomerAnalytics(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "GET", "/api/customer-analytics", "7", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var s domain.AnalyticsSummary
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatal(err)
	}
	if s.ConversionRate != 33.3 || s.TotalCustomers != 3 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestCustomerAnalytics_CacheControl(t *testing.T) {
	get := func(app *fiber.App) string {
		req := httptest.NewRequest("GET", "/api/customer-analytics", nil)
		req.Header.Set("X-User-ID", "7")
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		return resp.Header.Get("Cache-Control")
	}

	if cc := get(setupApp(makeDeps())); cc != "no-cache" {
		t.Errorf("expected no-cache without a server cache, got %q", cc)
	}

	cached := setupApp(makeDeps(func(d *handler.Dependencies) { d.AnalyticsCacheTTL = 90 * time.Second }))
	if cc := get(cached); cc != "private, max-age=90" {
		t.Errorf("expected max-age to follow the cache ttl, got %q", cc)
	}
}

func TestCustomerAnalytics_StoreError(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Analytics = usecases.NewAnalyticsService(&mockCustomerRepo{
			listCustomersFn: func(ctx context.Context) ([]domain.Customer, error) {
				return nil, errors.New("password authentication failed for user crm")
			},
		}, nil, usecases.AnalyticsConfig{})
	})
	app := setupApp(deps)

	status, body := doJSON(t, app, "GET", "/api/customer-analytics", "7", nil)
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if strings.Contains(string(body), "password") {
		t.Errorf("internal error details leaked: %s", body)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "GET", "/api/health", "", nil)
	if status != 200 {
		t.Fatalf("expected 200 without identity, got %d", status)
	}
	if !strings.Contains(string(body), "healthy") {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady_DatabaseDown(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.DB = &mockPinger{err: errors.New("connection refused")}
	}))

	status, _ := doJSON(t, app, "GET", "/api/ready", "", nil)
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
}

func TestReady_OK(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Cache = &mockPinger{} }))

	status, body := doJSON(t, app, "GET", "/api/ready", "", nil)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
}

func TestReady_CacheDownStaysReady(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Cache = &mockPinger{err: errors.New("valkey timeout")}
	}))

	status, body := doJSON(t, app, "GET", "/api/ready", "", nil)
	if status != 200 {
		t.Fatalf("expected 200 with only the cache down, got %d", status)
	}
	if !strings.Contains(string(body), `"cache":"error: valkey timeout"`) {
		t.Errorf("expected cache failure in checks, got %s", body)
	}
}

// ---- GraphQL ----

func TestGraphQL_Distance(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/graphql", "7", map[string]string{
		"query": `{ distance(lat1: 43.263, lng1: -2.935, lat2: 43.263, lng2: -2.935) { distance_km estimated_time_text } }`,
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Data struct {
			Distance struct {
				DistanceKm float64 `json:"distance_km"`
				Text       string  `json:"estimated_time_text"`
			} `json:"distance"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("graphql errors: %v", res.Errors)
	}
	if res.Data.Distance.DistanceKm != 0 || res.Data.Distance.Text != "0m" {
		t.Errorf("unexpected distance %+v", res.Data.Distance)
	}
}

func TestGraphQL_RoutePlanAndAnalytics(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := doJSON(t, app, "POST", "/graphql", "7", map[string]string{
		"query": `{
			routePlan(customer_ids: [1, 2, 3], latitude: 43.26, longitude: -2.93) { skipped_count route { customer_id } }
			analytics { conversion_rate stage_counts { stage count } }
		}`,
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Data struct {
			RoutePlan struct {
				SkippedCount int `json:"skipped_count"`
				Route        []struct {
					CustomerID int64 `json:"customer_id"`
				} `json:"route"`
			} `json:"routePlan"`
			Analytics struct {
				ConversionRate float64 `json:"conversion_rate"`
				StageCounts    []struct {
					Stage string `json:"stage"`
					Count int    `json:"count"`
				} `json:"stage_counts"`
			} `json:"analytics"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("graphql errors: %v", res.Errors)
	}
	if res.Data.RoutePlan.SkippedCount != 1 || len(res.Data.RoutePlan.Route) != 2 {
		t.Errorf("unexpected route %+v", res.Data.RoutePlan)
	}
	if len(res.Data.Analytics.StageCounts) != 4 {
		t.Errorf("expected 4 stages, got %+v", res.Data.Analytics.StageCounts)
	}
}

func TestGraphQL_RequiresIdentity(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := doJSON(t, app, "POST", "/graphql", "", map[string]string{"query": `{ fleet { user_id } }`})
	if status != 401 {
		t.Fatalf("expected 401, got %d", status)
	}
}
