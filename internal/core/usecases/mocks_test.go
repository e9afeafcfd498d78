package usecases_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// --- Mock CustomerRepository ---

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

// staticCustomers serves GetByIDs from a fixed slice.
func staticCustomers(customers ...domain.Customer) *mockCustomerRepo {
	return &mockCustomerRepo{
		getByIDsFn: func(ctx context.Context, ids []int64) ([]domain.Customer, error) {
			want := make(map[int64]bool, len(ids))
			for _, id := range ids {
				want[id] = true
			}
			var out []domain.Customer
			for _, c := range customers {
				if want[c.ID] {
					out = append(out, c)
				}
			}
			return out, nil
		},
		listCustomersFn: func(ctx context.Context) ([]domain.Customer, error) {
			return customers, nil
		},
	}
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock AgentDirectory ---

type mockAgents struct {
	namesFn func(ctx context.Context, ids []int64) (map[int64]string, error)
}

func (m *mockAgents) Names(ctx context.Context, ids []int64) (map[int64]string, error) {
	if m.namesFn != nil {
		return m.namesFn(ctx, ids)
	}
	return map[int64]string{}, nil
}

// --- Mock LocationHistoryRepository ---

type mockHistory struct {
	mu       sync.Mutex
	appended []domain.AgentPosition
	latestFn func(ctx context.Context, since time.Time) ([]domain.AgentPosition, error)
}

func (m *mockHistory) Append(ctx context.Context, pos domain.AgentPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended = append(m.appended, pos)
	return nil
}

func (m *mockHistory) LatestPerAgent(ctx context.Context, since time.Time) ([]domain.AgentPosition, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, since)
	}
	return nil, nil
}

func (m *mockHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.AgentPosition
}

func (m *mockPublisher) PublishAgentPosition(ctx context.Context, pos domain.AgentPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, pos)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// --- helpers ---

// kmPerDegree is the length of one degree of longitude on the equator for R = 6371 km.
const kmPerDegree = 111.19492664455873

// east returns a point on the equator km kilometres east (negative: west) of 0,0.
func east(km float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: 0, Lon: km / kmPerDegree}
}

func customerAt(id int64, name string, p domain.GeoPoint) domain.Customer {
	lat, lng := p.Lat, p.Lon
	return domain.Customer{ID: id, Name: name, Company: name + " Ltd", Lat: &lat, Lng: &lng}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
