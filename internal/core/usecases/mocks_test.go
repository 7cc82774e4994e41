package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

// --- Mock PointRepository ---

type mockPointRepo struct {
	listFn            func(ctx context.Context) ([]domain.PointPrelevement, error)
	getByIDFn         func(ctx context.Context, id string) (*domain.PointPrelevement, error)
	findNearbyFn      func(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PointPrelevement, error)
	listByPreleveurFn func(ctx context.Context, id string) ([]domain.PointPrelevement, error)
	deleteExceptFn    func(ctx context.Context, keep []string) (int64, error)
	upserted          []domain.PointPrelevement
}

func (m *mockPointRepo) UpsertBatch(ctx context.Context, points []domain.PointPrelevement) error {
	m.upserted = append(m.upserted, points...)
	return nil
}

func (m *mockPointRepo) GetByID(ctx context.Context, id string) (*domain.PointPrelevement, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPointRepo) List(ctx context.Context) ([]domain.PointPrelevement, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPointRepo) FindNearby(ctx context.Context, lat, lon, radius float64, limit int) ([]domain.PointPrelevement, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, lat, lon, radius, limit)
	}
	return nil, nil
}

func (m *mockPointRepo) ListByPreleveur(ctx context.Context, id string) ([]domain.PointPrelevement, error) {
	if m.listByPreleveurFn != nil {
		return m.listByPreleveurFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPointRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	if m.deleteExceptFn != nil {
		return m.deleteExceptFn(ctx, keep)
	}
	return 0, nil
}

// --- Mock PreleveurRepository ---

type mockPreleveurRepo struct {
	listFn         func(ctx context.Context) ([]domain.Preleveur, error)
	getByIDFn      func(ctx context.Context, id string) (*domain.Preleveur, error)
	deleteExceptFn func(ctx context.Context, keep []string) (int64, error)
}

func (m *mockPreleveurRepo) UpsertBatch(ctx context.Context, preleveurs []domain.Preleveur) error {
	return nil
}

func (m *mockPreleveurRepo) GetByID(ctx context.Context, id string) (*domain.Preleveur, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPreleveurRepo) List(ctx context.Context) ([]domain.Preleveur, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPreleveurRepo) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	if m.deleteExceptFn != nil {
		return m.deleteExceptFn(ctx, keep)
	}
	return 0, nil
}

// --- In-memory CacheService ---

var errMiss = errors.New("miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func fixturePoints() []domain.PointPrelevement {
	return []domain.PointPrelevement{
		{ID: "10", Nom: "Rivière des Galets", TypeMilieu: domain.MilieuSurface,
			Usages: []string{domain.UsageAgriculture}, Location: &domain.GeoPoint{Lat: -20.93, Lon: 55.30}},
		{ID: "11", Nom: "Forage Ermitage", TypeMilieu: domain.MilieuSouterrain,
			Usages: []string{domain.UsageEauPotable}, Location: &domain.GeoPoint{Lat: -21.08, Lon: 55.22}},
		{ID: "12", AutresNoms: "Captage Bras Cabot", TypeMilieu: domain.MilieuSurface,
			Usages: []string{domain.UsageEauPotable, domain.UsageIndustrie}, Location: &domain.GeoPoint{Lat: -20.931, Lon: 55.301}},
		{ID: "13", TypeMilieu: domain.MilieuSouterrain},
	}
}
