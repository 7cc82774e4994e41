package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/pkg/geospatial"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

const (
	pointsGenKey     = "points:gen"
	pointsGenTTL     = 7 * 24 * 3600
	defaultRadius    = 1000.0
	maxRadius        = 50000.0
	maxNearbyResults = 50
)

// PointService handles point-related business logic.
type PointService struct {
	points ports.PointRepository
	cache  ports.CacheService
}

// NewPointService creates a new PointService. cache may be nil.
func NewPointService(points ports.PointRepository, cache ports.CacheService) *PointService {
	return &PointService{points: points, cache: cache}
}

// All returns the full point collection. It is the source of every session.
func (s *PointService) All(ctx context.Context) ([]domain.PointPrelevement, error) {
	cacheKey := s.keyspace(ctx) + "all"
	var points []domain.PointPrelevement
	if s.cacheGet(ctx, "points_all", cacheKey, &points) {
		return points, nil
	}

	points, err := s.points.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	if points == nil {
		points = []domain.PointPrelevement{}
	}

	// 5 min; the syncer also invalidates on every run
	s.cacheSet(ctx, cacheKey, points, 300)
	return points, nil
}

// List returns the points matching f, sorted by display name.
func (s *PointService) List(ctx context.Context, f selection.Filters) ([]domain.PointPrelevement, error) {
	points, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return selection.SortByDisplayName(selection.ApplyFilters(points, f)), nil
}

// GetByID returns a single point.
func (s *PointService) GetByID(ctx context.Context, id string) (*domain.PointPrelevement, error) {
	cacheKey := s.keyspace(ctx) + "id:" + id
	var cached domain.PointPrelevement
	if s.cacheGet(ctx, "points_id", cacheKey, &cached) {
		return &cached, nil
	}

	p, err := s.points.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, p, 600)
	return p, nil
}

// FindNearby returns points within radiusMeters of the given coordinate,
// nearest first.
func (s *PointService) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PointPrelevement, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, fmt.Errorf("invalid coordinates %v,%v", lat, lon)
	}
	if radiusMeters <= 0 {
		radiusMeters = defaultRadius
	}
	if radiusMeters > maxRadius {
		radiusMeters = maxRadius
	}
	if limit <= 0 || limit > maxNearbyResults {
		limit = maxNearbyResults
	}

	cacheKey := s.keyspace(ctx) + fmt.Sprintf("nearby:%.4f:%.4f:%.0f:%d", lat, lon, radiusMeters, limit)
	var points []domain.PointPrelevement
	if s.cacheGet(ctx, "points_nearby", cacheKey, &points) {
		return points, nil
	}

	points, err := s.points.FindNearby(ctx, lat, lon, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, cacheKey, points, 300)
	return points, nil
}

// Invalidate drops every cached point read: the collection, single points
// and nearby searches. It moves all of them to a new key generation, so
// entries written before the call are never read again.
func (s *PointService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := s.cache.Set(ctx, pointsGenKey, []byte(gen), pointsGenTTL); err != nil {
		return fmt.Errorf("bump point cache generation: %w", err)
	}
	return nil
}

// keyspace returns the key prefix of the current cache generation.
func (s *PointService) keyspace(ctx context.Context) string {
	gen := "0"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, pointsGenKey); err == nil && len(data) > 0 {
			gen = string(data)
		}
	}
	return "points:" + gen + ":"
}

func (s *PointService) cacheGet(ctx context.Context, op, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err == nil && json.Unmarshal(data, dst) == nil {
		metrics.CacheHits.WithLabelValues(op).Inc()
		return true
	}
	metrics.CacheMisses.WithLabelValues(op).Inc()
	return false
}

func (s *PointService) cacheSet(ctx context.Context, key string, v any, ttlSeconds int) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, ttlSeconds)
	}
}

// Neighbours returns the points within radiusMeters of point id, excluding
// it, nearest first. Distances are computed over the cached collection.
func (s *PointService) Neighbours(ctx context.Context, id string, radiusMeters float64, limit int) ([]domain.PointPrelevement, error) {
	if radiusMeters <= 0 {
		radiusMeters = defaultRadius
	}
	if radiusMeters > maxRadius {
		radiusMeters = maxRadius
	}
	if limit <= 0 || limit > maxNearbyResults {
		limit = maxNearbyResults
	}

	points, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var origin *domain.GeoPoint
	for i := range points {
		if points[i].ID == id {
			origin = points[i].Location
			if origin == nil {
				return []domain.PointPrelevement{}, nil
			}
			break
		}
	}
	if origin == nil {
		return nil, domain.ErrNotFound
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(origin.Lat, origin.Lon, radiusMeters)
	box := domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}

	out := []domain.PointPrelevement{}
	for _, p := range points {
		if p.ID == id || p.Location == nil || !box.Contains(*p.Location) {
			continue
		}
		d := geospatial.Haversine(origin.Lat, origin.Lon, p.Location.Lat, p.Location.Lon)
		if d > radiusMeters {
			continue
		}
		p.Distance = &d
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
