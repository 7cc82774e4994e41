package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/pkg/geospatial"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

// CommuneService resolves communes from coordinates with a read-through
// cache in front of the geocoder. It satisfies ports.CommuneGeocoder.
type CommuneService struct {
	geocoder ports.CommuneGeocoder
	cache    ports.CacheService
}

// NewCommuneService creates a new CommuneService. cache may be nil.
func NewCommuneService(geocoder ports.CommuneGeocoder, cache ports.CacheService) *CommuneService {
	return &CommuneService{geocoder: geocoder, cache: cache}
}

// Reverse returns the commune containing lat/lon.
func (s *CommuneService) Reverse(ctx context.Context, lat, lon float64) (*domain.Commune, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return nil, fmt.Errorf("invalid coordinates %v,%v", lat, lon)
	}

	// ~11 m at 4 decimals; two clicks on the same marker share an entry
	cacheKey := fmt.Sprintf("communes:%.4f:%.4f", geospatial.RoundCoord(lat, 4), geospatial.RoundCoord(lon, 4))
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var c domain.Commune
			if err := json.Unmarshal(data, &c); err == nil {
				metrics.CacheHits.WithLabelValues("communes").Inc()
				return &c, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("communes").Inc()
	}

	c, err := s.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(c); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 86400)
		}
	}
	return c, nil
}
