package usecases

import (
	"context"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/selection"
)

// Stats summarises a point collection for the statistics dashboard.
type Stats struct {
	Total              int            `json:"total"`
	Matched            int            `json:"matched"`
	ByUsage            map[string]int `json:"by_usage"`
	ByTypeMilieu       map[string]int `json:"by_type_milieu"`
	WithoutCoordinates int            `json:"without_coordinates"`
	Extent             *domain.Bounds `json:"extent"`
}

// StatsService computes statistics over the point collection.
type StatsService struct {
	points *PointService
}

// NewStatsService creates a new StatsService.
func NewStatsService(points *PointService) *StatsService {
	return &StatsService{points: points}
}

// Compute returns counts over the points matching f. Points without usages
// count as "Non renseigné".
func (s *StatsService) Compute(ctx context.Context, f selection.Filters) (*Stats, error) {
	all, err := s.points.All(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(all, f), nil
}

// Summarize computes Stats without touching any store.
func Summarize(all []domain.PointPrelevement, f selection.Filters) *Stats {
	matched := selection.ApplyFilters(all, f)
	st := &Stats{
		Total:        len(all),
		Matched:      len(matched),
		ByUsage:      make(map[string]int),
		ByTypeMilieu: make(map[string]int),
	}
	for _, p := range matched {
		if len(p.Usages) == 0 {
			st.ByUsage[domain.UsageNonRenseigne]++
		}
		for _, u := range p.Usages {
			st.ByUsage[u]++
		}
		milieu := p.TypeMilieu
		if milieu == "" {
			milieu = domain.UsageNonRenseigne
		}
		st.ByTypeMilieu[milieu]++

		if p.Location == nil {
			st.WithoutCoordinates++
			continue
		}
		loc := *p.Location
		if st.Extent == nil {
			st.Extent = &domain.Bounds{MinLat: loc.Lat, MinLon: loc.Lon, MaxLat: loc.Lat, MaxLon: loc.Lon}
			continue
		}
		st.Extent.MinLat = min(st.Extent.MinLat, loc.Lat)
		st.Extent.MinLon = min(st.Extent.MinLon, loc.Lon)
		st.Extent.MaxLat = max(st.Extent.MaxLat, loc.Lat)
		st.Extent.MaxLon = max(st.Extent.MaxLon, loc.Lon)
	}
	return st
}
