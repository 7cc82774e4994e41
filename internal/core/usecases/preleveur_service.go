package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/core/selection"
)

// PreleveurService handles preleveur-related business logic.
type PreleveurService struct {
	preleveurs ports.PreleveurRepository
	points     ports.PointRepository
}

// NewPreleveurService creates a new PreleveurService.
func NewPreleveurService(preleveurs ports.PreleveurRepository, points ports.PointRepository) *PreleveurService {
	return &PreleveurService{preleveurs: preleveurs, points: points}
}

// List returns every preleveur with its display name.
func (s *PreleveurService) List(ctx context.Context) ([]domain.PreleveurView, error) {
	preleveurs, err := s.preleveurs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list preleveurs: %w", err)
	}
	views := make([]domain.PreleveurView, len(preleveurs))
	for i, p := range preleveurs {
		views[i] = domain.ViewPreleveur(p)
	}
	return views, nil
}

// GetByID returns a single preleveur with its display name.
func (s *PreleveurService) GetByID(ctx context.Context, id string) (*domain.PreleveurView, error) {
	p, err := s.preleveurs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := domain.ViewPreleveur(*p)
	return &v, nil
}

// Points returns the points of a preleveur, sorted by display name.
func (s *PreleveurService) Points(ctx context.Context, id string) ([]domain.PointPrelevement, error) {
	if _, err := s.preleveurs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	points, err := s.points.ListByPreleveur(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list points of preleveur %s: %w", id, err)
	}
	return selection.SortByDisplayName(points), nil
}
