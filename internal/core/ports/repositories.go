package ports

import (
	"context"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

// PointRepository persists points de prélèvement.
type PointRepository interface {
	UpsertBatch(ctx context.Context, points []domain.PointPrelevement) error
	GetByID(ctx context.Context, id string) (*domain.PointPrelevement, error)
	List(ctx context.Context) ([]domain.PointPrelevement, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.PointPrelevement, error)
	ListByPreleveur(ctx context.Context, preleveurID string) ([]domain.PointPrelevement, error)
	// DeleteExcept removes every point whose id is not in keep.
	DeleteExcept(ctx context.Context, keep []string) (int64, error)
}

// PreleveurRepository persists preleveurs.
type PreleveurRepository interface {
	UpsertBatch(ctx context.Context, preleveurs []domain.Preleveur) error
	GetByID(ctx context.Context, id string) (*domain.Preleveur, error)
	List(ctx context.Context) ([]domain.Preleveur, error)
	DeleteExcept(ctx context.Context, keep []string) (int64, error)
}
