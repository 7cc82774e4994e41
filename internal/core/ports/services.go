package ports

import (
	"context"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSelectionChanged(ctx context.Context, event *domain.SelectionChanged) error
	PublishPointsInvalidated(ctx context.Context, reason string) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSelectionChanges(ctx context.Context, handler func(ctx context.Context, event *domain.SelectionChanged) error) error
	SubscribePointsInvalidated(ctx context.Context, handler func(ctx context.Context, reason string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// CommuneGeocoder resolves the commune containing a coordinate.
type CommuneGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*domain.Commune, error)
}

// BackendSource reads raw records from the upstream declarations backend.
// Records are returned untyped; normalisation happens in the sync activities.
type BackendSource interface {
	FetchPoints(ctx context.Context) ([]map[string]any, error)
	FetchPreleveurs(ctx context.Context) ([]map[string]any, error)
}
