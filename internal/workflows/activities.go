package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/core/usecases"
)

// Importer copies backend records into the local store.
type Importer interface {
	ImportPoints(ctx context.Context) (usecases.ImportResult, error)
	ImportPreleveurs(ctx context.Context) (usecases.ImportResult, error)
}

// SyncActivities holds the activity implementations for the sync workflow.
type SyncActivities struct {
	Importer Importer
	Events   ports.EventPublisher
}

// ImportPoints refreshes the local points.
func (a *SyncActivities) ImportPoints(ctx context.Context) (usecases.ImportResult, error) {
	res, err := a.Importer.ImportPoints(ctx)
	if err != nil {
		return res, err
	}
	activity.GetLogger(ctx).Info("points imported", "stored", res.Stored, "skipped", res.Skipped)
	return res, nil
}

// ImportPreleveurs refreshes the local preleveurs.
func (a *SyncActivities) ImportPreleveurs(ctx context.Context) (usecases.ImportResult, error) {
	res, err := a.Importer.ImportPreleveurs(ctx)
	if err != nil {
		return res, err
	}
	activity.GetLogger(ctx).Info("preleveurs imported", "stored", res.Stored, "skipped", res.Skipped)
	return res, nil
}

// InvalidateCaches tells the API instances to drop cached points and reload
// their sessions.
func (a *SyncActivities) InvalidateCaches(ctx context.Context, reason string) error {
	if a.Events == nil {
		return nil
	}
	if err := a.Events.PublishPointsInvalidated(ctx, reason); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}
