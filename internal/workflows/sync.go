package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/prelevements/internal/core/usecases"
)

// TaskQueue is the default task queue of the sync worker.
const TaskQueue = "prelevements-sync"

// SyncInput is the input for the sync workflow.
type SyncInput struct {
	Reason string
}

// SyncResult summarises one synchronisation run.
type SyncResult struct {
	Points     int
	Preleveurs int
	Skipped    int
	Deleted    int
}

// SyncWorkflow imports points and preleveurs from the backend in parallel,
// then asks the API instances to invalidate their caches. The invalidation
// only happens when both imports succeeded.
func SyncWorkflow(ctx workflow.Context, input SyncInput) (SyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting sync workflow", "reason", input.Reason)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	preleveursF := workflow.ExecuteActivity(ctx, "ImportPreleveurs")
	pointsF := workflow.ExecuteActivity(ctx, "ImportPoints")

	var result SyncResult
	var preleveurs, points usecases.ImportResult
	if err := preleveursF.Get(ctx, &preleveurs); err != nil {
		return result, err
	}
	if err := pointsF.Get(ctx, &points); err != nil {
		return result, err
	}
	result = SyncResult{
		Points:     points.Stored,
		Preleveurs: preleveurs.Stored,
		Skipped:    points.Skipped + preleveurs.Skipped,
		Deleted:    points.Deleted + preleveurs.Deleted,
	}

	reason := input.Reason
	if reason == "" {
		reason = "sync"
	}
	if err := workflow.ExecuteActivity(ctx, "InvalidateCaches", reason).Get(ctx, nil); err != nil {
		logger.Warn("cache invalidation failed", "error", err)
		return result, err
	}

	logger.Info("Sync finished", "points", result.Points, "preleveurs", result.Preleveurs, "skipped", result.Skipped, "deleted", result.Deleted)
	return result, nil
}
