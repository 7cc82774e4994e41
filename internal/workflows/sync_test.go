package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/usecases"
)

type fakeImporter struct {
	points, preleveurs usecases.ImportResult
	err                error
}

func (f *fakeImporter) ImportPoints(ctx context.Context) (usecases.ImportResult, error) {
	return f.points, f.err
}

func (f *fakeImporter) ImportPreleveurs(ctx context.Context) (usecases.ImportResult, error) {
	return f.preleveurs, nil
}

type fakeEvents struct {
	mu      sync.Mutex
	reasons []string
}

func (f *fakeEvents) PublishSelectionChanged(ctx context.Context, event *domain.SelectionChanged) error {
	return nil
}

func (f *fakeEvents) PublishPointsInvalidated(ctx context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return nil
}

func TestSyncWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	events := &fakeEvents{}
	env.RegisterWorkflow(SyncWorkflow)
	env.RegisterActivity(&SyncActivities{
		Importer: &fakeImporter{
			points:     usecases.ImportResult{Stored: 120, Skipped: 3, Deleted: 2},
			preleveurs: usecases.ImportResult{Stored: 40, Skipped: 1},
		},
		Events: events,
	})

	env.ExecuteWorkflow(SyncWorkflow, SyncInput{Reason: "schedule"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SyncResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, SyncResult{Points: 120, Preleveurs: 40, Skipped: 4, Deleted: 2}, result)
	require.Equal(t, []string{"schedule"}, events.reasons)
}

func TestSyncWorkflow_ImportFailureSkipsInvalidation(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	events := &fakeEvents{}
	env.RegisterWorkflow(SyncWorkflow)
	env.RegisterActivity(&SyncActivities{
		Importer: &fakeImporter{err: errors.New("backend unavailable")},
		Events:   events,
	})

	env.ExecuteWorkflow(SyncWorkflow, SyncInput{})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Empty(t, events.reasons)
}
