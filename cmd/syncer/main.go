package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/prelevements/internal/adapters/backend"
	natsadapter "github.com/samirrijal/prelevements/internal/adapters/nats"
	"github.com/samirrijal/prelevements/internal/adapters/postgres"
	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/usecases"
	"github.com/samirrijal/prelevements/internal/pkg/config"
	"github.com/samirrijal/prelevements/internal/pkg/logging"
	"github.com/samirrijal/prelevements/internal/workflows"
)

// The syncer hosts the Temporal worker that copies the declarations backend
// into Postgres, and schedules a sync every temporal.sync_interval.
//
//	syncer        run the worker and the schedule
//	syncer once   trigger a single sync and wait for its result
func main() {
	cfg, err := config.Load("prelevements-syncer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 && os.Args[1] == "once" {
		res, err := runSync(ctx, c, cfg.Temporal.TaskQueue, "manual", true)
		if err != nil {
			log.Fatalf("sync: %v", err)
		}
		slog.Info("sync done", "points", res.Points, "preleveurs", res.Preleveurs, "skipped", res.Skipped, "deleted", res.Deleted)
		return
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	importer := usecases.NewImportService(
		backend.New(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout),
		postgres.NewPointRepo(db),
		postgres.NewPreleveurRepo(db),
	)

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.SyncWorkflow)
	w.RegisterActivity(&workflows.SyncActivities{Importer: importer, Events: pub})
	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer w.Stop()
	slog.Info("sync worker started", "task_queue", cfg.Temporal.TaskQueue)

	// Audit trail of session selections, via the durable consumer.
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("selection audit disabled", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeSelectionChanges(ctx, func(ctx context.Context, e *domain.SelectionChanged) error {
			slog.Info("selection changed", "session_id", e.SessionID, "point_id", e.PointID, "version", e.Version)
			return nil
		})
		if err != nil {
			slog.Warn("subscribe selection changes", "error", err)
		}
	}

	schedule(ctx, c, cfg.Temporal.TaskQueue, cfg.Temporal.SyncInterval)
	slog.Info("syncer stopped")
}

// schedule triggers a sync at startup and then every interval until ctx is
// cancelled. A run still in progress makes the trigger a no-op.
func schedule(ctx context.Context, c client.Client, taskQueue string, interval time.Duration) {
	trigger := func(reason string) {
		if _, err := runSync(ctx, c, taskQueue, reason, false); err != nil {
			slog.Warn("sync not started", "reason", reason, "error", err)
		}
	}

	trigger("startup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			trigger("schedule")
		case <-ctx.Done():
			return
		}
	}
}

func runSync(ctx context.Context, c client.Client, taskQueue, reason string, wait bool) (workflows.SyncResult, error) {
	var res workflows.SyncResult
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       "prelevements-sync",
		TaskQueue:                                taskQueue,
		WorkflowExecutionTimeout:                 15 * time.Minute,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.SyncWorkflow, workflows.SyncInput{Reason: reason})
	if err != nil {
		return res, err
	}
	slog.Info("sync started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "reason", reason)
	if !wait {
		return res, nil
	}
	err = run.Get(ctx, &res)
	return res, err
}
