package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/prelevements/internal/adapters/geocoding"
	"github.com/samirrijal/prelevements/internal/adapters/http"
	natsadapter "github.com/samirrijal/prelevements/internal/adapters/nats"
	"github.com/samirrijal/prelevements/internal/adapters/postgres"
	"github.com/samirrijal/prelevements/internal/adapters/valkey"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/core/usecases"
	"github.com/samirrijal/prelevements/internal/pkg/config"
	"github.com/samirrijal/prelevements/internal/pkg/logging"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
	"github.com/samirrijal/prelevements/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("prelevements-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache (optional; services run uncached without it)
	var cache ports.CacheService
	var cachePing http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache, cachePing = vc, vc
	}

	// NATS (optional; selection events and cross-instance invalidation)
	var events ports.EventPublisher
	var natsState http.ConnState
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events, natsState = pub, pub.Conn()
	}

	// Repos
	pointRepo := postgres.NewPointRepo(db)
	preleveurRepo := postgres.NewPreleveurRepo(db)

	// Use cases
	pointSvc := usecases.NewPointService(pointRepo, cache)
	preleveurSvc := usecases.NewPreleveurService(preleveurRepo, pointRepo)
	statsSvc := usecases.NewStatsService(pointSvc)
	communeSvc := usecases.NewCommuneService(geocoding.New(cfg.Geocoding.BaseURL, cfg.Geocoding.Timeout), cache)

	// Sessions
	sessions := selection.NewRegistry(
		pointSvc,
		selection.NewCommuneResolver(communeSvc, cfg.Geocoding.Timeout),
		events,
		selection.RegistryConfig{IdleTTL: cfg.Sessions.IdleTTL, LoadTimeout: cfg.Sessions.LoadTimeout},
	)
	go sessions.Run(ctx)

	// Every instance drops its cache and reloads its sessions after a sync.
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribePointsInvalidated(ctx, func(ctx context.Context, reason string) error {
			slog.Info("points invalidated", "reason", reason)
			if err := pointSvc.Invalidate(ctx); err != nil {
				return err
			}
			sessions.Reload(ctx)
			return nil
		})
		if err != nil {
			slog.Warn("subscribe invalidations", "error", err)
		}
	}

	deps := &http.Dependencies{
		Points:     pointSvc,
		Preleveurs: preleveurSvc,
		Stats:      statsSvc,
		Communes:   communeSvc,
		Sessions:   sessions,
		DB:         db,
		Cache:      cachePing,
		NATS:       natsState,

		OpenAPIPath: cfg.Server.OpenAPIPath,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Prelevements API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	cancel()
	sessions.Wait()

	slog.Info("server stopped")
}

// reportPoolStats exports connection pool gauges every 15s.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
