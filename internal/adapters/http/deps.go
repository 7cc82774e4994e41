package http

import (
	"context"

	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/core/selection"
	"github.com/samirrijal/prelevements/internal/core/usecases"
)

// Pinger is a backing service the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnState reports whether a long-lived connection is up.
type ConnState interface {
	IsConnected() bool
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Points     *usecases.PointService
	Preleveurs *usecases.PreleveurService
	Stats      *usecases.StatsService
	Communes   ports.CommuneGeocoder
	Sessions   *selection.Registry
	DB         Pinger
	Cache      Pinger
	NATS       ConnState

	// OpenAPIPath locates the API description served under /docs.
	OpenAPIPath string
}
