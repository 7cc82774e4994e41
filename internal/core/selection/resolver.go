package selection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

// CommuneResolver looks up the commune of a selected point in the
// background and attaches it to the session if the point is still selected.
type CommuneResolver struct {
	geocoder ports.CommuneGeocoder
	timeout  time.Duration
	inflight sync.WaitGroup
}

// NewCommuneResolver creates a resolver; timeout bounds each lookup.
func NewCommuneResolver(geocoder ports.CommuneGeocoder, timeout time.Duration) *CommuneResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommuneResolver{geocoder: geocoder, timeout: timeout}
}

// Resolve starts the lookup for p on behalf of s. Points that already carry
// their commune are applied synchronously.
func (r *CommuneResolver) Resolve(s *Store, p domain.PointPrelevement) {
	if p.Commune != nil {
		s.SetCommune(p.ID, p.Commune)
		return
	}
	if p.Location == nil || r.geocoder == nil {
		return
	}

	loc := *p.Location
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		commune, err := r.geocoder.Reverse(ctx, loc.Lat, loc.Lon)
		if err != nil {
			slog.Warn("resolve commune", "session_id", s.ID(), "point_id", p.ID, "error", err)
			return
		}
		if !s.SetCommune(p.ID, commune) {
			metrics.LateResultsDropped.WithLabelValues("commune").Inc()
			slog.Debug("dropped late commune", "session_id", s.ID(), "point_id", p.ID)
		}
	}()
}

// Wait blocks until every lookup started so far has finished.
func (r *CommuneResolver) Wait() {
	r.inflight.Wait()
}
