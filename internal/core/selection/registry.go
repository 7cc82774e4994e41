package selection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/core/ports"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

// PointSource supplies the full point collection of a session.
type PointSource interface {
	All(ctx context.Context) ([]domain.PointPrelevement, error)
}

// RegistryConfig tunes session lifetime.
type RegistryConfig struct {
	IdleTTL     time.Duration
	LoadTimeout time.Duration
}

// Registry holds the live sessions of this API instance.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store

	source   PointSource
	resolver *CommuneResolver
	events   ports.EventPublisher
	cfg      RegistryConfig
	now      func() time.Time

	loaders sync.WaitGroup
}

// NewRegistry creates a registry. resolver and events may be nil.
func NewRegistry(source PointSource, resolver *CommuneResolver, events ports.EventPublisher, cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	return &Registry{
		stores:   make(map[string]*Store),
		source:   source,
		resolver: resolver,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create opens a new session and starts loading its points in the
// background. The returned store is in the loading state.
func (r *Registry) Create(ctx context.Context) *Store {
	s := NewStore(uuid.NewString(), WithSelectionHook(r.onSelection), WithClock(r.now))

	r.mu.Lock()
	r.stores[s.ID()] = s
	n := len(r.stores)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))

	r.load(context.WithoutCancel(ctx), s)
	return s
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Store, error) {
	r.mu.Lock()
	s, ok := r.stores[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.stores[id]
	delete(r.stores, id)
	n := len(r.stores)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Sweep closes sessions idle for longer than the configured TTL and returns
// how many were evicted. Sessions still observed through a subscription are
// kept whatever their last write.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var evicted []*Store
	for id, s := range r.stores {
		if s.idleSince(cutoff) {
			evicted = append(evicted, s)
			delete(r.stores, id)
		}
	}
	n := len(r.stores)
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
		slog.Debug("session expired", "session_id", s.ID())
	}
	metrics.ActiveSessions.Set(float64(n))
	return len(evicted)
}

// Run sweeps idle sessions until ctx is cancelled, then closes every session.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
		case <-ctx.Done():
			r.CloseAll()
			return
		}
	}
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, s := range stores {
		s.Close()
	}
	metrics.ActiveSessions.Set(0)
}

// Reload refetches the point collection of every live session, e.g. after
// the synchronisation worker announced new data.
func (r *Registry) Reload(ctx context.Context) {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.Unlock()

	for _, s := range stores {
		r.load(ctx, s)
	}
}

// Wait blocks until background loads have finished.
func (r *Registry) Wait() {
	r.loaders.Wait()
	if r.resolver != nil {
		r.resolver.Wait()
	}
}

// load fetches the points of s in the background. When loads overlap, only
// the one started last is applied.
func (r *Registry) load(ctx context.Context, s *Store) {
	gen := s.beginLoad()
	r.loaders.Add(1)
	go func() {
		defer r.loaders.Done()
		ctx, cancel := context.WithTimeout(ctx, r.cfg.LoadTimeout)
		defer cancel()

		points, err := r.source.All(ctx)
		if err != nil {
			slog.Error("load session points", "session_id", s.ID(), "error", err)
		}
		_, err = s.finishLoad(gen, points, err)
		if errors.Is(err, ErrStoreClosed) || errors.Is(err, errStaleLoad) {
			metrics.LateResultsDropped.WithLabelValues("points").Inc()
			slog.Debug("dropped late points", "session_id", s.ID(), "error", err)
		}
	}()
}

func (r *Registry) onSelection(s *Store, selected *domain.PointPrelevement, version uint64) {
	action := "deselect"
	pointID := ""
	if selected != nil {
		action = "select"
		pointID = selected.ID
	}
	metrics.SelectionChanges.WithLabelValues(action).Inc()

	if selected != nil && r.resolver != nil {
		r.resolver.Resolve(s, *selected)
	}

	if r.events != nil {
		event := &domain.SelectionChanged{
			SessionID: s.ID(),
			PointID:   pointID,
			Version:   version,
			Time:      r.now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.events.PublishSelectionChanged(ctx, event); err != nil {
			slog.Warn("publish selection change", "session_id", s.ID(), "error", err)
		}
	}
}
