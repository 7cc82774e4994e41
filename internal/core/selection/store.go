package selection

import (
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/prelevements/internal/core/domain"
	"github.com/samirrijal/prelevements/internal/pkg/metrics"
)

var (
	ErrPointNotFound   = errors.New("point not found")
	ErrStoreClosed     = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")

	errStaleLoad = errors.New("superseded by a newer load")
)

// Snapshot is one consistent state of a session. Filters, list, map and
// selection always belong to the same version.
type Snapshot struct {
	SessionID string                   `json:"session_id"`
	Version   uint64                   `json:"version"`
	Filters   Filters                  `json:"filters"`
	List      ListView                 `json:"list"`
	Map       []domain.PointSummary    `json:"map"`
	Selected  *domain.PointPrelevement `json:"selected"`
	Commune   *domain.Commune          `json:"commune"`
	Error     string                   `json:"error,omitempty"`
}

// SelectedID returns the id of the selected point, or "".
func (s Snapshot) SelectedID() string {
	if s.Selected == nil {
		return ""
	}
	return s.Selected.ID
}

// SelectionHook runs after every change of the selected point, outside the
// store lock. selected is nil after a deselection.
type SelectionHook func(s *Store, selected *domain.PointPrelevement, version uint64)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSelectionHook registers h as the store's selection hook.
func WithSelectionHook(h SelectionHook) StoreOption {
	return func(s *Store) { s.onSelect = h }
}

// WithClock overrides time.Now, for idle tracking.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store is the single owner of a session's filters and selection. Views
// never keep their own copy: they read snapshots and send change requests.
type Store struct {
	id string

	mu         sync.Mutex
	points     []domain.PointPrelevement // nil until loaded
	index      map[string]int
	filters    Filters
	selectedID string
	commune    *domain.Commune
	loadErr    string
	version    uint64
	closed     bool
	touched    time.Time
	loadGen    uint64 // generation of the newest load of points

	// derived from points and filters only
	list    ListView
	mapView []domain.PointSummary

	current Snapshot
	subs    map[uint64]chan Snapshot
	nextSub uint64

	now      func() time.Time
	onSelect SelectionHook
}

// NewStore returns an empty, loading store.
func NewStore(id string, opts ...StoreOption) *Store {
	s := &Store{
		id:      id,
		filters: Filters{}.Clone(),
		subs:    make(map[uint64]chan Snapshot),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.touched = s.now()
	s.rebuildViewsLocked()
	s.current = s.snapshotLocked()
	return s
}

// ID returns the session id.
func (s *Store) ID() string { return s.id }

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = s.now()
	return s.current
}

// Subscription delivers snapshots to one observer. C holds at most one
// pending snapshot: a slow observer skips intermediate versions but always
// ends up on the latest one.
type Subscription struct {
	C <-chan Snapshot

	id    uint64
	store *Store
	once  sync.Once
}

// Close stops delivery and closes C.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		s := sub.store
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[sub.id]; ok {
			delete(s.subs, sub.id)
			close(ch)
			s.touched = s.now()
		}
	})
}

// Subscribe registers an observer. The current snapshot is delivered
// immediately.
func (s *Store) Subscribe() (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	ch := make(chan Snapshot, 1)
	ch <- s.current
	s.nextSub++
	s.subs[s.nextSub] = ch
	return &Subscription{C: ch, id: s.nextSub, store: s}, nil
}

// SetPoints replaces the source collection. A selected point that is no
// longer part of it is deselected. Loads started earlier and still running
// are superseded.
func (s *Store) SetPoints(points []domain.PointPrelevement) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrStoreClosed
	}
	s.loadGen++
	snap, deselected := s.setPointsLocked(points)
	s.mu.Unlock()

	if deselected {
		s.fireSelect(snap)
	}
	return snap, nil
}

// beginLoad registers a new load of the source collection and returns its
// generation. Only the newest generation may complete.
func (s *Store) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadGen++
	return s.loadGen
}

// finishLoad applies the outcome of load gen. It fails with errStaleLoad
// when a newer load was started in the meantime.
func (s *Store) finishLoad(gen uint64, points []domain.PointPrelevement, loadErr error) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrStoreClosed
	}
	if gen != s.loadGen {
		s.mu.Unlock()
		return Snapshot{}, errStaleLoad
	}
	if loadErr != nil {
		s.loadErr = loadErr.Error()
		snap := s.commitLocked()
		s.mu.Unlock()
		return snap, nil
	}
	snap, deselected := s.setPointsLocked(points)
	s.mu.Unlock()

	if deselected {
		s.fireSelect(snap)
	}
	return snap, nil
}

func (s *Store) setPointsLocked(points []domain.PointPrelevement) (Snapshot, bool) {
	if points == nil {
		points = []domain.PointPrelevement{}
	}
	s.points = points
	s.index = make(map[string]int, len(points))
	for i := range points {
		s.index[points[i].ID] = i
	}
	s.loadErr = ""

	deselected := false
	if _, ok := s.index[s.selectedID]; s.selectedID != "" && !ok {
		s.selectedID = ""
		s.commune = nil
		deselected = true
	}
	s.rebuildViewsLocked()
	return s.commitLocked(), deselected
}

// SetLoadError records that the source collection could not be fetched.
// The list stays in its loading state.
func (s *Store) SetLoadError(err error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}
	s.loadErr = err.Error()
	return s.commitLocked(), nil
}

// SetFilters replaces the filter criteria.
func (s *Store) SetFilters(f Filters) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}
	s.filters = f.Clone()
	s.rebuildViewsLocked()
	metrics.FilterChanges.Inc()
	return s.commitLocked(), nil
}

// ClearFilters resets every criterion to "match all".
func (s *Store) ClearFilters() (Snapshot, error) {
	return s.SetFilters(Filters{})
}

// Select makes the point with the given id the selected one. The point must
// belong to the source collection; it may be hidden by the filters.
func (s *Store) Select(id string) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrStoreClosed
	}
	if _, ok := s.index[id]; !ok || id == "" {
		s.mu.Unlock()
		return Snapshot{}, ErrPointNotFound
	}
	if s.selectedID == id {
		s.touched = s.now()
		snap := s.current
		s.mu.Unlock()
		return snap, nil
	}
	s.selectedID = id
	s.commune = nil
	snap := s.commitLocked()
	s.mu.Unlock()

	s.fireSelect(snap)
	return snap, nil
}

// Deselect clears the selection, as when the side panel is closed.
func (s *Store) Deselect() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrStoreClosed
	}
	if s.selectedID == "" {
		snap := s.current
		s.mu.Unlock()
		return snap, nil
	}
	s.selectedID = ""
	s.commune = nil
	snap := s.commitLocked()
	s.mu.Unlock()

	s.fireSelect(snap)
	return snap, nil
}

// SetCommune attaches the commune of pointID to the session. It reports
// false, and changes nothing, when the store is closed or pointID is no
// longer the selected point.
func (s *Store) SetCommune(pointID string, c *domain.Commune) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.selectedID == "" || s.selectedID != pointID {
		return false
	}
	s.commune = c
	s.commitLocked()
	return true
}

// Close ends the session. Subscriptions are closed and later writes fail
// with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// idleSince reports whether the session had no activity after cutoff.
// A session with an attached observer is never idle.
func (s *Store) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) == 0 && s.touched.Before(cutoff)
}

func (s *Store) fireSelect(snap Snapshot) {
	if s.onSelect != nil {
		s.onSelect(s, snap.Selected, snap.Version)
	}
}

// rebuildViewsLocked recomputes the list and map projections.
func (s *Store) rebuildViewsLocked() {
	s.list = BuildListView(s.points, s.filters)
	if s.points == nil {
		s.mapView = []domain.PointSummary{}
		return
	}
	filtered := ApplyFilters(s.points, s.filters)
	s.mapView = make([]domain.PointSummary, len(filtered))
	for i, p := range filtered {
		s.mapView[i] = domain.Summarize(p)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Version:   s.version,
		Filters:   s.filters.Clone(),
		List:      s.list,
		Map:       s.mapView,
		Commune:   s.commune,
		Error:     s.loadErr,
	}
	if i, ok := s.index[s.selectedID]; ok && s.selectedID != "" {
		p := s.points[i]
		snap.Selected = &p
	}
	return snap
}

// commitLocked bumps the version, stores the new snapshot and hands it to
// every subscriber without blocking.
func (s *Store) commitLocked() Snapshot {
	s.version++
	s.touched = s.now()
	s.current = s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.current
	}
	return s.current
}
