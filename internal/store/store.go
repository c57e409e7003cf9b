package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/pkg/logger"
)

// ErrClosed is returned by Upsert after Close
var ErrClosed = errors.New("entity store closed")

// UpsertResult describes what an upsert did
type UpsertResult int

const (
	Inserted UpsertResult = iota
	Updated
	Duplicate // same id and timestamp already stored
	Discarded // older than the stored state
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Duplicate:
		return "duplicate"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Predicate filters query results
type Predicate func(e *entity.Entity) bool

type record struct {
	entity entity.Entity
	world  geo.WorldPoint
}

// Point implements orb.Pointer for the quadtree
func (r *record) Point() orb.Point {
	return r.world.Orb()
}

// collection holds one entity kind. Queries take the read lock and copy
// out, so they never see a partially applied upsert.
type collection struct {
	mu    sync.RWMutex
	items map[string]*record
	index *quadtree.Quadtree
}

// Store holds the latest state of every tracked entity, keyed by kind and id
type Store struct {
	proj   geo.Projection
	bounds geo.Rect
	cols   map[entity.Kind]*collection
	clock  func() time.Time
	logger *logger.Logger

	closed  atomic.Bool
	sweepMu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for LastUpdated
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an empty store indexing positions with proj
func New(proj geo.Projection, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		proj:   proj,
		bounds: proj.WorldBounds(),
		cols:   make(map[entity.Kind]*collection, len(entity.Kinds)),
		clock:  time.Now,
		logger: log.Named("entity-store"),
	}
	for _, kind := range entity.Kinds {
		s.cols[kind] = &collection{
			items: make(map[string]*record),
			index: quadtree.New(s.bounds.Bound()),
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Projection returns the projection used to index positions
func (s *Store) Projection() geo.Projection {
	return s.proj
}

func (s *Store) collection(kind entity.Kind) (*collection, error) {
	col, ok := s.cols[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %d", int(kind))
	}
	return col, nil
}

// Upsert inserts or replaces the entity with the same kind and id. Updates
// carrying an older timestamp than the stored state are discarded.
func (s *Store) Upsert(e entity.Entity) (UpsertResult, error) {
	if s.closed.Load() {
		return Discarded, ErrClosed
	}
	if err := e.Validate(); err != nil {
		return Discarded, fmt.Errorf("rejecting %s %q: %w", e.Kind, e.ID, err)
	}
	col, err := s.collection(e.Kind)
	if err != nil {
		return Discarded, err
	}

	world := s.proj.Project(e.Position)
	rec := &record{entity: e.Clone(), world: world}

	col.mu.Lock()
	defer col.mu.Unlock()

	old, exists := col.items[e.ID]
	if exists {
		switch {
		case e.Timestamp.Before(old.entity.Timestamp):
			return Discarded, nil
		case e.Timestamp.Equal(old.entity.Timestamp):
			return Duplicate, nil
		}
		col.index.Remove(old, matchRecord(old))
	}

	rec.entity.LastUpdated = s.clock()
	if err := col.index.Add(rec); err != nil {
		// keep the old record indexed rather than dropping the entity
		if exists {
			_ = col.index.Add(old)
		}
		return Discarded, fmt.Errorf("indexing %s %q: %w", e.Kind, e.ID, err)
	}
	col.items[e.ID] = rec

	if exists {
		return Updated, nil
	}
	return Inserted, nil
}

// Deliver is the push boundary for feed sources. It never fails: rejected
// updates are logged and deliveries after Close are dropped silently.
func (s *Store) Deliver(kind entity.Kind, e entity.Entity) {
	if s.closed.Load() {
		return
	}
	if e.Kind != kind {
		s.logger.Warn("Dropping entity delivered under the wrong kind",
			logger.String("id", e.ID),
			logger.String("delivered_as", kind.String()),
			logger.String("kind", e.Kind.String()))
		return
	}

	result, err := s.Upsert(e)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return
		}
		if errors.Is(err, geo.ErrInvalidGeoPoint) {
			s.logger.Debug("Rejected entity with invalid position",
				logger.String("kind", kind.String()),
				logger.String("id", e.ID),
				logger.Error(err))
			return
		}
		s.logger.Warn("Rejected entity", logger.String("kind", kind.String()), logger.Error(err))
		return
	}
	if result == Discarded {
		s.logger.Debug("Discarded out of order update",
			logger.String("kind", kind.String()),
			logger.String("id", e.ID),
			logger.Time("timestamp", e.Timestamp))
	}
}

// Remove deletes an entity explicitly, as for a feed tombstone
func (s *Store) Remove(kind entity.Kind, id string) bool {
	col, err := s.collection(kind)
	if err != nil {
		return false
	}
	col.mu.Lock()
	defer col.mu.Unlock()

	rec, ok := col.items[id]
	if !ok {
		return false
	}
	col.index.Remove(rec, matchRecord(rec))
	delete(col.items, id)
	return true
}

// Get returns a copy of one entity
func (s *Store) Get(kind entity.Kind, id string) (entity.Entity, bool) {
	col, err := s.collection(kind)
	if err != nil {
		return entity.Entity{}, false
	}
	col.mu.RLock()
	defer col.mu.RUnlock()

	rec, ok := col.items[id]
	if !ok {
		return entity.Entity{}, false
	}
	return rec.entity.Clone(), true
}

// Query returns copies of the entities of kind inside rect that satisfy
// pred. A nil predicate matches everything. Lookup goes through the
// quadtree so cost follows the number of entities near rect.
func (s *Store) Query(kind entity.Kind, rect geo.Rect, pred Predicate) []entity.Entity {
	col, err := s.collection(kind)
	if err != nil {
		return nil
	}

	col.mu.RLock()
	defer col.mu.RUnlock()

	found := col.index.InBound(nil, rect.Bound())
	out := make([]entity.Entity, 0, len(found))
	for _, p := range found {
		rec := p.(*record)
		e := rec.entity.Clone()
		if pred != nil && !pred(&e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// All returns copies of every entity of kind
func (s *Store) All(kind entity.Kind) []entity.Entity {
	return s.Query(kind, s.bounds, nil)
}

// Counts returns the number of stored entities per kind
func (s *Store) Counts() map[entity.Kind]int {
	counts := make(map[entity.Kind]int, len(s.cols))
	for kind, col := range s.cols {
		col.mu.RLock()
		counts[kind] = len(col.items)
		col.mu.RUnlock()
	}
	return counts
}

// Sweep removes entities not updated within window of now and returns how
// many were dropped. A sweep already in progress makes this call a no-op.
func (s *Store) Sweep(now time.Time, window time.Duration) int {
	if !s.sweepMu.TryLock() {
		return 0
	}
	defer s.sweepMu.Unlock()

	cutoff := now.Add(-window)
	removed := 0
	for _, kind := range entity.Kinds {
		col := s.cols[kind]
		col.mu.Lock()
		for id, rec := range col.items {
			if rec.entity.LastUpdated.Before(cutoff) {
				col.index.Remove(rec, matchRecord(rec))
				delete(col.items, id)
				removed++
			}
		}
		col.mu.Unlock()
	}
	return removed
}

// Close stops accepting updates. Later deliveries are dropped silently.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Info("Entity store closed")
	}
}

// Closed reports whether Close has been called
func (s *Store) Closed() bool {
	return s.closed.Load()
}

func matchRecord(rec *record) quadtree.FilterFunc {
	return func(p orb.Pointer) bool {
		return p == orb.Pointer(rec)
	}
}
