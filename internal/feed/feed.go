// Package feed runs the entity sources that populate the store: ADS-B
// receivers and OpenSky, the precipitation grid, the airport database, a
// Redis stream, an NMEA own-ship and synthetic traffic.
package feed

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryBackoff is the wait before restarting a failed source
const DefaultRetryBackoff = 10 * time.Second

// Sink receives entity updates. The entity store implements it.
type Sink interface {
	Deliver(kind entity.Kind, e entity.Entity)
}

// Remover is implemented by sinks that accept tombstones
type Remover interface {
	Remove(kind entity.Kind, id string) bool
}

// Reporter is implemented by the sink the Manager hands to sources. Polling
// sources report each poll outcome; nil marks the source healthy.
type Reporter interface {
	Report(err error)
}

// Source produces entity updates until ctx is cancelled. Returning an
// error makes the Manager restart the source after the retry backoff.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Status is the health of one source as shown to clients
type Status struct {
	Source     string    `json:"source"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Entities   int64     `json:"entities"`
	LastUpdate time.Time `json:"last_update"`
	Restarts   int       `json:"restarts"`
}

// StatusFunc is called whenever a source reports
type StatusFunc func(Status)

func report(sink Sink, err error) {
	if r, ok := sink.(Reporter); ok {
		r.Report(err)
	}
}

// Manager runs sources, restarts them on failure and tracks their status
type Manager struct {
	sink    Sink
	backoff time.Duration
	logger  *logger.Logger
	now     func() time.Time

	sources  []Source
	onStatus []StatusFunc
	closers  []io.Closer

	mu     sync.RWMutex
	status map[string]*Status

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewManager creates a manager delivering into sink
func NewManager(sink Sink, backoff time.Duration, log *logger.Logger) *Manager {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Manager{
		sink:    sink,
		backoff: backoff,
		logger:  log.Named("feeds"),
		now:     time.Now,
		status:  make(map[string]*Status),
	}
}

// Add registers a source. Must be called before Start.
func (m *Manager) Add(src Source) {
	m.sources = append(m.sources, src)
	m.mu.Lock()
	m.status[src.Name()] = &Status{Source: src.Name()}
	m.mu.Unlock()
}

// OnStatus registers a status listener. Must be called before Start.
func (m *Manager) OnStatus(fn StatusFunc) {
	m.onStatus = append(m.onStatus, fn)
}

// Len returns the number of registered sources
func (m *Manager) Len() int {
	return len(m.sources)
}

// Start launches every source in its own goroutine
func (m *Manager) Start(ctx context.Context) error {
	if m.group != nil {
		return errors.New("feed manager already started")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.group, ctx = errgroup.WithContext(ctx)

	for _, src := range m.sources {
		m.group.Go(func() error {
			m.supervise(ctx, src)
			return nil
		})
	}

	m.logger.Info("Feed manager started", logger.Int("sources", len(m.sources)))
	return nil
}

// Stop cancels every source and waits for them to return
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	_ = m.group.Wait()
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			m.logger.Warn("Failed to close feed resource", logger.Error(err))
		}
	}
	m.logger.Info("Feed manager stopped")
}

// Wait blocks until every source has returned
func (m *Manager) Wait() error {
	if m.group == nil {
		return nil
	}
	return m.group.Wait()
}

func (m *Manager) supervise(ctx context.Context, src Source) {
	sink := &sourceSink{Sink: m.sink, name: src.Name(), m: m}
	log := m.logger.With(logger.String("source", src.Name()))

	for {
		log.Info("Starting feed source")
		err := src.Run(ctx, sink)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			log.Info("Feed source finished")
			return
		}

		sink.Report(err)
		m.mu.Lock()
		m.status[src.Name()].Restarts++
		m.mu.Unlock()
		log.Warn("Feed source failed, restarting after backoff",
			logger.Error(err),
			logger.Duration("backoff", m.backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.backoff):
		}
	}
}

// Statuses returns a copy of every source status, ordered by name
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.status))
	for _, st := range m.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (m *Manager) record(name string, err error) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.status[name]
	st.OK = err == nil
	st.Error = ""
	if err != nil {
		st.Error = err.Error()
	}
	st.LastUpdate = m.now()
	return *st
}

func (m *Manager) delivered(name string) {
	m.mu.Lock()
	m.status[name].Entities++
	m.mu.Unlock()
}

// sourceSink counts deliveries and forwards reports for one source
type sourceSink struct {
	Sink
	name string
	m    *Manager
}

func (s *sourceSink) Deliver(kind entity.Kind, e entity.Entity) {
	s.Sink.Deliver(kind, e)
	s.m.delivered(s.name)
}

func (s *sourceSink) Remove(kind entity.Kind, id string) bool {
	if r, ok := s.Sink.(Remover); ok {
		return r.Remove(kind, id)
	}
	return false
}

func (s *sourceSink) Report(err error) {
	st := s.m.record(s.name, err)
	if err != nil {
		s.m.logger.Warn("Feed source error",
			logger.String("source", s.name),
			logger.Error(err))
	}
	for _, fn := range s.m.onStatus {
		fn(st)
	}
}

// poll calls fetch immediately and then every interval until ctx is done,
// reporting each outcome
func poll(ctx context.Context, interval time.Duration, sink Sink, fetch func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := fetch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		report(sink, err)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
