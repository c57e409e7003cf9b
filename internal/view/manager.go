package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/pkg/logger"
)

// ErrNotFound is returned for unknown session ids
var ErrNotFound = errors.New("view session not found")

// SavedState is what survives a reconnect of a named session
type SavedState struct {
	Zoom           float64   `json:"zoom"`
	CenterLat      float64   `json:"center_lat"`
	CenterLon      float64   `json:"center_lon"`
	ActiveAirlines []string  `json:"active_airlines"`
	ShowPlanes     bool      `json:"show_planes"`
	ShowWeather    bool      `json:"show_weather"`
	ShowAirports   bool      `json:"show_airports"`
	StrongWeather  bool      `json:"strong_weather"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StateStore persists named session state
type StateStore interface {
	LoadSession(ctx context.Context, name string) (SavedState, bool, error)
	SaveSession(ctx context.Context, name string, st SavedState) error
}

// Manager opens, tracks and closes view sessions
type Manager struct {
	reader  compositor.EntityReader
	opts    Options
	states  StateStore
	logger  *logger.Logger
	onFrame func(*compositor.Frame)
	onCount func(int)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. states may be nil to disable
// persistence.
func NewManager(reader compositor.EntityReader, opts Options, states StateStore, log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		reader:   reader,
		opts:     opts,
		states:   states,
		logger:   log.Named("views"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// OnFrame registers a callback run on each session's goroutine after every
// rendered frame. Must be called before the first Open.
func (m *Manager) OnFrame(fn func(*compositor.Frame)) {
	m.onFrame = fn
}

// OnCount registers a callback receiving the session count after it changes.
// Must be called before the first Open.
func (m *Manager) OnCount(fn func(int)) {
	m.onCount = fn
}

// Open creates a session rendering to r and starts its frame loop. A
// non-empty name restores and later saves persisted state.
func (m *Manager) Open(ctx context.Context, name string, r compositor.Renderer) (*Session, error) {
	s, err := m.Create(ctx, name, r)
	if err != nil {
		return nil, err
	}
	m.Start(s)
	return s, nil
}

// Create registers a session without starting it, so the caller can greet
// its client before the first frame
func (m *Manager) Create(ctx context.Context, name string, r compositor.Renderer) (*Session, error) {
	if m.ctx.Err() != nil {
		return nil, errors.New("view manager stopped")
	}

	s, err := newSession(uuid.NewString(), name, m.reader, m.opts, r, m.logger)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.onFrame = m.onFrame

	if name != "" && m.states != nil {
		st, ok, err := m.states.LoadSession(ctx, name)
		switch {
		case err != nil:
			m.logger.Warn("Failed to load saved session, starting fresh",
				logger.String("name", name),
				logger.Error(err))
		case ok:
			if err := s.Restore(st); err != nil {
				m.logger.Warn("Ignoring unusable saved session",
					logger.String("name", name),
					logger.Error(err))
			} else {
				m.logger.Debug("Restored saved session", logger.String("name", name))
			}
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()
	m.notifyCount(count)
	return s, nil
}

// Start launches a created session's frame loop
func (m *Manager) Start(s *Session) {
	s.Start(m.ctx)
	go func() {
		<-s.Done()
		m.finish(s)
	}()
}

// Close stops a session, saving its state when named
func (m *Manager) Close(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrNotFound
	}
	s.Stop()
	m.finish(s)
	return nil
}

// finish saves and forgets a stopped session exactly once
func (m *Manager) finish(s *Session) {
	s.finishOnce.Do(func() { m.release(s) })
}

func (m *Manager) release(s *Session) {
	if s.name != "" && m.states != nil {
		st := s.Snapshot().Saved()
		st.UpdatedAt = time.Now().UTC()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.states.SaveSession(ctx, s.name, st); err != nil {
			m.logger.Warn("Failed to save session", logger.String("name", s.name), logger.Error(err))
		}
		cancel()
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	count := len(m.sessions)
	m.mu.Unlock()
	m.notifyCount(count)

	snap := s.Snapshot()
	m.logger.Info("View session closed",
		logger.String("session_id", s.id),
		logger.Int64("frames", int64(snap.Frames)),
		logger.Error(s.Err()))
}

func (m *Manager) notifyCount(n int) {
	if m.onCount != nil {
		m.onCount(n)
	}
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshots returns the published state of every live session, oldest first
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Started.Equal(out[j].Started) {
			return out[i].Started.Before(out[j].Started)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stop closes every session, saving named ones
func (m *Manager) Stop() {
	m.cancel()

	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		s.Stop()
		m.finish(s)
	}
	m.logger.Info("View sessions stopped", logger.Int("closed", len(live)))
}
