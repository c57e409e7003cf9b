package view

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/input"
	"github.com/yegors/skyview/pkg/logger"
)

// Snapshot is the state a session publishes after each frame for readers
// outside its goroutine
type Snapshot struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Camera    camera.State `json:"camera"`
	Center    geo.GeoPoint `json:"center"`
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Filter    filter.State `json:"filter"`
	Frames    uint64       `json:"frames"`
	Dropped   uint64       `json:"dropped_events"`
	LastFrame time.Time    `json:"last_frame"`
	Started   time.Time    `json:"started"`
}

// Saved converts the snapshot into the persisted form
func (s Snapshot) Saved() SavedState {
	return SavedState{
		Zoom:           s.Camera.Zoom,
		CenterLat:      s.Center.Latitude,
		CenterLon:      s.Center.Longitude,
		ActiveAirlines: s.Filter.AirlineList(),
		ShowPlanes:     s.Filter.ShowPlanes,
		ShowWeather:    s.Filter.ShowWeather,
		ShowAirports:   s.Filter.ShowAirports,
		StrongWeather:  s.Filter.StrongWeatherOnly,
	}
}

// Session is one connected map view
type Session struct {
	id      string
	name    string
	proj    geo.Projection
	cam     *camera.Camera
	filter  *filter.State
	router  *input.Router
	comp    *compositor.Compositor
	render  compositor.Renderer
	promo   *compositor.PrometheusSink
	onFrame func(*compositor.Frame)
	logger  *logger.Logger

	interval time.Duration
	events   chan input.Event
	dropped  atomic.Uint64
	frames   uint64
	started  time.Time
	snapshot atomic.Pointer[Snapshot]

	startOnce  sync.Once
	finishOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
}

func newSession(id, name string, reader compositor.EntityReader, opts Options, r compositor.Renderer, log *logger.Logger) (*Session, error) {
	opts = opts.withDefaults()
	proj := reader.Projection()

	cam, err := camera.New(opts.Camera, proj.Project(opts.Center), opts.InitialZoom)
	if err != nil {
		return nil, err
	}
	f := filter.New()
	f.DebugEnabled = opts.DebugDefault

	log = log.Named("session").With(logger.String("session_id", id))
	s := &Session{
		id:       id,
		name:     name,
		proj:     proj,
		cam:      cam,
		filter:   f,
		router:   input.NewRouter(opts.Input, cam, f, log),
		render:   r,
		logger:   log,
		interval: opts.FrameInterval,
		events:   make(chan input.Event, opts.QueueSize),
		started:  time.Now(),
		done:     make(chan struct{}),
	}

	sink := compositor.DebugSink(compositor.NopSink{})
	if opts.DebugVec != nil {
		s.promo = compositor.NewPrometheusSink(opts.DebugVec, id)
		sink = s.promo
	}
	s.comp = compositor.New(reader, opts.Compositor, log, compositor.WithDebugSink(sink))
	s.publish(time.Time{})
	return s, nil
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Name returns the persistence name, empty for anonymous sessions
func (s *Session) Name() string { return s.name }

// Restore applies a saved state. Only call before Start.
func (s *Session) Restore(st SavedState) error {
	center, err := geo.NewPoint(st.CenterLat, st.CenterLon)
	if err != nil {
		return err
	}
	if err := s.cam.Restore(camera.State{Center: s.proj.Project(center), Zoom: st.Zoom}); err != nil {
		return err
	}
	s.filter.SetAirlineFilter(st.ActiveAirlines)
	s.filter.ShowPlanes = st.ShowPlanes
	s.filter.ShowWeather = st.ShowWeather
	s.filter.ShowAirports = st.ShowAirports
	s.filter.StrongWeatherOnly = st.StrongWeather
	s.publish(time.Time{})
	return nil
}

// Submit queues an input event for the next frame. It never blocks; false
// means the queue was full and the event was dropped.
func (s *Session) Submit(ev input.Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		s.dropped.Add(1)
		s.logger.Debug("Input queue full, dropping event", logger.String("type", string(ev.Type)))
		return false
	}
}

// Snapshot returns the state published after the latest frame
func (s *Session) Snapshot() Snapshot {
	snap := *s.snapshot.Load()
	snap.Dropped = s.dropped.Load()
	return snap
}

// Start launches the frame loop
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go func() {
			defer close(s.done)
			s.err = s.run(ctx)
			if s.promo != nil {
				s.promo.Forget()
			}
		}()
		s.logger.Info("View session started", logger.String("name", s.name))
	})
}

// Stop ends the frame loop and waits for it
func (s *Session) Stop() {
	s.startOnce.Do(func() { close(s.done) })
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// Done is closed when the frame loop has ended
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the frame loop ended; nil after a normal stop
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Session) run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.Frame(now.Sub(last)); err != nil {
				s.logger.Info("View session ended by renderer", logger.Error(err))
				return err
			}
			last = now
		}
	}
}

// Frame drains queued input, advances zoom animation, then builds and
// renders one frame. It is called by the frame loop and must not be called
// concurrently with it.
func (s *Session) Frame(dt time.Duration) error {
	s.drain()

	if err := s.cam.Advance(dt); err != nil && !errors.Is(err, camera.ErrNonFiniteState) {
		return err
	}

	frame, err := s.comp.Render(s.cam, s.filter, s.render)
	if err != nil {
		return err
	}
	s.frames++
	if s.onFrame != nil {
		s.onFrame(frame)
	}
	s.publish(frame.Time)
	return nil
}

func (s *Session) drain() {
	for {
		select {
		case ev := <-s.events:
			if _, err := s.router.Apply(ev); err != nil {
				// the camera keeps its prior state on rejected input
				s.logger.Debug("Input rejected",
					logger.String("type", string(ev.Type)),
					logger.Error(err))
			}
		default:
			return
		}
	}
}

func (s *Session) publish(at time.Time) {
	st := s.cam.State()
	w, h := s.cam.ViewportSize()
	s.snapshot.Store(&Snapshot{
		ID:        s.id,
		Name:      s.name,
		Camera:    st,
		Center:    s.proj.Unproject(st.Center),
		Width:     w,
		Height:    h,
		Filter:    s.filter.Snapshot(),
		Frames:    s.frames,
		LastFrame: at,
		Started:   s.started,
	})
}
