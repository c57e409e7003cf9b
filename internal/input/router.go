package input

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/pkg/logger"
)

// ErrUnknownButton is returned for a button key the router does not handle
var ErrUnknownButton = errors.New("unknown button")

// Phase is the pointer gesture state
type Phase int

const (
	Idle Phase = iota
	// Pressed is a held pointer that has not yet moved past the drag threshold
	Pressed
	Dragging
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Gesture classifies a completed press
type Gesture int

const (
	GestureNone Gesture = iota
	GestureClick
	GestureDrag
)

func (g Gesture) String() string {
	switch g {
	case GestureClick:
		return "click"
	case GestureDrag:
		return "drag"
	default:
		return "none"
	}
}

// Button keys
const (
	ButtonPlanes   = "airplane"
	ButtonWeather  = "weather"
	ButtonDebug    = "debug"
	ButtonAirports = "airport"
	ButtonStrong   = "strong"

	airlinePrefix = "airline:"
)

// Defaults
const (
	DefaultDragThresholdPx = 5.0
	DefaultMaxDragDeltaPx  = 300.0
	DefaultZoomStep        = 0.5
)

// Config holds the gesture tuning
type Config struct {
	DragThresholdPx float64
	MaxDragDeltaPx  float64
	ZoomStep        float64
	// SmoothZoom animates scroll zoom through the camera instead of jumping
	SmoothZoom bool
}

func (c Config) withDefaults() Config {
	if c.DragThresholdPx <= 0 {
		c.DragThresholdPx = DefaultDragThresholdPx
	}
	if c.MaxDragDeltaPx <= 0 {
		c.MaxDragDeltaPx = DefaultMaxDragDeltaPx
	}
	if c.ZoomStep <= 0 {
		c.ZoomStep = DefaultZoomStep
	}
	return c
}

// Router turns raw pointer, scroll and button input into camera and filter
// mutations. It is driven from the owning view session's goroutine only.
type Router struct {
	cfg    Config
	cam    *camera.Camera
	filter *filter.State
	logger *logger.Logger

	phase  Phase
	anchor camera.ScreenPoint
	last   camera.ScreenPoint
}

// NewRouter creates a router driving cam and f
func NewRouter(cfg Config, cam *camera.Camera, f *filter.State, log *logger.Logger) *Router {
	return &Router{
		cfg:    cfg.withDefaults(),
		cam:    cam,
		filter: f,
		logger: log.Named("input"),
	}
}

// Phase returns the current gesture state
func (r *Router) Phase() Phase {
	return r.phase
}

// PointerDown starts a press at p
func (r *Router) PointerDown(p camera.ScreenPoint) {
	if r.phase == Dragging {
		r.cam.EndDrag()
	}
	r.phase = Pressed
	r.anchor = p
	r.last = p
}

// PointerMove updates a held press. Once the pointer strays past the drag
// threshold from the anchor, the press becomes a drag and pans the camera.
func (r *Router) PointerMove(p camera.ScreenPoint) error {
	switch r.phase {
	case Pressed:
		if distance(r.anchor, p) < r.cfg.DragThresholdPx {
			r.last = p
			return nil
		}
		r.phase = Dragging
		r.cam.BeginDrag()
		r.logger.Debug("Drag started",
			logger.Float64("x", r.anchor.X),
			logger.Float64("y", r.anchor.Y))
		// pan by the whole displacement so the grabbed point stays under the pointer
		return r.pan(r.anchor, p)
	case Dragging:
		return r.pan(r.last, p)
	default:
		return nil
	}
}

// PointerUp ends a press and reports whether it was a click or a drag
func (r *Router) PointerUp(p camera.ScreenPoint) (Gesture, error) {
	var err error
	gesture := GestureNone

	switch r.phase {
	case Pressed:
		gesture = GestureClick
		if distance(r.anchor, p) >= r.cfg.DragThresholdPx {
			// released far from the press with no move in between
			r.cam.BeginDrag()
			err = r.pan(r.anchor, p)
			r.cam.EndDrag()
			gesture = GestureDrag
		}
	case Dragging:
		if p != r.last {
			err = r.pan(r.last, p)
		}
		r.cam.EndDrag()
		gesture = GestureDrag
	}
	r.phase = Idle
	return gesture, err
}

func (r *Router) pan(from, to camera.ScreenPoint) error {
	delta := clampLength(camera.ScreenPoint{X: to.X - from.X, Y: to.Y - from.Y}, r.cfg.MaxDragDeltaPx)
	r.last = to
	if err := r.cam.Pan(delta); err != nil {
		r.logger.Debug("Rejected pan", logger.Error(err))
		return err
	}
	return nil
}

// Scroll zooms around cursor. Negative delta (wheel away from the user)
// zooms in, positive zooms out, zero is ignored. Works in any phase.
func (r *Router) Scroll(cursor camera.ScreenPoint, delta float64) error {
	if delta == 0 || math.IsNaN(delta) {
		return nil
	}
	step := r.cfg.ZoomStep
	if delta > 0 {
		step = -step
	}

	var err error
	if r.cfg.SmoothZoom {
		err = r.cam.ZoomSmooth(step, cursor)
	} else {
		err = r.cam.ZoomBy(step, cursor)
	}
	if err != nil {
		r.logger.Debug("Rejected zoom", logger.Error(err))
	}
	return err
}

// Button applies a UI panel button
func (r *Router) Button(key string) error {
	key = strings.ToLower(strings.TrimSpace(key))

	switch key {
	case ButtonPlanes:
		r.filter.TogglePlanes()
	case ButtonWeather:
		r.filter.ToggleWeather()
	case ButtonDebug:
		r.filter.ToggleDebug()
	case ButtonAirports:
		r.filter.ToggleAirports()
	case ButtonStrong:
		r.filter.ToggleStrongWeather()
	default:
		code, ok := strings.CutPrefix(key, airlinePrefix)
		if !ok || !filter.IsAirlineKey(code) {
			return fmt.Errorf("%w: %s", ErrUnknownButton, key)
		}
		r.filter.ToggleAirline(code)
	}
	return nil
}

// SetAirlines replaces the airline filter set from the panel
func (r *Router) SetAirlines(codes []string) error {
	for _, c := range codes {
		if !filter.IsAirlineKey(c) {
			return fmt.Errorf("unknown airline filter key: %s", c)
		}
	}
	r.filter.SetAirlineFilter(codes)
	return nil
}

// Resize changes the viewport size
func (r *Router) Resize(width, height float64) error {
	return r.cam.SetViewportSize(width, height)
}

func distance(a, b camera.ScreenPoint) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func clampLength(v camera.ScreenPoint, max float64) camera.ScreenPoint {
	l := math.Hypot(v.X, v.Y)
	if l <= max || l == 0 {
		return v
	}
	f := max / l
	return camera.ScreenPoint{X: v.X * f, Y: v.Y * f}
}
