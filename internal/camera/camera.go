package camera

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/yegors/skyview/internal/geo"
)

// ErrNonFiniteState is returned when a camera operation would produce a NaN
// or infinite center or zoom. The camera keeps its previous state.
var ErrNonFiniteState = errors.New("non-finite camera state")

// DefaultTileSize is the width in pixels of the whole world at zoom 0
const DefaultTileSize = 256.0

// ScreenPoint is a position in viewport pixels, origin at the top left
type ScreenPoint struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Config holds the camera limits
type Config struct {
	ZoomMin  float64
	ZoomMax  float64
	TileSize float64 // pixels per world unit at zoom 0
	Width    float64 // viewport width in pixels
	Height   float64 // viewport height in pixels

	// ZoomRate is the animated zoom speed in levels per second. Zero applies
	// ZoomSmooth requests immediately.
	ZoomRate float64
}

// State is the serialisable part of a camera
type State struct {
	Center geo.WorldPoint `json:"center"`
	Zoom   float64        `json:"zoom"`
}

type zoomTarget struct {
	zoom   float64
	anchor ScreenPoint
}

// Camera converts between the world plane and viewport pixels. It is not
// safe for concurrent use; a view session owns it from a single goroutine.
type Camera struct {
	cfg      Config
	center   geo.WorldPoint
	zoom     float64
	width    float64
	height   float64
	dragging bool
	target   *zoomTarget
}

// New creates a camera centered on center at the given zoom
func New(cfg Config, center geo.WorldPoint, zoom float64) (*Camera, error) {
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	if cfg.ZoomMax < cfg.ZoomMin {
		return nil, fmt.Errorf("zoom max %v below zoom min %v", cfg.ZoomMax, cfg.ZoomMin)
	}
	if !center.IsFinite() || !isFinite(zoom) {
		return nil, ErrNonFiniteState
	}

	c := &Camera{
		cfg:    cfg,
		center: center,
		zoom:   clamp(zoom, cfg.ZoomMin, cfg.ZoomMax),
	}
	if err := c.SetViewportSize(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the current center and zoom
func (c *Camera) State() State {
	return State{Center: c.center, Zoom: c.zoom}
}

// Restore replaces center and zoom, clamping zoom to the configured range
func (c *Camera) Restore(s State) error {
	if !s.Center.IsFinite() || !isFinite(s.Zoom) {
		return ErrNonFiniteState
	}
	c.center = s.Center
	c.zoom = clamp(s.Zoom, c.cfg.ZoomMin, c.cfg.ZoomMax)
	c.target = nil
	return nil
}

// Center returns the world point at the middle of the viewport
func (c *Camera) Center() geo.WorldPoint { return c.center }

// Zoom returns the current zoom level
func (c *Camera) Zoom() float64 { return c.zoom }

// ZoomBounds returns the configured zoom range
func (c *Camera) ZoomBounds() (float64, float64) { return c.cfg.ZoomMin, c.cfg.ZoomMax }

// ViewportSize returns the viewport dimensions in pixels
func (c *Camera) ViewportSize() (float64, float64) { return c.width, c.height }

// Scale returns pixels per world unit at the current zoom
func (c *Camera) Scale() float64 {
	return c.scaleAt(c.zoom)
}

func (c *Camera) scaleAt(zoom float64) float64 {
	return c.cfg.TileSize * math.Exp2(zoom)
}

// SetViewportSize changes the viewport dimensions, keeping the center fixed
func (c *Camera) SetViewportSize(width, height float64) error {
	if !isFinite(width) || !isFinite(height) || width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport size %vx%v", width, height)
	}
	c.width = width
	c.height = height
	return nil
}

// CenterOn moves the camera so p is in the middle of the viewport
func (c *Camera) CenterOn(p geo.WorldPoint) error {
	if !p.IsFinite() {
		return ErrNonFiniteState
	}
	c.center = p
	return nil
}

// BeginDrag marks the start of a drag gesture; Pan is ignored outside one
func (c *Camera) BeginDrag() { c.dragging = true }

// EndDrag ends the current drag gesture
func (c *Camera) EndDrag() { c.dragging = false }

// Dragging reports whether a drag gesture is in progress
func (c *Camera) Dragging() bool { return c.dragging }

// Pan moves the view by a screen space drag delta. Content follows the
// pointer, so the center moves opposite to the delta.
func (c *Camera) Pan(delta ScreenPoint) error {
	if !c.dragging {
		return nil
	}
	s := c.Scale()
	next := geo.WorldPoint{
		X: c.center.X - delta.X/s,
		Y: c.center.Y - delta.Y/s,
	}
	if !next.IsFinite() {
		return ErrNonFiniteState
	}
	c.center = next
	return nil
}

// ZoomBy changes zoom by step, keeping the world point under anchor fixed on
// screen. Steps past the configured range are clamped.
func (c *Camera) ZoomBy(step float64, anchor ScreenPoint) error {
	if !isFinite(step) {
		return ErrNonFiniteState
	}
	c.target = nil
	return c.zoomTo(c.zoom+step, anchor)
}

// ZoomSmooth schedules an animated zoom toward the current target plus step.
// Advance moves the camera toward it. Without a zoom rate it behaves like ZoomBy.
func (c *Camera) ZoomSmooth(step float64, anchor ScreenPoint) error {
	if c.cfg.ZoomRate <= 0 {
		return c.ZoomBy(step, anchor)
	}
	if !isFinite(step) {
		return ErrNonFiniteState
	}
	base := c.zoom
	if c.target != nil {
		base = c.target.zoom
	}
	c.target = &zoomTarget{
		zoom:   clamp(base+step, c.cfg.ZoomMin, c.cfg.ZoomMax),
		anchor: anchor,
	}
	return nil
}

// Animating reports whether a smooth zoom is still in progress
func (c *Camera) Animating() bool {
	return c.target != nil
}

// Advance moves an in-flight smooth zoom forward by dt
func (c *Camera) Advance(dt time.Duration) error {
	if c.target == nil || dt <= 0 {
		return nil
	}
	maxStep := c.cfg.ZoomRate * dt.Seconds()
	diff := c.target.zoom - c.zoom
	anchor := c.target.anchor

	if math.Abs(diff) <= maxStep {
		next := c.target.zoom
		c.target = nil
		return c.zoomTo(next, anchor)
	}
	return c.zoomTo(c.zoom+math.Copysign(maxStep, diff), anchor)
}

func (c *Camera) zoomTo(zoom float64, anchor ScreenPoint) error {
	next := clamp(zoom, c.cfg.ZoomMin, c.cfg.ZoomMax)
	pinned := c.ScreenToWorld(anchor)
	s := c.scaleAt(next)

	center := geo.WorldPoint{
		X: pinned.X - (anchor.X-c.width/2)/s,
		Y: pinned.Y - (anchor.Y-c.height/2)/s,
	}
	if !center.IsFinite() || !isFinite(next) {
		c.target = nil
		return ErrNonFiniteState
	}
	c.center = center
	c.zoom = next
	return nil
}

// WorldToScreen projects a world point to viewport pixels
func (c *Camera) WorldToScreen(p geo.WorldPoint) ScreenPoint {
	s := c.Scale()
	return ScreenPoint{
		X: (p.X-c.center.X)*s + c.width/2,
		Y: (p.Y-c.center.Y)*s + c.height/2,
	}
}

// ScreenToWorld is the inverse of WorldToScreen
func (c *Camera) ScreenToWorld(p ScreenPoint) geo.WorldPoint {
	s := c.Scale()
	return geo.WorldPoint{
		X: c.center.X + (p.X-c.width/2)/s,
		Y: c.center.Y + (p.Y-c.height/2)/s,
	}
}

// PixelsToWorld converts a pixel length to world units at the current zoom
func (c *Camera) PixelsToWorld(px float64) float64 {
	return px / c.Scale()
}

// VisibleRect returns the world rectangle covered by the viewport
func (c *Camera) VisibleRect() geo.Rect {
	return geo.NewRect(
		c.ScreenToWorld(ScreenPoint{X: 0, Y: 0}),
		c.ScreenToWorld(ScreenPoint{X: c.width, Y: c.height}),
	)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
