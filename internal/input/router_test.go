package input

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/pkg/logger"
)

func newRouter(t *testing.T, cfg Config) (*Router, *camera.Camera, *filter.State) {
	t.Helper()
	proj := geo.Equirectangular{}
	center := proj.Project(geo.GeoPoint{Latitude: 33.604076, Longitude: -117.884507})
	cam, err := camera.New(camera.Config{ZoomMin: 2, ZoomMax: 20, Width: 1280, Height: 720}, center, 13)
	require.NoError(t, err)
	f := filter.New()
	return NewRouter(cfg, cam, f, logger.NewNop()), cam, f
}

func pt(x, y float64) camera.ScreenPoint {
	return camera.ScreenPoint{X: x, Y: y}
}

func TestClickBelowThreshold(t *testing.T) {
	r, cam, _ := newRouter(t, Config{DragThresholdPx: DefaultDragThresholdPx})
	before := cam.Center()

	r.PointerDown(pt(100, 100))
	assert.Equal(t, Pressed, r.Phase())
	require.NoError(t, r.PointerMove(pt(103, 101)))
	assert.Equal(t, Pressed, r.Phase())

	g, err := r.PointerUp(pt(103, 101))
	require.NoError(t, err)
	assert.Equal(t, GestureClick, g)
	assert.Equal(t, Idle, r.Phase())
	assert.Equal(t, before, cam.Center())
	assert.False(t, cam.Dragging())
}

func TestDragPansCamera(t *testing.T) {
	r, cam, _ := newRouter(t, Config{DragThresholdPx: DefaultDragThresholdPx})
	before := cam.Center()
	scale := cam.Scale()

	r.PointerDown(pt(100, 100))
	require.NoError(t, r.PointerMove(pt(150, 140)))
	assert.Equal(t, Dragging, r.Phase())

	g, err := r.PointerUp(pt(150, 140))
	require.NoError(t, err)
	assert.Equal(t, GestureDrag, g)
	assert.False(t, cam.Dragging())

	assert.InDelta(t, before.X-50/scale, cam.Center().X, 1e-12)
	assert.InDelta(t, before.Y-40/scale, cam.Center().Y, 1e-12)
}

func TestReleaseFarFromPressIsDrag(t *testing.T) {
	r, cam, _ := newRouter(t, Config{DragThresholdPx: DefaultDragThresholdPx})
	before := cam.Center()
	scale := cam.Scale()

	r.PointerDown(pt(100, 100))
	g, err := r.PointerUp(pt(150, 140))
	require.NoError(t, err)
	assert.Equal(t, GestureDrag, g)
	assert.Equal(t, Idle, r.Phase())
	assert.False(t, cam.Dragging())

	assert.InDelta(t, before.X-50/scale, cam.Center().X, 1e-12)
	assert.InDelta(t, before.Y-40/scale, cam.Center().Y, 1e-12)
}

func TestDragAcrossSeveralMoves(t *testing.T) {
	r, cam, _ := newRouter(t, Config{DragThresholdPx: DefaultDragThresholdPx})
	grabbed := cam.ScreenToWorld(pt(200, 200))

	r.PointerDown(pt(200, 200))
	for _, p := range []camera.ScreenPoint{pt(202, 201), pt(210, 205), pt(260, 230), pt(300, 260)} {
		require.NoError(t, r.PointerMove(p))
	}
	_, err := r.PointerUp(pt(320, 270))
	require.NoError(t, err)

	now := cam.WorldToScreen(grabbed)
	assert.InDelta(t, 320, now.X, 1e-6)
	assert.InDelta(t, 270, now.Y, 1e-6)
}

func TestDragDeltaClamped(t *testing.T) {
	r, cam, _ := newRouter(t, Config{DragThresholdPx: 1, MaxDragDeltaPx: 100})
	before := cam.Center()
	scale := cam.Scale()

	r.PointerDown(pt(0, 0))
	require.NoError(t, r.PointerMove(pt(600, 0)))
	moved := (before.X - cam.Center().X) * scale
	assert.InDelta(t, 100, moved, 1e-6)
}

func TestMoveWithoutPressIgnored(t *testing.T) {
	r, cam, _ := newRouter(t, Config{})
	before := cam.Center()
	require.NoError(t, r.PointerMove(pt(500, 500)))
	g, err := r.PointerUp(pt(500, 500))
	require.NoError(t, err)
	assert.Equal(t, GestureNone, g)
	assert.Equal(t, before, cam.Center())
}

func TestScrollZoomsAroundCursor(t *testing.T) {
	r, cam, _ := newRouter(t, Config{ZoomStep: 0.5})
	cursor := pt(900, 200)
	pinned := cam.ScreenToWorld(cursor)

	require.NoError(t, r.Scroll(cursor, -120))
	assert.Equal(t, 13.5, cam.Zoom())
	require.NoError(t, r.Scroll(cursor, 3))
	require.NoError(t, r.Scroll(cursor, 3))
	assert.Equal(t, 12.5, cam.Zoom())
	require.NoError(t, r.Scroll(cursor, 0))
	assert.Equal(t, 12.5, cam.Zoom())

	after := cam.WorldToScreen(pinned)
	assert.InDelta(t, cursor.X, after.X, 1e-6)
	assert.InDelta(t, cursor.Y, after.Y, 1e-6)
}

func TestScrollDuringDrag(t *testing.T) {
	r, cam, _ := newRouter(t, Config{})
	r.PointerDown(pt(10, 10))
	require.NoError(t, r.PointerMove(pt(60, 10)))
	require.NoError(t, r.Scroll(pt(60, 10), -1))
	assert.Equal(t, Dragging, r.Phase())
	assert.Equal(t, 13.5, cam.Zoom())
}

func TestSmoothScroll(t *testing.T) {
	proj := geo.Equirectangular{}
	cam, err := camera.New(camera.Config{ZoomMin: 2, ZoomMax: 20, Width: 800, Height: 600, ZoomRate: 8}, proj.Project(geo.GeoPoint{}), 5)
	require.NoError(t, err)
	r := NewRouter(Config{SmoothZoom: true}, cam, filter.New(), logger.NewNop())

	require.NoError(t, r.Scroll(pt(400, 300), -1))
	assert.True(t, cam.Animating())
	assert.Equal(t, 5.0, cam.Zoom())
}

func TestButtons(t *testing.T) {
	r, _, f := newRouter(t, Config{})

	tests := []struct {
		key   string
		check func() bool
	}{
		{ButtonWeather, func() bool { return f.ShowWeather }},
		{ButtonDebug, func() bool { return f.DebugEnabled }},
		{ButtonAirports, func() bool { return !f.ShowAirports }},
		{ButtonPlanes, func() bool { return !f.ShowPlanes }},
		{ButtonStrong, func() bool { return f.StrongWeatherOnly }},
		{"airline:NKS", func() bool { return f.ActiveAirlines["NKS"] }},
		{"Airline:other", func() bool { return f.ActiveAirlines["OTHER"] }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.NoError(t, r.Button(tt.key))
			assert.True(t, tt.check())
		})
	}

	err := r.Button("airline:JBU")
	assert.True(t, errors.Is(err, ErrUnknownButton))
	err = r.Button("radar")
	assert.True(t, errors.Is(err, ErrUnknownButton))
}

func TestSetAirlines(t *testing.T) {
	r, _, f := newRouter(t, Config{})
	require.NoError(t, r.SetAirlines([]string{"AAL", "dal"}))
	assert.Equal(t, []string{"AAL", "DAL"}, f.AirlineList())

	assert.Error(t, r.SetAirlines([]string{"AAL", "XYZ"}))
	assert.Equal(t, []string{"AAL", "DAL"}, f.AirlineList())

	require.NoError(t, r.SetAirlines(nil))
	assert.Empty(t, f.AirlineList())
}

func TestResize(t *testing.T) {
	r, cam, _ := newRouter(t, Config{})
	require.NoError(t, r.Resize(800, 600))
	w, h := cam.ViewportSize()
	assert.Equal(t, 800.0, w)
	assert.Equal(t, 600.0, h)
	assert.Error(t, r.Resize(-1, 600))
}

func TestApply(t *testing.T) {
	r, cam, f := newRouter(t, Config{})
	before := cam.Center()

	events := []Event{
		{Type: EventPointerDown, Point: pt(100, 100)},
		{Type: EventPointerMove, Point: pt(150, 140)},
	}
	for _, ev := range events {
		_, err := r.Apply(ev)
		require.NoError(t, err)
	}
	g, err := r.Apply(Event{Type: EventPointerUp, Point: pt(150, 140)})
	require.NoError(t, err)
	assert.Equal(t, GestureDrag, g)
	assert.NotEqual(t, before, cam.Center())

	_, err = r.Apply(Event{Type: EventButton, Key: ButtonWeather})
	require.NoError(t, err)
	assert.True(t, f.ShowWeather)

	_, err = r.Apply(Event{Type: "teleport"})
	assert.Error(t, err)
}
