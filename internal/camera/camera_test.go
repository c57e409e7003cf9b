package camera

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/geo"
)

const tolerance = 1e-9

func newTestCamera(t *testing.T) *Camera {
	t.Helper()
	proj := geo.Equirectangular{}
	center := proj.Project(geo.GeoPoint{Latitude: 33.604076, Longitude: -117.884507})
	cam, err := New(Config{ZoomMin: 2, ZoomMax: 20, Width: 1280, Height: 720}, center, 13)
	require.NoError(t, err)
	return cam
}

func TestScreenWorldInverse(t *testing.T) {
	cam := newTestCamera(t)
	for _, p := range []ScreenPoint{{0, 0}, {640, 360}, {1280, 720}, {13.5, 701.25}, {-50, 2000}} {
		back := cam.WorldToScreen(cam.ScreenToWorld(p))
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
	}
}

func TestCenterMapsToViewportMiddle(t *testing.T) {
	cam := newTestCamera(t)
	mid := cam.WorldToScreen(cam.Center())
	assert.InDelta(t, 640, mid.X, tolerance)
	assert.InDelta(t, 360, mid.Y, tolerance)
}

func TestPanRequiresDrag(t *testing.T) {
	cam := newTestCamera(t)
	before := cam.Center()

	require.NoError(t, cam.Pan(ScreenPoint{X: 40, Y: -10}))
	assert.Equal(t, before, cam.Center())

	cam.BeginDrag()
	require.NoError(t, cam.Pan(ScreenPoint{X: 40, Y: -10}))
	assert.NotEqual(t, before, cam.Center())
}

func TestPanNetZeroReturnsToOrigin(t *testing.T) {
	cam := newTestCamera(t)
	origin := cam.Center()

	cam.BeginDrag()
	deltas := []ScreenPoint{{10, 5}, {-3, 20}, {150, -80}, {-7, 0.5}}
	var sum ScreenPoint
	for _, d := range deltas {
		require.NoError(t, cam.Pan(d))
		sum.X += d.X
		sum.Y += d.Y
	}
	require.NoError(t, cam.Pan(ScreenPoint{X: -sum.X, Y: -sum.Y}))
	cam.EndDrag()

	assert.InDelta(t, origin.X, cam.Center().X, tolerance)
	assert.InDelta(t, origin.Y, cam.Center().Y, tolerance)
}

func TestPanMovesContentWithPointer(t *testing.T) {
	cam := newTestCamera(t)
	grabbed := cam.ScreenToWorld(ScreenPoint{X: 100, Y: 100})

	cam.BeginDrag()
	require.NoError(t, cam.Pan(ScreenPoint{X: 50, Y: 40}))

	now := cam.WorldToScreen(grabbed)
	assert.InDelta(t, 150, now.X, 1e-6)
	assert.InDelta(t, 140, now.Y, 1e-6)
}

func TestZoomKeepsAnchorFixed(t *testing.T) {
	anchors := []ScreenPoint{{0, 0}, {640, 360}, {1000, 100}, {1279, 719}}
	steps := []float64{1, -1, 0.5, -0.25, 3}

	for _, anchor := range anchors {
		for _, step := range steps {
			cam := newTestCamera(t)
			pinned := cam.ScreenToWorld(anchor)

			require.NoError(t, cam.ZoomBy(step, anchor))

			after := cam.WorldToScreen(pinned)
			assert.InDelta(t, anchor.X, after.X, 1e-6, "anchor %v step %v", anchor, step)
			assert.InDelta(t, anchor.Y, after.Y, 1e-6, "anchor %v step %v", anchor, step)

			roundTrip := cam.WorldToScreen(cam.ScreenToWorld(anchor))
			assert.InDelta(t, anchor.X, roundTrip.X, 1e-6)
			assert.InDelta(t, anchor.Y, roundTrip.Y, 1e-6)
		}
	}
}

func TestZoomIsClamped(t *testing.T) {
	cam := newTestCamera(t)
	anchor := ScreenPoint{X: 300, Y: 200}

	for i := 0; i < 50; i++ {
		require.NoError(t, cam.ZoomBy(1, anchor))
	}
	assert.Equal(t, 20.0, cam.Zoom())

	for i := 0; i < 100; i++ {
		require.NoError(t, cam.ZoomBy(-0.7, anchor))
	}
	assert.Equal(t, 2.0, cam.Zoom())

	steps := []float64{3, -1.5, 40, -0.1, -99, 7.25}
	for _, s := range steps {
		require.NoError(t, cam.ZoomBy(s, anchor))
		assert.GreaterOrEqual(t, cam.Zoom(), 2.0)
		assert.LessOrEqual(t, cam.Zoom(), 20.0)
	}
}

func TestNonFiniteRejected(t *testing.T) {
	cam := newTestCamera(t)
	before := cam.State()

	err := cam.ZoomBy(math.NaN(), ScreenPoint{X: 10, Y: 10})
	assert.True(t, errors.Is(err, ErrNonFiniteState))
	assert.Equal(t, before, cam.State())

	err = cam.ZoomBy(1, ScreenPoint{X: math.Inf(1), Y: 10})
	assert.True(t, errors.Is(err, ErrNonFiniteState))
	assert.Equal(t, before, cam.State())

	cam.BeginDrag()
	err = cam.Pan(ScreenPoint{X: math.NaN(), Y: 0})
	assert.True(t, errors.Is(err, ErrNonFiniteState))
	assert.Equal(t, before, cam.State())

	err = cam.Restore(State{Center: geo.WorldPoint{X: math.Inf(-1)}, Zoom: 5})
	assert.True(t, errors.Is(err, ErrNonFiniteState))
	assert.Equal(t, before, cam.State())
}

func TestVisibleRect(t *testing.T) {
	cam := newTestCamera(t)
	r := cam.VisibleRect()

	assert.InDelta(t, 1280/cam.Scale(), r.Width(), tolerance)
	assert.InDelta(t, 720/cam.Scale(), r.Height(), tolerance)
	assert.InDelta(t, cam.Center().X, r.Center().X, tolerance)
	assert.True(t, r.Contains(cam.Center()))

	require.NoError(t, cam.SetViewportSize(640, 480))
	assert.InDelta(t, 640/cam.Scale(), cam.VisibleRect().Width(), tolerance)
	assert.Error(t, cam.SetViewportSize(0, 480))
}

func TestSmoothZoomConverges(t *testing.T) {
	proj := geo.Equirectangular{}
	center := proj.Project(geo.GeoPoint{Latitude: 10, Longitude: 10})
	cam, err := New(Config{ZoomMin: 2, ZoomMax: 20, Width: 800, Height: 600, ZoomRate: 4}, center, 10)
	require.NoError(t, err)

	anchor := ScreenPoint{X: 200, Y: 150}
	pinned := cam.ScreenToWorld(anchor)

	require.NoError(t, cam.ZoomSmooth(1, anchor))
	require.NoError(t, cam.ZoomSmooth(1, anchor))
	assert.True(t, cam.Animating())
	assert.Equal(t, 10.0, cam.Zoom())

	for i := 0; i < 10 && cam.Animating(); i++ {
		require.NoError(t, cam.Advance(100*time.Millisecond))
		after := cam.WorldToScreen(pinned)
		assert.InDelta(t, anchor.X, after.X, 1e-6)
		assert.InDelta(t, anchor.Y, after.Y, 1e-6)
	}

	assert.False(t, cam.Animating())
	assert.InDelta(t, 12.0, cam.Zoom(), tolerance)
}

func TestSmoothZoomWithoutRateIsImmediate(t *testing.T) {
	cam := newTestCamera(t)
	require.NoError(t, cam.ZoomSmooth(-1, ScreenPoint{X: 640, Y: 360}))
	assert.False(t, cam.Animating())
	assert.Equal(t, 12.0, cam.Zoom())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{ZoomMin: 10, ZoomMax: 2, Width: 10, Height: 10}, geo.WorldPoint{}, 5)
	assert.Error(t, err)

	cam, err := New(Config{ZoomMin: 2, ZoomMax: 4, Width: 10, Height: 10}, geo.WorldPoint{}, 9)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cam.Zoom())
	assert.Equal(t, DefaultTileSize*16, cam.Scale())
}
