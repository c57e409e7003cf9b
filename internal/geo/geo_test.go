package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoint(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{name: "origin", lat: 0, lon: 0},
		{name: "corners", lat: -90, lon: 180},
		{name: "lat too high", lat: 90.0001, lon: 0, wantErr: true},
		{name: "lon too low", lat: 0, lon: -180.5, wantErr: true},
		{name: "nan", lat: math.NaN(), lon: 0, wantErr: true},
		{name: "inf", lat: 0, lon: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoint(tt.lat, tt.lon)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidGeoPoint))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEquirectangularRoundTrip(t *testing.T) {
	proj := Equirectangular{}
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 11.25 {
			p := GeoPoint{Latitude: lat, Longitude: lon}
			back := proj.Unproject(proj.Project(p))
			assert.InDelta(t, lat, back.Latitude, 1e-6)
			assert.InDelta(t, lon, back.Longitude, 1e-6)
		}
	}
}

func TestWebMercatorRoundTrip(t *testing.T) {
	proj := WebMercator{}
	for lat := -85.0; lat <= 85; lat += 5 {
		for lon := -180.0; lon <= 180; lon += 30 {
			p := GeoPoint{Latitude: lat, Longitude: lon}
			back := proj.Unproject(proj.Project(p))
			assert.InDelta(t, lat, back.Latitude, 1e-6)
			assert.InDelta(t, lon, back.Longitude, 1e-6)
		}
	}
}

func TestProjectionsStayInWorldBounds(t *testing.T) {
	for _, proj := range []Projection{Equirectangular{}, WebMercator{}} {
		t.Run(proj.Name(), func(t *testing.T) {
			b := proj.WorldBounds()
			for _, p := range []GeoPoint{{80, -180}, {-80, 180}, {0, 0}, {33.6, -117.9}} {
				w := proj.Project(p)
				assert.True(t, b.Contains(w), "point %v projected to %v", p, w)
			}
		})
	}
}

func TestNewProjection(t *testing.T) {
	p, err := NewProjection("")
	require.NoError(t, err)
	assert.Equal(t, "equirectangular", p.Name())

	p, err = NewProjection("mercator")
	require.NoError(t, err)
	assert.Equal(t, "web-mercator", p.Name())

	_, err = NewProjection("azimuthal")
	assert.Error(t, err)
}

func TestRect(t *testing.T) {
	r := NewRect(WorldPoint{X: 0.4, Y: 0.2}, WorldPoint{X: 0.2, Y: 0.1})
	assert.Equal(t, WorldPoint{X: 0.2, Y: 0.1}, r.Min)
	assert.Equal(t, WorldPoint{X: 0.4, Y: 0.2}, r.Max)

	assert.True(t, r.Contains(WorldPoint{X: 0.3, Y: 0.15}))
	assert.False(t, r.Contains(WorldPoint{X: 0.41, Y: 0.15}))
	assert.True(t, r.Expand(0.02).Contains(WorldPoint{X: 0.41, Y: 0.15}))

	other := Rect{Min: WorldPoint{X: 0.39, Y: 0.19}, Max: WorldPoint{X: 0.5, Y: 0.3}}
	assert.True(t, r.Intersects(other))
	assert.InDelta(t, 0.2, r.Width(), 1e-12)
	assert.InDelta(t, 0.1, r.Height(), 1e-12)
}

func TestGridSpacing(t *testing.T) {
	tests := []struct {
		span, px float64
		want     float64
	}{
		{span: 360, px: 1000, want: 45},
		{span: 24, px: 1000, want: 5},
		{span: 1, px: 500, want: 0.5},
		{span: 0.05, px: 500, want: 0.02},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, GridSpacing(tt.span, tt.px), 1e-12, "span=%v px=%v", tt.span, tt.px)
	}
}

func TestGraticule(t *testing.T) {
	proj := Equirectangular{}
	visible := NewRect(
		proj.Project(GeoPoint{Latitude: 35, Longitude: -120}),
		proj.Project(GeoPoint{Latitude: 32, Longitude: -116}),
	)

	lines := Graticule(proj, visible, 1280, 720)
	require.NotEmpty(t, lines)

	var lat, lon int
	for _, l := range lines {
		switch l.Axis {
		case "lat":
			lat++
			assert.GreaterOrEqual(t, l.Value, 32.0)
			assert.LessOrEqual(t, l.Value, 35.0)
			assert.Contains(t, l.Label, "N")
		case "lon":
			lon++
			assert.Contains(t, l.Label, "W")
		}
	}
	assert.Positive(t, lat)
	assert.Positive(t, lon)
}
