package geo

import (
	"fmt"
	"math"
)

// MaxMercatorLatitude is the latitude at which the Web Mercator square ends
const MaxMercatorLatitude = 85.05112878

// Projection maps geographic coordinates onto the world plane and back.
// Implementations carry no mutable state and are safe for concurrent use.
type Projection interface {
	Name() string
	Project(p GeoPoint) WorldPoint
	Unproject(w WorldPoint) GeoPoint
	// WorldBounds covers every point Project can return
	WorldBounds() Rect
}

// NewProjection returns the projection registered under name
func NewProjection(name string) (Projection, error) {
	switch name {
	case "", "equirectangular":
		return Equirectangular{}, nil
	case "mercator", "web-mercator":
		return WebMercator{}, nil
	default:
		return nil, fmt.Errorf("unknown projection: %s", name)
	}
}

// Equirectangular is a plate carrée projection scaled so one world unit is
// 360 degrees on both axes. X grows eastward from the antimeridian and Y
// grows southward from the north pole, matching screen orientation.
type Equirectangular struct{}

func (Equirectangular) Name() string { return "equirectangular" }

func (Equirectangular) Project(p GeoPoint) WorldPoint {
	return WorldPoint{
		X: (p.Longitude + 180) / 360,
		Y: (90 - p.Latitude) / 360,
	}
}

func (Equirectangular) Unproject(w WorldPoint) GeoPoint {
	return GeoPoint{
		Latitude:  90 - w.Y*360,
		Longitude: w.X*360 - 180,
	}
}

func (Equirectangular) WorldBounds() Rect {
	return Rect{Min: WorldPoint{X: 0, Y: 0}, Max: WorldPoint{X: 1, Y: 0.5}}
}

// WebMercator is the spherical Mercator used by slippy map tiles, normalised
// to the unit square. Latitudes beyond MaxMercatorLatitude are clamped, so
// round trips are exact only inside that band.
type WebMercator struct{}

func (WebMercator) Name() string { return "web-mercator" }

func (WebMercator) Project(p GeoPoint) WorldPoint {
	lat := math.Max(-MaxMercatorLatitude, math.Min(MaxMercatorLatitude, p.Latitude))
	rad := lat * math.Pi / 180
	return WorldPoint{
		X: (p.Longitude + 180) / 360,
		Y: (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2,
	}
}

func (WebMercator) Unproject(w WorldPoint) GeoPoint {
	n := math.Pi * (1 - 2*w.Y)
	return GeoPoint{
		Latitude:  math.Atan(math.Sinh(n)) * 180 / math.Pi,
		Longitude: w.X*360 - 180,
	}
}

func (WebMercator) WorldBounds() Rect {
	return Rect{Min: WorldPoint{X: 0, Y: 0}, Max: WorldPoint{X: 1, Y: 1}}
}
