package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidGeoPoint is returned for coordinates outside [-90,90]/[-180,180] or non-finite
var ErrInvalidGeoPoint = errors.New("invalid geo point")

// GeoPoint is a geographic position in decimal degrees
type GeoPoint struct {
	Latitude  float64 `json:"lat" msgpack:"lat"`
	Longitude float64 `json:"lon" msgpack:"lon"`
}

// NewPoint returns a validated GeoPoint
func NewPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks the point lies within the valid coordinate range
func (p GeoPoint) Validate() error {
	if !finite(p.Latitude) || !finite(p.Longitude) ||
		p.Latitude < -90 || p.Latitude > 90 ||
		p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidGeoPoint, p.Latitude, p.Longitude)
	}
	return nil
}

// Orb returns the point as an orb.Point in lon/lat order
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// WorldPoint is a position on the projected world plane
type WorldPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+o
func (p WorldPoint) Add(o WorldPoint) WorldPoint {
	return WorldPoint{X: p.X + o.X, Y: p.Y + o.Y}
}

// Sub returns p-o
func (p WorldPoint) Sub(o WorldPoint) WorldPoint {
	return WorldPoint{X: p.X - o.X, Y: p.Y - o.Y}
}

// Scale returns p*s
func (p WorldPoint) Scale(s float64) WorldPoint {
	return WorldPoint{X: p.X * s, Y: p.Y * s}
}

// IsFinite reports whether both components are finite
func (p WorldPoint) IsFinite() bool {
	return finite(p.X) && finite(p.Y)
}

// Orb returns the point as an orb.Point for spatial indexing
func (p WorldPoint) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Rect is an axis aligned rectangle on the world plane
type Rect struct {
	Min WorldPoint `json:"min"`
	Max WorldPoint `json:"max"`
}

// NewRect returns the rectangle spanned by two corners in any order
func NewRect(a, b WorldPoint) Rect {
	return Rect{
		Min: WorldPoint{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: WorldPoint{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
}

// Bound converts the rectangle to an orb.Bound
func (r Rect) Bound() orb.Bound {
	return orb.Bound{Min: r.Min.Orb(), Max: r.Max.Orb()}
}

// Expand grows the rectangle by margin on every side
func (r Rect) Expand(margin float64) Rect {
	b := r.Bound().Pad(margin)
	return Rect{
		Min: WorldPoint{X: b.Min[0], Y: b.Min[1]},
		Max: WorldPoint{X: b.Max[0], Y: b.Max[1]},
	}
}

// Contains reports whether p lies inside r, edges included
func (r Rect) Contains(p WorldPoint) bool {
	return r.Bound().Contains(p.Orb())
}

// Intersects reports whether r and o overlap
func (r Rect) Intersects(o Rect) bool {
	return r.Bound().Intersects(o.Bound())
}

// Width of the rectangle
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height of the rectangle
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Center of the rectangle
func (r Rect) Center() WorldPoint {
	return WorldPoint{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
