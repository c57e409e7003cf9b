package geo

import (
	"fmt"
	"math"
)

// maxGridLines bounds the number of lines per axis when a caller passes a
// degenerate viewport
const maxGridLines = 256

// GridLine is one line of latitude or longitude clipped to a viewport
type GridLine struct {
	Axis  string // "lat" or "lon"
	Value float64
	From  WorldPoint
	To    WorldPoint
	Label string
}

// GridSpacing picks the spacing in degrees between grid lines for a span of
// spanDegrees shown across pixels screen pixels.
func GridSpacing(spanDegrees, pixels float64) float64 {
	if pixels <= 0 || spanDegrees <= 0 {
		return 45
	}
	const distanceScale = 2.0
	mapped := spanDegrees * 500 / pixels

	for _, d := range []float64{45, 15, 5, 2, 1} {
		if mapped > d*distanceScale {
			return d
		}
	}

	power := math.Log10(mapped / distanceScale)
	part := power - math.Floor(power)
	exp := math.Pow(10, math.Ceil(power))

	switch {
	case part >= 0.5:
		return 0.5 * exp
	case part >= 0.2:
		return 0.2 * exp
	default:
		return 0.1 * exp
	}
}

// Graticule returns the latitude and longitude lines crossing visible
func Graticule(proj Projection, visible Rect, widthPx, heightPx float64) []GridLine {
	bounds := proj.WorldBounds()
	clip := Rect{
		Min: WorldPoint{X: math.Max(visible.Min.X, bounds.Min.X), Y: math.Max(visible.Min.Y, bounds.Min.Y)},
		Max: WorldPoint{X: math.Min(visible.Max.X, bounds.Max.X), Y: math.Min(visible.Max.Y, bounds.Max.Y)},
	}
	if clip.Width() <= 0 || clip.Height() <= 0 {
		return nil
	}

	topLeft := proj.Unproject(clip.Min)
	bottomRight := proj.Unproject(clip.Max)

	var lines []GridLine

	latTop, latBottom := topLeft.Latitude, bottomRight.Latitude
	latStep := GridSpacing(latTop-latBottom, heightPx)
	latPrecision := labelPrecision(latStep)
	for i, lat := 0, math.Floor(latTop/latStep)*latStep; lat >= latBottom && i < maxGridLines; i, lat = i+1, lat-latStep {
		y := proj.Project(GeoPoint{Latitude: lat}).Y
		lines = append(lines, GridLine{
			Axis:  "lat",
			Value: lat,
			From:  WorldPoint{X: clip.Min.X, Y: y},
			To:    WorldPoint{X: clip.Max.X, Y: y},
			Label: hemisphereLabel(lat, latPrecision, "N", "S"),
		})
	}

	lonLeft, lonRight := topLeft.Longitude, bottomRight.Longitude
	lonStep := GridSpacing(lonRight-lonLeft, widthPx)
	lonPrecision := labelPrecision(lonStep)
	for i, lon := 0, math.Ceil(lonLeft/lonStep)*lonStep; lon <= lonRight && i < maxGridLines; i, lon = i+1, lon+lonStep {
		x := proj.Project(GeoPoint{Longitude: lon}).X
		lines = append(lines, GridLine{
			Axis:  "lon",
			Value: lon,
			From:  WorldPoint{X: x, Y: clip.Min.Y},
			To:    WorldPoint{X: x, Y: clip.Max.Y},
			Label: hemisphereLabel(lon, lonPrecision, "E", "W"),
		})
	}

	return lines
}

func labelPrecision(step float64) int {
	l := math.Log10(step)
	if l < 0 {
		return int(-math.Floor(l))
	}
	return 0
}

func hemisphereLabel(v float64, precision int, pos, neg string) string {
	if v >= 0 {
		return fmt.Sprintf("%.*f°%s", precision, v, pos)
	}
	return fmt.Sprintf("%.*f°%s", precision, -v, neg)
}
