package physics

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusM  = 6371000.0
	EarthRadiusNM = 3440.065 // 6371 km / 1.852 km/nm
	MetersPerNM   = 1852.0
	FeetToMeters  = 0.3048
	KnotsToMs     = 0.514444 // Conversion factor from Knots to m/s
	MsToKnots     = 1.94384  // Conversion factor from m/s to Knots
)

// ------------------------------------------------------------------------------------------------
// NAVIGATION PHYSICS
// ------------------------------------------------------------------------------------------------

// Vector2D represents a 2D vector (magnitude, direction)
type Vector2D struct {
	X float64 // East component
	Y float64 // North component
}

// HeadingToVector converts a heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	rad := (90 - headingDeg) * math.Pi / 180 // Convert compass heading to math angle
	return Vector2D{
		X: magnitude * math.Cos(rad),
		Y: magnitude * math.Sin(rad),
	}
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// Haversine returns the great circle distance in meters between two points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// MetersToNM converts meters to nautical miles
func MetersToNM(m float64) float64 {
	return m / MetersPerNM
}

// Bearing calculates the initial bearing from point 1 to point 2
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1 = lat1 * math.Pi / 180
	lon1 = lon1 * math.Pi / 180
	lat2 = lat2 * math.Pi / 180
	lon2 = lon2 * math.Pi / 180

	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	return NormalizeHeading(math.Atan2(y, x) * 180 / math.Pi)
}

// DestinationPoint returns the point reached from lat/lon after travelling
// distanceNM along bearing on a great circle
func DestinationPoint(lat, lon, bearing, distanceNM float64) (float64, float64) {
	lat = lat * math.Pi / 180
	lon = lon * math.Pi / 180
	bearing = bearing * math.Pi / 180

	distRatio := distanceNM / EarthRadiusNM
	lat2 := math.Asin(math.Sin(lat)*math.Cos(distRatio) + math.Cos(lat)*math.Sin(distRatio)*math.Cos(bearing))
	lon2 := lon + math.Atan2(
		math.Sin(bearing)*math.Sin(distRatio)*math.Cos(lat),
		math.Cos(distRatio)-math.Sin(lat)*math.Sin(lat2),
	)

	lon2 = math.Mod(lon2*180/math.Pi+540, 360) - 180
	return lat2 * 180 / math.Pi, lon2
}

// DeadReckon advances a position flying trackDeg at speedKts for dt
func DeadReckon(lat, lon, trackDeg, speedKts float64, dt time.Duration) (float64, float64) {
	distanceNM := speedKts * dt.Hours()
	if distanceNM == 0 {
		return lat, lon
	}
	return DestinationPoint(lat, lon, trackDeg, distanceNM)
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D() // Declination
}

// MagneticHeading converts a true heading using a declination (+East)
func MagneticHeading(trueDeg, variationDeg float64) float64 {
	return NormalizeHeading(trueDeg - variationDeg)
}

// Declinations caches magnetic variation on a one degree grid. The field
// changes slowly, so per frame lookups hit the cache almost always.
type Declinations struct {
	cache *expirable.LRU[string, float64]
	now   func() time.Time
}

// NewDeclinations creates a cache holding up to size grid cells for ttl
func NewDeclinations(size int, ttl time.Duration) *Declinations {
	if size <= 0 {
		size = 1024
	}
	return &Declinations{
		cache: expirable.NewLRU[string, float64](size, nil, ttl),
		now:   time.Now,
	}
}

// At returns the declination for the grid cell containing lat/lon at sea level
func (d *Declinations) At(lat, lon float64) float64 {
	cellLat := math.Floor(lat) + 0.5
	cellLon := math.Floor(lon) + 0.5
	key := fmt.Sprintf("%.0f:%.0f", cellLat*2, cellLon*2)

	if v, ok := d.cache.Get(key); ok {
		return v
	}
	v := CalculateMagneticVariation(cellLat, cellLon, 0, d.now())
	d.cache.Add(key, v)
	return v
}

// Len returns the number of cached cells
func (d *Declinations) Len() int {
	return d.cache.Len()
}
