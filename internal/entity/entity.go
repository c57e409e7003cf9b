package entity

import (
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/yegors/skyview/internal/geo"
)

// Kind identifies the variant of an entity
type Kind int

const (
	KindPlane Kind = iota
	KindWeatherCell
	KindAirport
)

// Kinds lists every variant in store order
var Kinds = []Kind{KindPlane, KindWeatherCell, KindAirport}

func (k Kind) String() string {
	switch k {
	case KindPlane:
		return "plane"
	case KindWeatherCell:
		return "weather"
	case KindAirport:
		return "airport"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a name as used in the API back to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "plane", "planes", "aircraft":
		return KindPlane, nil
	case "weather", "weather_cell", "wx":
		return KindWeatherCell, nil
	case "airport", "airports":
		return KindAirport, nil
	default:
		return 0, fmt.Errorf("unknown entity kind: %s", s)
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialise by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Entity is the latest known state of a plane, weather cell or airport.
// Exactly one of the attribute pointers matching Kind is set.
type Entity struct {
	ID       string       `json:"id"`
	Kind     Kind         `json:"kind"`
	Position geo.GeoPoint `json:"position"`

	// Timestamp is when the source observed this state; newer wins
	Timestamp time.Time `json:"timestamp"`
	// LastUpdated is set by the store when the update is accepted
	LastUpdated time.Time `json:"last_updated"`

	Plane   *PlaneAttrs   `json:"plane,omitempty"`
	Weather *WeatherAttrs `json:"weather,omitempty"`
	Airport *AirportAttrs `json:"airport,omitempty"`
}

// PlaneAttrs are the aircraft specific fields
type PlaneAttrs struct {
	Callsign      string  `json:"callsign"`
	Airline       string  `json:"airline"` // filter key, e.g. "AAL" or "OTHER"
	AirlineName   string  `json:"airline_name,omitempty"`
	TrackDeg      float64 `json:"track"`
	AltitudeFt    float64 `json:"altitude_ft"`
	GroundSpeedKt float64 `json:"ground_speed_kt"`
	OnGround      bool    `json:"on_ground"`
	Source        string  `json:"source,omitempty"`
}

// WeatherAttrs describe a precipitation cell
type WeatherAttrs struct {
	Intensity float64           `json:"intensity"` // precipitation in mm/h
	RadiusNM  float64           `json:"radius_nm"`
	Shape     *geojson.Geometry `json:"shape,omitempty"`
}

// AirportAttrs describe an airport marker
type AirportAttrs struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Type        string  `json:"type,omitempty"`
	ElevationFt float64 `json:"elevation_ft"`
}

// Validate checks the entity is well formed for its kind
func (e Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%s entity has empty id", e.Kind)
	}
	if err := e.Position.Validate(); err != nil {
		return err
	}
	switch e.Kind {
	case KindPlane:
		if e.Plane == nil {
			return fmt.Errorf("plane %s missing plane attributes", e.ID)
		}
	case KindWeatherCell:
		if e.Weather == nil {
			return fmt.Errorf("weather cell %s missing weather attributes", e.ID)
		}
	case KindAirport:
		if e.Airport == nil {
			return fmt.Errorf("airport %s missing airport attributes", e.ID)
		}
	default:
		return fmt.Errorf("entity %s has unknown kind %d", e.ID, int(e.Kind))
	}
	return nil
}

// Clone returns a copy that shares no attribute pointers with e
func (e Entity) Clone() Entity {
	out := e
	if e.Plane != nil {
		p := *e.Plane
		out.Plane = &p
	}
	if e.Weather != nil {
		w := *e.Weather
		out.Weather = &w
	}
	if e.Airport != nil {
		a := *e.Airport
		out.Airport = &a
	}
	return out
}

// Feature converts the entity into a GeoJSON feature for API output
func (e Entity) Feature() *geojson.Feature {
	var f *geojson.Feature
	if e.Weather != nil && e.Weather.Shape != nil {
		f = geojson.NewFeature(e.Weather.Shape.Geometry())
	} else {
		f = geojson.NewFeature(e.Position.Orb())
	}
	f.ID = e.ID
	f.Properties["kind"] = e.Kind.String()
	f.Properties["timestamp"] = e.Timestamp
	f.Properties["last_updated"] = e.LastUpdated

	switch {
	case e.Plane != nil:
		f.Properties["callsign"] = e.Plane.Callsign
		f.Properties["airline"] = e.Plane.Airline
		f.Properties["track"] = e.Plane.TrackDeg
		f.Properties["altitude_ft"] = e.Plane.AltitudeFt
		f.Properties["ground_speed_kt"] = e.Plane.GroundSpeedKt
	case e.Weather != nil:
		f.Properties["intensity"] = e.Weather.Intensity
		f.Properties["radius_nm"] = e.Weather.RadiusNM
	case e.Airport != nil:
		f.Properties["code"] = e.Airport.Code
		f.Properties["name"] = e.Airport.Name
		f.Properties["type"] = e.Airport.Type
	}
	return f
}

// NewFeatureCollection wraps entities as a GeoJSON feature collection
func NewFeatureCollection(entities []Entity) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range entities {
		fc.Append(e.Feature())
	}
	return fc
}
