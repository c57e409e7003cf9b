package adsb

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RawAircraftData is one poll of a dump1090 style aircraft.json, or an
// OpenSky response converted into the same shape
type RawAircraftData struct {
	Now      float64  `json:"now"`
	Messages int      `json:"messages"`
	Aircraft []Target `json:"aircraft"`
}

// Target is a single aircraft in the raw ADS-B data
type Target struct {
	Hex      string        `json:"hex"`
	Flight   string        `json:"flight"`
	AltBaro  FlexibleField `json:"alt_baro"`
	AltGeom  float64       `json:"alt_geom"`
	GS       float64       `json:"gs"`
	Track    float64       `json:"track"`
	BaroRate float64       `json:"baro_rate"`
	Squawk   string        `json:"squawk"`
	Category string        `json:"category"`
	Lat      float64       `json:"lat"`
	Lon      float64       `json:"lon"`
	SeenPos  float64       `json:"seen_pos"` // seconds since the position was last updated
	Seen     float64       `json:"seen"`
	RSSI     float64       `json:"rssi"`

	SourceType string `json:"source_type,omitempty"` // "local" or "opensky"
	OnGround   *bool  `json:"on_ground,omitempty"`   // explicit ground status from source
}

// HasPosition reports whether the target carried a position in this poll
func (t *Target) HasPosition() bool {
	return !(t.Lat == 0 && t.Lon == 0)
}

// Grounded reports whether the source says the aircraft is on the ground.
// dump1090 reports alt_baro as the string "ground" for surface targets.
func (t *Target) Grounded() bool {
	if t.OnGround != nil {
		return *t.OnGround
	}
	return t.AltBaro.IsGround()
}

// Airline is an entry of the airlines.json database
type Airline struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Alias    string `json:"alias"`
	IATA     string `json:"iata"`
	ICAO     string `json:"icao"`
	Callsign string `json:"callsign"`
	Country  string `json:"country"`
	Active   string `json:"active"`
}

// FlexibleField can hold either a string or a number
type FlexibleField struct {
	value any
}

// NewFlexibleFloat wraps a numeric value
func NewFlexibleFloat(v float64) FlexibleField {
	return FlexibleField{value: v}
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleField", data)
}

// MarshalJSON writes the held value back out unchanged
func (f FlexibleField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// Float64 returns the value as a float64
func (f FlexibleField) Float64() float64 {
	switch v := f.value.(type) {
	case float64:
		return v
	case string:
		if v == "" || v == "ground" {
			return 0
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// IsGround reports the dump1090 "ground" marker
func (f FlexibleField) IsGround() bool {
	s, ok := f.value.(string)
	return ok && s == "ground"
}
