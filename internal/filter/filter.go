package filter

import (
	"sort"
	"strings"

	"github.com/brunoga/deep"
	"github.com/yegors/skyview/internal/entity"
)

// Airline filter keys. Planes whose callsign prefix is not one of the named
// carriers are classified as OTHER.
const (
	AirlineSpirit    = "NKS"
	AirlineAmerican  = "AAL"
	AirlineSouthwest = "SWA"
	AirlineUnited    = "UAL"
	AirlineDelta     = "DAL"
	AirlineOther     = "OTHER"
)

// DefaultStrongThreshold is the precipitation rate in mm/h at which a cell
// counts as strong weather (heavy rain).
const DefaultStrongThreshold = 7.6

// Airline is a filter key with its display name
type Airline struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Airlines lists the filter keys in panel order
var Airlines = []Airline{
	{Code: AirlineSpirit, Name: "Spirit Airlines"},
	{Code: AirlineAmerican, Name: "American Airlines"},
	{Code: AirlineSouthwest, Name: "Southwest Airlines"},
	{Code: AirlineUnited, Name: "United Airlines"},
	{Code: AirlineDelta, Name: "Delta Air Lines"},
	{Code: AirlineOther, Name: "Other"},
}

// IsAirlineKey reports whether code is one of the filter keys
func IsAirlineKey(code string) bool {
	code = normalize(code)
	for _, a := range Airlines {
		if a.Code == code {
			return true
		}
	}
	return false
}

// ClassifyAirline maps an ICAO airline designator to its filter key
func ClassifyAirline(icao string) string {
	icao = normalize(icao)
	for _, a := range Airlines[:len(Airlines)-1] {
		if a.Code == icao {
			return icao
		}
	}
	return AirlineOther
}

// State holds which entities a view displays. It is owned by one view
// session; use Snapshot to hand a copy to other goroutines.
type State struct {
	// ActiveAirlines restricts planes to these keys; empty shows all airlines
	ActiveAirlines map[string]bool `json:"active_airlines"`

	ShowPlanes        bool    `json:"show_planes"`
	ShowWeather       bool    `json:"show_weather"`
	ShowAirports      bool    `json:"show_airports"`
	StrongWeatherOnly bool    `json:"strong_weather_only"`
	DebugEnabled      bool    `json:"debug_enabled"`
	StrongThreshold   float64 `json:"strong_threshold"`
}

// New returns the startup filter: planes and airports shown, weather and
// debug off, all airlines.
func New() *State {
	return &State{
		ActiveAirlines:  map[string]bool{},
		ShowPlanes:      true,
		ShowAirports:    true,
		StrongThreshold: DefaultStrongThreshold,
	}
}

// SetAirlineFilter replaces the active airline set. An empty list shows all
// airlines.
func (s *State) SetAirlineFilter(codes []string) {
	s.ActiveAirlines = make(map[string]bool, len(codes))
	for _, c := range codes {
		if c = normalize(c); c != "" {
			s.ActiveAirlines[c] = true
		}
	}
}

// ToggleAirline adds or removes one airline and reports whether it is now active
func (s *State) ToggleAirline(code string) bool {
	code = normalize(code)
	if code == "" {
		return false
	}
	if s.ActiveAirlines == nil {
		s.ActiveAirlines = map[string]bool{}
	}
	if s.ActiveAirlines[code] {
		delete(s.ActiveAirlines, code)
		return false
	}
	s.ActiveAirlines[code] = true
	return true
}

// AirlineList returns the active airline keys in sorted order
func (s *State) AirlineList() []string {
	out := make([]string, 0, len(s.ActiveAirlines))
	for code, on := range s.ActiveAirlines {
		if on {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

func (s *State) TogglePlanes() bool {
	s.ShowPlanes = !s.ShowPlanes
	return s.ShowPlanes
}

func (s *State) ToggleWeather() bool {
	s.ShowWeather = !s.ShowWeather
	return s.ShowWeather
}

func (s *State) ToggleAirports() bool {
	s.ShowAirports = !s.ShowAirports
	return s.ShowAirports
}

func (s *State) ToggleStrongWeather() bool {
	s.StrongWeatherOnly = !s.StrongWeatherOnly
	return s.StrongWeatherOnly
}

func (s *State) ToggleDebug() bool {
	s.DebugEnabled = !s.DebugEnabled
	return s.DebugEnabled
}

// Matches reports whether e should be drawn under this filter. Its
// signature matches store.Predicate.
func (s *State) Matches(e *entity.Entity) bool {
	switch e.Kind {
	case entity.KindPlane:
		if !s.ShowPlanes || e.Plane == nil {
			return false
		}
		if len(s.ActiveAirlines) == 0 {
			return true
		}
		return s.ActiveAirlines[normalize(e.Plane.Airline)]
	case entity.KindWeatherCell:
		if !s.ShowWeather || e.Weather == nil {
			return false
		}
		return !s.StrongWeatherOnly || e.Weather.Intensity >= s.StrongThreshold
	case entity.KindAirport:
		return s.ShowAirports
	default:
		return false
	}
}

// ShowsKind reports whether any entity of kind can pass the filter, letting
// the compositor skip a layer's query entirely.
func (s *State) ShowsKind(kind entity.Kind) bool {
	switch kind {
	case entity.KindPlane:
		return s.ShowPlanes
	case entity.KindWeatherCell:
		return s.ShowWeather
	case entity.KindAirport:
		return s.ShowAirports
	default:
		return false
	}
}

// Snapshot returns a copy sharing no memory with s
func (s *State) Snapshot() State {
	return deep.MustCopy(*s)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
