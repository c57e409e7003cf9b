package compositor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Debug metric names
const (
	MetricFrameBuildMs   = "frame_build_ms"
	MetricQueryMs        = "query_ms"
	MetricProjectMs      = "project_ms"
	MetricSortMs         = "sort_ms"
	MetricPlanesVisible  = "planes_visible"
	MetricWeatherVisible = "weather_cells_visible"
	MetricAirports       = "airports_visible"
	MetricGridLines      = "grid_lines"
	MetricFPS            = "fps"
	MetricZoom           = "zoom"
)

// DebugSink receives per frame debug metrics
type DebugSink interface {
	Emit(name string, value float64)
}

// NopSink discards everything
type NopSink struct{}

func (NopSink) Emit(string, float64) {}

// MapSink keeps the latest value of each metric
type MapSink struct {
	mu     sync.Mutex
	values map[string]float64
}

func NewMapSink() *MapSink {
	return &MapSink{values: make(map[string]float64)}
}

func (s *MapSink) Emit(name string, value float64) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
}

// Values returns a copy of the recorded metrics
func (s *MapSink) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// PrometheusSink exports metrics as gauges labelled by view session
type PrometheusSink struct {
	vec     *prometheus.GaugeVec
	session string
}

// NewPrometheusSink binds a gauge vector with "session" and "metric" labels
// to one session
func NewPrometheusSink(vec *prometheus.GaugeVec, session string) *PrometheusSink {
	return &PrometheusSink{vec: vec, session: session}
}

func (s *PrometheusSink) Emit(name string, value float64) {
	s.vec.WithLabelValues(s.session, name).Set(value)
}

// Forget drops the session's series, called when the session ends
func (s *PrometheusSink) Forget() {
	s.vec.DeletePartialMatch(prometheus.Labels{"session": s.session})
}

// MultiSink fans metrics out to several sinks
type MultiSink []DebugSink

func (m MultiSink) Emit(name string, value float64) {
	for _, s := range m {
		s.Emit(name, value)
	}
}

// Stats describes the cost and content of one frame
type Stats struct {
	BuildMs         float64 `json:"frame_build_ms" msgpack:"frame_build_ms"`
	QueryMs         float64 `json:"query_ms" msgpack:"query_ms"`
	ProjectMs       float64 `json:"project_ms" msgpack:"project_ms"`
	SortMs          float64 `json:"sort_ms" msgpack:"sort_ms"`
	PlanesVisible   int     `json:"planes_visible" msgpack:"planes_visible"`
	WeatherVisible  int     `json:"weather_cells_visible" msgpack:"weather_cells_visible"`
	AirportsVisible int     `json:"airports_visible" msgpack:"airports_visible"`
	GridLines       int     `json:"grid_lines" msgpack:"grid_lines"`
	FPS             float64 `json:"fps" msgpack:"fps"`
	Zoom            float64 `json:"zoom" msgpack:"zoom"`
}

// Emit writes every field to sink
func (s Stats) Emit(sink DebugSink) {
	sink.Emit(MetricFrameBuildMs, s.BuildMs)
	sink.Emit(MetricQueryMs, s.QueryMs)
	sink.Emit(MetricProjectMs, s.ProjectMs)
	sink.Emit(MetricSortMs, s.SortMs)
	sink.Emit(MetricPlanesVisible, float64(s.PlanesVisible))
	sink.Emit(MetricWeatherVisible, float64(s.WeatherVisible))
	sink.Emit(MetricAirports, float64(s.AirportsVisible))
	sink.Emit(MetricGridLines, float64(s.GridLines))
	sink.Emit(MetricFPS, s.FPS)
	sink.Emit(MetricZoom, s.Zoom)
}
