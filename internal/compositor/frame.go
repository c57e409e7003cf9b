package compositor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/entity"
)

// Layer is a draw layer; higher layers are painted later, on top
type Layer int

const (
	LayerAirports Layer = iota
	LayerWeather
	LayerPlanes
)

// DefaultLayerOrder is the bottom to top order used when none is configured
var DefaultLayerOrder = []Layer{LayerAirports, LayerWeather, LayerPlanes}

func (l Layer) String() string {
	switch l {
	case LayerAirports:
		return "airports"
	case LayerWeather:
		return "weather"
	case LayerPlanes:
		return "planes"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler
func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Kind returns the entity kind drawn on the layer
func (l Layer) Kind() entity.Kind {
	switch l {
	case LayerWeather:
		return entity.KindWeatherCell
	case LayerAirports:
		return entity.KindAirport
	default:
		return entity.KindPlane
	}
}

// ParseLayer converts a configured layer name
func ParseLayer(name string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "airports", "airport":
		return LayerAirports, nil
	case "weather", "wx":
		return LayerWeather, nil
	case "planes", "plane", "aircraft":
		return LayerPlanes, nil
	default:
		return 0, fmt.Errorf("unknown layer: %s", name)
	}
}

// ParseLayerOrder converts configured layer names into a draw order
func ParseLayerOrder(names []string) ([]Layer, error) {
	layers := make([]Layer, 0, len(names))
	for _, n := range names {
		l, err := ParseLayer(n)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return NormalizeLayerOrder(layers), nil
}

// NormalizeLayerOrder removes duplicates, appends missing layers in default
// order and moves planes to the top.
func NormalizeLayerOrder(layers []Layer) []Layer {
	seen := make(map[Layer]bool, len(DefaultLayerOrder))
	out := make([]Layer, 0, len(DefaultLayerOrder))
	add := func(l Layer) {
		if l == LayerPlanes || seen[l] {
			return
		}
		seen[l] = true
		out = append(out, l)
	}
	for _, l := range layers {
		add(l)
	}
	for _, l := range DefaultLayerOrder {
		add(l)
	}
	return append(out, LayerPlanes)
}

// RenderHint carries the attributes a renderer needs to draw an item
type RenderHint struct {
	Label         string  `json:"label,omitempty" msgpack:"label,omitempty"`
	Name          string  `json:"name,omitempty" msgpack:"name,omitempty"`
	Airline       string  `json:"airline,omitempty" msgpack:"airline,omitempty"`
	HeadingDeg    float64 `json:"heading,omitempty" msgpack:"heading,omitempty"`
	MagHeadingDeg float64 `json:"mag_heading,omitempty" msgpack:"mag_heading,omitempty"`
	AltitudeFt    float64 `json:"altitude_ft,omitempty" msgpack:"altitude_ft,omitempty"`
	GroundSpeedKt float64 `json:"ground_speed_kt,omitempty" msgpack:"ground_speed_kt,omitempty"`
	Intensity     float64 `json:"intensity,omitempty" msgpack:"intensity,omitempty"`
	Strong        bool    `json:"strong,omitempty" msgpack:"strong,omitempty"`
	RadiusPx      float64 `json:"radius_px,omitempty" msgpack:"radius_px,omitempty"`
}

// DrawItem is one entity placed on screen for a single frame
type DrawItem struct {
	EntityID string             `json:"id" msgpack:"id"`
	Kind     entity.Kind        `json:"kind" msgpack:"kind"`
	Layer    Layer              `json:"layer" msgpack:"layer"`
	Screen   camera.ScreenPoint `json:"screen" msgpack:"screen"`
	Hint     RenderHint         `json:"hint" msgpack:"hint"`
}

// GridItem is a graticule line in screen space, drawn beneath every layer
type GridItem struct {
	Axis  string             `json:"axis" msgpack:"axis"`
	Value float64            `json:"value" msgpack:"value"`
	From  camera.ScreenPoint `json:"from" msgpack:"from"`
	To    camera.ScreenPoint `json:"to" msgpack:"to"`
	Label string             `json:"label" msgpack:"label"`
}

// Frame is the draw set for one tick. Items are sorted bottom to top.
type Frame struct {
	Seq     uint64       `json:"seq" msgpack:"seq"`
	Time    time.Time    `json:"time" msgpack:"time"`
	Camera  camera.State `json:"camera" msgpack:"camera"`
	Width   float64      `json:"width" msgpack:"width"`
	Height  float64      `json:"height" msgpack:"height"`
	Grid    []GridItem   `json:"grid,omitempty" msgpack:"grid,omitempty"`
	Items   []DrawItem   `json:"items" msgpack:"items"`
	Debug   *Stats       `json:"debug,omitempty" msgpack:"debug,omitempty"`
	Overlay Overlay      `json:"overlay" msgpack:"overlay"`
}

// Overlay reports which toggles were in effect so the client can paint its
// buttons without a separate round trip
type Overlay struct {
	Planes         bool     `json:"planes" msgpack:"planes"`
	Weather        bool     `json:"weather" msgpack:"weather"`
	Airports       bool     `json:"airports" msgpack:"airports"`
	StrongWeather  bool     `json:"strong_weather" msgpack:"strong_weather"`
	Debug          bool     `json:"debug" msgpack:"debug"`
	ActiveAirlines []string `json:"active_airlines" msgpack:"active_airlines"`
}

// Count returns the number of items on layer
func (f *Frame) Count(layer Layer) int {
	n := 0
	for i := range f.Items {
		if f.Items[i].Layer == layer {
			n++
		}
	}
	return n
}

// IDs returns the entity ids in draw order
func (f *Frame) IDs() []string {
	ids := make([]string, len(f.Items))
	for i := range f.Items {
		ids[i] = f.Items[i].EntityID
	}
	return ids
}

// Renderer consumes finished frames
type Renderer interface {
	Render(frame *Frame) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(frame *Frame) error

func (f RendererFunc) Render(frame *Frame) error {
	return f(frame)
}

// RecordingRenderer keeps every frame it receives
type RecordingRenderer struct {
	mu     sync.Mutex
	frames []*Frame
	Err    error
}

func (r *RecordingRenderer) Render(frame *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.frames = append(r.frames, frame)
	return nil
}

// Frames returns the recorded frames
func (r *RecordingRenderer) Frames() []*Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Frame(nil), r.frames...)
}

// Last returns the most recent frame or nil
func (r *RecordingRenderer) Last() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}
