package input

import (
	"fmt"

	"github.com/yegors/skyview/internal/camera"
)

// EventType names an input message
type EventType string

const (
	EventPointerDown EventType = "pointer_down"
	EventPointerMove EventType = "pointer_move"
	EventPointerUp   EventType = "pointer_up"
	EventScroll      EventType = "scroll"
	EventButton      EventType = "button"
	EventSetAirlines EventType = "set_airlines"
	EventResize      EventType = "resize"
)

// Event is one queued input message
type Event struct {
	Type   EventType
	Point  camera.ScreenPoint
	Delta  float64
	Key    string
	Codes  []string
	Width  float64
	Height float64
}

// Apply dispatches ev to the matching router operation. The gesture is
// only set for pointer_up.
func (r *Router) Apply(ev Event) (Gesture, error) {
	switch ev.Type {
	case EventPointerDown:
		r.PointerDown(ev.Point)
	case EventPointerMove:
		return GestureNone, r.PointerMove(ev.Point)
	case EventPointerUp:
		return r.PointerUp(ev.Point)
	case EventScroll:
		return GestureNone, r.Scroll(ev.Point, ev.Delta)
	case EventButton:
		return GestureNone, r.Button(ev.Key)
	case EventSetAirlines:
		return GestureNone, r.SetAirlines(ev.Codes)
	case EventResize:
		return GestureNone, r.Resize(ev.Width, ev.Height)
	default:
		return GestureNone, fmt.Errorf("unknown input event: %s", ev.Type)
	}
	return GestureNone, nil
}
