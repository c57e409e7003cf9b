package view

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/input"
)

var validate = validator.New()

// ClientMessage is the envelope of every message a browser sends
type ClientMessage struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

type pointerPayload struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

type scrollPayload struct {
	X     *float64 `json:"x" validate:"required"`
	Y     *float64 `json:"y" validate:"required"`
	Delta float64  `json:"delta"`
}

type buttonPayload struct {
	Key string `json:"key" validate:"required,max=32"`
}

type airlinesPayload struct {
	Codes []string `json:"codes" validate:"max=16,dive,max=8"`
}

type resizePayload struct {
	Width  float64 `json:"width" validate:"gt=0,lte=16384"`
	Height float64 `json:"height" validate:"gt=0,lte=16384"`
}

// DecodeEvent parses and validates one client message into an input event
func DecodeEvent(raw []byte) (input.Event, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return input.Event{}, fmt.Errorf("decode message: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return input.Event{}, fmt.Errorf("invalid message: %w", err)
	}

	ev := input.Event{Type: input.EventType(msg.Type)}
	switch ev.Type {
	case input.EventPointerDown, input.EventPointerMove, input.EventPointerUp:
		var p pointerPayload
		if err := decodePayload(msg, &p); err != nil {
			return input.Event{}, err
		}
		ev.Point = camera.ScreenPoint{X: *p.X, Y: *p.Y}
	case input.EventScroll:
		var p scrollPayload
		if err := decodePayload(msg, &p); err != nil {
			return input.Event{}, err
		}
		ev.Point = camera.ScreenPoint{X: *p.X, Y: *p.Y}
		ev.Delta = p.Delta
	case input.EventButton:
		var p buttonPayload
		if err := decodePayload(msg, &p); err != nil {
			return input.Event{}, err
		}
		ev.Key = p.Key
	case input.EventSetAirlines:
		var p airlinesPayload
		if err := decodePayload(msg, &p); err != nil {
			return input.Event{}, err
		}
		ev.Codes = p.Codes
	case input.EventResize:
		var p resizePayload
		if err := decodePayload(msg, &p); err != nil {
			return input.Event{}, err
		}
		ev.Width, ev.Height = p.Width, p.Height
	default:
		return input.Event{}, fmt.Errorf("unknown message type: %s", msg.Type)
	}
	return ev, nil
}

func decodePayload(msg ClientMessage, dst any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		return fmt.Errorf("%s: decode data: %w", msg.Type, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}
