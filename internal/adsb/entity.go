package adsb

import (
	"strings"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
)

// ObservedAt is when the target's position was reported, derived from the
// poll time and seen_pos
func (t *Target) ObservedAt(now float64) time.Time {
	secs := now - t.SeenPos
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC()
}

// ToEntity converts a target into a plane entity. ok is false for targets
// without a position.
func (t *Target) ToEntity(now float64, cls *Classifier) (entity.Entity, bool) {
	if t.Hex == "" || !t.HasPosition() {
		return entity.Entity{}, false
	}

	c := cls.Classify(t.Flight)
	callsign := c.Callsign
	if callsign == "" {
		callsign = strings.ToUpper(t.Hex)
	}

	return entity.Entity{
		ID:        strings.ToLower(t.Hex),
		Kind:      entity.KindPlane,
		Position:  geo.GeoPoint{Latitude: t.Lat, Longitude: t.Lon},
		Timestamp: t.ObservedAt(now),
		Plane: &entity.PlaneAttrs{
			Callsign:      callsign,
			Airline:       c.Key,
			AirlineName:   c.Name,
			TrackDeg:      t.Track,
			AltitudeFt:    t.AltBaro.Float64(),
			GroundSpeedKt: t.GS,
			OnGround:      t.Grounded(),
			Source:        t.SourceType,
		},
	}, true
}
