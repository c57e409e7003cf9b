package nmea

import (
	"time"

	"github.com/yegors/skyview/internal/physics"
)

// Fix is the merged own-ship state
type Fix struct {
	Time       time.Time
	Latitude   float64
	Longitude  float64
	AltitudeFt float64
	SpeedKts   float64
	TrackDeg   float64
}

// Tracker merges GGA altitude with RMC motion into one fix
type Tracker struct {
	fix  Fix
	has  bool
	date time.Time
	now  func() time.Time
}

// NewTracker creates a tracker. now supplies the date for GGA sentences
// seen before any RMC.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Update folds s into the fix and returns it
func (t *Tracker) Update(s Sentence) Fix {
	t.fix.Latitude = s.Latitude
	t.fix.Longitude = s.Longitude
	if s.HasAlt {
		t.fix.AltitudeFt = s.AltitudeM / physics.FeetToMeters
	}
	if s.HasMotion {
		t.fix.SpeedKts = s.SpeedKts
		t.fix.TrackDeg = s.TrackDeg
	}

	ts := s.Time
	switch {
	case ts.IsZero():
		ts = t.now().UTC()
	case ts.Year() == 1:
		// clock only; borrow the date from the last RMC or the wall clock
		date := t.date
		if date.IsZero() {
			date = t.now().UTC()
		}
		y, m, d := date.Date()
		ts = time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
		if ts.Sub(date) > 12*time.Hour {
			// sentence from just before midnight
			ts = ts.AddDate(0, 0, -1)
		}
	default:
		t.date = ts
	}
	t.fix.Time = ts
	t.has = true
	return t.fix
}

// Fix returns the last merged fix
func (t *Tracker) Fix() (Fix, bool) {
	return t.fix, t.has
}
