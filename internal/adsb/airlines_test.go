package adsb

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/pkg/logger"
)

const airlinesJSON = `[
  {"id": "24", "name": "American Airlines", "iata": "AA", "icao": "AAL", "active": "Y"},
  {"id": "2009", "name": "Delta Air Lines", "iata": "DL", "icao": "DAL", "active": "Y"},
  {"id": "3029", "name": "JetBlue Airways", "iata": "B6", "icao": "JBU", "active": "Y"},
  {"id": "1", "name": "Private flight", "iata": "-", "icao": "N/A", "active": "Y"}
]`

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c := NewClassifier(logger.NewNop())
	require.NoError(t, c.Load(strings.NewReader(airlinesJSON)))
	return c
}

func TestIsValidFlightNumber(t *testing.T) {
	tests := []struct {
		flight string
		want   bool
	}{
		{"AAL123", true},
		{"SWA1", true},
		{"UAL1234", true},
		{"UAL12345", false},
		{"AAL", false},
		{"N12345", false},
		{"AA123", false},
		{"DAL12A", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.flight, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidFlightNumber(tt.flight))
		})
	}
}

func TestCleanFlightName(t *testing.T) {
	assert.Equal(t, "AAL123", CleanFlightName(" aal123  "))
	assert.Equal(t, "NKS77", CleanFlightName("NKS-77"))
	assert.Equal(t, "", CleanFlightName("   "))
}

func TestClassify(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		callsign string
		key      string
		icao     string
		name     string
	}{
		{"AAL123 ", filter.AirlineAmerican, "AAL", "American Airlines"},
		{"dal9", filter.AirlineDelta, "DAL", "Delta Air Lines"},
		{"NKS801", filter.AirlineSpirit, "NKS", "Spirit Airlines"},
		{"JBU55", filter.AirlineOther, "JBU", "JetBlue Airways"},
		{"N12345", filter.AirlineOther, "", ""},
		{"", filter.AirlineOther, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.callsign, func(t *testing.T) {
			got := c.Classify(tt.callsign)
			assert.Equal(t, tt.key, got.Key)
			assert.Equal(t, tt.icao, got.ICAO)
			assert.Equal(t, tt.name, got.Name)
		})
	}
	assert.Equal(t, len(tests), c.CacheLen())

	// cached result is reused
	c.Classify("AAL123")
	assert.Equal(t, len(tests), c.CacheLen())
}

func TestLoadFile(t *testing.T) {
	c := NewClassifier(logger.NewNop())
	require.NoError(t, c.LoadFile(""))
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "nope.json")))
	assert.Error(t, c.Load(strings.NewReader("{")))
}

func TestTargetToEntity(t *testing.T) {
	c := newClassifier(t)
	grounded := true

	target := Target{
		Hex:        "A1B2C3",
		Flight:     "AAL123 ",
		AltBaro:    NewFlexibleFloat(12000),
		GS:         310,
		Track:      270,
		Lat:        33.7,
		Lon:        -117.9,
		SeenPos:    0.5,
		SourceType: SourceLocal,
	}
	e, ok := target.ToEntity(1700000001, c)
	require.True(t, ok)
	require.NoError(t, e.Validate())

	assert.Equal(t, "a1b2c3", e.ID)
	assert.Equal(t, entity.KindPlane, e.Kind)
	assert.Equal(t, int64(1700000000), e.Timestamp.Unix())
	assert.Equal(t, 500, e.Timestamp.Nanosecond()/1e6)
	assert.Equal(t, "AAL123", e.Plane.Callsign)
	assert.Equal(t, filter.AirlineAmerican, e.Plane.Airline)
	assert.Equal(t, "American Airlines", e.Plane.AirlineName)
	assert.Equal(t, 12000.0, e.Plane.AltitudeFt)
	assert.False(t, e.Plane.OnGround)

	anon := Target{Hex: "ffff01", Lat: 1, Lon: 1, OnGround: &grounded}
	e, ok = anon.ToEntity(100, c)
	require.True(t, ok)
	assert.Equal(t, "FFFF01", e.Plane.Callsign)
	assert.Equal(t, filter.AirlineOther, e.Plane.Airline)
	assert.True(t, e.Plane.OnGround)

	_, ok = (&Target{Hex: "ffff02"}).ToEntity(100, c)
	assert.False(t, ok)
}
