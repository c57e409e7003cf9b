package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/geo"
)

var ksna = geo.GeoPoint{Latitude: 33.6757, Longitude: -117.8682}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"plane", "planes", "aircraft"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, KindPlane, k)
	}
	k, err := ParseKind("wx")
	require.NoError(t, err)
	assert.Equal(t, KindWeatherCell, k)

	_, err = ParseKind("balloon")
	assert.ErrorContains(t, err, "unknown entity kind")
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestKindJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Kind Kind `json:"kind"`
	}{KindAirport})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"airport"}`, string(b))

	var out struct {
		Kind Kind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"weather"}`), &out))
	assert.Equal(t, KindWeatherCell, out.Kind)
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"ufo"}`), &out))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       Entity
		wantErr string
	}{
		{"plane", Entity{ID: "a1", Kind: KindPlane, Position: ksna, Plane: &PlaneAttrs{}}, ""},
		{"empty id", Entity{Kind: KindPlane, Position: ksna, Plane: &PlaneAttrs{}}, "empty id"},
		{"bad position", Entity{ID: "a1", Kind: KindPlane, Position: geo.GeoPoint{Latitude: 95}, Plane: &PlaneAttrs{}}, "lat=95"},
		{"missing plane", Entity{ID: "a1", Kind: KindPlane, Position: ksna}, "missing plane attributes"},
		{"missing weather", Entity{ID: "w1", Kind: KindWeatherCell, Position: ksna}, "missing weather attributes"},
		{"missing airport", Entity{ID: "KSNA", Kind: KindAirport, Position: ksna}, "missing airport attributes"},
		{"unknown kind", Entity{ID: "x", Kind: Kind(7), Position: ksna}, "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.e.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCloneDetachesAttributes(t *testing.T) {
	e := Entity{ID: "a1", Kind: KindPlane, Position: ksna, Plane: &PlaneAttrs{Callsign: "AAL1"}}
	c := e.Clone()
	c.Plane.Callsign = "SWA2"
	assert.Equal(t, "AAL1", e.Plane.Callsign)
	assert.Nil(t, c.Weather)
}

func TestFeatureCollection(t *testing.T) {
	square := orb.Polygon{{{-118, 33}, {-117, 33}, {-117, 34}, {-118, 34}, {-118, 33}}}
	fc := NewFeatureCollection([]Entity{
		{ID: "a1", Kind: KindPlane, Position: ksna, Timestamp: time.Unix(100, 0),
			Plane: &PlaneAttrs{Callsign: "AAL1", Airline: "AAL", AltitudeFt: 3500}},
		{ID: "wx-1", Kind: KindWeatherCell, Position: ksna,
			Weather: &WeatherAttrs{Intensity: 2.5, Shape: geojson.NewGeometry(square)}},
		{ID: "KSNA", Kind: KindAirport, Position: ksna, Airport: &AirportAttrs{Code: "KSNA", Name: "John Wayne"}},
	})
	require.Len(t, fc.Features, 3)

	plane := fc.Features[0]
	assert.Equal(t, "a1", plane.ID)
	assert.Equal(t, orb.Point{ksna.Longitude, ksna.Latitude}, plane.Geometry)
	assert.Equal(t, "plane", plane.Properties["kind"])
	assert.Equal(t, "AAL", plane.Properties["airline"])

	assert.Equal(t, square, fc.Features[1].Geometry)
	assert.Equal(t, 2.5, fc.Features[1].Properties["intensity"])
	assert.Equal(t, "John Wayne", fc.Features[2].Properties["name"])
}
