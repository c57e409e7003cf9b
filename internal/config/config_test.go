package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
[storage]
type = "none"
`

func TestDefaults(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "equirectangular", cfg.Map.Projection)
	assert.Equal(t, 2.0, cfg.Map.ZoomMin)
	assert.Equal(t, 20.0, cfg.Map.ZoomMax)
	assert.Equal(t, 13.0, cfg.Map.InitialZoom)
	assert.Equal(t, 1280.0, cfg.Map.ViewportWidth)
	assert.Equal(t, 720.0, cfg.Map.ViewportHeight)
	assert.Equal(t, 32.0, cfg.Map.CullMarginPx)
	assert.Equal(t, []string{"airports", "weather", "planes"}, cfg.Map.LayerOrder)
	assert.Equal(t, 5.0, cfg.Input.DragThresholdPx)
	assert.Equal(t, 300.0, cfg.Input.MaxDragDeltaPx)
	assert.Equal(t, 0.5, cfg.Input.ZoomStep)
	assert.Equal(t, "json", cfg.Render.Encoding)

	assert.Equal(t, 60*time.Second, cfg.StalenessWindow())
	assert.Equal(t, 5*time.Second, cfg.SweepInterval())
	assert.Equal(t, time.Second/30, cfg.FrameInterval())
	assert.Equal(t, 0.0, cfg.ZoomRate())

	assert.InDelta(t, 33.604076, cfg.Station.Latitude, 1e-9)
	assert.InDelta(t, -117.884507, cfg.Station.Longitude, 1e-9)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad port", "[server]\nport = 70000\n" + minimal},
		{"bad log level", "[logging]\nlevel = \"loud\"\n" + minimal},
		{"bad projection", "[map]\nprojection = \"robinson\"\n" + minimal},
		{"inverted zoom", "[map]\nzoom_min = 10\nzoom_max = 5\n" + minimal},
		{"initial zoom outside", "[map]\nzoom_min = 2\nzoom_max = 5\ninitial_zoom = 9\n" + minimal},
		{"bad encoding", "[render]\nencoding = \"xml\"\n" + minimal},
		{"sqlite without path", "[storage]\ntype = \"sqlite\"\n"},
		{"bad latitude", "[station]\nlatitude = 95.0\n" + minimal},
		{"local adsb without url", "[feeds.adsb]\nenabled = true\nsource_type = \"local\"\n" + minimal},
		{"opensky without area", "[feeds.adsb]\nenabled = true\nsource_type = \"opensky\"\n" + minimal},
		{"nmea without input", "[feeds.nmea]\nenabled = true\n" + minimal},
		{"weather grid too large", "[feeds.weather]\nenabled = true\ngrid_size = 99\n" + minimal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.toml)
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestFeedDefaults(t *testing.T) {
	cfg, err := Parse(`
[store]
staleness_window_seconds = 120

[storage]
type = "none"

[feeds.adsb]
enabled = true
source_type = "opensky"
search_radius_nm = 40

[feeds.weather]
enabled = true

[feeds.airports]
enabled = true
path = "airports.csv"

[feeds.redis]
enabled = true

[feeds.simulation]
enabled = true
`)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Feeds.ADSB.FetchIntervalSecs)
	assert.Equal(t, "https://opensky-network.org/api/states/all", cfg.Feeds.ADSB.OpenSkyURL)
	assert.Equal(t, 7, cfg.Feeds.Weather.GridSize)
	assert.Equal(t, []string{"large_airport", "medium_airport"}, cfg.Feeds.Airports.Types)
	assert.Equal(t, 60, cfg.Feeds.Airports.Interval)
	assert.Equal(t, "localhost:6379", cfg.Feeds.Redis.Addr)
	assert.Equal(t, 10, cfg.Feeds.Simulation.Aircraft)
	assert.Equal(t, 10, cfg.Feeds.RetryBackoffSecs)
}

func TestZoomRate(t *testing.T) {
	cfg, err := Parse("[map]\nzoom_animation_ms = 250\n" + minimal)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4.0, cfg.ZoomRate())
}

func TestStationFromCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "airports.csv")
	data := `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft"
1,"KSNA","large_airport","John Wayne Airport-Orange County Airport",33.675701,-117.867996,56
2,"KLGB","medium_airport","Long Beach Airport",33.8177,-118.152,60
`
	require.NoError(t, os.WriteFile(csvPath, []byte(data), 0o644))

	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[station]
airport_code = "KSNA"
airports_db_path = "`+csvPath+`"
`+minimal), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.InDelta(t, 33.675701, cfg.Station.Latitude, 1e-9)
	assert.InDelta(t, -117.867996, cfg.Station.Longitude, 1e-9)
	assert.Equal(t, 56, cfg.Station.ElevationFeet)

	_, err = Parse(`
[station]
airport_code = "ZZZZ"
airports_db_path = "` + csvPath + `"
`)
	assert.Error(t, err)
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Storage.Type)

	_, err = LoadWithFallback(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
