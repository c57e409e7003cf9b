package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // HTTP server settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Station StationConfig `toml:"station"` // Home location, seeds the initial map center
	Map     MapConfig     `toml:"map"`     // Projection, camera limits and frame cadence
	Input   InputConfig   `toml:"input"`   // Pointer and scroll gesture tuning
	Store   StoreConfig   `toml:"store"`   // Entity store expiry settings
	Render  RenderConfig  `toml:"render"`  // Frame delivery to clients
	Debug   DebugConfig   `toml:"debug"`   // Debug overlay defaults
	Storage StorageConfig `toml:"storage"` // Session persistence settings
	Feeds   FeedsConfig   `toml:"feeds"`   // Entity feed sources
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www"); empty disables static serving
	MetricsEnabled     bool     `toml:"metrics_enabled"`       // Expose Prometheus metrics on /metrics
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional log file, rotated with lumberjack
	MaxSizeMB  int    `toml:"max_size_mb"`  // Rotate the log file after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // Number of rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Days to keep rotated files
	Compress   bool   `toml:"compress"`     // Gzip rotated files
}

// StationConfig contains the home location of the map
type StationConfig struct {
	Latitude       float64 `toml:"latitude"`         // Latitude in decimal degrees (overridden by airport_code lookup)
	Longitude      float64 `toml:"longitude"`        // Longitude in decimal degrees (overridden by airport_code lookup)
	ElevationFeet  int     `toml:"elevation_feet"`   // Elevation above sea level in feet
	AirportCode    string  `toml:"airport_code"`     // ICAO code of the home airport (e.g., "KSNA"), looked up in airports_db_path
	AirportsDBPath string  `toml:"airports_db_path"` // Path to airport database CSV file (OurAirports format)
}

// MapConfig contains projection and camera settings
type MapConfig struct {
	Projection      string   `toml:"projection"`        // "equirectangular" (default) or "mercator"
	ZoomMin         float64  `toml:"zoom_min"`          // Lowest zoom level
	ZoomMax         float64  `toml:"zoom_max"`          // Highest zoom level
	InitialZoom     float64  `toml:"initial_zoom"`      // Zoom level of a new view session
	TileSize        float64  `toml:"tile_size"`         // Pixels covering the whole world at zoom 0
	ViewportWidth   float64  `toml:"viewport_width"`    // Initial viewport width before the client reports its size
	ViewportHeight  float64  `toml:"viewport_height"`   // Initial viewport height before the client reports its size
	FrameRateHz     float64  `toml:"frame_rate_hz"`     // Frames built per second per session
	CullMarginPx    float64  `toml:"cull_margin_px"`    // Extra pixels around the viewport that still get drawn
	LayerOrder      []string `toml:"layer_order"`       // Bottom to top layers; planes are always drawn on top
	Graticule       bool     `toml:"graticule"`         // Draw latitude/longitude grid lines
	ZoomAnimationMs int      `toml:"zoom_animation_ms"` // Milliseconds per zoom level for animated zoom (0 = instant)
	MagneticHeading bool     `toml:"magnetic_heading"`  // Attach magnetic headings to plane hints
}

// InputConfig contains gesture settings
type InputConfig struct {
	DragThresholdPx float64 `toml:"drag_threshold_px"` // Pointer travel before a press becomes a drag
	MaxDragDeltaPx  float64 `toml:"max_drag_delta_px"` // Largest pan applied from a single pointer move
	ZoomStep        float64 `toml:"zoom_step"`         // Zoom levels per scroll notch
	QueueSize       int     `toml:"queue_size"`        // Buffered input events per session before new ones are dropped
}

// StoreConfig contains entity expiry settings
type StoreConfig struct {
	StalenessWindowSecs int `toml:"staleness_window_seconds"` // Entities not updated for this long are removed
	SweepIntervalSecs   int `toml:"sweep_interval_seconds"`   // How often the sweeper runs
}

// RenderConfig controls how frames are sent to clients
type RenderConfig struct {
	Encoding string `toml:"encoding"` // "json" text frames or "msgpack" binary frames
}

// DebugConfig controls the debug overlay
type DebugConfig struct {
	EnabledByDefault bool `toml:"enabled_by_default"` // Start new sessions with the debug overlay on
	Prometheus       bool `toml:"prometheus"`         // Export per session debug metrics as Prometheus gauges
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type ("sqlite" or "none")
	SQLitePath string `toml:"sqlite_path"` // SQLite database file for saved view sessions
}

// FeedsConfig groups the entity feed sources
type FeedsConfig struct {
	RetryBackoffSecs int              `toml:"retry_backoff_seconds"` // Delay before restarting a failed feed
	ADSB             ADSBConfig       `toml:"adsb"`
	Weather          WeatherConfig    `toml:"weather"`
	Airports         AirportsConfig   `toml:"airports"`
	Redis            RedisConfig      `toml:"redis"`
	NMEA             NMEAConfig       `toml:"nmea"`
	Simulation       SimulationConfig `toml:"simulation"`
}

// ADSBConfig contains ADS-B aircraft tracking data source configuration
type ADSBConfig struct {
	Enabled bool `toml:"enabled"`

	// Source selection
	// Allowed values:
	// - "local": Use a local ADS-B receiver (e.g., dump1090 / tar1090)
	// - "opensky": OpenSky REST API which requires a bounding box and optional OAuth2 credentials
	SourceType string `toml:"source_type"`

	LocalSourceURL string `toml:"local_source_url"` // URL for local ADS-B source (e.g., http://192.168.1.10/tar1090/data/aircraft.json)

	OpenSkyURL             string  `toml:"opensky_url"`              // OpenSky states endpoint
	OpenSkyCredentialsPath string  `toml:"opensky_credentials_path"` // Path to OpenSky credentials JSON; anonymous access when empty
	OpenSkyBBoxLamin       float64 `toml:"opensky_bbox_lamin"`       // Bounding box minimum latitude (lamin)
	OpenSkyBBoxLomin       float64 `toml:"opensky_bbox_lomin"`       // Bounding box minimum longitude (lomin)
	OpenSkyBBoxLamax       float64 `toml:"opensky_bbox_lamax"`       // Bounding box maximum latitude (lamax)
	OpenSkyBBoxLomax       float64 `toml:"opensky_bbox_lomax"`       // Bounding box maximum longitude (lomax)
	SearchRadiusNM         float64 `toml:"search_radius_nm"`         // Bounding box half size around the station when no explicit box is set

	FetchIntervalSecs int    `toml:"fetch_interval_seconds"` // How often to fetch new aircraft data (in seconds)
	TimeoutSecs       int    `toml:"timeout_seconds"`        // HTTP timeout per request
	AirlineDBPath     string `toml:"airline_db_path"`        // Path to airline database JSON file for operator names
	IncludeOnGround   bool   `toml:"include_on_ground"`      // Keep aircraft reported on the ground
}

// WeatherConfig contains the precipitation grid feed settings
type WeatherConfig struct {
	Enabled             bool    `toml:"enabled"`
	APIBaseURL          string  `toml:"api_base_url"`          // Open-Meteo forecast endpoint
	GridSize            int     `toml:"grid_size"`             // Cells per side of the sampling grid
	GridSpacingNM       float64 `toml:"grid_spacing_nm"`       // Distance between grid points
	RefreshIntervalSecs int     `toml:"refresh_interval_seconds"`
	TimeoutSecs         int     `toml:"timeout_seconds"`
	MinIntensity        float64 `toml:"min_intensity"` // Precipitation in mm/h below which no cell is produced
}

// AirportsConfig contains the airport marker feed settings
type AirportsConfig struct {
	Enabled  bool     `toml:"enabled"`
	Path     string   `toml:"path"`                     // OurAirports CSV or .msgpack.zst bundle; defaults to station.airports_db_path
	Types    []string `toml:"types"`                    // Airport types to include
	RangeNM  float64  `toml:"range_nm"`                 // Only airports within this range of the station (0 = all)
	Interval int      `toml:"refresh_interval_seconds"` // Re-delivery interval so markers outlive the staleness window
}

// RedisConfig contains the Redis stream ingest settings
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`     // host:port
	Password string `toml:"password"` // Optional password
	DB       int    `toml:"db"`
	Stream   string `toml:"stream"`   // Stream key carrying entity updates
	BlockMs  int    `toml:"block_ms"` // XREAD block duration
	Count    int64  `toml:"count"`    // Messages per XREAD
}

// NMEAConfig contains the own-ship NMEA feed settings
type NMEAConfig struct {
	Enabled  bool   `toml:"enabled"`
	Address  string `toml:"address"` // tcp host:port of an NMEA 0183 stream
	Path     string `toml:"path"`    // Alternatively a file or device to read sentences from
	ID       string `toml:"id"`      // Entity id of the own-ship plane
	Callsign string `toml:"callsign"`
}

// SimulationConfig contains the synthetic traffic settings
type SimulationConfig struct {
	Enabled      bool    `toml:"enabled"`
	Aircraft     int     `toml:"aircraft"`  // Number of simulated planes
	RadiusNM     float64 `toml:"radius_nm"` // Spawn radius around the station
	TickMs       int     `toml:"tick_ms"`   // Update interval
	MinSpeedKts  float64 `toml:"min_speed_kts"`
	MaxSpeedKts  float64 `toml:"max_speed_kts"`
	TurnRateDegS float64 `toml:"turn_rate_deg_s"` // Constant turn rate so tracks circle
	RandomSeed   int64   `toml:"random_seed"`     // 0 seeds from the clock
}

// Load reads and decodes the config file at path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.loadStationFromCSV(); err != nil {
		return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
	}

	return &config, nil
}

// Parse decodes config from a TOML string, used by tests and embedded defaults
func Parse(data string) (*Config, error) {
	var config Config
	if _, err := toml.Decode(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := config.loadStationFromCSV(); err != nil {
		return nil, fmt.Errorf("failed to load station details from CSV: %w", err)
	}
	return &config, nil
}

// loadStationFromCSV resolves station coordinates from the airport code.
// Without an airport code the explicit latitude/longitude are used.
func (c *Config) loadStationFromCSV() error {
	if c.Station.AirportCode == "" {
		return nil
	}
	if c.Station.AirportsDBPath == "" {
		return fmt.Errorf("airports_db_path is required when airport_code is set")
	}

	file, err := os.Open(c.Station.AirportsDBPath)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		return err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return err
	}

	for _, record := range records {
		if len(record) < 7 || record[1] != c.Station.AirportCode {
			continue
		}

		lat, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		lon, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude in CSV for %s: %w", c.Station.AirportCode, err)
		}
		c.Station.Latitude = lat
		c.Station.Longitude = lon

		if record[6] != "" {
			if elev, err := strconv.ParseFloat(record[6], 64); err == nil {
				c.Station.ElevationFeet = int(elev)
			}
		}
		return nil
	}

	return fmt.Errorf("airport code %s not found in %s", c.Station.AirportCode, c.Station.AirportsDBPath)
}

// LoadWithFallback tries the preferred path, then the standard locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks every section and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("invalid server port: %d", c.Server.Port)
	}
	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return invalid("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return invalid("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return invalid("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	switch c.Storage.Type {
	case "none":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return invalid("sqlite_path is required when storage type is sqlite")
		}
	default:
		return invalid("invalid storage type: %s (must be 'sqlite' or 'none')", c.Storage.Type)
	}

	if c.Render.Encoding == "" {
		c.Render.Encoding = "json"
	}
	if c.Render.Encoding != "json" && c.Render.Encoding != "msgpack" {
		return invalid("invalid render encoding: %s (must be 'json' or 'msgpack')", c.Render.Encoding)
	}

	if err := c.ValidateStation(); err != nil {
		return err
	}
	if err := c.ValidateMap(); err != nil {
		return err
	}
	if err := c.ValidateInput(); err != nil {
		return err
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	return c.ValidateFeeds()
}

// ValidateStation checks the home location, defaulting to the original
// startup view over Orange County
func (c *Config) ValidateStation() error {
	if c.Station.Latitude == 0 && c.Station.Longitude == 0 && c.Station.AirportCode == "" {
		c.Station.Latitude = 33.604076
		c.Station.Longitude = -117.884507
	}
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return invalid("invalid station latitude: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return invalid("invalid station longitude: %f", c.Station.Longitude)
	}
	// Elevation can be negative, so just check it is within a reasonable range
	if c.Station.ElevationFeet < -2000 || c.Station.ElevationFeet > 30000 {
		return invalid("station elevation out of typical range: %d ft", c.Station.ElevationFeet)
	}
	return nil
}

// ValidateMap checks projection, zoom and frame settings
func (c *Config) ValidateMap() error {
	m := &c.Map
	m.Projection = strings.ToLower(m.Projection)
	switch m.Projection {
	case "":
		m.Projection = "equirectangular"
	case "equirectangular", "mercator", "web-mercator":
	default:
		return invalid("invalid map projection: %s", m.Projection)
	}

	if m.ZoomMin == 0 && m.ZoomMax == 0 {
		m.ZoomMin, m.ZoomMax = 2, 20
	}
	if m.ZoomMin < 0 || m.ZoomMax <= m.ZoomMin {
		return invalid("invalid zoom range [%v, %v]", m.ZoomMin, m.ZoomMax)
	}
	if m.InitialZoom == 0 {
		m.InitialZoom = 13
	}
	if m.InitialZoom < m.ZoomMin || m.InitialZoom > m.ZoomMax {
		return invalid("initial_zoom %v outside [%v, %v]", m.InitialZoom, m.ZoomMin, m.ZoomMax)
	}
	if m.TileSize == 0 {
		m.TileSize = 256
	}
	if m.TileSize < 0 {
		return invalid("tile_size must be positive: %v", m.TileSize)
	}
	if m.ViewportWidth == 0 {
		m.ViewportWidth = 1280
	}
	if m.ViewportHeight == 0 {
		m.ViewportHeight = 720
	}
	if m.ViewportWidth < 0 || m.ViewportHeight < 0 {
		return invalid("invalid viewport %vx%v", m.ViewportWidth, m.ViewportHeight)
	}
	if m.FrameRateHz == 0 {
		m.FrameRateHz = 30
	}
	if m.FrameRateHz < 0 || m.FrameRateHz > 240 {
		return invalid("frame_rate_hz must be in (0, 240]: %v", m.FrameRateHz)
	}
	if m.CullMarginPx == 0 {
		m.CullMarginPx = 32
	}
	if m.CullMarginPx < 0 {
		return invalid("cull_margin_px must not be negative: %v", m.CullMarginPx)
	}
	if m.ZoomAnimationMs < 0 {
		return invalid("zoom_animation_ms must not be negative: %d", m.ZoomAnimationMs)
	}
	if len(m.LayerOrder) == 0 {
		m.LayerOrder = []string{"airports", "weather", "planes"}
	}
	return nil
}

// ValidateInput checks gesture settings
func (c *Config) ValidateInput() error {
	in := &c.Input
	if in.DragThresholdPx == 0 {
		in.DragThresholdPx = 5
	}
	if in.MaxDragDeltaPx == 0 {
		in.MaxDragDeltaPx = 300
	}
	if in.ZoomStep == 0 {
		in.ZoomStep = 0.5
	}
	if in.QueueSize == 0 {
		in.QueueSize = 256
	}
	if in.DragThresholdPx < 0 || in.MaxDragDeltaPx < 0 || in.ZoomStep < 0 || in.QueueSize < 0 {
		return invalid("input settings must not be negative")
	}
	return nil
}

// ValidateStore checks expiry settings
func (c *Config) ValidateStore() error {
	if c.Store.StalenessWindowSecs == 0 {
		c.Store.StalenessWindowSecs = 60
	}
	if c.Store.SweepIntervalSecs == 0 {
		c.Store.SweepIntervalSecs = 5
	}
	if c.Store.StalenessWindowSecs < 0 || c.Store.SweepIntervalSecs < 0 {
		return invalid("store intervals must be positive")
	}
	return nil
}

// ValidateFeeds checks each enabled feed
func (c *Config) ValidateFeeds() error {
	f := &c.Feeds
	if f.RetryBackoffSecs <= 0 {
		f.RetryBackoffSecs = 10
	}

	a := &f.ADSB
	if a.Enabled {
		if a.SourceType == "" {
			a.SourceType = "local"
		}
		switch a.SourceType {
		case "local":
			if a.LocalSourceURL == "" {
				return invalid("local_source_url is required when source_type is local")
			}
		case "opensky":
			if a.OpenSkyURL == "" {
				a.OpenSkyURL = "https://opensky-network.org/api/states/all"
			}
			isBBoxSet := a.OpenSkyBBoxLamin != 0 || a.OpenSkyBBoxLamax != 0 ||
				a.OpenSkyBBoxLomin != 0 || a.OpenSkyBBoxLomax != 0
			if !isBBoxSet && a.SearchRadiusNM <= 0 {
				return invalid("opensky bounding box (or positive search_radius_nm) is required when source_type is opensky")
			}
			if isBBoxSet && (a.OpenSkyBBoxLamin >= a.OpenSkyBBoxLamax || a.OpenSkyBBoxLomin >= a.OpenSkyBBoxLomax) {
				return invalid("opensky bounding box min must be less than max")
			}
		default:
			return invalid("invalid ADSB source type: %s (must be 'local' or 'opensky')", a.SourceType)
		}
		if a.FetchIntervalSecs == 0 {
			a.FetchIntervalSecs = 5
		}
		if a.FetchIntervalSecs < 0 {
			return invalid("invalid fetch interval: %d", a.FetchIntervalSecs)
		}
		if a.TimeoutSecs <= 0 {
			a.TimeoutSecs = 10
		}
	}

	w := &f.Weather
	if w.Enabled {
		if w.APIBaseURL == "" {
			w.APIBaseURL = "https://api.open-meteo.com/v1/forecast"
		}
		if w.GridSize == 0 {
			w.GridSize = 7
		}
		if w.GridSize < 1 || w.GridSize > 25 {
			return invalid("weather grid_size must be in [1, 25]: %d", w.GridSize)
		}
		if w.GridSpacingNM <= 0 {
			w.GridSpacingNM = 10
		}
		if w.RefreshIntervalSecs <= 0 {
			w.RefreshIntervalSecs = 600
		}
		if w.TimeoutSecs <= 0 {
			w.TimeoutSecs = 15
		}
	}

	ap := &f.Airports
	if ap.Enabled {
		if ap.Path == "" {
			ap.Path = c.Station.AirportsDBPath
		}
		if ap.Path == "" {
			return invalid("airports feed requires a path or station.airports_db_path")
		}
		if len(ap.Types) == 0 {
			ap.Types = []string{"large_airport", "medium_airport"}
		}
		if ap.RangeNM < 0 {
			return invalid("airports range_nm must not be negative")
		}
		if ap.Interval <= 0 {
			// re-deliver well inside the staleness window
			ap.Interval = c.Store.StalenessWindowSecs / 2
			if ap.Interval <= 0 {
				ap.Interval = 30
			}
		}
	}

	r := &f.Redis
	if r.Enabled {
		if r.Addr == "" {
			r.Addr = "localhost:6379"
		}
		if r.Stream == "" {
			r.Stream = "skyview:entities"
		}
		if r.BlockMs <= 0 {
			r.BlockMs = 5000
		}
		if r.Count <= 0 {
			r.Count = 100
		}
	}

	n := &f.NMEA
	if n.Enabled {
		if n.Address == "" && n.Path == "" {
			return invalid("nmea feed requires address or path")
		}
		if n.ID == "" {
			n.ID = "ownship"
		}
		if n.Callsign == "" {
			n.Callsign = "OWNSHIP"
		}
	}

	s := &f.Simulation
	if s.Enabled {
		if s.Aircraft <= 0 {
			s.Aircraft = 10
		}
		if s.RadiusNM <= 0 {
			s.RadiusNM = 30
		}
		if s.TickMs <= 0 {
			s.TickMs = 1000
		}
		if s.MinSpeedKts <= 0 {
			s.MinSpeedKts = 140
		}
		if s.MaxSpeedKts < s.MinSpeedKts {
			s.MaxSpeedKts = s.MinSpeedKts + 300
		}
		if s.TurnRateDegS == 0 {
			s.TurnRateDegS = 1.5
		}
	}
	return nil
}

// StalenessWindow returns the store staleness window as a duration
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.Store.StalenessWindowSecs) * time.Second
}

// SweepInterval returns the store sweep interval as a duration
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Store.SweepIntervalSecs) * time.Second
}

// FrameInterval returns the time between frames of one session
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Map.FrameRateHz)
}

// ZoomRate converts zoom_animation_ms into levels per second; zero disables animation
func (c *Config) ZoomRate() float64 {
	if c.Map.ZoomAnimationMs <= 0 {
		return 0
	}
	return 1000 / float64(c.Map.ZoomAnimationMs)
}
