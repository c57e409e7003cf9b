package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/pkg/logger"
)

// DefaultBaseURL is the Open-Meteo forecast endpoint
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// GridConfig describes the sampling grid around the station
type GridConfig struct {
	BaseURL       string
	GridSize      int     // points per side
	GridSpacingNM float64 // distance between neighbouring points
	MinIntensity  float64 // mm/h; cells at or below are dropped
	Timeout       time.Duration
}

// Cell is one grid sample with precipitation
type Cell struct {
	Row, Col  int
	Center    geo.GeoPoint
	Intensity float64 // mm/h
	// half extent of the square in degrees
	HalfLat, HalfLon float64
	RadiusNM         float64
}

// ID is stable across refreshes so a cell updates in place
func (c Cell) ID() string {
	return fmt.Sprintf("wx-%d-%d", c.Row, c.Col)
}

// Polygon returns the cell's square footprint
func (c Cell) Polygon() orb.Polygon {
	lat, lon := c.Center.Latitude, c.Center.Longitude
	ring := orb.Ring{
		{lon - c.HalfLon, lat - c.HalfLat},
		{lon + c.HalfLon, lat - c.HalfLat},
		{lon + c.HalfLon, lat + c.HalfLat},
		{lon - c.HalfLon, lat + c.HalfLat},
		{lon - c.HalfLon, lat - c.HalfLat},
	}
	return orb.Polygon{ring}
}

// ToEntity converts the cell into a weather entity stamped at
func (c Cell) ToEntity(at time.Time) entity.Entity {
	return entity.Entity{
		ID:        c.ID(),
		Kind:      entity.KindWeatherCell,
		Position:  c.Center,
		Timestamp: at,
		Weather: &entity.WeatherAttrs{
			Intensity: c.Intensity,
			RadiusNM:  c.RadiusNM,
			Shape:     geojson.NewGeometry(c.Polygon()),
		},
	}
}

// GridClient fetches current precipitation on a regular grid
type GridClient struct {
	config     GridConfig
	httpClient *http.Client
	logger     *logger.Logger
}

// NewGridClient creates a new precipitation grid client
func NewGridClient(config GridConfig, log *logger.Logger) *GridClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.GridSize <= 0 {
		config.GridSize = 7
	}
	if config.GridSpacingNM <= 0 {
		config.GridSpacingNM = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &GridClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log.Named("wx-grid"),
	}
}

type gridPoint struct {
	row, col int
	lat, lon float64
}

// points lays the grid out row-major from the south-west corner
func (c *GridClient) points(centerLat, centerLon float64) ([]gridPoint, float64, float64) {
	n := c.config.GridSize
	latStep := c.config.GridSpacingNM / 60.0
	lonStep := c.config.GridSpacingNM / (60.0 * math.Cos(centerLat*math.Pi/180.0))
	mid := float64(n-1) / 2

	pts := make([]gridPoint, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			pts = append(pts, gridPoint{
				row: row,
				col: col,
				lat: centerLat + (float64(row)-mid)*latStep,
				lon: centerLon + (float64(col)-mid)*lonStep,
			})
		}
	}
	return pts, latStep, lonStep
}

// pointResult is one location of an Open-Meteo response
type pointResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Precipitation *float64 `json:"precipitation"`
	} `json:"current"`
}

// FetchCells samples the grid centered on the given coordinates and returns
// the cells with precipitation above the configured minimum
func (c *GridClient) FetchCells(ctx context.Context, centerLat, centerLon float64) ([]Cell, error) {
	pts, latStep, lonStep := c.points(centerLat, centerLon)

	lats := make([]string, len(pts))
	lons := make([]string, len(pts))
	for i, p := range pts {
		lats[i] = strconv.FormatFloat(p.lat, 'f', 4, 64)
		lons[i] = strconv.FormatFloat(p.lon, 'f', 4, 64)
	}

	url := fmt.Sprintf("%s?latitude=%s&longitude=%s&current=precipitation&timezone=UTC",
		c.config.BaseURL, strings.Join(lats, ","), strings.Join(lons, ","))

	c.logger.Debug("Fetching precipitation grid",
		logger.Float64("center_lat", centerLat),
		logger.Float64("center_lon", centerLon),
		logger.Int("points", len(pts)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status: %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	// Open-Meteo answers a single location with an object and several with an array
	var results []pointResult
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var single pointResult
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("failed to parse weather response: %w", err)
		}
		results = []pointResult{single}
	} else if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}

	if len(results) != len(pts) {
		return nil, fmt.Errorf("expected %d grid points, got %d", len(pts), len(results))
	}

	radiusNM := c.config.GridSpacingNM / 2
	cells := make([]Cell, 0)
	for i, res := range results {
		if res.Current.Precipitation == nil {
			continue
		}
		intensity := *res.Current.Precipitation
		if intensity <= 0 || intensity <= c.config.MinIntensity {
			continue
		}
		p := pts[i]
		cells = append(cells, Cell{
			Row:       p.row,
			Col:       p.col,
			Center:    geo.GeoPoint{Latitude: p.lat, Longitude: p.lon},
			Intensity: intensity,
			HalfLat:   latStep / 2,
			HalfLon:   lonStep / 2,
			RadiusNM:  radiusNM,
		})
	}

	c.logger.Debug("Precipitation grid updated",
		logger.Int("points", len(pts)),
		logger.Int("cells", len(cells)))

	return cells, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
