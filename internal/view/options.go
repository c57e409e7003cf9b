// Package view runs map view sessions. A session owns one camera, filter,
// input router and compositor and drives them from a single frame
// goroutine; everything else talks to it through its input queue and the
// snapshot it publishes after each frame.
package view

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yegors/skyview/internal/camera"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/internal/config"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/input"
	"github.com/yegors/skyview/internal/physics"
)

// Options holds everything needed to open a session
type Options struct {
	Camera        camera.Config
	Input         input.Config
	Compositor    compositor.Options
	Center        geo.GeoPoint
	InitialZoom   float64
	FrameInterval time.Duration
	QueueSize     int
	DebugDefault  bool

	// DebugVec receives per session debug gauges when set
	DebugVec *prometheus.GaugeVec
}

// OptionsFromConfig builds session options from a validated config
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	layers, err := compositor.ParseLayerOrder(cfg.Map.LayerOrder)
	if err != nil {
		return Options{}, fmt.Errorf("map.layer_order: %w", err)
	}

	opts := Options{
		Camera: camera.Config{
			ZoomMin:  cfg.Map.ZoomMin,
			ZoomMax:  cfg.Map.ZoomMax,
			TileSize: cfg.Map.TileSize,
			Width:    cfg.Map.ViewportWidth,
			Height:   cfg.Map.ViewportHeight,
			ZoomRate: cfg.ZoomRate(),
		},
		Input: input.Config{
			DragThresholdPx: cfg.Input.DragThresholdPx,
			MaxDragDeltaPx:  cfg.Input.MaxDragDeltaPx,
			ZoomStep:        cfg.Input.ZoomStep,
			SmoothZoom:      cfg.ZoomRate() > 0,
		},
		Compositor: compositor.Options{
			LayerOrder:   layers,
			CullMarginPx: cfg.Map.CullMarginPx,
			Graticule:    cfg.Map.Graticule,
		},
		Center:        geo.GeoPoint{Latitude: cfg.Station.Latitude, Longitude: cfg.Station.Longitude},
		InitialZoom:   cfg.Map.InitialZoom,
		FrameInterval: cfg.FrameInterval(),
		QueueSize:     cfg.Input.QueueSize,
		DebugDefault:  cfg.Debug.EnabledByDefault,
	}
	if cfg.Map.MagneticHeading {
		opts.Compositor.Declinations = physics.NewDeclinations(1024, 24*time.Hour)
	}
	return opts, nil
}

func (o Options) withDefaults() Options {
	if o.FrameInterval <= 0 {
		o.FrameInterval = time.Second / 30
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.InitialZoom == 0 {
		o.InitialZoom = 13
	}
	return o
}
