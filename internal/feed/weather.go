package feed

import (
	"context"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/weather"
	"github.com/yegors/skyview/pkg/logger"
)

// WeatherSource refreshes the precipitation grid and keeps its cells alive
// in the store between refreshes. Cells that stop raining are no longer
// re-delivered and age out through the sweeper, and so does the whole grid
// once no refresh has succeeded for a staleness window.
type WeatherSource struct {
	client    *weather.GridClient
	center    geo.GeoPoint
	refresh   time.Duration
	staleness time.Duration
	keepalive time.Duration
	now       func() time.Time
	logger    *logger.Logger

	cells    []weather.Cell
	lastGood time.Time
	expired  bool
}

// NewWeatherSource creates a weather source. staleness is the store's
// staleness window; cached cells are re-delivered every half window until
// the last successful refresh is older than that.
func NewWeatherSource(client *weather.GridClient, center geo.GeoPoint, refresh, staleness time.Duration, log *logger.Logger) *WeatherSource {
	if refresh <= 0 {
		refresh = 10 * time.Minute
	}
	if staleness <= 0 {
		staleness = refresh
	}
	keepalive := staleness / 2
	if keepalive <= 0 || keepalive > refresh {
		keepalive = refresh
	}
	return &WeatherSource{
		client:    client,
		center:    center,
		refresh:   refresh,
		staleness: staleness,
		keepalive: keepalive,
		now:       time.Now,
		logger:    log.Named("weather"),
	}
}

func (s *WeatherSource) Name() string { return "weather" }

func (s *WeatherSource) Run(ctx context.Context, sink Sink) error {
	refresh := time.NewTicker(s.refresh)
	defer refresh.Stop()
	keepalive := time.NewTicker(s.keepalive)
	defer keepalive.Stop()

	refreshNow := func() {
		err := s.fetch(ctx, sink)
		if ctx.Err() == nil {
			report(sink, err)
		}
	}

	refreshNow()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			refreshNow()
		case <-keepalive.C:
			s.keepAlive(sink)
		}
	}
}

func (s *WeatherSource) fetch(ctx context.Context, sink Sink) error {
	cells, err := s.client.FetchCells(ctx, s.center.Latitude, s.center.Longitude)
	if err != nil {
		return err
	}
	s.cells = cells
	s.lastGood = s.now()
	s.expired = false
	s.deliver(sink)
	s.logger.Debug("Weather grid refreshed", logger.Int("cells", len(cells)))
	return nil
}

// keepAlive re-delivers the last good grid while it is younger than the
// staleness window, then lets the sweeper expire it
func (s *WeatherSource) keepAlive(sink Sink) {
	if s.lastGood.IsZero() {
		return
	}
	if age := s.now().Sub(s.lastGood); age >= s.staleness {
		if !s.expired {
			s.expired = true
			s.logger.Warn("Weather grid is stale, no longer re-delivering",
				logger.Duration("age", age),
				logger.Int("cells", len(s.cells)))
		}
		return
	}
	s.deliver(sink)
}

func (s *WeatherSource) deliver(sink Sink) {
	at := s.now()
	for _, c := range s.cells {
		sink.Deliver(entity.KindWeatherCell, c.ToEntity(at))
	}
}
