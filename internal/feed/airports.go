package feed

import (
	"context"
	"time"

	"github.com/yegors/skyview/internal/airports"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/pkg/logger"
)

// AirportSource loads the airport database once and re-delivers the
// selected markers every interval so they outlive the staleness window
type AirportSource struct {
	path     string
	sel      airports.Selection
	interval time.Duration
	now      func() time.Time
	logger   *logger.Logger
}

// NewAirportSource creates an airport marker source
func NewAirportSource(path string, sel airports.Selection, interval time.Duration, log *logger.Logger) *AirportSource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AirportSource{
		path:     path,
		sel:      sel,
		interval: interval,
		now:      time.Now,
		logger:   log.Named("airports"),
	}
}

func (s *AirportSource) Name() string { return "airports" }

func (s *AirportSource) Run(ctx context.Context, sink Sink) error {
	all, err := airports.Load(s.path)
	if err != nil {
		return err
	}
	selected := airports.Select(all, s.sel)
	s.logger.Info("Loaded airports",
		logger.String("path", s.path),
		logger.Int("total", len(all)),
		logger.Int("selected", len(selected)))

	return poll(ctx, s.interval, sink, func(context.Context) error {
		at := s.now()
		for _, a := range selected {
			sink.Deliver(entity.KindAirport, a.ToEntity(at))
		}
		return nil
	})
}
