package feed

import (
	"context"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/simulation"
	"github.com/yegors/skyview/pkg/logger"
)

// SimulationSource spawns synthetic planes around the station and advances
// them every tick
type SimulationSource struct {
	sim      *simulation.Service
	center   geo.GeoPoint
	radiusNM float64
	tick     time.Duration
	now      func() time.Time
	logger   *logger.Logger
}

// NewSimulationSource creates a synthetic traffic source
func NewSimulationSource(sim *simulation.Service, center geo.GeoPoint, radiusNM float64, tick time.Duration, log *logger.Logger) *SimulationSource {
	if tick <= 0 {
		tick = time.Second
	}
	return &SimulationSource{
		sim:      sim,
		center:   center,
		radiusNM: radiusNM,
		tick:     tick,
		now:      time.Now,
		logger:   log.Named("sim-feed"),
	}
}

func (s *SimulationSource) Name() string { return "simulation" }

func (s *SimulationSource) Run(ctx context.Context, sink Sink) error {
	if n := s.sim.Populate(s.center.Latitude, s.center.Longitude, s.radiusNM, s.now()); n > 0 {
		s.logger.Info("Spawned simulated aircraft", logger.Int("count", n))
	}

	return poll(ctx, s.tick, sink, func(context.Context) error {
		s.sim.UpdatePositions(s.now())
		for _, e := range s.sim.Entities() {
			sink.Deliver(entity.KindPlane, e)
		}
		return nil
	})
}
