package feed

import (
	"context"
	"time"

	"github.com/yegors/skyview/internal/adsb"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/pkg/logger"
)

// ADSBSource polls a local receiver or OpenSky and delivers planes
type ADSBSource struct {
	client          *adsb.Client
	classifier      *adsb.Classifier
	interval        time.Duration
	includeOnGround bool
	logger          *logger.Logger
}

// NewADSBSource creates an ADS-B source polling every interval
func NewADSBSource(client *adsb.Client, classifier *adsb.Classifier, interval time.Duration, includeOnGround bool, log *logger.Logger) *ADSBSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ADSBSource{
		client:          client,
		classifier:      classifier,
		interval:        interval,
		includeOnGround: includeOnGround,
		logger:          log.Named("adsb"),
	}
}

func (s *ADSBSource) Name() string { return "adsb" }

func (s *ADSBSource) Run(ctx context.Context, sink Sink) error {
	return poll(ctx, s.interval, sink, func(ctx context.Context) error {
		return s.fetch(ctx, sink)
	})
}

func (s *ADSBSource) fetch(ctx context.Context, sink Sink) error {
	data, err := s.client.FetchData(ctx)
	if err != nil {
		return err
	}

	delivered, grounded, noPos := 0, 0, 0
	for i := range data.Aircraft {
		t := &data.Aircraft[i]
		e, ok := t.ToEntity(data.Now, s.classifier)
		if !ok {
			noPos++
			continue
		}
		if e.Plane.OnGround && !s.includeOnGround {
			grounded++
			continue
		}
		sink.Deliver(entity.KindPlane, e)
		delivered++
	}

	s.logger.Debug("Processed ADS-B poll",
		logger.Int("delivered", delivered),
		logger.Int("on_ground", grounded),
		logger.Int("no_position", noPos))
	return nil
}
