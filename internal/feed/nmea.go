package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/nmea"
	"github.com/yegors/skyview/pkg/logger"
)

// NMEASource reads own-ship position sentences from a TCP stream or a file
type NMEASource struct {
	address  string
	path     string
	id       string
	callsign string
	dialer   net.Dialer
	now      func() time.Time
	logger   *logger.Logger
}

// NewNMEASource creates an own-ship source. Exactly one of address or path
// is expected.
func NewNMEASource(address, path, id, callsign string, log *logger.Logger) *NMEASource {
	if id == "" {
		id = "ownship"
	}
	if callsign == "" {
		callsign = "OWNSHIP"
	}
	return &NMEASource{
		address:  address,
		path:     path,
		id:       id,
		callsign: callsign,
		dialer:   net.Dialer{Timeout: 10 * time.Second},
		now:      time.Now,
		logger:   log.Named("nmea"),
	}
}

func (s *NMEASource) Name() string { return "nmea" }

func (s *NMEASource) Run(ctx context.Context, sink Sink) error {
	r, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	// unblock the scanner on shutdown
	stop := context.AfterFunc(ctx, func() { r.Close() })
	defer stop()

	err = s.read(ctx, r, sink)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("nmea input ended: %w", err)
}

func (s *NMEASource) open(ctx context.Context) (io.ReadCloser, error) {
	if s.address != "" {
		conn, err := s.dialer.DialContext(ctx, "tcp", s.address)
		if err != nil {
			return nil, fmt.Errorf("dial nmea %s: %w", s.address, err)
		}
		return conn, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open nmea %s: %w", s.path, err)
	}
	return f, nil
}

// read consumes sentences until r ends, delivering the own-ship on each fix
func (s *NMEASource) read(ctx context.Context, r io.Reader, sink Sink) error {
	tracker := nmea.NewTracker(s.now)
	scanner := bufio.NewScanner(r)
	reported := false

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		sentence, err := nmea.Parse(scanner.Text())
		if err != nil {
			if !errors.Is(err, nmea.ErrUnsupported) && !errors.Is(err, nmea.ErrNoFix) {
				s.logger.Debug("Skipping NMEA sentence", logger.Error(err))
			}
			continue
		}
		fix := tracker.Update(sentence)
		sink.Deliver(entity.KindPlane, s.toEntity(fix))
		if !reported {
			report(sink, nil)
			reported = true
		}
	}
	return scanner.Err()
}

func (s *NMEASource) toEntity(fix nmea.Fix) entity.Entity {
	return entity.Entity{
		ID:        s.id,
		Kind:      entity.KindPlane,
		Position:  geo.GeoPoint{Latitude: fix.Latitude, Longitude: fix.Longitude},
		Timestamp: fix.Time,
		Plane: &entity.PlaneAttrs{
			Callsign:      s.callsign,
			Airline:       filter.AirlineOther,
			TrackDeg:      fix.TrackDeg,
			AltitudeFt:    fix.AltitudeFt,
			GroundSpeedKt: fix.SpeedKts,
			Source:        "nmea",
		},
	}
}
