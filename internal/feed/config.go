package feed

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yegors/skyview/internal/adsb"
	"github.com/yegors/skyview/internal/airports"
	"github.com/yegors/skyview/internal/config"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/simulation"
	"github.com/yegors/skyview/internal/weather"
	"github.com/yegors/skyview/pkg/logger"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// NewManagerFromConfig builds a manager with every enabled feed source
func NewManagerFromConfig(cfg *config.Config, sink Sink, log *logger.Logger) *Manager {
	f := cfg.Feeds
	m := NewManager(sink, seconds(f.RetryBackoffSecs), log)
	station := geo.GeoPoint{Latitude: cfg.Station.Latitude, Longitude: cfg.Station.Longitude}

	if f.ADSB.Enabled {
		a := f.ADSB
		client := adsb.NewClient(adsb.ClientConfig{
			SourceType:      a.SourceType,
			LocalSourceURL:  a.LocalSourceURL,
			OpenSkyURL:      a.OpenSkyURL,
			CredentialsPath: a.OpenSkyCredentialsPath,
			BBox: adsb.BBox{
				LaMin: a.OpenSkyBBoxLamin,
				LoMin: a.OpenSkyBBoxLomin,
				LaMax: a.OpenSkyBBoxLamax,
				LoMax: a.OpenSkyBBoxLomax,
			},
			StationLat:     station.Latitude,
			StationLon:     station.Longitude,
			SearchRadiusNM: a.SearchRadiusNM,
			Timeout:        seconds(a.TimeoutSecs),
		}, log)

		classifier := adsb.NewClassifier(log)
		if err := classifier.LoadFile(a.AirlineDBPath); err != nil {
			// names are cosmetic; classification works without them
			log.Warn("Airline database unavailable", logger.Error(err))
		}
		m.Add(NewADSBSource(client, classifier, seconds(a.FetchIntervalSecs), a.IncludeOnGround, log))
	}

	if f.Weather.Enabled {
		w := f.Weather
		client := weather.NewGridClient(weather.GridConfig{
			BaseURL:       w.APIBaseURL,
			GridSize:      w.GridSize,
			GridSpacingNM: w.GridSpacingNM,
			MinIntensity:  w.MinIntensity,
			Timeout:       seconds(w.TimeoutSecs),
		}, log)
		m.Add(NewWeatherSource(client, station, seconds(w.RefreshIntervalSecs), cfg.StalenessWindow(), log))
	}

	if f.Airports.Enabled {
		ap := f.Airports
		m.Add(NewAirportSource(ap.Path, airports.Selection{
			Types:   ap.Types,
			Center:  station,
			RangeNM: ap.RangeNM,
		}, seconds(ap.Interval), log))
	}

	if f.Redis.Enabled {
		r := f.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
		})
		m.closers = append(m.closers, client)
		m.Add(NewRedisStreamSource(client, r.Stream, time.Duration(r.BlockMs)*time.Millisecond, r.Count, log))
	}

	if f.NMEA.Enabled {
		n := f.NMEA
		m.Add(NewNMEASource(n.Address, n.Path, n.ID, n.Callsign, log))
	}

	if f.Simulation.Enabled {
		s := f.Simulation
		sim := simulation.NewService(simulation.Config{
			MaxAircraft:  s.Aircraft,
			MinSpeedKts:  s.MinSpeedKts,
			MaxSpeedKts:  s.MaxSpeedKts,
			TurnRateDegS: s.TurnRateDegS,
			Seed:         s.RandomSeed,
		}, log)
		m.Add(NewSimulationSource(sim, station, s.RadiusNM, time.Duration(s.TickMs)*time.Millisecond, log))
	}

	if m.Len() == 0 {
		log.Warn("No feed sources enabled; the map will stay empty")
	}
	for _, st := range m.Statuses() {
		log.Info("Feed source configured", logger.String("source", st.Source))
	}
	return m
}
