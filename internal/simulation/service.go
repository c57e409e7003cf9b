package simulation

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/physics"
	"github.com/yegors/skyview/pkg/logger"
)

// SourceName tags simulated planes
const SourceName = "simulation"

// Operators used for generated flight numbers. SIM flights classify as OTHER.
var operators = []string{
	filter.AirlineSpirit,
	filter.AirlineAmerican,
	filter.AirlineSouthwest,
	filter.AirlineUnited,
	filter.AirlineDelta,
	"SIM",
}

// Config tunes the synthetic traffic
type Config struct {
	MaxAircraft  int
	MinSpeedKts  float64
	MaxSpeedKts  float64
	TurnRateDegS float64 // positive turns right
	Seed         int64   // 0 seeds from the clock
}

// SimulatedAircraft represents a single simulated aircraft with its current state
type SimulatedAircraft struct {
	Hex                string    `json:"hex"`
	Flight             string    `json:"flight"`
	Airline            string    `json:"airline"`
	CurrentLat         float64   `json:"current_lat"`
	CurrentLon         float64   `json:"current_lon"`
	CurrentAltitude    float64   `json:"current_altitude"`
	TargetHeading      float64   `json:"target_heading"`
	TargetSpeed        float64   `json:"target_speed"`
	TargetVerticalRate float64   `json:"target_vertical_rate"`
	TurnRate           float64   `json:"turn_rate"`
	LastUpdate         time.Time `json:"last_update"`
	CreatedAt          time.Time `json:"created_at"`
}

// Service manages simulated aircraft
type Service struct {
	cfg      Config
	aircraft map[string]*SimulatedAircraft
	rng      *rand.Rand
	mutex    sync.RWMutex
	logger   *logger.Logger
}

// NewService creates a new simulation service
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.MaxAircraft <= 0 {
		cfg.MaxAircraft = 10
	}
	if cfg.MaxSpeedKts < cfg.MinSpeedKts {
		cfg.MinSpeedKts, cfg.MaxSpeedKts = cfg.MaxSpeedKts, cfg.MinSpeedKts
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Service{
		cfg:      cfg,
		aircraft: make(map[string]*SimulatedAircraft),
		rng:      rand.New(rand.NewSource(seed)),
		logger:   log.Named("simulation"),
	}
}

// CreateAircraft creates a new simulated aircraft
func (s *Service) CreateAircraft(lat, lon, altitude, heading, speed, verticalRate float64, now time.Time) (*SimulatedAircraft, error) {
	if err := (geo.GeoPoint{Latitude: lat, Longitude: lon}).Validate(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.aircraft) >= s.cfg.MaxAircraft {
		return nil, fmt.Errorf("maximum number of simulated aircraft (%d) reached", s.cfg.MaxAircraft)
	}

	hex := s.generateUniqueHex()
	airline := operators[s.rng.Intn(len(operators))]
	flight := fmt.Sprintf("%s%d", airline, s.rng.Intn(9999)+1)

	aircraft := &SimulatedAircraft{
		Hex:                hex,
		Flight:             flight,
		Airline:            filter.ClassifyAirline(airline),
		CurrentLat:         lat,
		CurrentLon:         lon,
		CurrentAltitude:    altitude,
		TargetHeading:      physics.NormalizeHeading(heading),
		TargetSpeed:        speed,
		TargetVerticalRate: verticalRate,
		TurnRate:           s.cfg.TurnRateDegS,
		LastUpdate:         now,
		CreatedAt:          now,
	}

	s.aircraft[hex] = aircraft
	s.logger.Debug("Created simulated aircraft",
		logger.String("hex", hex),
		logger.String("flight", flight),
		logger.Float64("lat", lat),
		logger.Float64("lon", lon))

	return aircraft, nil
}

// Populate spawns aircraft at random points within radiusNM of the center
// until the configured maximum is reached
func (s *Service) Populate(centerLat, centerLon, radiusNM float64, now time.Time) int {
	created := 0
	for s.Count() < s.cfg.MaxAircraft {
		s.mutex.Lock()
		bearing := s.rng.Float64() * 360
		dist := s.rng.Float64() * radiusNM
		heading := s.rng.Float64() * 360
		speed := s.cfg.MinSpeedKts + s.rng.Float64()*(s.cfg.MaxSpeedKts-s.cfg.MinSpeedKts)
		alt := float64(2000 + s.rng.Intn(34)*1000)
		s.mutex.Unlock()

		lat, lon := physics.DestinationPoint(centerLat, centerLon, bearing, dist)
		if _, err := s.CreateAircraft(lat, lon, alt, heading, speed, 0, now); err != nil {
			s.logger.Warn("Failed to spawn simulated aircraft", logger.Error(err))
			break
		}
		created++
	}
	return created
}

// UpdateControls updates the control parameters for a simulated aircraft
func (s *Service) UpdateControls(hex string, heading, speed, verticalRate float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	aircraft, exists := s.aircraft[hex]
	if !exists {
		return fmt.Errorf("simulated aircraft with hex %s not found", hex)
	}

	aircraft.TargetHeading = physics.NormalizeHeading(heading)
	aircraft.TargetSpeed = speed
	aircraft.TargetVerticalRate = verticalRate
	return nil
}

// RemoveAircraft removes a simulated aircraft
func (s *Service) RemoveAircraft(hex string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.aircraft[hex]; !exists {
		return fmt.Errorf("simulated aircraft with hex %s not found", hex)
	}
	delete(s.aircraft, hex)
	return nil
}

// Count returns the number of simulated aircraft
func (s *Service) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.aircraft)
}

// UpdatePositions advances every aircraft to now by dead reckoning
func (s *Service) UpdatePositions(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, aircraft := range s.aircraft {
		dt := now.Sub(aircraft.LastUpdate)
		if dt <= 0 {
			continue
		}
		updateAircraftPosition(aircraft, dt)
		aircraft.LastUpdate = now
	}
}

// updateAircraftPosition moves along the current heading, then turns
func updateAircraftPosition(aircraft *SimulatedAircraft, dt time.Duration) {
	aircraft.CurrentLat, aircraft.CurrentLon = physics.DeadReckon(
		aircraft.CurrentLat, aircraft.CurrentLon, aircraft.TargetHeading, aircraft.TargetSpeed, dt)

	secs := dt.Seconds()
	aircraft.TargetHeading = physics.NormalizeHeading(aircraft.TargetHeading + aircraft.TurnRate*secs)

	// vertical rate in feet per minute
	aircraft.CurrentAltitude += aircraft.TargetVerticalRate * secs / 60
	if aircraft.CurrentAltitude < 0 {
		aircraft.CurrentAltitude = 0
		aircraft.TargetVerticalRate = 0
	}
}

// Entities returns plane entities for every simulated aircraft, ordered by hex
func (s *Service) Entities() []entity.Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]entity.Entity, 0, len(s.aircraft))
	for _, a := range s.aircraft {
		out = append(out, entity.Entity{
			ID:        a.Hex,
			Kind:      entity.KindPlane,
			Position:  geo.GeoPoint{Latitude: a.CurrentLat, Longitude: a.CurrentLon},
			Timestamp: a.LastUpdate,
			Plane: &entity.PlaneAttrs{
				Callsign:      a.Flight,
				Airline:       a.Airline,
				TrackDeg:      a.TargetHeading,
				AltitudeFt:    a.CurrentAltitude,
				GroundSpeedKt: a.TargetSpeed,
				OnGround:      a.CurrentAltitude == 0,
				Source:        SourceName,
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// generateUniqueHex generates a unique 6-character hex code
func (s *Service) generateUniqueHex() string {
	for {
		hex := fmt.Sprintf("%06x", s.rng.Intn(0xFFFFFF))
		if _, exists := s.aircraft[hex]; !exists {
			return hex
		}
	}
}
