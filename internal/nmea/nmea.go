// Package nmea decodes the NMEA 0183 position sentences needed to place
// the own-ship on the map: GGA (fix and altitude) and RMC (speed, track
// and date).
package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrChecksum    = errors.New("nmea: checksum mismatch")
	ErrUnsupported = errors.New("nmea: unsupported sentence")
	ErrNoFix       = errors.New("nmea: no position fix")
)

// Sentence is a decoded GGA or RMC sentence
type Sentence struct {
	Type      string // "GGA" or "RMC"
	Talker    string // e.g. "GP", "GN"
	Time      time.Time
	Latitude  float64
	Longitude float64

	// GGA only
	AltitudeM  float64
	HasAlt     bool
	Satellites int

	// RMC only
	SpeedKts  float64
	TrackDeg  float64
	HasMotion bool
}

// Parse decodes one sentence. The checksum is verified when present.
// Sentences without a valid fix return ErrNoFix.
func Parse(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "!") {
		return Sentence{}, fmt.Errorf("nmea: missing start delimiter: %q", line)
	}
	body := line[1:]
	if i := strings.IndexByte(body, '*'); i >= 0 {
		want, err := strconv.ParseUint(body[i+1:], 16, 8)
		if err != nil {
			return Sentence{}, fmt.Errorf("nmea: bad checksum field: %w", err)
		}
		body = body[:i]
		if checksum(body) != byte(want) {
			return Sentence{}, ErrChecksum
		}
	}

	fields := strings.Split(body, ",")
	if len(fields[0]) != 5 {
		return Sentence{}, fmt.Errorf("%w: %s", ErrUnsupported, fields[0])
	}
	s := Sentence{Talker: fields[0][:2], Type: fields[0][2:]}

	switch s.Type {
	case "GGA":
		return s, parseGGA(&s, fields)
	case "RMC":
		return s, parseRMC(&s, fields)
	default:
		return s, fmt.Errorf("%w: %s", ErrUnsupported, fields[0])
	}
}

// checksum returns the XOR of every byte between the delimiters
func checksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}

// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,q,nn,hdop,alt,M,sep,M,age,station
func parseGGA(s *Sentence, f []string) error {
	if len(f) < 10 {
		return fmt.Errorf("nmea: GGA has %d fields", len(f))
	}
	if f[6] == "" || f[6] == "0" {
		return ErrNoFix
	}
	if err := s.setPosition(f[2], f[3], f[4], f[5]); err != nil {
		return err
	}
	s.Time = clockTime(f[1], time.Time{})
	if n, err := strconv.Atoi(f[7]); err == nil {
		s.Satellites = n
	}
	if f[9] != "" {
		alt, err := strconv.ParseFloat(f[9], 64)
		if err != nil {
			return fmt.Errorf("nmea: bad altitude %q: %w", f[9], err)
		}
		s.AltitudeM = alt
		s.HasAlt = true
	}
	return nil
}

// $GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,speed,track,ddmmyy,magvar,E
func parseRMC(s *Sentence, f []string) error {
	if len(f) < 10 {
		return fmt.Errorf("nmea: RMC has %d fields", len(f))
	}
	if f[2] != "A" {
		return ErrNoFix
	}
	if err := s.setPosition(f[3], f[4], f[5], f[6]); err != nil {
		return err
	}

	var date time.Time
	if len(f[9]) == 6 {
		if d, err := time.Parse("020106", f[9]); err == nil {
			date = d
		}
	}
	s.Time = clockTime(f[1], date)

	if f[7] != "" {
		v, err := strconv.ParseFloat(f[7], 64)
		if err != nil {
			return fmt.Errorf("nmea: bad speed %q: %w", f[7], err)
		}
		s.SpeedKts = v
		s.HasMotion = true
	}
	if f[8] != "" {
		v, err := strconv.ParseFloat(f[8], 64)
		if err != nil {
			return fmt.Errorf("nmea: bad track %q: %w", f[8], err)
		}
		s.TrackDeg = v
	}
	return nil
}

func (s *Sentence) setPosition(lat, ns, lon, ew string) error {
	var err error
	if s.Latitude, err = coordinate(lat, ns, 2); err != nil {
		return err
	}
	if s.Longitude, err = coordinate(lon, ew, 3); err != nil {
		return err
	}
	return nil
}

// coordinate converts ddmm.mmmm / dddmm.mmmm with a hemisphere letter
func coordinate(v, hemi string, degDigits int) (float64, error) {
	if len(v) < degDigits+2 {
		return 0, fmt.Errorf("nmea: bad coordinate %q", v)
	}
	deg, err := strconv.Atoi(v[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("nmea: bad coordinate %q: %w", v, err)
	}
	minutes, err := strconv.ParseFloat(v[degDigits:], 64)
	if err != nil || minutes >= 60 {
		return 0, fmt.Errorf("nmea: bad coordinate minutes %q", v)
	}
	out := float64(deg) + minutes/60
	switch hemi {
	case "N", "E":
	case "S", "W":
		out = -out
	default:
		return 0, fmt.Errorf("nmea: bad hemisphere %q", hemi)
	}
	return out, nil
}

// clockTime combines hhmmss.ss with date. A zero date leaves only the clock.
func clockTime(hms string, date time.Time) time.Time {
	if len(hms) < 6 {
		return time.Time{}
	}
	h, err1 := strconv.Atoi(hms[0:2])
	m, err2 := strconv.Atoi(hms[2:4])
	sec, err3 := strconv.ParseFloat(hms[4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}
	}
	whole := int(sec)
	ns := int((sec - float64(whole)) * 1e9)
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, whole, ns, time.UTC)
}
