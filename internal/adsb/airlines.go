package adsb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/yegors/skyview/internal/filter"
	"github.com/yegors/skyview/pkg/logger"
)

const (
	classifierCacheSize = 4096
	classifierCacheTTL  = 30 * time.Minute
)

// Classification is the airline derived from a callsign
type Classification struct {
	Callsign string // cleaned callsign
	ICAO     string // 3 letter operator prefix, empty for non airline flights
	Key      string // filter key: one of the five named airlines or OTHER
	Name     string // operator name from airlines.json when known
}

// Classifier maps callsigns to filter airline keys and operator names.
// Results are memoised since the same flights are seen every poll.
type Classifier struct {
	names  map[string]string
	cache  *expirable.LRU[string, Classification]
	logger *logger.Logger
}

// NewClassifier creates a classifier with no operator names loaded
func NewClassifier(log *logger.Logger) *Classifier {
	return &Classifier{
		names:  make(map[string]string),
		cache:  expirable.NewLRU[string, Classification](classifierCacheSize, nil, classifierCacheTTL),
		logger: log.Named("airlines"),
	}
}

// LoadFile reads an airlines.json database. A missing path is not an error;
// classification still works, only names are left empty.
func (c *Classifier) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open airline database: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

// Load parses an airlines.json array and indexes names by ICAO and IATA code
func (c *Classifier) Load(r io.Reader) error {
	var airlines []Airline
	if err := json.NewDecoder(r).Decode(&airlines); err != nil {
		return fmt.Errorf("parse airline database: %w", err)
	}

	for _, airline := range airlines {
		if airline.ICAO != "" && airline.ICAO != "N/A" {
			c.names[strings.ToUpper(airline.ICAO)] = airline.Name
		}
		// Callsigns occasionally use IATA codes (AA123 instead of AAL123)
		if airline.IATA != "" && airline.IATA != "-" && airline.IATA != "N/A" {
			c.names[strings.ToUpper(airline.IATA)] = airline.Name
		}
	}
	c.cache.Purge()

	c.logger.Info("Loaded airline data", logger.Int("count", len(c.names)))
	return nil
}

// Classify derives the airline of a callsign
func (c *Classifier) Classify(callsign string) Classification {
	cleaned := CleanFlightName(callsign)
	if cached, ok := c.cache.Get(cleaned); ok {
		return cached
	}

	out := Classification{Callsign: cleaned, Key: filter.AirlineOther}
	if IsValidFlightNumber(cleaned) {
		out.ICAO = cleaned[:3]
		out.Key = filter.ClassifyAirline(out.ICAO)
		out.Name = c.names[out.ICAO]
	}
	if out.Name == "" {
		for _, a := range filter.Airlines {
			if a.Code == out.Key && out.Key != filter.AirlineOther {
				out.Name = a.Name
			}
		}
	}

	c.cache.Add(cleaned, out)
	return out
}

// CacheLen returns the number of memoised callsigns
func (c *Classifier) CacheLen() int {
	return c.cache.Len()
}

// CleanFlightName trims padding and drops characters that are not letters or digits
func CleanFlightName(flight string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(flight)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidFlightNumber reports whether a cleaned callsign is an airline flight:
// a 3 letter ICAO operator followed by 1 to 4 digits
func IsValidFlightNumber(flight string) bool {
	if len(flight) < 4 || len(flight) > 7 {
		return false
	}
	for i, r := range flight {
		if i < 3 {
			if r < 'A' || r > 'Z' {
				return false
			}
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
