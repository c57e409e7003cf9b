package airports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
	"github.com/yegors/skyview/internal/physics"
)

// BundleExt marks a zstd compressed msgpack airport bundle
const BundleExt = ".msgpack.zst"

// Airport is one row of the OurAirports database
type Airport struct {
	Ident       string  `msgpack:"ident" json:"ident"`
	Type        string  `msgpack:"type" json:"type"`
	Name        string  `msgpack:"name" json:"name"`
	Latitude    float64 `msgpack:"lat" json:"latitude"`
	Longitude   float64 `msgpack:"lon" json:"longitude"`
	ElevationFt float64 `msgpack:"elev" json:"elevation_ft"`
}

// ToEntity converts the airport into a marker entity stamped at
func (a Airport) ToEntity(at time.Time) entity.Entity {
	return entity.Entity{
		ID:        a.Ident,
		Kind:      entity.KindAirport,
		Position:  geo.GeoPoint{Latitude: a.Latitude, Longitude: a.Longitude},
		Timestamp: at,
		Airport: &entity.AirportAttrs{
			Code:        a.Ident,
			Name:        a.Name,
			Type:        a.Type,
			ElevationFt: a.ElevationFt,
		},
	}
}

// Load reads a CSV or, for paths ending in .msgpack.zst, a bundle
func Load(path string) ([]Airport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open airports database: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, BundleExt) {
		return ReadBundle(f)
	}
	return ReadCSV(f)
}

// ReadCSV parses the OurAirports airports.csv layout. Columns are located
// by header name so both the full export and trimmed copies work.
func ReadCSV(r io.Reader) ([]Airport, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read airports header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"ident", "latitude_deg", "longitude_deg"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("airports CSV missing %q column", required)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Airport
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read airports CSV: %w", err)
		}

		lat, err1 := strconv.ParseFloat(field(rec, "latitude_deg"), 64)
		lon, err2 := strconv.ParseFloat(field(rec, "longitude_deg"), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		elev, _ := strconv.ParseFloat(field(rec, "elevation_ft"), 64)

		out = append(out, Airport{
			Ident:       field(rec, "ident"),
			Type:        field(rec, "type"),
			Name:        field(rec, "name"),
			Latitude:    lat,
			Longitude:   lon,
			ElevationFt: elev,
		})
	}
	return out, nil
}

// ReadBundle decodes a zstd compressed msgpack array of airports
func ReadBundle(r io.Reader) ([]Airport, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open airports bundle: %w", err)
	}
	defer zr.Close()

	var out []Airport
	if err := msgpack.NewDecoder(zr).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode airports bundle: %w", err)
	}
	return out, nil
}

// WriteBundle encodes airports as a zstd compressed msgpack array
func WriteBundle(w io.Writer, airports []Airport) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(airports); err != nil {
		zw.Close()
		return fmt.Errorf("encode airports bundle: %w", err)
	}
	return zw.Close()
}

// Selection narrows the database to the markers worth drawing
type Selection struct {
	Types     []string // empty keeps every type
	Center    geo.GeoPoint
	RangeNM   float64 // 0 keeps every distance
	MaxResult int     // 0 is unlimited; nearest first when set
}

// Select filters airports by type and range, nearest to the center first
func Select(all []Airport, sel Selection) []Airport {
	types := make(map[string]bool, len(sel.Types))
	for _, t := range sel.Types {
		types[strings.ToLower(t)] = true
	}

	type scored struct {
		a    Airport
		dist float64
	}
	var kept []scored
	for _, a := range all {
		if a.Ident == "" {
			continue
		}
		if len(types) > 0 && !types[strings.ToLower(a.Type)] {
			continue
		}
		dist := physics.MetersToNM(physics.Haversine(sel.Center.Latitude, sel.Center.Longitude, a.Latitude, a.Longitude))
		if sel.RangeNM > 0 && dist > sel.RangeNM {
			continue
		}
		kept = append(kept, scored{a, dist})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].dist != kept[j].dist {
			return kept[i].dist < kept[j].dist
		}
		return kept[i].a.Ident < kept[j].a.Ident
	})
	if sel.MaxResult > 0 && len(kept) > sel.MaxResult {
		kept = kept[:sel.MaxResult]
	}

	out := make([]Airport, len(kept))
	for i, k := range kept {
		out[i] = k.a
	}
	return out
}
