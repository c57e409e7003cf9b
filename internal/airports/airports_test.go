package airports

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/entity"
	"github.com/yegors/skyview/internal/geo"
)

const airportsCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent"
3632,"KLAX","large_airport","Los Angeles International Airport",33.942501,-118.407997,125,"NA"
3497,"KSNA","large_airport","John Wayne Airport-Orange County Airport",33.675701,-117.867996,56,"NA"
3537,"KLGB","medium_airport","Long Beach Airport",33.8177,-118.152,60,"NA"
19893,"KFUL","small_airport","Fullerton Municipal Airport",33.872002,-117.980003,96,"NA"
99999,"XBAD","heliport","Broken",not-a-number,-117.0,,"NA"
3384,"KJFK","large_airport","John F Kennedy International Airport",40.639447,-73.779317,13,"NA"
`

var station = geo.GeoPoint{Latitude: 33.604076, Longitude: -117.884507}

func TestReadCSV(t *testing.T) {
	all, err := ReadCSV(strings.NewReader(airportsCSV))
	require.NoError(t, err)
	require.Len(t, all, 5)

	snA := all[1]
	assert.Equal(t, "KSNA", snA.Ident)
	assert.Equal(t, "large_airport", snA.Type)
	assert.Equal(t, 56.0, snA.ElevationFt)

	_, err = ReadCSV(strings.NewReader("ident,name\nKSNA,John Wayne\n"))
	assert.ErrorContains(t, err, "latitude_deg")
}

func TestSelect(t *testing.T) {
	all, err := ReadCSV(strings.NewReader(airportsCSV))
	require.NoError(t, err)

	got := Select(all, Selection{
		Types:   []string{"large_airport", "medium_airport"},
		Center:  station,
		RangeNM: 50,
	})
	idents := make([]string, len(got))
	for i, a := range got {
		idents[i] = a.Ident
	}
	assert.Equal(t, []string{"KSNA", "KLGB", "KLAX"}, idents)

	got = Select(all, Selection{Center: station, MaxResult: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "KSNA", got[0].Ident)

	assert.Len(t, Select(all, Selection{Center: station}), 5)
}

func TestBundleRoundTrip(t *testing.T) {
	all, err := ReadCSV(strings.NewReader(airportsCSV))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "airports"+BundleExt)
	var buf bytes.Buffer
	require.NoError(t, WriteBundle(&buf, all))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, all, loaded)

	csvPath := filepath.Join(dir, "airports.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(airportsCSV), 0o644))
	loaded, err = Load(csvPath)
	require.NoError(t, err)
	assert.Equal(t, all, loaded)

	_, err = Load(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = ReadBundle(strings.NewReader("not zstd"))
	assert.Error(t, err)
}

func TestToEntity(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	e := Airport{Ident: "KSNA", Type: "large_airport", Name: "John Wayne", Latitude: 33.6757, Longitude: -117.868, ElevationFt: 56}.ToEntity(at)
	require.NoError(t, e.Validate())
	assert.Equal(t, entity.KindAirport, e.Kind)
	assert.Equal(t, "KSNA", e.ID)
	assert.Equal(t, at, e.Timestamp)
	assert.Equal(t, "John Wayne", e.Airport.Name)
}
