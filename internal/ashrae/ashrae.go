// Package ashrae provides ASHRAE climatic design conditions for the stations
// used in code-based string sizing. The table is read once and never
// modified.
package ashrae

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lox/vocmax/internal/geo"
)

//go:embed data/design_conditions.csv
var builtinTable string

// DefaultMaxDistanceKm is how far a station may be from a site and still
// stand for its climate.
const DefaultMaxDistanceKm = 200.0

// Station is one row of the design conditions table.
type Station struct {
	Name      string  `json:"name"`
	WMO       string  `json:"wmo"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	// ExtremeMinDB is the extreme annual mean minimum dry bulb, °C.
	ExtremeMinDB float64 `json:"extreme_annual_mean_min_db"`
	ExtremeMaxDB float64 `json:"extreme_annual_mean_max_db"`
	// DistanceKm is set by Nearest.
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// Table is an immutable station list.
type Table struct {
	stations []Station
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the embedded table, parsed on first use.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Read(strings.NewReader(builtinTable))
	})
	return defaultTable, defaultErr
}

// Load reads a table from a CSV file with the same columns as the embedded
// table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ashrae table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a design conditions CSV.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{"station", "latitude", "longitude", "extreme_annual_mean_min_db"} {
		if _, ok := col[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	t := &Table{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		var parseErr error
		num := func(name string) float64 {
			s := get(name)
			if s == "" {
				return 0
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			return v
		}
		st := Station{
			Name:         get("station"),
			WMO:          get("wmo"),
			Latitude:     num("latitude"),
			Longitude:    num("longitude"),
			Elevation:    num("elevation"),
			ExtremeMinDB: num("extreme_annual_mean_min_db"),
			ExtremeMaxDB: num("extreme_annual_mean_max_db"),
		}
		if parseErr != nil {
			return nil, parseErr
		}
		t.stations = append(t.stations, st)
	}
	return t, nil
}

// Len returns the number of stations.
func (t *Table) Len() int { return len(t.stations) }

// Nearest returns a copy of the station closest to lat, lon. ok is false
// when the table is empty or the closest station is more than maxKm away;
// in the latter case the station is still returned with DistanceKm set.
// maxKm <= 0 disables the limit.
func (t *Table) Nearest(lat, lon, maxKm float64) (st Station, ok bool) {
	i, d := geo.Nearest(lat, lon, len(t.stations), func(i int) (float64, float64) {
		return t.stations[i].Latitude, t.stations[i].Longitude
	})
	if i < 0 {
		return Station{}, false
	}
	st = t.stations[i]
	st.DistanceKm = d
	if maxKm > 0 && d > maxKm {
		return st, false
	}
	return st, true
}
