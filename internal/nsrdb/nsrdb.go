// Package nsrdb reads weather files in the NSRDB PSM CSV layout and indexes
// the files held in the weather bucket by location.
//
// A PSM file starts with two metadata rows (names, then values), followed by
// the column header row and one row per timestep:
//
//	Source,Location ID,City,...,Latitude,Longitude,Time Zone,Elevation,...
//	NSRDB,1000030,-,...,43.77,-82.98,-5,177,...
//	Year,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature,Wind Speed,...
//	1998,1,1,0,0,0,0,0,-3.1,5.2,...
package nsrdb

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/vocmax/internal/models"
)

// Metadata is the location block of a PSM file.
type Metadata struct {
	Source     string
	LocationID int64
	Latitude   float64
	Longitude  float64
	Elevation  float64
	TimeZone   float64 // hours east of UTC
}

var dataColumns = map[string]string{
	"year":        "Year",
	"month":       "Month",
	"day":         "Day",
	"hour":        "Hour",
	"minute":      "Minute",
	"dni":         "DNI",
	"dhi":         "DHI",
	"ghi":         "GHI",
	"temperature": "Temperature",
	"wind speed":  "Wind Speed",
}

// ErrNoRecords is returned for a file with headers but no data rows.
var ErrNoRecords = errors.New("nsrdb: no data rows")

// Parse reads a PSM CSV into a weather series. Blank or unparseable values
// become NaN so the simulation can exclude those timesteps.
func Parse(r io.Reader) (*models.WeatherSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read metadata header: %w", err)
	}
	values, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read metadata values: %w", err)
	}
	meta, err := parseMetadata(names, values)
	if err != nil {
		return nil, err
	}

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read column header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for key, name := range dataColumns {
		if _, ok := col[key]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	loc := time.FixedZone(zoneName(meta.TimeZone), int(meta.TimeZone*3600))
	var recs []models.WeatherRecord
	line := 3
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, col, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}

	ws := &models.WeatherSeries{
		Site: models.Site{
			LocationID: meta.LocationID,
			Latitude:   meta.Latitude,
			Longitude:  meta.Longitude,
			Elevation:  meta.Elevation,
			UTCOffset:  meta.TimeZone,
			Source:     strings.ToLower(meta.Source),
		},
		Records: recs,
	}
	ws.Site.IntervalHours = ws.IntervalHours()
	ws.Site.DurationYears = ws.DurationYears()
	return ws, nil
}

func parseMetadata(names, values []string) (Metadata, error) {
	m := Metadata{Source: "nsrdb"}
	get := func(name string) (string, bool) {
		for i, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), name) && i < len(values) {
				return strings.TrimSpace(values[i]), true
			}
		}
		return "", false
	}
	num := func(name string, required bool) (float64, error) {
		v, ok := get(name)
		if !ok {
			if required {
				return 0, fmt.Errorf("metadata missing %q", name)
			}
			return 0, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("metadata %q: %w", name, err)
		}
		return f, nil
	}

	if s, ok := get("Source"); ok && s != "" {
		m.Source = s
	}
	if v, ok := get("Location ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return m, fmt.Errorf("metadata %q: %w", "Location ID", err)
		}
		m.LocationID = id
	}
	var err error
	if m.Latitude, err = num("Latitude", true); err != nil {
		return m, err
	}
	if m.Longitude, err = num("Longitude", true); err != nil {
		return m, err
	}
	if m.Elevation, err = num("Elevation", false); err != nil {
		return m, err
	}
	// Time Zone is the offset the timestamps are written in.
	if m.TimeZone, err = num("Time Zone", false); err != nil {
		return m, err
	}
	return m, nil
}

func parseRow(row []string, col map[string]int, loc *time.Location) (models.WeatherRecord, error) {
	field := func(key string) string {
		i := col[key]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	var parts [5]int
	for i, key := range []string{"year", "month", "day", "hour", "minute"} {
		n, err := strconv.Atoi(field(key))
		if err != nil {
			return models.WeatherRecord{}, fmt.Errorf("%s: %w", dataColumns[key], err)
		}
		parts[i] = n
	}
	return models.WeatherRecord{
		Time:      time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, loc),
		DNI:       value(field("dni")),
		DHI:       value(field("dhi")),
		GHI:       value(field("ghi")),
		TempAir:   value(field("temperature")),
		WindSpeed: value(field("wind speed")),
	}, nil
}

func value(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func zoneName(offset float64) string {
	if offset == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+g", offset)
}
