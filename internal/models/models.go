package models

import (
	"math"
	"sort"
	"time"

	"github.com/lox/vocmax/internal/pverr"
)

// Site describes where a weather series was recorded.
type Site struct {
	LocationID    int64
	Latitude      float64
	Longitude     float64
	Elevation     float64
	UTCOffset     float64 // hours
	IntervalHours float64
	DurationYears float64
	Source        string // "nsrdb", "local"
	ObjectKey     string // file name in the weather bucket
}

// WeatherRecord is one timestep of weather. Missing values are NaN.
type WeatherRecord struct {
	Time      time.Time
	DNI       float64
	DHI       float64
	GHI       float64
	TempAir   float64
	WindSpeed float64
}

// Missing reports whether any field needed by the simulation is NaN.
func (r WeatherRecord) Missing() bool {
	return math.IsNaN(r.DNI) || math.IsNaN(r.DHI) || math.IsNaN(r.GHI) ||
		math.IsNaN(r.TempAir) || math.IsNaN(r.WindSpeed)
}

// Negative reports whether an irradiance component is below zero.
func (r WeatherRecord) Negative() bool {
	return r.DNI < 0 || r.DHI < 0 || r.GHI < 0
}

// WeatherSeries is a chronologically ordered weather record set for one site.
type WeatherSeries struct {
	Site    Site
	Records []WeatherRecord
}

// Validate checks ordering and spacing. Values are checked per timestep by
// the simulation engine, not here.
func (s *WeatherSeries) Validate() error {
	if len(s.Records) == 0 {
		return pverr.Configf("weather", "series is empty")
	}
	if len(s.Records) == 1 {
		return nil
	}
	step := s.Records[1].Time.Sub(s.Records[0].Time)
	if step <= 0 {
		return pverr.Configf("weather", "timestamps not strictly increasing at %s", s.Records[1].Time)
	}
	for i := 1; i < len(s.Records); i++ {
		d := s.Records[i].Time.Sub(s.Records[i-1].Time)
		if d <= 0 {
			return pverr.Configf("weather", "timestamps not strictly increasing at %s", s.Records[i].Time)
		}
		if d != step {
			return pverr.Configf("weather", "non-uniform interval at %s: %s, expected %s", s.Records[i].Time, d, step)
		}
	}
	return nil
}

// IntervalHours returns the sampling interval, preferring the site metadata.
func (s *WeatherSeries) IntervalHours() float64 {
	if s.Site.IntervalHours > 0 {
		return s.Site.IntervalHours
	}
	if len(s.Records) < 2 {
		return 1
	}
	return s.Records[1].Time.Sub(s.Records[0].Time).Hours()
}

// DurationYears returns the span of the series in years, preferring the site
// metadata. Never less than one interval.
func (s *WeatherSeries) DurationYears() float64 {
	if s.Site.DurationYears > 0 {
		return s.Site.DurationYears
	}
	return float64(len(s.Records)) * s.IntervalHours() / (365.25 * 24)
}

// Years returns the distinct calendar years covered by the series, in local
// site time, ascending.
func (s *WeatherSeries) Years() []int {
	seen := make(map[int]bool)
	for _, r := range s.Records {
		seen[r.Time.Year()] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
