package ingest

import (
	"math"
	"sort"

	"github.com/lox/vocmax/internal/models"
)

const (
	FlagMissing            = "missing"
	FlagIrradianceNegative = "irradiance_negative"
	FlagIrradianceHigh     = "irradiance_unlikely"
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
)

// Plausible physical limits for surface weather.
const (
	maxIrradiance = 1500.0 // W/m²
	minTempAir    = -90.0
	maxTempAir    = 60.0
	maxWindSpeed  = 75.0 // m/s
)

// ValidateRecord returns quality flags for one timestep. Flagged records are
// still stored; the simulation decides which ones it can use.
func ValidateRecord(r models.WeatherRecord) []string {
	var flags []string

	if r.Missing() {
		flags = append(flags, FlagMissing)
	}
	if r.Negative() {
		flags = append(flags, FlagIrradianceNegative)
	}
	if r.DNI > maxIrradiance || r.DHI > maxIrradiance || r.GHI > maxIrradiance {
		flags = append(flags, FlagIrradianceHigh)
	}
	if !math.IsNaN(r.TempAir) && (r.TempAir < minTempAir || r.TempAir > maxTempAir) {
		flags = append(flags, FlagTempOutOfRange)
	}
	if !math.IsNaN(r.WindSpeed) && (r.WindSpeed < 0 || r.WindSpeed > maxWindSpeed) {
		flags = append(flags, FlagWindSpeedUnlikely)
	}
	return flags
}

// QCReport counts flagged timesteps in a series.
type QCReport struct {
	Records int
	Flagged int
	ByFlag  map[string]int
}

// ValidateSeries runs ValidateRecord over every timestep.
func ValidateSeries(ws *models.WeatherSeries) QCReport {
	rep := QCReport{Records: len(ws.Records), ByFlag: make(map[string]int)}
	for _, r := range ws.Records {
		flags := ValidateRecord(r)
		if len(flags) == 0 {
			continue
		}
		rep.Flagged++
		for _, f := range flags {
			rep.ByFlag[f]++
		}
	}
	return rep
}

// Flags returns the flag names seen, sorted.
func (q QCReport) Flags() []string {
	out := make([]string, 0, len(q.ByFlag))
	for f := range q.ByFlag {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
