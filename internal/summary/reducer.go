// Package summary reduces a simulated Voc time series to the named design
// values used to size strings under NEC 690.7(A), plus histograms and the
// recommended safety factor.
package summary

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/simulate"
)

// Summary entry keys.
const (
	KeyP995      = "690.7(A)(3)-P99.5"
	KeyP100      = "690.7(A)(3)-P100"
	KeyDay       = "690.7(A)(3)-DAY"
	KeyNSRDB     = "690.7(A)(1)-NSRDB"
	KeyASHRAE    = "690.7(A)(1)-ASHRAE"
	KeyNECASHRAE = "690.7(A)(2)-ASHRAE"
)

const (
	DefaultStringDesignVoltage = 1500.0
	DefaultSafetyFactor        = 0.033
	// DaytimeGHI separates daytime rows for the DAY entry, W/m².
	DaytimeGHI = 150.0

	percentileCushion = 0.0025
	thresholdPoints   = 100
)

// Options controls the reduction.
type Options struct {
	StringDesignVoltage float64
	// SafetyFactor is a fraction applied to the simulated entries.
	SafetyFactor float64
	// Station supplies ASHRAE design temperatures. Without it the ASHRAE
	// entries fall back to the weather data.
	Station        *ashrae.Station
	HistogramEdges int
}

// DefaultOptions uses a 1500 V design and a 3.3 % safety factor.
func DefaultOptions() Options {
	return Options{
		StringDesignVoltage: DefaultStringDesignVoltage,
		SafetyFactor:        DefaultSafetyFactor,
		HistogramEdges:      DefaultVocHistogramEdges,
	}
}

// Validate checks the design inputs.
func (o Options) Validate() error {
	if !(o.StringDesignVoltage > 0) {
		return pverr.Configf("string_design_voltage", "must be positive, got %v", o.StringDesignVoltage)
	}
	if math.IsNaN(o.SafetyFactor) || o.SafetyFactor < 0 || o.SafetyFactor >= 1 {
		return pverr.Configf("safety_factor", "must be in [0, 1), got %v", o.SafetyFactor)
	}
	return nil
}

// Entry is one named design value.
type Entry struct {
	Key                 string     `json:"key"`
	Voltage             float64    `json:"max_module_voltage"`
	CellTemperature     float64    `json:"cell_temperature"`
	POAIrradiance       float64    `json:"poa_irradiance"`
	SafetyFactor        float64    `json:"safety_factor"`
	StringDesignVoltage float64    `json:"string_design_voltage"`
	StringLength        int        `json:"string_length"`
	Conditions          string     `json:"conditions"`
	Note                string     `json:"note"`
	Time                *time.Time `json:"time,omitempty"`
}

// Diagnostics are headline scalars for display.
type Diagnostics struct {
	MaxVoc               float64         `json:"max_voc"`
	MaxVocTime           time.Time       `json:"max_voc_time"`
	P995                 float64         `json:"p99_5"`
	P999                 float64         `json:"p99_9"`
	MeanYearlyMinTemp    float64         `json:"mean_yearly_min_temp"`
	MeanYearlyMinDayTemp float64         `json:"mean_yearly_min_day_temp"`
	MinTempAir           float64         `json:"min_temp_air"`
	Years                int             `json:"years"`
	Timesteps            int             `json:"timesteps"`
	Excluded             int             `json:"excluded"`
	NonConverged         int             `json:"non_converged"`
	ExcludedFraction     float64         `json:"excluded_fraction"`
	Station              *ashrae.Station `json:"ashrae_station,omitempty"`
}

// ThresholdPoint is a cell temperature at which the module reaches the
// P99.9 Voc for a given irradiance.
type ThresholdPoint struct {
	POA      float64 `json:"poa"`
	TempCell float64 `json:"temp_cell"`
}

// Summary is the reduced result of a run.
type Summary struct {
	Entries           []Entry               `json:"entries"`
	Diagnostics       Diagnostics           `json:"diagnostics"`
	VocHistogram      *Histogram            `json:"voc_histogram"`
	TempAirHistogram  *Histogram            `json:"temp_air_histogram"`
	TempCellHistogram *Histogram            `json:"temp_cell_histogram"`
	Threshold         []ThresholdPoint      `json:"threshold,omitempty"`
	SafetyFactor      SafetyFactorBreakdown `json:"recommended_safety_factor"`
}

// Entry returns the entry with the given key.
func (s *Summary) Entry(key string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// series holds the valid timesteps as parallel slices.
type series struct {
	idx  []int
	voc  []float64
	time []time.Time
	air  []float64
	ghi  []float64
}

func collect(res *simulate.Result) series {
	var s series
	for i, r := range res.Records {
		if !r.Valid {
			continue
		}
		s.idx = append(s.idx, i)
		s.voc = append(s.voc, r.Voc)
		s.time = append(s.time, r.Time)
		s.air = append(s.air, r.TempAir)
		s.ghi = append(s.ghi, r.GHI)
	}
	return s
}

// Reduce computes the summary for a finished simulation. Night timesteps
// have a valid Voc of zero and take part in every statistic.
func Reduce(res *simulate.Result, opt Options) (*Summary, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	s := collect(res)
	if len(s.voc) == 0 {
		return nil, res.Quality()
	}

	sorted := append([]float64(nil), s.voc...)
	sort.Float64s(sorted)

	maxAt := floats.MaxIdx(s.voc)
	maxRec := res.Records[s.idx[maxAt]]

	meanMin, _ := MeanYearlyMin(s.time, s.air, nil)
	meanDayMin, ok := MeanYearlyMin(s.time, s.air, func(i int) bool { return s.ghi[i] > DaytimeGHI })
	if !ok {
		meanDayMin = meanMin
	}

	diag := Diagnostics{
		MaxVoc:               maxRec.Voc,
		MaxVocTime:           maxRec.Time,
		P995:                 Percentile(sorted, 99.5),
		P999:                 Percentile(sorted, 99.9),
		MeanYearlyMinTemp:    meanMin,
		MeanYearlyMinDayTemp: meanDayMin,
		MinTempAir:           floats.Min(s.air),
		Years:                len(yearsOf(s.time)),
		Timesteps:            len(res.Records),
		Excluded:             res.Excluded,
		NonConverged:         res.NonConverged,
		ExcludedFraction:     res.Quality().Fraction(),
		Station:              opt.Station,
	}

	module := res.Module
	ref := module.Reference()

	p995Rec := res.Records[s.idx[correlated(s.voc, s.idx, res.Records, diag.P995)]]
	entries := []Entry{
		{
			Key:             KeyP995,
			Voltage:         diag.P995,
			CellTemperature: p995Rec.TempCell,
			POAIrradiance:   p995Rec.POA,
			SafetyFactor:    opt.SafetyFactor,
			Note:            "99.5th percentile Voc from the simulated series, with safety factor",
			Time:            timePtr(p995Rec.Time),
		},
		{
			Key:             KeyP100,
			Voltage:         maxRec.Voc,
			CellTemperature: maxRec.TempCell,
			POAIrradiance:   maxRec.POA,
			SafetyFactor:    opt.SafetyFactor,
			Note:            "Historical maximum Voc from the simulated series, with safety factor",
			Time:            timePtr(maxRec.Time),
		},
	}

	traditional := func(key string, temp float64, note string) (Entry, error) {
		v, err := module.Voc(pvmodule.ReferenceIrradiance, temp)
		if err != nil {
			return Entry{}, fmt.Errorf("%s: %w", key, err)
		}
		return Entry{
			Key:             key,
			Voltage:         v,
			CellTemperature: temp,
			POAIrradiance:   pvmodule.ReferenceIrradiance,
			Note:            note,
		}, nil
	}

	ashraeMin, ashraeNote := meanMin, "weather data mean yearly minimum (no ASHRAE station)"
	if opt.Station != nil {
		ashraeMin = opt.Station.ExtremeMinDB
		ashraeNote = fmt.Sprintf("ASHRAE extreme annual mean minimum at %s", opt.Station.Name)
	}

	for _, t := range []struct {
		key, note string
		temp      float64
	}{
		{KeyDay, "Voc at 1000 W/m² and mean yearly minimum daytime (GHI > 150 W/m²) air temperature", meanDayMin},
		{KeyNSRDB, "Voc at 1000 W/m² and mean yearly minimum air temperature of the weather data", meanMin},
		{KeyASHRAE, "Voc at 1000 W/m² and " + ashraeNote, ashraeMin},
	} {
		e, err := traditional(t.key, t.temp, t.note)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	entries = append(entries, Entry{
		Key:             KeyNECASHRAE,
		Voltage:         ref.Voco * NECCorrectionFactor(ashraeMin),
		CellTemperature: ashraeMin,
		POAIrradiance:   pvmodule.ReferenceIrradiance,
		Note:            fmt.Sprintf("STC Voc times NEC Table 690.7(A) factor %.2f", NECCorrectionFactor(ashraeMin)),
	})

	for i := range entries {
		e := &entries[i]
		e.StringDesignVoltage = opt.StringDesignVoltage
		e.StringLength = StringLength(e.Voltage, opt.StringDesignVoltage, e.SafetyFactor)
		e.Conditions = fmt.Sprintf("%.0f W/m², %.1f °C", e.POAIrradiance, e.CellTemperature)
	}

	sum := &Summary{
		Entries:           entries,
		Diagnostics:       diag,
		VocHistogram:      VocHistogram(s.voc, opt.HistogramEdges, res.IntervalHours, res.DurationYears),
		TempAirHistogram:  TemperatureHistogram(s.air, res.IntervalHours, res.DurationYears),
		TempCellHistogram: TemperatureHistogram(cellTemps(res, s.idx), res.IntervalHours, res.DurationYears),
		Threshold:         threshold(module, diag.P999),
	}
	sum.SafetyFactor = recommend(ref, diag, opt.Station, module)
	return sum, nil
}

// StringLength is the number of modules whose combined voltage, inflated by
// the safety factor, stays under the design voltage.
func StringLength(voc, designVoltage, safetyFactor float64) int {
	if !(voc > 0) {
		return 0
	}
	return int(math.Floor(designVoltage * (1 - safetyFactor) / voc))
}

// correlated picks the timestep that represents a percentile: among the
// samples within the cushion of target, the coldest cell; otherwise the
// sample nearest target. Returns a position in voc.
func correlated(voc []float64, idx []int, recs []simulate.Record, target float64) int {
	best, bestTemp := -1, math.Inf(1)
	near, nearD := 0, math.Inf(1)
	band := math.Abs(target) * percentileCushion
	for i, v := range voc {
		d := math.Abs(v - target)
		if d < nearD {
			near, nearD = i, d
		}
		if d <= band {
			if t := recs[idx[i]].TempCell; t < bestTemp {
				best, bestTemp = i, t
			}
		}
	}
	if best < 0 {
		return near
	}
	return best
}

func recommend(ref pvmodule.Reference, d Diagnostics, st *ashrae.Station, module pvmodule.Parameters) SafetyFactorBreakdown {
	b := SafetyFactorBreakdown{
		ExtremeCold: ExtremeColdSafetyFactor(d.MeanYearlyMinTemp, d.MinTempAir, ref),
	}
	if st != nil {
		b.WeatherData = WeatherDataSafetyFactor(d.MeanYearlyMinTemp-st.ExtremeMinDB, ref)
	}
	_, manual := module.(pvmodule.Simplified)
	b.Additional = SuggestedAdditionalSafetyFactor(manual)
	return b.Sum()
}

func threshold(module pvmodule.Parameters, voc float64) []ThresholdPoint {
	var simp pvmodule.Simplified
	switch m := module.(type) {
	case pvmodule.Simplified:
		simp = m
	case pvmodule.CEC:
		var err error
		if simp, err = m.ToSimplified(); err != nil {
			return nil
		}
	default:
		return nil
	}
	out := make([]ThresholdPoint, 0, thresholdPoints)
	for _, poa := range Linspace(1, 1100, thresholdPoints) {
		t := simp.TemperatureForVoc(poa, voc)
		if math.IsNaN(t) || math.IsInf(t, 0) {
			continue
		}
		out = append(out, ThresholdPoint{POA: poa, TempCell: t})
	}
	return out
}

func cellTemps(res *simulate.Result, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = res.Records[j].TempCell
	}
	return out
}

func yearsOf(ts []time.Time) map[int]struct{} {
	ys := make(map[int]struct{})
	for _, t := range ts {
		ys[t.Year()] = struct{}{}
	}
	return ys
}

func timePtr(t time.Time) *time.Time { return &t }
