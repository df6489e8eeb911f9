// Package simulate runs the per-timestep Voc pipeline over a weather series:
// solar position, plane-of-array transposition, cell temperature, then the
// module's open-circuit voltage.
package simulate

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/vocmax/internal/irradiance"
	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/solarpos"
	"github.com/lox/vocmax/internal/thermal"
)

const defaultChunk = 2048

// Record is the derived state of one timestep.
type Record struct {
	Time         time.Time
	GHI          float64
	TempAir      float64
	WindSpeed    float64
	POA          float64 // effective irradiance, W/m²
	AOI          float64
	TrackerTheta float64
	TempCell     float64
	Voc          float64
	// Valid is false when weather was missing or the diode solve failed.
	// Derived fields of an invalid record are NaN.
	Valid bool
}

// Result is the output of one simulation run.
type Result struct {
	Site          models.Site
	Module        pvmodule.Parameters
	Thermal       thermal.Model
	Records       []Record
	IntervalHours float64
	DurationYears float64
	Excluded      int
	NonConverged  int
	// Warnings holds non-fatal problems: a *pverr.DataQualityError when too
	// many timesteps were dropped, plus any the caller adds while reducing.
	Warnings []error
}

// Quality summarises the dropped timesteps.
func (r *Result) Quality() *pverr.DataQualityError {
	return &pverr.DataQualityError{Excluded: r.Excluded, Total: len(r.Records)}
}

// Engine evaluates simulations. The zero value is not usable; call New.
type Engine struct {
	workers int
	chunk   int
	optics  irradiance.Options
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of goroutines evaluating timesteps.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithChunkSize sets how many timesteps each goroutine evaluates at once.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunk = n
		}
	}
}

// WithSkyModel selects the sky diffuse model.
func WithSkyModel(m irradiance.SkyModel) Option {
	return func(e *Engine) { e.optics.Sky = m }
}

// WithIAMParam sets the ASHRAE incidence angle modifier coefficient.
func WithIAMParam(b float64) Option {
	return func(e *Engine) { e.optics.IAMParam = b }
}

// New returns an engine using all CPUs.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers: runtime.GOMAXPROCS(0),
		chunk:   defaultChunk,
		optics:  irradiance.DefaultOptions(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Simulate validates every input and then evaluates each weather record.
// Configuration problems are returned before any timestep runs. Timesteps
// with missing weather or a failed diode solve are marked invalid and
// counted, not returned as errors. The only other error is ctx's.
func (e *Engine) Simulate(ctx context.Context, weather *models.WeatherSeries, site models.Site,
	module pvmodule.Parameters, racking irradiance.Racking, thermalParams thermal.Params) (*Result, error) {

	if weather == nil {
		return nil, pverr.Configf("weather", "missing weather series")
	}
	if module == nil {
		return nil, pverr.Configf("module", "missing module parameters")
	}
	if racking == nil {
		return nil, pverr.Configf("racking", "missing racking parameters")
	}
	if err := weather.Validate(); err != nil {
		return nil, err
	}
	if err := module.Validate(); err != nil {
		return nil, err
	}
	if err := racking.Validate(); err != nil {
		return nil, err
	}
	if err := checkSite(site); err != nil {
		return nil, err
	}
	base := module.Base()
	tm, err := thermalParams.Resolve(base.Efficiency)
	if err != nil {
		return nil, err
	}

	optics := e.optics
	optics.FD = base.FD
	optics.Bifaciality = base.Bifaciality()

	n := len(weather.Records)
	res := &Result{
		Site:          site,
		Module:        module,
		Thermal:       tm,
		Records:       make([]Record, n),
		IntervalHours: weather.IntervalHours(),
		DurationYears: weather.DurationYears(),
	}

	type tally struct{ excluded, nonConverged int }
	chunks := (n + e.chunk - 1) / e.chunk
	tallies := make([]tally, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for c := 0; c < chunks; c++ {
		lo := c * e.chunk
		hi := min(lo+e.chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				rec, converged := evaluate(weather.Records[i], site, module, racking, tm, optics)
				res.Records[i] = rec
				if !rec.Valid {
					tallies[c].excluded++
					if !converged {
						tallies[c].nonConverged++
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range tallies {
		res.Excluded += t.excluded
		res.NonConverged += t.nonConverged
	}
	if q := res.Quality(); q.Fraction() > pverr.DataQualityWarnFraction {
		res.Warnings = append(res.Warnings, q)
	}
	return res, nil
}

// evaluate runs one timestep. converged is false only when the diode solve
// failed.
func evaluate(w models.WeatherRecord, site models.Site, module pvmodule.Parameters,
	racking irradiance.Racking, tm thermal.Model, optics irradiance.Options) (rec Record, converged bool) {

	nan := math.NaN()
	rec = Record{Time: w.Time, GHI: w.GHI, TempAir: w.TempAir, WindSpeed: w.WindSpeed,
		POA: nan, AOI: nan, TempCell: nan, Voc: nan}
	if w.Missing() || w.Negative() {
		return rec, true
	}

	sun := solarpos.At(w.Time, site.Latitude, site.Longitude)
	poa := irradiance.Compute(w, sun, racking, optics)
	rec.POA = poa.Effective
	rec.AOI = poa.AOI
	rec.TrackerTheta = poa.TrackerTheta
	// Cells heat from the front plane of array irradiance; backside gain,
	// diffuse utilisation and incidence losses only change what they convert.
	rec.TempCell = tm.CellTemperature(poa.Global, w.TempAir, w.WindSpeed)

	voc, err := module.Voc(poa.Effective, rec.TempCell)
	if err != nil {
		return rec, false
	}
	rec.Voc = voc
	rec.Valid = true
	return rec, true
}

func checkSite(s models.Site) error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return pverr.Configf("latitude", "must be in [-90, 90], got %v", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return pverr.Configf("longitude", "must be in [-180, 180], got %v", s.Longitude)
	}
	return nil
}
