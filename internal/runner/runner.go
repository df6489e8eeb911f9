// Package runner resolves weather for a request, simulates it and keeps the
// result.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/config"
	"github.com/lox/vocmax/internal/export"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/metrics"
	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/nsrdb"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/simulate"
	"github.com/lox/vocmax/internal/store"
	"github.com/lox/vocmax/internal/summary"
)

// Runner is safe for concurrent use.
type Runner struct {
	store    *store.Store
	ingester *ingest.Ingester
	stations *ashrae.Table
	logger   *zap.Logger
}

// New returns a runner. stations may be nil, in which case the ASHRAE
// entries fall back to the weather data.
func New(st *store.Store, in *ingest.Ingester, stations *ashrae.Table, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{store: st, ingester: in, stations: stations, logger: logger}
}

// Run is one completed simulation.
type Run struct {
	ID             string
	Request        *config.Request
	Site           models.Site
	SiteDistanceKm float64
	Result         *simulate.Result
	Summary        *summary.Summary
	Duration       time.Duration
}

// Weather loads the request's weather file, or the weather of the indexed
// site nearest the request location.
func (r *Runner) Weather(ctx context.Context, req *config.Request) (*models.WeatherSeries, float64, error) {
	if req.WeatherFile != "" {
		f, err := os.Open(req.WeatherFile)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		ws, err := nsrdb.Parse(f)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", req.WeatherFile, err)
		}
		ws.Site.Source = "local"
		return ws, 0, nil
	}
	if r.ingester == nil {
		return nil, 0, ingest.ErrNoSource
	}
	site, km, err := r.ingester.Nearest(req.Latitude, req.Longitude)
	if err != nil {
		return nil, 0, err
	}
	ws, err := r.ingester.Weather(ctx, site)
	if err != nil {
		return nil, 0, err
	}
	return ws, km, nil
}

// Simulate validates req, runs the engine on its weather and reduces the
// result. Configuration problems come back as *pverr.ConfigurationError.
func (r *Runner) Simulate(ctx context.Context, req *config.Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	module, err := req.ModuleParameters()
	if err != nil {
		return nil, err
	}
	label := modelLabel(module)
	start := time.Now()

	run, err := r.simulate(ctx, req, module)
	status := "success"
	switch {
	case err == nil:
	case pverr.IsConfiguration(err):
		status = "config_error"
	case errors.Is(err, store.ErrNotFound):
		status = "no_weather"
	default:
		status = "error"
	}
	metrics.SimulationsTotal.WithLabelValues(label, status).Inc()
	if err != nil {
		return nil, err
	}

	run.Duration = time.Since(start)
	metrics.SimulationDuration.WithLabelValues(label).Observe(run.Duration.Seconds())
	res := run.Result
	metrics.TimestepsSimulated.Add(float64(len(res.Records)))
	metrics.TimestepsExcluded.WithLabelValues("missing").Add(float64(res.Excluded - res.NonConverged))
	metrics.TimestepsExcluded.WithLabelValues("non_converged").Add(float64(res.NonConverged))

	r.logger.Info("simulation complete",
		zap.String("run_id", run.ID),
		zap.Int64("location_id", run.Site.LocationID),
		zap.String("model", label),
		zap.Int("timesteps", len(res.Records)),
		zap.Int("excluded", res.Excluded),
		zap.Float64("max_voc", run.Summary.Diagnostics.MaxVoc),
		zap.Duration("took", run.Duration))
	for _, w := range res.Warnings {
		r.logger.Warn("simulation warning", zap.String("run_id", run.ID), zap.Error(w))
	}
	return run, nil
}

func (r *Runner) simulate(ctx context.Context, req *config.Request, module pvmodule.Parameters) (*Run, error) {
	racking, err := req.RackingParameters()
	if err != nil {
		return nil, err
	}
	ws, km, err := r.Weather(ctx, req)
	if err != nil {
		return nil, err
	}

	engine := simulate.New(req.EngineOptions()...)
	res, err := engine.Simulate(ctx, ws, ws.Site, module, racking, req.Thermal)
	if err != nil {
		return nil, err
	}

	var station *ashrae.Station
	if req.UseASHRAE && r.stations != nil {
		st, ok := r.stations.Nearest(ws.Site.Latitude, ws.Site.Longitude, req.ASHRAEMaxDistanceKm)
		switch {
		case ok:
			station = &st
		case st.Name != "":
			res.Warnings = append(res.Warnings, fmt.Errorf(
				"nearest ASHRAE station %s is %.0f km away (limit %.0f km); code entries use the weather data",
				st.Name, st.DistanceKm, req.ASHRAEMaxDistanceKm))
		}
	}
	sum, err := summary.Reduce(res, req.SummaryOptions(station))
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:             uuid.NewString(),
		Request:        req,
		Site:           ws.Site,
		SiteDistanceKm: km,
		Result:         res,
		Summary:        sum,
	}, nil
}

// Save persists a run with its request, summary and series.
func (r *Runner) Save(run *Run) error {
	reqJSON, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	sumJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	var series bytes.Buffer
	if err := export.WriteSeriesCSV(&series, run.Result.Records); err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	return r.store.SaveRun(store.SimulationRun{
		ID:         run.ID,
		LocationID: run.Site.LocationID,
		ModuleName: run.Result.Module.Base().Name,
		Request:    reqJSON,
		Summary:    sumJSON,
		SeriesCSV:  series.Bytes(),
		Excluded:   run.Result.Excluded,
		Timesteps:  len(run.Result.Records),
		DurationMS: run.Duration.Milliseconds(),
	})
}

// Stored is a persisted run decoded for export.
type Stored struct {
	store.SimulationRun
	Request config.Request
	Summary summary.Summary
}

// Load reads a saved run. ErrNotFound when the id is unknown.
func (r *Runner) Load(id string) (*Stored, error) {
	run, err := r.store.GetRun(id)
	if err != nil {
		return nil, err
	}
	out := &Stored{SimulationRun: *run}
	if err := json.Unmarshal(run.Request, &out.Request); err != nil {
		return nil, fmt.Errorf("decode request %s: %w", id, err)
	}
	if err := json.Unmarshal(run.Summary, &out.Summary); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", id, err)
	}
	return out, nil
}

// Series reads the stored per-timestep records of a run.
func (r *Runner) Series(id string) ([]simulate.Record, error) {
	raw, err := r.store.GetRunSeries(id)
	if err != nil {
		return nil, err
	}
	return export.ReadSeriesCSV(bytes.NewReader(raw))
}

func modelLabel(p pvmodule.Parameters) string {
	if _, ok := p.(pvmodule.Simplified); ok {
		return "simplified"
	}
	return "cec"
}
