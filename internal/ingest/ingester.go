package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/metrics"
	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/nsrdb"
	"github.com/lox/vocmax/internal/store"
)

// ErrNoSource is returned when an operation needs a weather source and none
// was configured.
var ErrNoSource = errors.New("ingest: no weather source configured")

// Ingester moves weather files from a Source into the store and keeps the
// site index current.
type Ingester struct {
	store  *store.Store
	source Source
	logger *zap.Logger

	mu    sync.RWMutex
	index *nsrdb.Index
}

func NewIngester(st *store.Store, src Source, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: st, source: src, logger: logger}
}

// Index returns the current site index, loading it from the store on first
// use when SyncIndex has not run.
func (in *Ingester) Index() (*nsrdb.Index, error) {
	in.mu.RLock()
	ix := in.index
	in.mu.RUnlock()
	if ix != nil {
		return ix, nil
	}

	sites, err := in.store.GetSites()
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	ix = nsrdb.FromSites(sites)
	in.setIndex(ix)
	return ix, nil
}

func (in *Ingester) setIndex(ix *nsrdb.Index) {
	in.mu.Lock()
	in.index = ix
	in.mu.Unlock()
	metrics.SitesIndexed.Set(float64(ix.Len()))
}

// SyncIndex lists the source, records every weather object as a site and
// replaces the in-memory index.
func (in *Ingester) SyncIndex(ctx context.Context) (*nsrdb.Index, error) {
	if in.source == nil {
		return nil, ErrNoSource
	}
	src := in.source.Name()
	in.logger.Info("ingest: listing weather files", zap.String("source", src))

	run, _ := in.store.StartIngestRun(src, "list", nil)
	start := time.Now()
	keys, err := in.source.List(ctx)
	metrics.WeatherFetchLatency.WithLabelValues(src).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherFetchTotal.WithLabelValues(src, "error").Inc()
		in.fail(run, err)
		return nil, fmt.Errorf("list %s: %w", src, err)
	}
	metrics.WeatherFetchTotal.WithLabelValues(src, "ok").Inc()

	ix, skipped := nsrdb.NewIndex(keys)
	if len(skipped) > 0 {
		in.logger.Warn("ingest: skipped keys", zap.Int("count", len(skipped)), zap.Strings("sample", head(skipped, 5)))
	}
	if err := in.store.UpsertSites(ix.Sites()); err != nil {
		in.fail(run, err)
		return nil, fmt.Errorf("store sites: %w", err)
	}

	if run != nil {
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(keys)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(ix.Len()), Valid: true}
		run.ParseErrors = sql.NullInt64{Int64: int64(len(skipped)), Valid: len(skipped) > 0}
		run.Success = true
		in.complete(run)
	}

	in.setIndex(ix)
	in.logger.Info("ingest: site index updated", zap.Int("sites", ix.Len()))
	return ix, nil
}

// IngestKey fetches and parses one weather file and replaces the stored
// weather of its site. The raw file is kept for later reparsing.
func (in *Ingester) IngestKey(ctx context.Context, key string) (*models.WeatherSeries, error) {
	if in.source == nil {
		return nil, ErrNoSource
	}
	src := in.source.Name()
	var locationID *int64
	if site, err := nsrdb.ParseKey(key); err == nil {
		locationID = &site.LocationID
	}

	run, _ := in.store.StartIngestRun(src, key, locationID)
	start := time.Now()
	body, err := in.source.Fetch(ctx, key)
	metrics.WeatherFetchLatency.WithLabelValues(src).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherFetchTotal.WithLabelValues(src, "error").Inc()
		in.fail(run, err)
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	metrics.WeatherFetchTotal.WithLabelValues(src, "ok").Inc()
	if run != nil {
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(len(body)), Valid: true}
	}

	csvBody, err := decode(key, body)
	if err != nil {
		in.fail(run, err)
		return nil, err
	}

	var runID *int64
	if run != nil {
		runID = &run.ID
	}
	if _, err := in.store.StoreRawPayload(runID, src, key, locationID, csvBody); err != nil {
		in.logger.Warn("ingest: store raw payload", zap.String("key", key), zap.Error(err))
	}

	ws, err := nsrdb.Parse(bytes.NewReader(csvBody))
	if err != nil {
		in.fail(run, err)
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	ws.Site.ObjectKey = key
	if locationID != nil && ws.Site.LocationID == 0 {
		ws.Site.LocationID = *locationID
	}
	if err := ws.Validate(); err != nil {
		in.fail(run, err)
		return nil, fmt.Errorf("validate %s: %w", key, err)
	}

	qc := ValidateSeries(ws)
	if qc.Flagged > 0 {
		in.logger.Warn("ingest: flagged timesteps",
			zap.String("key", key),
			zap.Int("flagged", qc.Flagged),
			zap.Strings("flags", qc.Flags()))
	}

	n, err := in.store.ReplaceWeather(ws)
	if err != nil {
		in.fail(run, err)
		return nil, fmt.Errorf("store weather %s: %w", key, err)
	}
	metrics.WeatherRecordsIngested.WithLabelValues(src).Add(float64(n))

	if run != nil {
		run.LocationID = sql.NullInt64{Int64: ws.Site.LocationID, Valid: true}
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(ws.Records)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(n), Valid: true}
		run.ParseErrors = sql.NullInt64{Int64: int64(qc.Flagged), Valid: qc.Flagged > 0}
		run.Success = true
		in.complete(run)
	}

	in.logger.Info("ingest: stored weather",
		zap.String("key", key),
		zap.Int64("location_id", ws.Site.LocationID),
		zap.Int("records", n))
	return ws, nil
}

// Weather returns the stored weather of a site, ingesting its file first
// when nothing is stored yet.
func (in *Ingester) Weather(ctx context.Context, site models.Site) (*models.WeatherSeries, error) {
	ws, err := in.store.GetWeatherSeries(site.LocationID)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if site.ObjectKey == "" || in.source == nil {
		return nil, fmt.Errorf("no weather for site %d: %w", site.LocationID, store.ErrNotFound)
	}
	return in.IngestKey(ctx, site.ObjectKey)
}

// Nearest returns the indexed site closest to a point.
func (in *Ingester) Nearest(lat, lon float64) (models.Site, float64, error) {
	ix, err := in.Index()
	if err != nil {
		return models.Site{}, 0, err
	}
	site, d, ok := ix.Nearest(lat, lon)
	if !ok {
		return models.Site{}, 0, fmt.Errorf("site index is empty: %w", store.ErrNotFound)
	}
	return site, d, nil
}

func (in *Ingester) fail(run *store.IngestRun, err error) {
	if run == nil {
		return
	}
	run.Success = false
	run.ErrorMessage = sql.NullString{String: truncate(err.Error(), 500), Valid: true}
	in.complete(run)
}

func (in *Ingester) complete(run *store.IngestRun) {
	if err := in.store.CompleteIngestRun(run); err != nil {
		in.logger.Warn("ingest: complete run", zap.Int64("run_id", run.ID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

func head(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
