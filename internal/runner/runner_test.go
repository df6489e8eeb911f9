package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/config"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/store"
	"github.com/lox/vocmax/internal/summary"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, zap.NewNop())
	require.NoError(t, st.Migrate())
	return st
}

// weatherCSV is two clear days at an hourly interval.
func weatherCSV() string {
	var b strings.Builder
	b.WriteString("Source,Location ID,City,State,Country,Latitude,Longitude,Time Zone,Elevation,Local Time Zone\n")
	b.WriteString("NSRDB,42,-,-,-,37.88,-122.25,-8,100,-8\n")
	b.WriteString("Year,Month,Day,Hour,Minute,DNI,DHI,GHI,Temperature,Wind Speed\n")
	for day := 1; day <= 2; day++ {
		for h := 0; h < 24; h++ {
			ghi := 0.0
			if h > 6 && h < 18 {
				ghi = 800 * math.Sin(math.Pi*float64(h-6)/12)
			}
			temp := -2 + 8*math.Sin(math.Pi*float64(h)/24)
			fmt.Fprintf(&b, "2019,1,%d,%d,0,%.1f,%.1f,%.1f,%.1f,1.5\n", day, h, 0.8*ghi, 0.2*ghi, ghi, temp)
		}
	}
	return b.String()
}

func entry(t *testing.T, s *summary.Summary, key string) summary.Entry {
	t.Helper()
	e, ok := s.Entry(key)
	require.True(t, ok, key)
	return e
}

func manualRequest() *config.Request {
	r := config.Default()
	r.Latitude, r.Longitude = 37.88, -122.25
	r.Module.Simplified = &pvmodule.Simplified{
		Common: pvmodule.Common{Name: "Custom Module", CellsInSeries: 72, FD: 1, Efficiency: 0.17},
		Voco:   48.5, Bvoco: -0.163, NDiode: 1.05,
	}
	return r
}

func TestSimulateWeatherFileAndSave(t *testing.T) {
	st := setupTestStore(t)
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte(weatherCSV()), 0o644))

	stations, err := ashrae.Default()
	require.NoError(t, err)
	rn := New(st, nil, stations, zap.NewNop())

	req := manualRequest()
	req.WeatherFile = path
	run, err := rn.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, int64(42), run.Site.LocationID)
	assert.Equal(t, "local", run.Site.Source)
	assert.Len(t, run.Result.Records, 48)
	assert.Zero(t, run.Result.Excluded)
	require.Len(t, run.Summary.Entries, 6)
	require.NotNil(t, run.Summary.Diagnostics.Station)
	assert.Equal(t, "OAKLAND METRO INTL AP", run.Summary.Diagnostics.Station.Name)
	assert.Empty(t, run.Result.Warnings)
	assert.Greater(t, run.Summary.Diagnostics.MaxVoc, 40.0)

	require.NoError(t, rn.Save(run))

	loaded, err := rn.Load(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Custom Module", loaded.ModuleName)
	assert.Equal(t, 48, loaded.Timesteps)
	assert.Equal(t, entry(t, run.Summary, summary.KeyP100).Voltage, entry(t, &loaded.Summary, summary.KeyP100).Voltage)
	require.NotNil(t, loaded.Request.Module.Simplified)
	assert.Equal(t, 48.5, loaded.Request.Module.Simplified.Voco)
	assert.Empty(t, loaded.Request.WeatherFile, "local paths are not persisted")

	series, err := rn.Series(run.ID)
	require.NoError(t, err)
	require.Len(t, series, 48)
	assert.True(t, series[12].Time.Equal(run.Result.Records[12].Time))
	assert.InDelta(t, run.Result.Records[12].Voc, series[12].Voc, 1e-4)

	_, err = rn.Load("missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSimulateNearestSite(t *testing.T) {
	st := setupTestStore(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "42_37.88_-122.25.csv"), []byte(weatherCSV()), 0o644))

	in := ingest.NewIngester(st, ingest.NewDirSource(dir), zap.NewNop())
	_, err := in.SyncIndex(context.Background())
	require.NoError(t, err)

	rn := New(st, in, nil, zap.NewNop())
	req := manualRequest()
	req.Latitude, req.Longitude = 37.9, -122.3
	run, err := rn.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(42), run.Site.LocationID)
	assert.Greater(t, run.SiteDistanceKm, 0.0)
	assert.Less(t, run.SiteDistanceKm, 10.0)
	assert.Nil(t, run.Summary.Diagnostics.Station)
	assert.Equal(t, entry(t, run.Summary, summary.KeyNSRDB).Voltage, entry(t, run.Summary, summary.KeyASHRAE).Voltage)
}

func TestSimulateDistantStationFallsBack(t *testing.T) {
	st := setupTestStore(t)
	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte(weatherCSV()), 0o644))

	stations, err := ashrae.Read(strings.NewReader(
		"station,latitude,longitude,extreme_annual_mean_min_db\nHONOLULU INTL AP,21.324,-157.929,15.2\n"))
	require.NoError(t, err)
	rn := New(st, nil, stations, zap.NewNop())

	req := manualRequest()
	req.WeatherFile = path
	run, err := rn.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, run.Summary.Diagnostics.Station)
	assert.Equal(t, entry(t, run.Summary, summary.KeyNSRDB).Voltage, entry(t, run.Summary, summary.KeyASHRAE).Voltage)
	require.Len(t, run.Result.Warnings, 1)
	assert.Contains(t, run.Result.Warnings[0].Error(), "HONOLULU INTL AP")

	req.ASHRAEMaxDistanceKm = 0
	run, err = rn.Simulate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, run.Summary.Diagnostics.Station, "limit disabled")
	assert.InDelta(t, 15.2, run.Summary.Diagnostics.Station.ExtremeMinDB, 1e-9)
}

func TestSimulateErrors(t *testing.T) {
	st := setupTestStore(t)
	rn := New(st, nil, nil, zap.NewNop())
	ctx := context.Background()

	req := manualRequest()
	req.Racking.SurfaceTilt = 100
	_, err := rn.Simulate(ctx, req)
	assert.True(t, pverr.IsConfiguration(err), "got %v", err)

	_, err = rn.Simulate(ctx, manualRequest())
	assert.True(t, errors.Is(err, ingest.ErrNoSource), "got %v", err)

	in := ingest.NewIngester(st, ingest.NewDirSource(t.TempDir()), zap.NewNop())
	rn = New(st, in, nil, zap.NewNop())
	_, err = rn.Simulate(ctx, manualRequest())
	assert.True(t, errors.Is(err, store.ErrNotFound), "empty index: %v", err)
}
