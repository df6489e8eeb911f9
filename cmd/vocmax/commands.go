package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/api"
	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/cache"
	"github.com/lox/vocmax/internal/config"
	"github.com/lox/vocmax/internal/export"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/runner"
	"github.com/lox/vocmax/internal/store"
)

type ServeCmd struct {
	Port             string        `help:"HTTP server port." default:"8080" env:"PORT"`
	NoSync           bool          `help:"Disable the scheduled site index refresh (for local dev)."`
	IndexInterval    time.Duration `help:"Site index refresh interval." default:"24h" env:"VOCMAX_INDEX_INTERVAL"`
	PayloadRetention int           `help:"Days to keep raw weather payloads." default:"90"`
	RunRetention     int           `help:"Days to keep saved simulation runs." default:"30"`
	RedisAddr        string        `help:"Redis address for the response cache. Disabled when empty." env:"REDIS_ADDR"`
	RedisPassword    string        `help:"Redis password." env:"REDIS_PASSWORD"`
	RedisDB          int           `help:"Redis database number." env:"REDIS_DB"`
	CacheTTL         time.Duration `help:"Lifetime of cached responses." default:"24h"`
	CORSOrigins      []string      `help:"Origins allowed to call the API from a browser." name:"cors-origin" env:"VOCMAX_CORS_ORIGINS"`
}

func (c *ServeCmd) Run(app *App, ctx context.Context) error {
	in, err := app.Ingester()
	if err != nil {
		return err
	}
	stations, err := app.Stations()
	if err != nil {
		return fmt.Errorf("ashrae: %w", err)
	}
	catalog, err := pvmodule.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("module catalog: %w", err)
	}
	st, _ := app.Store()

	srv := api.NewServer(st, runner.New(st, in, stations, app.Logger), in, catalog, c.Port, app.Logger)
	srv.SetAllowedOrigins(c.CORSOrigins)

	if c.RedisAddr != "" {
		rc, err := cache.Dial(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB, c.CacheTTL)
		if err != nil {
			app.Logger.Warn("response cache disabled", zap.String("addr", c.RedisAddr), zap.Error(err))
		} else {
			defer rc.Close()
			srv.SetCache(rc)
		}
	}

	if !c.NoSync {
		sched := ingest.NewScheduler(st, in, app.Logger)
		sched.SetIndexInterval(c.IndexInterval)
		sched.SetRetention(c.PayloadRetention, c.RunRetention)
		go sched.Run(ctx)
	} else {
		app.Logger.Info("scheduled index refresh disabled (--no-sync)")
	}

	return srv.Run(ctx)
}

type SitesCmd struct {
	Sync    SitesSyncCmd    `cmd:"" help:"List the weather source and rebuild the site index."`
	Nearest SitesNearestCmd `cmd:"" help:"Show the indexed site closest to a location."`
	List    SitesListCmd    `cmd:"" help:"List indexed sites with their stored record counts."`
}

type SitesSyncCmd struct{}

func (c *SitesSyncCmd) Run(app *App, ctx context.Context) error {
	in, err := app.Ingester()
	if err != nil {
		return err
	}
	ix, err := in.SyncIndex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d sites\n", ix.Len())
	return nil
}

type SitesNearestCmd struct {
	Lat float64 `help:"Latitude in degrees north." required:""`
	Lon float64 `help:"Longitude in degrees east." required:""`
}

func (c *SitesNearestCmd) Run(app *App) error {
	in, err := app.Ingester()
	if err != nil {
		return err
	}
	site, km, err := in.Nearest(c.Lat, c.Lon)
	if err != nil {
		return err
	}
	fmt.Printf("location_id %d\nlatitude    %.4f\nlongitude   %.4f\ndistance    %.1f km\nobject_key  %s\n",
		site.LocationID, site.Latitude, site.Longitude, km, site.ObjectKey)

	stations, err := app.Stations()
	if err != nil {
		return err
	}
	stn, ok := stations.Nearest(c.Lat, c.Lon, ashrae.DefaultMaxDistanceKm)
	switch {
	case ok:
		fmt.Printf("ashrae      %s (%.1f km, extreme min %.1f °C)\n", stn.Name, stn.DistanceKm, stn.ExtremeMinDB)
	case stn.Name != "":
		fmt.Printf("ashrae      none within %.0f km (nearest %s at %.0f km)\n", ashrae.DefaultMaxDistanceKm, stn.Name, stn.DistanceKm)
	}
	return nil
}

type SitesListCmd struct{}

func (c *SitesListCmd) Run(app *App) error {
	st, err := app.Store()
	if err != nil {
		return err
	}
	sites, err := st.GetSites()
	if err != nil {
		return err
	}
	counts, err := st.WeatherCounts()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tLAT\tLON\tRECORDS\tKEY")
	for _, s := range sites {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%d\t%s\n", s.LocationID, s.Latitude, s.Longitude, counts[s.LocationID], s.ObjectKey)
	}
	return tw.Flush()
}

type IngestCmd struct {
	Keys []string `arg:"" help:"Object keys to fetch, e.g. 1000030_43.77_-82.98.csv."`
}

func (c *IngestCmd) Run(app *App, ctx context.Context) error {
	in, err := app.Ingester()
	if err != nil {
		return err
	}
	for _, key := range c.Keys {
		ws, err := in.IngestKey(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fmt.Printf("%s: %d records, %.1f years\n", key, len(ws.Records), ws.DurationYears())
	}
	return nil
}

type SimulateCmd struct {
	Config string `arg:"" help:"Request YAML file." type:"existingfile"`
	Series string `help:"Write the per-timestep series CSV to this path." type:"path"`
	XLSX   string `help:"Write an XLSX workbook to this path." name:"xlsx" type:"path"`
	Save   bool   `help:"Keep the run in the database."`
}

func (c *SimulateCmd) Run(app *App, ctx context.Context) error {
	req, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	var (
		st *store.Store
		in *ingest.Ingester
	)
	if req.WeatherFile == "" {
		if in, err = app.Ingester(); err != nil {
			return err
		}
	}
	if c.Save {
		if st, err = app.Store(); err != nil {
			return err
		}
	}
	stations, err := app.Stations()
	if err != nil {
		return err
	}

	rn := runner.New(st, in, stations, app.Logger)
	run, err := rn.Simulate(ctx, req)
	if err != nil {
		return err
	}

	if err := export.SummaryText(os.Stdout, req.Fields(), run.Summary); err != nil {
		return err
	}
	if c.Series != "" {
		if err := writeFile(c.Series, func(f *os.File) error { return export.WriteSeriesCSV(f, run.Result.Records) }); err != nil {
			return err
		}
	}
	if c.XLSX != "" {
		if err := writeFile(c.XLSX, func(f *os.File) error {
			return export.WriteWorkbook(f, req.Fields(), run.Summary, run.Result.Records)
		}); err != nil {
			return err
		}
	}
	if c.Save {
		if err := rn.Save(run); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved run %s\n", run.ID)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

type ModulesCmd struct {
	List ModulesListCmd `cmd:"" default:"1" help:"List catalog module names."`
	Show ModulesShowCmd `cmd:"" help:"Print a module's parameters and its simplified equivalent."`
}

type ModulesListCmd struct{}

func (c *ModulesListCmd) Run() error {
	cat, err := pvmodule.DefaultCatalog()
	if err != nil {
		return err
	}
	for _, name := range cat.Names() {
		fmt.Println(name)
	}
	return nil
}

type ModulesShowCmd struct {
	Name string `arg:"" help:"Module name as listed by 'modules list'."`
}

func (c *ModulesShowCmd) Run() error {
	cat, err := pvmodule.DefaultCatalog()
	if err != nil {
		return err
	}
	m, ok := cat.Lookup(c.Name)
	if !ok {
		return fmt.Errorf("module %q not in catalog", c.Name)
	}
	simple, err := m.ToSimplified()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"cec": m, "simplified": simple}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
