package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"

	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/store"
)

type Globals struct {
	DB        string      `help:"Path to SQLite database." default:"data/vocmax.db" env:"VOCMAX_DB"`
	LogLevel  string      `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"VOCMAX_LOG_LEVEL"`
	LogFormat string      `help:"Log output format." default:"console" enum:"console,json" env:"VOCMAX_LOG_FORMAT"`
	ASHRAE    string      `help:"ASHRAE design conditions CSV. Uses the built-in table when empty." env:"VOCMAX_ASHRAE" name:"ashrae"`
	Source    SourceFlags `embed:"" prefix:"source-"`
}

type SourceFlags struct {
	Kind string `help:"Where weather files come from." default:"none" enum:"none,dir,s3,ftp,http" env:"VOCMAX_SOURCE" name:"kind"`
	Dir  string `help:"Directory of weather files (kind=dir)." env:"VOCMAX_SOURCE_DIR"`

	S3Endpoint  string `help:"S3 endpoint host (kind=s3)." default:"s3.amazonaws.com" env:"VOCMAX_S3_ENDPOINT" name:"s3-endpoint"`
	S3Bucket    string `help:"S3 bucket." env:"VOCMAX_S3_BUCKET" name:"s3-bucket"`
	S3Prefix    string `help:"Key prefix inside the bucket." env:"VOCMAX_S3_PREFIX" name:"s3-prefix"`
	S3Region    string `help:"S3 region." env:"VOCMAX_S3_REGION" name:"s3-region"`
	S3AccessKey string `help:"S3 access key. Falls back to the AWS environment." env:"VOCMAX_S3_ACCESS_KEY" name:"s3-access-key"`
	S3SecretKey string `help:"S3 secret key." env:"VOCMAX_S3_SECRET_KEY" name:"s3-secret-key"`
	S3Insecure  bool   `help:"Use plain HTTP to reach S3." env:"VOCMAX_S3_INSECURE" name:"s3-insecure"`

	FTPAddr     string `help:"FTP host:port (kind=ftp)." env:"VOCMAX_FTP_ADDR" name:"ftp-addr"`
	FTPDir      string `help:"FTP directory." env:"VOCMAX_FTP_DIR" name:"ftp-dir"`
	FTPUser     string `help:"FTP user. Anonymous when empty." env:"VOCMAX_FTP_USER" name:"ftp-user"`
	FTPPassword string `help:"FTP password." env:"VOCMAX_FTP_PASSWORD" name:"ftp-password"`

	URL string `help:"Base URL serving index.txt and weather files (kind=http)." env:"VOCMAX_SOURCE_URL" name:"url"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" help:"Run the HTTP API and the site index scheduler."`
	Sites    SitesCmd    `cmd:"" help:"Manage the weather site index."`
	Ingest   IngestCmd   `cmd:"" help:"Fetch and store weather files by object key."`
	Simulate SimulateCmd `cmd:"" help:"Simulate a request file and print the summary."`
	Modules  ModulesCmd  `cmd:"" help:"Inspect the module catalog."`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("vocmax"),
		kong.Description("Maximum open-circuit voltage and string length calculator for PV arrays."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(cli.LogLevel, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &App{Globals: &cli.Globals, Logger: logger}
	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(app)
	app.Close()
	if err != nil {
		logger.Error("command failed", zap.String("command", kctx.Command()), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// App carries what every command needs. Resources open lazily.
type App struct {
	*Globals
	Logger *zap.Logger

	db    *sql.DB
	store *store.Store
}

func (a *App) Store() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if dir := filepath.Dir(a.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", a.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, a.Logger)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.db, a.store = db, st
	return st, nil
}

// Source builds the configured weather source, nil for kind=none.
func (a *App) Source() (ingest.Source, error) {
	f := a.Globals.Source
	switch f.Kind {
	case "none":
		return nil, nil
	case "dir":
		if f.Dir == "" {
			return nil, errors.New("--source-dir is required for kind=dir")
		}
		return ingest.NewDirSource(f.Dir), nil
	case "s3":
		return ingest.NewS3Source(ingest.S3Config{
			Endpoint:  f.S3Endpoint,
			AccessKey: f.S3AccessKey,
			SecretKey: f.S3SecretKey,
			Region:    f.S3Region,
			Bucket:    f.S3Bucket,
			Prefix:    f.S3Prefix,
			UseSSL:    !f.S3Insecure,
		})
	case "ftp":
		if f.FTPAddr == "" {
			return nil, errors.New("--source-ftp-addr is required for kind=ftp")
		}
		return ingest.NewFTPSource(f.FTPAddr, f.FTPDir, f.FTPUser, f.FTPPassword), nil
	case "http":
		if f.URL == "" {
			return nil, errors.New("--source-url is required for kind=http")
		}
		return ingest.NewHTTPSource(f.URL), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", f.Kind)
}

func (a *App) Ingester() (*ingest.Ingester, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	src, err := a.Source()
	if err != nil {
		return nil, fmt.Errorf("weather source: %w", err)
	}
	return ingest.NewIngester(st, src, a.Logger), nil
}

func (a *App) Stations() (*ashrae.Table, error) {
	if a.ASHRAE != "" {
		return ashrae.Load(a.ASHRAE)
	}
	return ashrae.Default()
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
