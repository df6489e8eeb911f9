package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/cache"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/runner"
	"github.com/lox/vocmax/internal/store"
)

// maxRequestBytes bounds a simulate request body.
const maxRequestBytes = 1 << 20

type Server struct {
	store    *store.Store
	runner   *runner.Runner
	ingester *ingest.Ingester
	catalog  *pvmodule.Catalog
	cache    *cache.Cache
	logger   *zap.Logger
	port     string
	origins  []string
}

func NewServer(st *store.Store, rn *runner.Runner, in *ingest.Ingester, catalog *pvmodule.Catalog, port string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:    st,
		runner:   rn,
		ingester: in,
		catalog:  catalog,
		logger:   logger,
		port:     port,
	}
}

// SetCache enables caching of simulate responses. A nil cache disables it.
func (s *Server) SetCache(c *cache.Cache) {
	s.cache = c
}

// SetAllowedOrigins configures CORS for browser clients on other origins.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.origins = origins
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sites/nearest", s.handleNearestSite)
	mux.HandleFunc("GET /api/modules", s.handleModules)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/export.xlsx", s.handleRunWorkbook)
	mux.HandleFunc("GET /api/runs/{id}/series.csv", s.handleRunSeries)
	mux.HandleFunc("GET /api/runs/{id}/summary.csv", s.handleRunSummary)
	mux.HandleFunc("GET /api/ingest/health", s.handleIngestHealth)

	if len(s.origins) == 0 {
		return mux
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Cache", "Content-Disposition"},
		MaxAge:         3600,
	}).Handler(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http: listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
