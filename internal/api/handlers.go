package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/cache"
	"github.com/lox/vocmax/internal/config"
	"github.com/lox/vocmax/internal/export"
	"github.com/lox/vocmax/internal/ingest"
	"github.com/lox/vocmax/internal/models"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/store"
	"github.com/lox/vocmax/internal/summary"
	"github.com/lox/vocmax/internal/thermal"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type SiteResponse struct {
	LocationID    int64   `json:"location_id"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Elevation     float64 `json:"elevation"`
	UTCOffset     float64 `json:"utc_offset"`
	IntervalHours float64 `json:"interval_hours,omitempty"`
	DurationYears float64 `json:"duration_years,omitempty"`
	Source        string  `json:"source,omitempty"`
	ObjectKey     string  `json:"object_key,omitempty"`
	DistanceKm    float64 `json:"distance_km"`
}

func siteResponse(site models.Site, km float64) SiteResponse {
	return SiteResponse{
		LocationID:    site.LocationID,
		Latitude:      site.Latitude,
		Longitude:     site.Longitude,
		Elevation:     site.Elevation,
		UTCOffset:     site.UTCOffset,
		IntervalHours: site.IntervalHours,
		DurationYears: site.DurationYears,
		Source:        site.Source,
		ObjectKey:     site.ObjectKey,
		DistanceKm:    km,
	}
}

type SimulateResponse struct {
	RunID      string           `json:"run_id"`
	Site       SiteResponse     `json:"site"`
	Summary    *summary.Summary `json:"summary"`
	Warnings   []string         `json:"warnings,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

type RunResponse struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	LocationID int64           `json:"location_id"`
	ModuleName string          `json:"module_name"`
	Excluded   int             `json:"excluded"`
	Timesteps  int             `json:"timesteps"`
	DurationMS int64           `json:"duration_ms"`
	Request    json.RawMessage `json:"request,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

func runResponse(r store.SimulationRun) RunResponse {
	out := RunResponse{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		LocationID: r.LocationID,
		ModuleName: r.ModuleName,
		Excluded:   r.Excluded,
		Timesteps:  r.Timesteps,
		DurationMS: r.DurationMS,
	}
	if len(r.Request) > 0 {
		out.Request = json.RawMessage(r.Request)
	}
	if len(r.Summary) > 0 {
		out.Summary = json.RawMessage(r.Summary)
	}
	return out
}

type HealthStatus struct {
	Status           string   `json:"status"`
	Sites            int      `json:"sites"`
	MigrationVersion int      `json:"migration_version"`
	Errors           []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	health.MigrationVersion = version

	if s.ingester != nil {
		ix, err := s.ingester.Index()
		if err != nil {
			health.Errors = append(health.Errors, "site index: "+err.Error())
		} else {
			health.Sites = ix.Len()
		}
	}
	if len(health.Errors) > 0 {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleNearestSite(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "INVALID_LOCATION", "lat and lon query parameters are required")
		return
	}
	if s.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_SOURCE", ingest.ErrNoSource.Error())
		return
	}
	site, km, err := s.ingester.Nearest(lat, lon)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NO_SITES", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, siteResponse(site, km))
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		m, ok := s.catalog.Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, "UNKNOWN_MODULE", fmt.Sprintf("module %q not in catalog", name))
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modules":        s.catalog.Names(),
		"thermal_models": thermal.Presets(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req := config.Default()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	key, err := cache.Key(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if body, ok, err := s.cache.Get(r.Context(), key); err != nil {
		s.logger.Warn("cache get", zap.Error(err))
	} else if ok {
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}

	run, err := s.runner.Simulate(r.Context(), req)
	if err != nil {
		s.writeSimulateError(w, err)
		return
	}
	if err := s.runner.Save(run); err != nil {
		s.logger.Error("save run", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	resp := SimulateResponse{
		RunID:      run.ID,
		Site:       siteResponse(run.Site, run.SiteDistanceKm),
		Summary:    run.Summary,
		DurationMS: run.Duration.Milliseconds(),
	}
	for _, warn := range run.Result.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if err := s.cache.Set(r.Context(), key, buf.Bytes()); err != nil {
		s.logger.Warn("cache set", zap.Error(err))
	}
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func (s *Server) writeSimulateError(w http.ResponseWriter, err error) {
	var dq *pverr.DataQualityError
	switch {
	case pverr.IsConfiguration(err):
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
	case errors.As(err, &dq):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
			Code:    "DATA_QUALITY",
			Message: err.Error(),
			Details: map[string]any{"excluded": dq.Excluded, "total": dq.Total},
		}})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NO_WEATHER", err.Error())
	case errors.Is(err, ingest.ErrNoSource):
		writeError(w, http.StatusServiceUnavailable, "NO_SOURCE", err.Error())
	default:
		s.logger.Error("simulate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SIMULATION_ERROR", err.Error())
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse(*run))
}

func (s *Server) handleRunWorkbook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, err := s.runner.Load(id)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	series, err := s.runner.Series(id)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, stored.Request.Fields(), &stored.Summary, series); err != nil {
		writeError(w, http.StatusInternalServerError, "EXPORT_ERROR", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vocmax-%s.xlsx"`, id))
	w.Write(buf.Bytes())
}

func (s *Server) handleRunSeries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	raw, err := s.store.GetRunSeries(id)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vocmax-%s-series.csv"`, id))
	w.Write(raw)
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, err := s.runner.Load(id)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.SummaryText(&buf, stored.Request.Fields(), &stored.Summary); err != nil {
		writeError(w, http.StatusInternalServerError, "EXPORT_ERROR", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vocmax-%s-summary.csv"`, id))
	w.Write(buf.Bytes())
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "RUN_NOT_FOUND", "no such run")
		return
	}
	writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
}

type IngestError struct {
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source"`
	Endpoint  string    `json:"endpoint"`
	Error     string    `json:"error"`
}

type IngestHealthResponse struct {
	Days     []store.IngestHealthSummary `json:"days"`
	Errors   []IngestError               `json:"recent_errors"`
	Payloads *store.RawPayloadStats      `json:"raw_payloads"`
}

func (s *Server) handleIngestHealth(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a positive integer")
			return
		}
		days = n
	}

	health, err := s.store.GetIngestHealth(days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	failed, err := s.store.GetRecentIngestErrors(10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	stats, err := s.store.GetRawPayloadStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	resp := IngestHealthResponse{
		Days:     health,
		Errors:   make([]IngestError, 0, len(failed)),
		Payloads: stats,
	}
	if resp.Days == nil {
		resp.Days = []store.IngestHealthSummary{}
	}
	for _, f := range failed {
		resp.Errors = append(resp.Errors, IngestError{
			StartedAt: f.StartedAt,
			Source:    f.Source,
			Endpoint:  f.Endpoint,
			Error:     f.ErrorMessage.String,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

