package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SimulationRun is a completed simulation kept for later retrieval and
// export. Request and Summary are JSON documents owned by the API layer.
type SimulationRun struct {
	ID         string
	CreatedAt  time.Time
	LocationID int64
	ModuleName string
	Request    []byte
	Summary    []byte
	// SeriesCSV is the per-timestep series, stored compressed.
	SeriesCSV  []byte
	Excluded   int
	Timesteps  int
	DurationMS int64
}

func (s *Store) SaveRun(run SimulationRun) error {
	var series []byte
	if len(run.SeriesCSV) > 0 {
		var err error
		if series, err = gzipBytes(run.SeriesCSV); err != nil {
			return err
		}
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO simulation_runs (id, created_at, location_id, module_name, request_json, summary_json, series_compressed, excluded, timesteps, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, run.LocationID, run.ModuleName, string(run.Request), string(run.Summary),
		series, run.Excluded, run.Timesteps, run.DurationMS)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a run without its series.
func (s *Store) GetRun(id string) (*SimulationRun, error) {
	var run SimulationRun
	var req, sum string
	err := s.db.QueryRow(`
		SELECT id, created_at, location_id, module_name, request_json, summary_json, excluded, timesteps, duration_ms
		FROM simulation_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.CreatedAt, &run.LocationID, &run.ModuleName, &req, &sum,
		&run.Excluded, &run.Timesteps, &run.DurationMS)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Request, run.Summary = []byte(req), []byte(sum)
	return &run, nil
}

// GetRunSeries returns the decompressed series CSV of a run.
func (s *Store) GetRunSeries(id string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT series_compressed FROM simulation_runs WHERE id = ?`, id).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(compressed) == 0 {
		return nil, nil
	}
	return gunzipBytes(compressed)
}

// ListRuns returns the most recent runs, newest first, without payloads.
func (s *Store) ListRuns(limit int) ([]SimulationRun, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, location_id, module_name, excluded, timesteps, duration_ms
		FROM simulation_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SimulationRun
	for rows.Next() {
		var r SimulationRun
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.LocationID, &r.ModuleName, &r.Excluded, &r.Timesteps, &r.DurationMS); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CleanupOldRuns deletes runs older than the retention period.
func (s *Store) CleanupOldRuns(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM simulation_runs
		WHERE created_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
