package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/models"
)

// ErrNotFound is returned when a site or run does not exist.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) UpsertSite(site models.Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (location_id, latitude, longitude, elevation, utc_offset, interval_hours, duration_years, source, object_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			utc_offset = excluded.utc_offset,
			interval_hours = excluded.interval_hours,
			duration_years = excluded.duration_years,
			source = excluded.source,
			object_key = excluded.object_key,
			updated_at = excluded.updated_at
	`, site.LocationID, site.Latitude, site.Longitude, site.Elevation, site.UTCOffset,
		site.IntervalHours, site.DurationYears, site.Source, site.ObjectKey, time.Now().UTC())
	return err
}

// UpsertSites writes an index of sites in one transaction. Existing metadata
// that the index does not know, such as elevation from a parsed file, is kept.
func (s *Store) UpsertSites(sites []models.Site) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO sites (location_id, latitude, longitude, source, object_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			source = excluded.source,
			object_key = excluded.object_key,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, site := range sites {
		if _, err := stmt.Exec(site.LocationID, site.Latitude, site.Longitude, site.Source, site.ObjectKey, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert site %d: %w", site.LocationID, err)
		}
	}
	return tx.Commit()
}

const siteColumns = `location_id, latitude, longitude, elevation, utc_offset, interval_hours, duration_years, source, object_key`

func scanSite(sc interface{ Scan(...any) error }) (models.Site, error) {
	var site models.Site
	err := sc.Scan(&site.LocationID, &site.Latitude, &site.Longitude, &site.Elevation, &site.UTCOffset,
		&site.IntervalHours, &site.DurationYears, &site.Source, &site.ObjectKey)
	return site, err
}

func (s *Store) GetSite(locationID int64) (*models.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteColumns+` FROM sites WHERE location_id = ?`, locationID)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) GetSites() ([]models.Site, error) {
	rows, err := s.db.Query(`SELECT ` + siteColumns + ` FROM sites ORDER BY location_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// ReplaceWeather swaps the stored weather of a site for records and updates
// the site metadata, all in one transaction.
func (s *Store) ReplaceWeather(ws *models.WeatherSeries) (int, error) {
	site := ws.Site
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM weather WHERE location_id = ?`, site.LocationID); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clear weather: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO weather (location_id, observed_at, dni, dhi, ghi, temp_air, wind_speed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range ws.Records {
		if _, err := stmt.Exec(site.LocationID, r.Time.Unix(),
			nullFloat(r.DNI), nullFloat(r.DHI), nullFloat(r.GHI), nullFloat(r.TempAir), nullFloat(r.WindSpeed)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert weather at %s: %w", r.Time, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO sites (location_id, latitude, longitude, elevation, utc_offset, interval_hours, duration_years, source, object_key, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			utc_offset = excluded.utc_offset,
			interval_hours = excluded.interval_hours,
			duration_years = excluded.duration_years,
			source = excluded.source,
			object_key = CASE WHEN excluded.object_key = '' THEN sites.object_key ELSE excluded.object_key END,
			updated_at = excluded.updated_at
	`, site.LocationID, site.Latitude, site.Longitude, site.Elevation, site.UTCOffset,
		site.IntervalHours, site.DurationYears, site.Source, site.ObjectKey, time.Now().UTC()); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("update site: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ws.Records), nil
}

// GetWeatherSeries loads the stored weather of a site with timestamps in the
// site's fixed UTC offset. NULL values come back as NaN.
func (s *Store) GetWeatherSeries(locationID int64) (*models.WeatherSeries, error) {
	site, err := s.GetSite(locationID)
	if err != nil {
		return nil, err
	}
	loc := time.FixedZone("", int(site.UTCOffset*3600))

	rows, err := s.db.Query(`
		SELECT observed_at, dni, dhi, ghi, temp_air, wind_speed
		FROM weather
		WHERE location_id = ?
		ORDER BY observed_at ASC
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ws := &models.WeatherSeries{Site: *site}
	for rows.Next() {
		var ts int64
		var dni, dhi, ghi, temp, wind sql.NullFloat64
		if err := rows.Scan(&ts, &dni, &dhi, &ghi, &temp, &wind); err != nil {
			return nil, err
		}
		ws.Records = append(ws.Records, models.WeatherRecord{
			Time:      time.Unix(ts, 0).In(loc),
			DNI:       floatOrNaN(dni),
			DHI:       floatOrNaN(dhi),
			GHI:       floatOrNaN(ghi),
			TempAir:   floatOrNaN(temp),
			WindSpeed: floatOrNaN(wind),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ws.Records) == 0 {
		return nil, fmt.Errorf("weather for site %d: %w", locationID, ErrNotFound)
	}
	return ws, nil
}

// WeatherCounts returns the number of stored weather rows per site.
func (s *Store) WeatherCounts() (map[int64]int, error) {
	rows, err := s.db.Query(`SELECT location_id, COUNT(*) FROM weather GROUP BY location_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
