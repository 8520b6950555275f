// Package db archives conversion runs and their per-band outcomes in a
// sqlite database, taking the place of the history metadata the processing
// chain used to attach to output rasters.
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
)

type DB struct {
	*sql.DB
}

// schema.sql defines the run and band-result tables. It matches migration
// 0001; later schema changes go through migrations/.
//
//go:embed schema.sql
var schemaSQL string

// NewDB opens (creating if needed) the run archive at path.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}
	return db, nil
}

// OpenDB opens the archive without touching the schema, for use with the
// migration commands.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// Run is one archived conversion run.
type Run struct {
	ID           string
	AcquiredAt   string
	DayOfYear    int
	SunElevation float64
	SolarZenith  float64
	EarthSunAU   float64
	OutputKind   string
	CreatedAt    time.Time
}

// BandRecord is one band's archived outcome within a run.
type BandRecord struct {
	Band        string
	CalCoef     float64
	BandwidthNm float64
	Esun        float64
	Pixels      int
	NoData      int
	Min         float64
	Max         float64
	Mean        float64
	StdDev      float64
	ElapsedMs   int64
	Error       string
}

// RecordRun inserts a run row and returns its generated id.
func (db *DB) RecordRun(geom solar.Geometry, outputKind string) (string, error) {
	id := uuid.NewString()

	acquired := ""
	if !geom.AcquiredAt.IsZero() {
		acquired = geom.AcquiredAt.UTC().Format("2006-01-02 15:04:05")
	}

	_, err := db.Exec(`
		INSERT INTO toar_runs (run_id, acquired_at, day_of_year, sun_elevation, solar_zenith, earth_sun_au, output_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, acquired, geom.DayOfYear, geom.SunElevationDeg, geom.SolarZenithDeg, geom.EarthSunAU, outputKind,
		time.Now().UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// RecordBandResult inserts one band's outcome for a run.
func (db *DB) RecordBandResult(runID string, rec BandRecord) error {
	_, err := db.Exec(`
		INSERT INTO toar_band_results
			(run_id, band, cal_coef, bandwidth_nm, esun, pixels, nodata_pixels,
			 min_value, max_value, mean_value, stddev_value, elapsed_ms, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Band, rec.CalCoef, rec.BandwidthNm, rec.Esun, rec.Pixels, rec.NoData,
		nullableFloat(rec.Min), nullableFloat(rec.Max), nullableFloat(rec.Mean), nullableFloat(rec.StdDev),
		rec.ElapsedMs, rec.Error,
		time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to record band result for %s: %w", rec.Band, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, acquired_at, day_of_year, sun_elevation, solar_zenith, earth_sun_au, output_kind, created_at
		FROM toar_runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAtUnix int64
		if err := rows.Scan(&r.ID, &r.AcquiredAt, &r.DayOfYear, &r.SunElevation, &r.SolarZenith, &r.EarthSunAU, &r.OutputKind, &createdAtUnix); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// BandResults returns the archived band outcomes for a run, in insert order.
func (db *DB) BandResults(runID string) ([]BandRecord, error) {
	rows, err := db.Query(`
		SELECT band, cal_coef, bandwidth_nm, esun, pixels, nodata_pixels,
		       min_value, max_value, mean_value, stddev_value, elapsed_ms, error
		FROM toar_band_results WHERE run_id = ? ORDER BY result_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []BandRecord
	for rows.Next() {
		var rec BandRecord
		var minV, maxV, meanV, stddevV sql.NullFloat64
		if err := rows.Scan(&rec.Band, &rec.CalCoef, &rec.BandwidthNm, &rec.Esun, &rec.Pixels, &rec.NoData,
			&minV, &maxV, &meanV, &stddevV, &rec.ElapsedMs, &rec.Error); err != nil {
			return nil, err
		}
		rec.Min, rec.Max, rec.Mean, rec.StdDev = fromNull(minV), fromNull(maxV), fromNull(meanV), fromNull(stddevV)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// NaN summary values (a band with no valid pixels) are stored as NULL; sqlite
// has no NaN representation that survives a float column round trip.
func nullableFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
