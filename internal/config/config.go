// Package config loads the converter's JSON run configuration. Fields
// omitted from the file keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
)

// RunConfig is the root configuration. All fields are optional; the same
// JSON shape is accepted from a file or assembled from CLI flags.
type RunConfig struct {
	// NoData is the sentinel propagated unchanged through the pipeline.
	NoData *float64 `json:"no_data,omitempty"`

	// Workers bounds per-band row parallelism; 0 selects NumCPU.
	Workers *int `json:"workers,omitempty"`

	// DBPath locates the run archive; empty disables archiving.
	DBPath *string `json:"db_path,omitempty"`

	// OutputDir is where converted band files are written.
	OutputDir *string `json:"output_dir,omitempty"`

	// CalibrationTable overrides the built-in IKONOS table, for alternate
	// sensors or updated constants. When set it fully replaces the
	// built-in table; there is no per-band merge.
	CalibrationTable []CalibrationEntry `json:"calibration_table,omitempty"`
}

// CalibrationEntry is the JSON shape of one band's calibration constants.
type CalibrationEntry struct {
	Band        string  `json:"band"`
	CalCoef     float64 `json:"cal_coef"`
	BandwidthNm float64 `json:"bandwidth_nm"`
	Esun        float64 `json:"esun"`
}

// Default returns the built-in configuration.
func Default() *RunConfig {
	noData := 0.0
	workers := 0
	dbPath := "toar_runs.db"
	outputDir := "."
	return &RunConfig{
		NoData:    &noData,
		Workers:   &workers,
		DBPath:    &dbPath,
		OutputDir: &outputDir,
	}
}

// Load reads a JSON config file and merges it over the defaults.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	loaded := &RunConfig{}
	if err := json.Unmarshal(raw, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", cleanPath, err)
	}

	cfg := Default()
	cfg.Merge(loaded)
	return cfg, nil
}

// Merge overlays non-nil fields of other onto cfg.
func (cfg *RunConfig) Merge(other *RunConfig) {
	if other == nil {
		return
	}
	if other.NoData != nil {
		cfg.NoData = other.NoData
	}
	if other.Workers != nil {
		cfg.Workers = other.Workers
	}
	if other.DBPath != nil {
		cfg.DBPath = other.DBPath
	}
	if other.OutputDir != nil {
		cfg.OutputDir = other.OutputDir
	}
	if other.CalibrationTable != nil {
		cfg.CalibrationTable = other.CalibrationTable
	}
}

// CustomTable builds the override calibration table. ok is false when the
// config carries no override and the caller should fall back to the
// built-in sensor table.
func (cfg *RunConfig) CustomTable() (table calibration.Table, ok bool, err error) {
	if len(cfg.CalibrationTable) == 0 {
		return calibration.Table{}, false, nil
	}
	entries := make([]calibration.Entry, 0, len(cfg.CalibrationTable))
	for _, e := range cfg.CalibrationTable {
		if e.Band == "" {
			return calibration.Table{}, false, fmt.Errorf("calibration table entry missing band id")
		}
		entries = append(entries, calibration.Entry{
			Band:        calibration.Band(e.Band),
			CalCoef:     e.CalCoef,
			BandwidthNm: e.BandwidthNm,
			Esun:        e.Esun,
		})
	}
	return calibration.NewTable(entries), true, nil
}
