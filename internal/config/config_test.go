package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if *cfg.NoData != 0 || *cfg.Workers != 0 {
		t.Errorf("defaults: no_data=%v workers=%v, want 0/0", *cfg.NoData, *cfg.Workers)
	}
	if *cfg.DBPath != "toar_runs.db" || *cfg.OutputDir != "." {
		t.Errorf("defaults: db=%q out=%q", *cfg.DBPath, *cfg.OutputDir)
	}
	if _, ok, err := cfg.CustomTable(); ok || err != nil {
		t.Errorf("default config should carry no table override (ok=%v err=%v)", ok, err)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "run.json", `{"no_data": -9999, "workers": 4}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg.NoData != -9999 {
		t.Errorf("no_data = %v, want -9999", *cfg.NoData)
	}
	if *cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", *cfg.Workers)
	}
	// Omitted fields retain defaults.
	if *cfg.DBPath != "toar_runs.db" {
		t.Errorf("db_path = %q, want default", *cfg.DBPath)
	}
}

func TestLoadCalibrationOverride(t *testing.T) {
	path := writeConfig(t, "quickbird.json", `{
		"calibration_table": [
			{"band": "Blue", "cal_coef": 1100, "bandwidth_nm": 68.0, "esun": 1924.6},
			{"band": "NIR", "cal_coef": 1200, "bandwidth_nm": 114.0, "esun": 1041.0}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	table, ok, err := cfg.CustomTable()
	if err != nil || !ok {
		t.Fatalf("CustomTable: ok=%v err=%v", ok, err)
	}
	if table.Len() != 2 {
		t.Fatalf("table has %d bands, want 2", table.Len())
	}

	e, err := table.Lookup(calibration.Blue)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.CalCoef != 1100 || e.BandwidthNm != 68.0 {
		t.Errorf("Blue entry = %+v", e)
	}

	// The override replaces the built-in table outright.
	if _, err := table.Lookup(calibration.Red); err == nil {
		t.Error("Red should be absent from the override table")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("wrong extension", func(t *testing.T) {
		path := writeConfig(t, "run.yaml", `{}`)
		if _, err := Load(path); err == nil {
			t.Error("want error for non-json extension")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Error("want error for missing file")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, "bad.json", `{"no_data": `)
		if _, err := Load(path); err == nil {
			t.Error("want error for malformed json")
		}
	})

	t.Run("entry without band id", func(t *testing.T) {
		path := writeConfig(t, "noband.json", `{"calibration_table": [{"cal_coef": 1}]}`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if _, _, err := cfg.CustomTable(); err == nil {
			t.Error("want error for entry without band id")
		}
	})
}
