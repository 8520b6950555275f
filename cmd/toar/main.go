// Command toar converts IKONOS digital numbers to at-sensor spectral
// radiance or top-of-atmosphere reflectance.
//
// Input bands come from a JSON layer index describing snappy-compressed band
// files (local paths or gs:// objects); each converted band is written as an
// independent float64 band file next to an output index. Runs and per-band
// outcomes are archived to a sqlite database unless -no-archive is given.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/terrascope/geometry"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
	"github.com/NikosAlexandris/ikonos-toar/internal/config"
	"github.com/NikosAlexandris/ikonos-toar/internal/db"
	"github.com/NikosAlexandris/ikonos-toar/internal/pipeline"
	"github.com/NikosAlexandris/ikonos-toar/internal/raster"
	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
)

var (
	bandsFlag    = flag.String("bands", "Blue,Green,Red,NIR", "Comma-separated bands to convert")
	dateFlag     = flag.String("date", "", "UTC acquisition timestamp (YYYY-MM-DD HH:MM:SS); mutually exclusive with -doy")
	doyFlag      = flag.Int("doy", 0, "Acquisition day of year (1-366); mutually exclusive with -date")
	sunElevFlag  = flag.Float64("sun-elevation", -1, "Mean sun elevation angle in degrees [0, 90] (required)")
	outputFlag   = flag.String("output", "reflectance", "Output kind: radiance or reflectance")
	inputDir     = flag.String("input-dir", ".", "Directory holding the input layer index and band files")
	layersFlag   = flag.String("layers", "layers.json", "Input layer index file name")
	outputDir    = flag.String("output-dir", "", "Directory for converted bands (default from config)")
	regionFlag   = flag.String("region", "", "Pixel window col0,row0,cols,rows; default is each band's full extent")
	lonlatFlag   = flag.String("lonlat-region", "", "WGS84 region minLon,minLat,maxLon,maxLat (needs georeferenced bands)")
	configFlag   = flag.String("config", "", "JSON run config file")
	dbFlag       = flag.String("db", "", "Run archive database path (default from config)")
	noArchive    = flag.Bool("no-archive", false, "Skip recording the run in the archive database")
	workersFlag  = flag.Int("workers", 0, "Row-level worker count per band (0 = NumCPU)")
	noDataFlag   = flag.Float64("no-data", 0, "No-data sentinel value (default from config)")
	migrateFlag  = flag.String("migrate", "", "Run an archive migration command (up, down, status) and exit")
	migrationDir = flag.String("migrations-dir", "migrations", "Directory holding archive migration files")
)

// layerSource opens DN grids from a layer index.
type layerSource struct {
	baseDir string
	layers  raster.Layers
}

func (s *layerSource) Open(band calibration.Band) (*raster.BandGrid, error) {
	layer, ok := s.layers[string(band)]
	if !ok {
		return nil, fmt.Errorf("band %s not present in layer index", band)
	}
	return raster.ReadLayer(s.baseDir, layer)
}

// dirSink writes converted bands into a directory and accumulates the output
// layer index.
type dirSink struct {
	dir    string
	layers raster.Layers
}

func (s *dirSink) Write(band calibration.Band, kind pipeline.OutputKind, grid *raster.BandGrid) error {
	fileName := fmt.Sprintf("%s_%s.snp", strings.ToLower(string(band)), kind)
	layer, err := raster.WriteLayer(s.dir, string(band), fileName, grid)
	if err != nil {
		return err
	}
	s.layers[string(band)] = layer
	return nil
}

func main() {
	flag.Parse()

	if *migrateFlag != "" {
		runMigration(*migrateFlag)
		return
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg)

	geom, err := buildGeometry()
	if err != nil {
		log.Fatalf("Invalid acquisition metadata: %v", err)
	}
	log.Printf("Acquisition: day of year %d, sun elevation %.4f°, solar zenith %.4f°, Earth-Sun distance %.7f AU",
		geom.DayOfYear, geom.SunElevationDeg, geom.SolarZenithDeg, geom.EarthSunAU)

	bands, err := calibration.ParseBandList(*bandsFlag)
	if err != nil {
		log.Fatalf("Invalid band list: %v", err)
	}
	if len(bands) == 0 {
		log.Fatal("No bands requested")
	}

	output, err := pipeline.ParseOutputKind(*outputFlag)
	if err != nil {
		log.Fatalf("Invalid output kind: %v", err)
	}

	table, overridden, err := cfg.CustomTable()
	if err != nil {
		log.Fatalf("Invalid calibration table override: %v", err)
	}
	if !overridden {
		table = calibration.TableForDate(geom.AcquiredAt)
	}

	layers, err := raster.ReadLayers(filepath.Join(*inputDir, *layersFlag))
	if err != nil {
		log.Fatalf("Failed to read layer index: %v", err)
	}
	src := &layerSource{baseDir: *inputDir, layers: layers}

	domain, err := buildDomain(src, bands)
	if err != nil {
		log.Fatalf("Invalid region: %v", err)
	}

	if err := os.MkdirAll(*cfg.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	sink := &dirSink{dir: *cfg.OutputDir, layers: raster.Layers{}}

	results, err := pipeline.Run(pipeline.Request{
		Bands:    bands,
		Geometry: geom,
		Table:    table,
		Output:   output,
		Domain:   domain,
		NoData:   *cfg.NoData,
		Workers:  *cfg.Workers,
	}, src, sink)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}

	if len(sink.layers) > 0 {
		indexPath := filepath.Join(*cfg.OutputDir, fmt.Sprintf("toar_%s.json", output))
		if err := raster.WriteLayers(sink.layers, indexPath); err != nil {
			log.Fatalf("Failed to write output layer index: %v", err)
		}
		log.Printf("Wrote %d band(s) and index %s", len(sink.layers), indexPath)
	}

	if !*noArchive && *cfg.DBPath != "" {
		archiveRun(*cfg.DBPath, geom, output, table, results)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Printf("%d of %d band(s) failed", failed, len(results))
		os.Exit(1)
	}
}

// applyFlagOverrides lets explicitly set CLI flags win over the config file.
func applyFlagOverrides(cfg *config.RunConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "no-data":
			cfg.NoData = noDataFlag
		case "workers":
			cfg.Workers = workersFlag
		case "db":
			cfg.DBPath = dbFlag
		case "output-dir":
			cfg.OutputDir = outputDir
		}
	})
}

func buildGeometry() (solar.Geometry, error) {
	if (*dateFlag == "") == (*doyFlag == 0) {
		return solar.Geometry{}, fmt.Errorf("exactly one of -date and -doy is required")
	}
	if *dateFlag != "" {
		return solar.NewGeometry(*dateFlag, *sunElevFlag)
	}
	return solar.NewGeometryFromDOY(*doyFlag, *sunElevFlag)
}

// buildDomain resolves the -region / -lonlat-region flags. A lon/lat region
// is snapped to pixels against the first requested band; all bands of one
// acquisition share an extent.
func buildDomain(src *layerSource, bands []calibration.Band) (pipeline.Domain, error) {
	if *regionFlag != "" && *lonlatFlag != "" {
		return pipeline.Domain{}, fmt.Errorf("-region and -lonlat-region are mutually exclusive")
	}

	if *regionFlag != "" {
		vals, err := parseCSVIntN(*regionFlag, 4)
		if err != nil {
			return pipeline.Domain{}, fmt.Errorf("bad -region: %w", err)
		}
		return pipeline.FixedWindow(raster.Window{
			Col0: vals[0], Row0: vals[1], Cols: vals[2], Rows: vals[3],
		}), nil
	}

	if *lonlatFlag != "" {
		vals, err := parseCSVFloatN(*lonlatFlag, 4)
		if err != nil {
			return pipeline.Domain{}, fmt.Errorf("bad -lonlat-region: %w", err)
		}
		grid, err := src.Open(bands[0])
		if err != nil {
			return pipeline.Domain{}, err
		}
		w, err := grid.GeographicWindow(geometry.BBox(vals[0], vals[1], vals[2], vals[3]))
		if err != nil {
			return pipeline.Domain{}, err
		}
		log.Printf("Region %s resolved to pixel window %+v", *lonlatFlag, w)
		return pipeline.FixedWindow(w), nil
	}

	return pipeline.FullExtent(), nil
}

func archiveRun(dbPath string, geom solar.Geometry, output pipeline.OutputKind,
	table calibration.Table, results []pipeline.BandResult) {

	archive, err := db.NewDB(dbPath)
	if err != nil {
		log.Printf("Failed to open run archive: %v", err)
		return
	}
	defer archive.Close()

	runID, err := archive.RecordRun(geom, string(output))
	if err != nil {
		log.Printf("Failed to archive run: %v", err)
		return
	}

	for _, res := range results {
		rec := db.BandRecord{
			Band:      string(res.Band),
			Pixels:    res.Stats.Pixels,
			NoData:    res.Stats.NoData,
			Min:       res.Stats.Min,
			Max:       res.Stats.Max,
			Mean:      res.Stats.Mean,
			StdDev:    res.Stats.StdDev,
			ElapsedMs: res.Elapsed.Milliseconds(),
		}
		if entry, err := table.Lookup(res.Band); err == nil {
			rec.CalCoef = entry.CalCoef
			rec.BandwidthNm = entry.BandwidthNm
			rec.Esun = entry.Esun
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		if err := archive.RecordBandResult(runID, rec); err != nil {
			log.Printf("Failed to archive band result: %v", err)
		}
	}
	log.Printf("Archived run %s", runID)
}

func runMigration(action string) {
	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = *config.Default().DBPath
	}
	archive, err := db.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open run archive: %v", err)
	}
	defer archive.Close()

	switch action {
	case "up":
		if err := archive.MigrateUp(*migrationDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := archive.MigrateDown(*migrationDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Rolled back one migration")
	case "status":
		version, dirty, err := archive.MigrateVersion(*migrationDir)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		log.Printf("Archive schema version %d (dirty=%v)", version, dirty)
	default:
		log.Fatalf("Unknown migration action %q (want up, down or status)", action)
	}
}

func parseCSVIntN(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseCSVFloatN(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}
