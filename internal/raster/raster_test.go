package raster

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/snappy"
	"github.com/google/go-cmp/cmp"
	"github.com/terrascope/geometry"
)

// writeDNFixture stores a uint16 band file and returns its layer entry.
func writeDNFixture(t *testing.T, dir, band string, cols, rows int, dn []uint16, noData float64) Layer {
	t.Helper()
	data := make([]byte, len(dn)*2)
	for i, v := range dn {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	fileName := band + ".snp"
	if err := os.WriteFile(filepath.Join(dir, fileName), snappy.Encode(nil, data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return Layer{
		Band:         band,
		Path:         fileName,
		DType:        DTypeUint16,
		XSize:        cols,
		YSize:        rows,
		Geotransform: []float64(nil),
		NoData:       noData,
	}
}

func TestReadLayerUint16(t *testing.T) {
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "Red", 3, 2, []uint16{0, 100, 2047, 9, 9, 512}, 9)

	grid, err := ReadLayer(dir, layer)
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}

	want := []float64{0, 100, 2047, 9, 9, 512}
	if diff := cmp.Diff(want, grid.Pix); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
	if grid.Cols != 3 || grid.Rows != 2 {
		t.Errorf("extent = %dx%d, want 3x2", grid.Cols, grid.Rows)
	}
	if grid.At(2, 0) != 2047 || grid.At(2, 1) != 512 {
		t.Error("At() addressing is not row-major")
	}
}

func TestReadLayerRejectsOverRangeDN(t *testing.T) {
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "Red", 2, 1, []uint16{100, 4000}, 9)

	if _, err := ReadLayer(dir, layer); !errors.Is(err, ErrBadGrid) {
		t.Errorf("ReadLayer error = %v, want ErrBadGrid for DN above 2047", err)
	}
}

func TestReadLayerNegativeSentinel(t *testing.T) {
	// A sentinel like -9999 cannot occur as a raw DN; every pixel is data
	// and the ceiling still applies.
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "NIR", 3, 1, []uint16{0, 1024, 2047}, -9999)

	grid, err := ReadLayer(dir, layer)
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 1024, 2047}, grid.Pix); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
	if grid.NoData != -9999 {
		t.Errorf("NoData = %v, want -9999", grid.NoData)
	}
}

func TestReadLayerSentinelExemptFromRange(t *testing.T) {
	// Sentinel pixels pass through untouched even when the sentinel value
	// itself lies above the DN ceiling.
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "Blue", 3, 1, []uint16{60000, 100, 2047}, 60000)

	grid, err := ReadLayer(dir, layer)
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if diff := cmp.Diff([]float64{60000, 100, 2047}, grid.Pix); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

func TestReadLayerPayloadSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "Red", 3, 2, []uint16{1, 2, 3}, 9) // 3 pixels for a 3x2 extent

	if _, err := ReadLayer(dir, layer); !errors.Is(err, ErrBadGrid) {
		t.Errorf("ReadLayer error = %v, want ErrBadGrid", err)
	}
}

func TestReadLayerUnsupportedDType(t *testing.T) {
	dir := t.TempDir()
	layer := writeDNFixture(t, dir, "Red", 1, 1, []uint16{1}, 9)
	layer.DType = "int32"

	if _, err := ReadLayer(dir, layer); !errors.Is(err, ErrBadGrid) {
		t.Errorf("ReadLayer error = %v, want ErrBadGrid", err)
	}
}

func TestWriteReadLayerRoundTrip(t *testing.T) {
	dir := t.TempDir()

	grid := NewBandGrid(4, 3, -9999)
	grid.Proj4 = "+proj=utm +zone=34 +datum=WGS84 +units=m +no_defs"
	grid.Geotransform = []float64{500000, 4, 0, 4200000, 0, -4}
	for i := range grid.Pix {
		grid.Pix[i] = float64(i) * 0.125
	}
	grid.Set(1, 1, -9999)

	layer, err := WriteLayer(dir, "Blue", "blue_toar.snp", grid)
	if err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}
	if layer.DType != DTypeFloat64 {
		t.Errorf("layer dtype = %q, want float64", layer.DType)
	}

	got, err := ReadLayer(dir, layer)
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if diff := cmp.Diff(grid.Pix, got.Pix); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Proj4 != grid.Proj4 {
		t.Errorf("proj4 = %q, want %q", got.Proj4, grid.Proj4)
	}
}

func TestLayersIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lyrs := Layers{
		"Blue": {Band: "Blue", Path: "blue.snp", DType: DTypeUint16, XSize: 10, YSize: 10, NoData: 0},
		"NIR":  {Band: "NIR", Path: "nir.snp", DType: DTypeUint16, XSize: 10, YSize: 10, NoData: 0},
	}

	indexPath := filepath.Join(dir, "layers.json")
	if err := WriteLayers(lyrs, indexPath); err != nil {
		t.Fatalf("WriteLayers: %v", err)
	}
	got, err := ReadLayers(indexPath)
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	if diff := cmp.Diff(lyrs, got); diff != "" {
		t.Errorf("index round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckWindow(t *testing.T) {
	grid := NewBandGrid(100, 80, 0)

	tests := []struct {
		name    string
		w       Window
		wantErr bool
	}{
		{"full extent", Window{0, 0, 100, 80}, false},
		{"interior", Window{10, 10, 20, 20}, false},
		{"single pixel", Window{99, 79, 1, 1}, false},
		{"empty", Window{0, 0, 0, 10}, true},
		{"negative origin", Window{-1, 0, 10, 10}, true},
		{"overflows cols", Window{95, 0, 10, 10}, true},
		{"overflows rows", Window{0, 75, 10, 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := grid.CheckWindow(tt.w)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckWindow(%+v) error = %v, wantErr %v", tt.w, err, tt.wantErr)
			}
		})
	}
}

func TestNativeWindow(t *testing.T) {
	grid := NewBandGrid(100, 80, 0)
	grid.Geotransform = []float64{1000, 10, 0, 2000, 0, -10} // x: 1000..2000, y: 1200..2000

	w, err := grid.NativeWindow(geometry.BBox(1100, 1800, 1200, 1900))
	if err != nil {
		t.Fatalf("NativeWindow: %v", err)
	}
	want := Window{Col0: 10, Row0: 10, Cols: 10, Rows: 10}
	if w != want {
		t.Errorf("NativeWindow = %+v, want %+v", w, want)
	}

	// Partially overlapping boxes clip to the extent.
	w, err = grid.NativeWindow(geometry.BBox(-500, 1950, 1050, 2500))
	if err != nil {
		t.Fatalf("NativeWindow: %v", err)
	}
	want = Window{Col0: 0, Row0: 0, Cols: 5, Rows: 5}
	if w != want {
		t.Errorf("clipped NativeWindow = %+v, want %+v", w, want)
	}

	// Disjoint boxes fail.
	if _, err := grid.NativeWindow(geometry.BBox(5000, 5000, 6000, 6000)); !errors.Is(err, ErrBadGrid) {
		t.Errorf("disjoint NativeWindow error = %v, want ErrBadGrid", err)
	}
}

func TestBounds(t *testing.T) {
	grid := NewBandGrid(100, 80, 0)
	grid.Geotransform = []float64{1000, 10, 0, 2000, 0, -10}

	b, err := grid.Bounds()
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if b.Min.X != 1000 || b.Min.Y != 1200 || b.Max.X != 2000 || b.Max.Y != 2000 {
		t.Errorf("Bounds = %+v, want 1000,1200..2000,2000", b)
	}

	grid.Geotransform = nil
	if _, err := grid.Bounds(); !errors.Is(err, ErrBadGrid) {
		t.Errorf("Bounds without geotransform error = %v, want ErrBadGrid", err)
	}
}

func TestIsGCSPath(t *testing.T) {
	if !isGCSPath("gs://bucket/object.snp") {
		t.Error("gs:// path not recognised")
	}
	if isGCSPath("/data/object.snp") {
		t.Error("local path misidentified as GCS")
	}
}
