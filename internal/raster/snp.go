package raster

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/terrascope/scimage"
)

// Sample types supported by the tile format. DN imagery ships as uint16
// (IKONOS DNs are 11-bit); computed radiance/reflectance ships as float64.
const (
	DTypeUint16  = "uint16"
	DTypeFloat64 = "float64"
)

// maxDN is the sensor's 11-bit DN ceiling.
const maxDN = 2047

// Layer describes one band file in a layer index, mirroring the usual
// tile-server layer manifest shape.
type Layer struct {
	Band         string    `json:"band"`
	Path         string    `json:"path"`
	DType        string    `json:"dtype"`
	XSize        int       `json:"x_size"`
	YSize        int       `json:"y_size"`
	Geotransform []float64 `json:"geotransform,omitempty"`
	NoData       float64   `json:"no_data"`
	Proj4        string    `json:"proj4,omitempty"`
}

// Layers maps band name to its layer description.
type Layers map[string]Layer

// ReadLayers loads a JSON layer index.
func ReadLayers(fileName string) (Layers, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer index %s: %w", fileName, err)
	}
	lyrs := Layers{}
	if err := json.Unmarshal(raw, &lyrs); err != nil {
		return nil, fmt.Errorf("failed to parse layer index %s: %w", fileName, err)
	}
	return lyrs, nil
}

// WriteLayers persists a JSON layer index.
func WriteLayers(lyrs Layers, fileName string) error {
	raw, err := json.MarshalIndent(lyrs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, raw, 0o644)
}

// ReadLayer loads a band file described by a layer entry into a BandGrid.
// Relative layer paths resolve against baseDir; gs:// paths are fetched from
// Google Cloud Storage.
func ReadLayer(baseDir string, layer Layer) (*BandGrid, error) {
	cdata, err := readObject(resolvePath(baseDir, layer.Path))
	if err != nil {
		return nil, err
	}

	data, err := snappy.Decode(nil, cdata)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress band %s: %w", layer.Band, err)
	}

	grid := &BandGrid{
		Cols:         layer.XSize,
		Rows:         layer.YSize,
		NoData:       layer.NoData,
		Proj4:        layer.Proj4,
		Geotransform: layer.Geotransform,
	}

	switch layer.DType {
	case DTypeUint16:
		want := layer.XSize * layer.YSize * 2
		if len(data) != want {
			return nil, fmt.Errorf("%w: band %s payload is %d bytes, want %d", ErrBadGrid, layer.Band, len(data), want)
		}
		pix := make([]uint16, layer.XSize*layer.YSize)
		for i := range pix {
			pix[i] = binary.LittleEndian.Uint16(data[2*i:])
		}
		im := &scimage.GrayU16{
			Pix:    pix,
			Stride: layer.XSize,
			Rect:   image.Rect(0, 0, layer.XSize, layer.YSize),
			Min:    0,
			Max:    maxDN,
		}
		// Sentinels like -9999 or NaN cannot occur as raw DNs; only an
		// integral in-range value participates in pixel matching.
		noData, hasNoData := uint16Sentinel(layer.NoData)
		if hasNoData {
			im.NoData = noData
		}
		grid.Pix = make([]float64, len(im.Pix))
		for i, v := range im.Pix {
			if hasNoData && v == im.NoData {
				grid.Pix[i] = layer.NoData
				continue
			}
			if v < im.Min || v > im.Max {
				return nil, fmt.Errorf("%w: band %s pixel %d has DN %d outside [%d, %d]",
					ErrBadGrid, layer.Band, i, v, im.Min, im.Max)
			}
			grid.Pix[i] = float64(v)
		}

	case DTypeFloat64:
		want := layer.XSize * layer.YSize * 8
		if len(data) != want {
			return nil, fmt.Errorf("%w: band %s payload is %d bytes, want %d", ErrBadGrid, layer.Band, len(data), want)
		}
		grid.Pix = make([]float64, layer.XSize*layer.YSize)
		for i := range grid.Pix {
			grid.Pix[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}

	default:
		return nil, fmt.Errorf("%w: band %s has unsupported dtype %q", ErrBadGrid, layer.Band, layer.DType)
	}

	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return grid, nil
}

// WriteLayer stores a BandGrid as a snappy-compressed float64 band file and
// returns the layer entry describing it. Output is always float64: radiance
// and reflectance do not round-trip through integer DNs.
func WriteLayer(baseDir, band, fileName string, grid *BandGrid) (Layer, error) {
	if err := grid.Validate(); err != nil {
		return Layer{}, err
	}

	data := make([]byte, len(grid.Pix)*8)
	for i, v := range grid.Pix {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}

	path := filepath.Join(baseDir, fileName)
	if err := os.WriteFile(path, snappy.Encode(nil, data), 0o644); err != nil {
		return Layer{}, fmt.Errorf("failed to write band %s: %w", band, err)
	}

	return Layer{
		Band:         band,
		Path:         fileName,
		DType:        DTypeFloat64,
		XSize:        grid.Cols,
		YSize:        grid.Rows,
		Geotransform: grid.Geotransform,
		NoData:       grid.NoData,
		Proj4:        grid.Proj4,
	}, nil
}

// uint16Sentinel reports whether a layer no-data value is representable as a
// raw uint16 DN. Converting blindly would wrap negative or fractional
// sentinels into a valid-looking pixel value.
func uint16Sentinel(v float64) (uint16, bool) {
	if math.IsNaN(v) || v != math.Trunc(v) || v < 0 || v > math.MaxUint16 {
		return 0, false
	}
	return uint16(v), true
}

func resolvePath(baseDir, path string) string {
	if isGCSPath(path) || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func readObject(path string) ([]byte, error) {
	if isGCSPath(path) {
		return readGCSObject(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read band file %s: %w", path, err)
	}
	return data, nil
}
