// Package raster reads and writes single-band map layers in a compact
// snappy-compressed tile format, carrying enough georeferencing metadata to
// restrict processing to a map-unit region.
package raster

import (
	"errors"
	"fmt"

	"github.com/terrascope/geometry"
)

// ErrBadGrid indicates inconsistent grid dimensions or payload size.
var ErrBadGrid = errors.New("malformed band grid")

// BandGrid is one band's pixel values in row-major order, widened to float64
// regardless of the on-disk sample type.
type BandGrid struct {
	Cols, Rows int
	NoData     float64

	// Proj4 and Geotransform georeference the grid. Geotransform is the
	// usual 6-element affine: [originX, pixelW, 0, originY, 0, -pixelH].
	Proj4        string
	Geotransform []float64

	Pix []float64
}

// NewBandGrid allocates a grid filled with the no-data value.
func NewBandGrid(cols, rows int, noData float64) *BandGrid {
	pix := make([]float64, cols*rows)
	for i := range pix {
		pix[i] = noData
	}
	return &BandGrid{Cols: cols, Rows: rows, NoData: noData, Pix: pix}
}

// At returns the pixel at (col, row).
func (g *BandGrid) At(col, row int) float64 {
	return g.Pix[row*g.Cols+col]
}

// Set stores a pixel at (col, row).
func (g *BandGrid) Set(col, row int, v float64) {
	g.Pix[row*g.Cols+col] = v
}

// Validate checks dimensional consistency.
func (g *BandGrid) Validate() error {
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadGrid, g.Cols, g.Rows)
	}
	if len(g.Pix) != g.Cols*g.Rows {
		return fmt.Errorf("%w: %d pixels for %dx%d extent", ErrBadGrid, len(g.Pix), g.Cols, g.Rows)
	}
	if g.Geotransform != nil && len(g.Geotransform) != 6 {
		return fmt.Errorf("%w: geotransform has %d elements, want 6", ErrBadGrid, len(g.Geotransform))
	}
	return nil
}

// Bounds returns the grid's native-CRS bounding box, derived from the
// geotransform. Returns an error when the grid is not georeferenced.
func (g *BandGrid) Bounds() (geometry.BoundingBox, error) {
	if len(g.Geotransform) != 6 {
		return geometry.BoundingBox{}, fmt.Errorf("%w: no geotransform", ErrBadGrid)
	}
	gt := g.Geotransform
	x0 := gt[0]
	y0 := gt[3] + float64(g.Rows)*gt[5]
	x1 := gt[0] + float64(g.Cols)*gt[1]
	y1 := gt[3]
	return geometry.BBox(x0, y0, x1, y1), nil
}
