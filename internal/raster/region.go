package raster

import (
	"fmt"
	"math"

	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"
)

// geographic is the proj4 string for plain WGS84 lon/lat coordinates.
const geographic = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// Window is a rectangular pixel region within a band grid.
type Window struct {
	Col0, Row0 int
	Cols, Rows int
}

// FullWindow returns the window covering the whole grid.
func (g *BandGrid) FullWindow() Window {
	return Window{Col0: 0, Row0: 0, Cols: g.Cols, Rows: g.Rows}
}

// CheckWindow validates that a pixel window lies inside the grid.
func (g *BandGrid) CheckWindow(w Window) error {
	if w.Cols <= 0 || w.Rows <= 0 {
		return fmt.Errorf("%w: empty window %+v", ErrBadGrid, w)
	}
	if w.Col0 < 0 || w.Row0 < 0 || w.Col0+w.Cols > g.Cols || w.Row0+w.Rows > g.Rows {
		return fmt.Errorf("%w: window %+v outside %dx%d extent", ErrBadGrid, w, g.Cols, g.Rows)
	}
	return nil
}

// GeographicWindow converts a WGS84 lon/lat bounding box into the pixel
// window it covers on a georeferenced grid. The box is reprojected to the
// grid's native CRS, snapped outward to whole pixels, and clipped to the
// grid extent.
func (g *BandGrid) GeographicWindow(bbox geometry.BoundingBox) (Window, error) {
	if len(g.Geotransform) != 6 {
		return Window{}, fmt.Errorf("%w: grid has no geotransform", ErrBadGrid)
	}
	if g.Proj4 == "" {
		return Window{}, fmt.Errorf("%w: grid has no projection", ErrBadGrid)
	}

	cov := proj4go.Coverage{BoundingBox: bbox, Proj4: geographic}
	covNat, err := cov.Transform(g.Proj4)
	if err != nil {
		return Window{}, fmt.Errorf("failed to reproject region to band CRS: %w", err)
	}

	return g.nativeWindow(covNat.BoundingBox)
}

// NativeWindow converts a bounding box already in the grid's native CRS into
// a clipped pixel window.
func (g *BandGrid) NativeWindow(bbox geometry.BoundingBox) (Window, error) {
	if len(g.Geotransform) != 6 {
		return Window{}, fmt.Errorf("%w: grid has no geotransform", ErrBadGrid)
	}
	return g.nativeWindow(bbox)
}

func (g *BandGrid) nativeWindow(bbox geometry.BoundingBox) (Window, error) {
	gt := g.Geotransform

	// North-up geotransforms have gt[5] < 0, so the box's max Y maps to the
	// smallest row.
	c0 := int(math.Floor((bbox.Min.X - gt[0]) / gt[1]))
	c1 := int(math.Ceil((bbox.Max.X - gt[0]) / gt[1]))
	r0 := int(math.Floor((bbox.Max.Y - gt[3]) / gt[5]))
	r1 := int(math.Ceil((bbox.Min.Y - gt[3]) / gt[5]))

	c0 = max(c0, 0)
	r0 = max(r0, 0)
	c1 = min(c1, g.Cols)
	r1 = min(r1, g.Rows)

	if c1 <= c0 || r1 <= r0 {
		return Window{}, fmt.Errorf("%w: region does not intersect the band extent", ErrBadGrid)
	}
	return Window{Col0: c0, Row0: r0, Cols: c1 - c0, Rows: r1 - r0}, nil
}
