// Package pipeline orchestrates the per-band DN → radiance/reflectance
// conversion over a pixel domain.
package pipeline

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/NikosAlexandris/ikonos-toar/internal/bandstats"
	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
	"github.com/NikosAlexandris/ikonos-toar/internal/radiometry"
	"github.com/NikosAlexandris/ikonos-toar/internal/raster"
	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
	"github.com/NikosAlexandris/ikonos-toar/internal/timeutil"
)

// OutputKind selects the conversion target.
type OutputKind string

const (
	OutputRadiance    OutputKind = "radiance"
	OutputReflectance OutputKind = "reflectance"
)

// ErrBadRequest indicates a request-level validation failure; nothing is
// processed when it is returned.
var ErrBadRequest = errors.New("invalid conversion request")

// ParseOutputKind maps a CLI string to an OutputKind.
func ParseOutputKind(s string) (OutputKind, error) {
	switch OutputKind(s) {
	case OutputRadiance, OutputReflectance:
		return OutputKind(s), nil
	}
	return "", fmt.Errorf("%w: output kind %q (want radiance or reflectance)", ErrBadRequest, s)
}

// Domain describes the pixel domain to convert: the band's full extent or a
// fixed window validated against each band.
type Domain struct {
	full   bool
	window raster.Window
}

// FullExtent processes every pixel of each band.
func FullExtent() Domain { return Domain{full: true} }

// FixedWindow restricts processing to one rectangular pixel region.
func FixedWindow(w raster.Window) Domain { return Domain{window: w} }

// Request is one unit of conversion work. Geometry and Table are shared
// read-only across all bands and pixels; nothing in the pipeline mutates them.
type Request struct {
	Bands    []calibration.Band
	Geometry solar.Geometry
	Table    calibration.Table
	Output   OutputKind
	Domain   Domain

	// NoData is the sentinel propagated unchanged through every stage.
	NoData float64

	// Workers bounds row-level parallelism within a band; 0 means NumCPU.
	// Output placement is positional, so the worker count never affects
	// the result.
	Workers int

	// Clock times per-band conversion; nil selects the real clock.
	Clock timeutil.Clock
}

// BandSource yields the DN grid for a band.
type BandSource interface {
	Open(band calibration.Band) (*raster.BandGrid, error)
}

// BandSink persists one converted band. Each band's output is a complete,
// independent artifact; the pipeline never writes a partially converted band.
type BandSink interface {
	Write(band calibration.Band, kind OutputKind, grid *raster.BandGrid) error
}

// BandError ties a failure to the band it occurred on.
type BandError struct {
	Band calibration.Band
	Err  error
}

func (e *BandError) Error() string {
	return fmt.Sprintf("band %s: %v", e.Band, e.Err)
}

func (e *BandError) Unwrap() error { return e.Err }

// BandResult reports the outcome for one band. Err is non-nil when the band
// failed; completed bands are never rolled back by later failures.
type BandResult struct {
	Band    calibration.Band
	Window  raster.Window
	Stats   bandstats.Summary
	Elapsed time.Duration
	Err     error
}

// Run converts every requested band. Request-level problems (bad output
// kind, no bands, reflectance with the sun at the horizon) fail before any
// pixel work. Band-level problems are recorded in that band's result and do
// not disturb the other bands.
func Run(req Request, src BandSource, sink BandSink) ([]BandResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	clk := req.Clock
	if clk == nil {
		clk = timeutil.RealClock{}
	}

	results := make([]BandResult, 0, len(req.Bands))
	for _, band := range req.Bands {
		start := clk.Now()
		res := convertBand(req, band, src, sink)
		res.Elapsed = clk.Since(start)
		if res.Err != nil {
			log.Printf("band %s failed: %v", band, res.Err)
		} else {
			log.Printf("band %s: %d pixels (%d no-data), %s range [%g, %g]",
				band, res.Stats.Pixels, res.Stats.NoData, req.Output, res.Stats.Min, res.Stats.Max)
		}
		results = append(results, res)
	}
	return results, nil
}

func (req Request) validate() error {
	if len(req.Bands) == 0 {
		return fmt.Errorf("%w: no bands requested", ErrBadRequest)
	}
	if req.Output != OutputRadiance && req.Output != OutputReflectance {
		return fmt.Errorf("%w: output kind %q", ErrBadRequest, req.Output)
	}
	if req.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrBadRequest, req.Workers)
	}
	if req.Output == OutputReflectance {
		// Shared across all bands, so a horizon sun aborts the whole run
		// before any band is opened.
		if req.Geometry.SolarZenithDeg >= 90 || req.Geometry.CosZenith() <= 0 {
			return fmt.Errorf("%w: %v", ErrBadRequest,
				fmt.Errorf("%w: sun at or below horizon (zenith %v°)",
					radiometry.ErrInvalidGeometry, req.Geometry.SolarZenithDeg))
		}
	}
	return nil
}

func convertBand(req Request, band calibration.Band, src BandSource, sink BandSink) BandResult {
	res := BandResult{Band: band}

	fail := func(err error) BandResult {
		res.Err = &BandError{Band: band, Err: err}
		return res
	}

	entry, err := req.Table.Lookup(band)
	if err != nil {
		return fail(err)
	}

	radConv, err := radiometry.NewRadianceConverter(entry, req.NoData)
	if err != nil {
		return fail(err)
	}

	var reflConv *radiometry.ReflectanceConverter
	if req.Output == OutputReflectance {
		reflConv, err = radiometry.NewReflectanceConverter(entry, req.Geometry, req.NoData)
		if err != nil {
			return fail(err)
		}
	}

	in, err := src.Open(band)
	if err != nil {
		return fail(err)
	}
	if err := in.Validate(); err != nil {
		return fail(err)
	}

	window := in.FullWindow()
	if !req.Domain.full {
		window = req.Domain.window
		if err := in.CheckWindow(window); err != nil {
			return fail(err)
		}
	}
	res.Window = window

	out := raster.NewBandGrid(window.Cols, window.Rows, req.NoData)
	out.Proj4 = in.Proj4
	if len(in.Geotransform) == 6 {
		gt := in.Geotransform
		out.Geotransform = []float64{
			gt[0] + float64(window.Col0)*gt[1], gt[1], gt[2],
			gt[3] + float64(window.Row0)*gt[5], gt[4], gt[5],
		}
	}

	if err := convertRows(in, out, window, radConv, reflConv, workerCount(req.Workers)); err != nil {
		return fail(err)
	}

	res.Stats = bandstats.Compute(out.Pix, req.NoData)

	if err := sink.Write(band, req.Output, out); err != nil {
		return fail(err)
	}
	return res
}

// convertRows fans the window's rows out over a bounded worker pool. Workers
// write disjoint rows of the preallocated output, so results are identical
// for any worker count. Row errors are collected positionally and the first
// one (in row order) is reported.
func convertRows(in, out *raster.BandGrid, w raster.Window,
	radConv *radiometry.RadianceConverter, reflConv *radiometry.ReflectanceConverter,
	workers int) error {

	rowErrs := make([]error, w.Rows)
	rows := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rows {
				rowErrs[r] = convertRow(in, out, w, r, radConv, reflConv)
			}
		}()
	}

	for r := 0; r < w.Rows; r++ {
		rows <- r
	}
	close(rows)
	wg.Wait()

	for r, err := range rowErrs {
		if err != nil {
			return fmt.Errorf("row %d: %w", w.Row0+r, err)
		}
	}
	return nil
}

func convertRow(in, out *raster.BandGrid, w raster.Window, r int,
	radConv *radiometry.RadianceConverter, reflConv *radiometry.ReflectanceConverter) error {

	for c := 0; c < w.Cols; c++ {
		dn := in.At(w.Col0+c, w.Row0+r)

		v, err := radConv.Convert(dn)
		if err != nil {
			return fmt.Errorf("col %d: %w", w.Col0+c, err)
		}
		if reflConv != nil {
			v = reflConv.Convert(v)
		}
		out.Set(c, r, v)
	}
	return nil
}

func workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.NumCPU()
}
