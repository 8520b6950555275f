// Package radiometry implements the per-pixel DN → spectral radiance and
// radiance → planetary reflectance conversions.
package radiometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
)

var (
	// ErrInvalidCalibration indicates a non-positive calibration coefficient
	// or bandwidth.
	ErrInvalidCalibration = errors.New("invalid calibration entry")

	// ErrInvalidSample indicates a DN that is negative or not finite and is
	// not the designated no-data value.
	ErrInvalidSample = errors.New("invalid DN sample")
)

// radianceScale reconciles the calibration coefficient's native unit,
// DN/(mW/cm²·sr), with the target spectral radiance unit W/m²/sr/µm. It is
// exact and must not be approximated.
const radianceScale = 1e4

// Radiance converts a digital number to at-sensor spectral radiance
// (W/m²/sr/µm):
//
//	L = 10⁴ · DN / CalCoef / Bandwidth
func Radiance(dn float64, cal calibration.Entry) (float64, error) {
	if cal.CalCoef <= 0 || cal.BandwidthNm <= 0 {
		return 0, fmt.Errorf("%w: band %s calCoef=%v bandwidthNm=%v",
			ErrInvalidCalibration, cal.Band, cal.CalCoef, cal.BandwidthNm)
	}
	if dn < 0 || math.IsNaN(dn) || math.IsInf(dn, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSample, dn)
	}
	return radianceScale * dn / cal.CalCoef / cal.BandwidthNm, nil
}

// RadianceConverter binds one band's calibration and a no-data sentinel so
// the per-pixel hot path is a single method call. The sentinel propagates
// unchanged with no arithmetic performed.
type RadianceConverter struct {
	cal    calibration.Entry
	noData float64
}

// NewRadianceConverter validates the calibration entry up front so Convert
// cannot fail on calibration grounds mid-band.
func NewRadianceConverter(cal calibration.Entry, noData float64) (*RadianceConverter, error) {
	if cal.CalCoef <= 0 || cal.BandwidthNm <= 0 {
		return nil, fmt.Errorf("%w: band %s calCoef=%v bandwidthNm=%v",
			ErrInvalidCalibration, cal.Band, cal.CalCoef, cal.BandwidthNm)
	}
	return &RadianceConverter{cal: cal, noData: noData}, nil
}

// Convert transforms one DN to spectral radiance, passing the no-data
// sentinel through untouched.
func (c *RadianceConverter) Convert(dn float64) (float64, error) {
	if isNoData(dn, c.noData) {
		return c.noData, nil
	}
	if dn < 0 || math.IsNaN(dn) || math.IsInf(dn, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSample, dn)
	}
	return radianceScale * dn / c.cal.CalCoef / c.cal.BandwidthNm, nil
}

// NoData returns the converter's no-data sentinel.
func (c *RadianceConverter) NoData() float64 { return c.noData }

// isNoData compares against the sentinel, treating NaN sentinels correctly
// (NaN never compares equal to itself).
func isNoData(v, noData float64) bool {
	if math.IsNaN(noData) {
		return math.IsNaN(v)
	}
	return v == noData
}
