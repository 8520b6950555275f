package radiometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
)

// ErrInvalidGeometry indicates a non-positive ESUN or a sun at or below the
// horizon (cos of the solar zenith angle ≤ 0).
var ErrInvalidGeometry = errors.New("invalid solar geometry")

// Reflectance converts at-sensor spectral radiance to unitless planetary
// reflectance:
//
//	ρ = π · L · d² / (ESUN · cos(θz))
//
// Values slightly outside [0, 1] are legitimate and are not clamped.
func Reflectance(radiance, esun, distanceAU, solarZenithDeg float64) (float64, error) {
	if esun <= 0 {
		return 0, fmt.Errorf("%w: esun=%v", ErrInvalidGeometry, esun)
	}
	cosZenith := math.Cos(solarZenithDeg * math.Pi / 180.0)
	// math.Cos(90°) is ~6e-17 rather than exactly zero, so a sun at the
	// horizon must be rejected on the angle, not just the cosine sign.
	if solarZenithDeg >= 90 || cosZenith <= 0 {
		return 0, fmt.Errorf("%w: sun at or below horizon (zenith %v°)", ErrInvalidGeometry, solarZenithDeg)
	}
	return math.Pi * radiance * distanceAU * distanceAU / (esun * cosZenith), nil
}

// ReflectanceConverter binds a band's ESUN and the acquisition geometry, with
// the π·d²/(ESUN·cosθz) factor precomputed so per-pixel work is one multiply.
type ReflectanceConverter struct {
	factor float64
	noData float64
}

// NewReflectanceConverter validates geometry and ESUN up front.
func NewReflectanceConverter(cal calibration.Entry, geom solar.Geometry, noData float64) (*ReflectanceConverter, error) {
	if cal.Esun <= 0 {
		return nil, fmt.Errorf("%w: band %s esun=%v", ErrInvalidGeometry, cal.Band, cal.Esun)
	}
	cosZenith := geom.CosZenith()
	if geom.SolarZenithDeg >= 90 || cosZenith <= 0 {
		return nil, fmt.Errorf("%w: sun at or below horizon (zenith %v°)", ErrInvalidGeometry, geom.SolarZenithDeg)
	}
	d := geom.EarthSunAU
	return &ReflectanceConverter{
		factor: math.Pi * d * d / (cal.Esun * cosZenith),
		noData: noData,
	}, nil
}

// Convert transforms one radiance value to planetary reflectance, passing the
// no-data sentinel through untouched.
func (c *ReflectanceConverter) Convert(radiance float64) float64 {
	if isNoData(radiance, c.noData) {
		return c.noData
	}
	return radiance * c.factor
}
