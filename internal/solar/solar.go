// Package solar derives the acquisition geometry needed for top-of-atmosphere
// conversion: day-of-year, solar zenith angle and Earth–Sun distance.
package solar

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidTimestamp indicates a malformed or out-of-range acquisition date.
	ErrInvalidTimestamp = errors.New("invalid acquisition timestamp")

	// ErrInvalidAngle indicates a sun elevation outside [0, 90] degrees.
	ErrInvalidAngle = errors.New("sun elevation out of range [0, 90]")
)

// timestampLayouts are the accepted acquisition date formats, tried in order.
// IKONOS metadata files carry "2004-06-14 09:51:00" style timestamps; the
// ISO-8601 T separator and a bare date are accepted as well.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a UTC acquisition timestamp.
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}

// DayOfYear parses a UTC acquisition timestamp and returns its ordinal day
// within the year (1..366, leap-year aware).
func DayOfYear(ts string) (int, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return 0, err
	}
	return t.YearDay(), nil
}

// EarthSunDistance returns the Earth–Sun distance in astronomical units for a
// day of year, using the orbital approximation
//
//	d = 1 − 0.01672·cos(0.9856°·(doy − 4))
//
// (Duffie & Beckman eccentricity series, as tabulated in the Landsat handbook
// distance table). The cosine argument advances 360° per 365.25 days, so the
// value is continuous across the year boundary. Output range is roughly
// [0.983, 1.017] AU with perihelion near day 4.
func EarthSunDistance(doy int) float64 {
	const (
		eccentricity = 0.01672
		degPerDay    = 360.0 / 365.25
		perihelion   = 4.0
	)
	arg := degPerDay * (float64(doy) - perihelion) * math.Pi / 180.0
	return 1.0 - eccentricity*math.Cos(arg)
}

// SolarZenith converts a mean sun elevation angle to the solar zenith angle
// (90 − elevation). Elevations of exactly 0 and 90 degrees are accepted.
func SolarZenith(sunElevationDeg float64) (float64, error) {
	if math.IsNaN(sunElevationDeg) || sunElevationDeg < 0 || sunElevationDeg > 90 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAngle, sunElevationDeg)
	}
	return 90.0 - sunElevationDeg, nil
}

// Geometry is the immutable per-acquisition solar context shared by every band
// and pixel of a run. Construct it once via NewGeometry or NewGeometryFromDOY;
// all derived quantities are computed at construction.
type Geometry struct {
	DayOfYear       int
	SunElevationDeg float64
	SolarZenithDeg  float64
	EarthSunAU      float64

	// AcquiredAt is the parsed acquisition time, zero when the geometry was
	// built from an explicit day-of-year.
	AcquiredAt time.Time
}

// NewGeometry derives the full acquisition geometry from a UTC timestamp and a
// mean sun elevation angle in degrees.
func NewGeometry(timestamp string, sunElevationDeg float64) (Geometry, error) {
	t, err := ParseTimestamp(timestamp)
	if err != nil {
		return Geometry{}, err
	}
	g, err := NewGeometryFromDOY(t.YearDay(), sunElevationDeg)
	if err != nil {
		return Geometry{}, err
	}
	g.AcquiredAt = t
	return g, nil
}

// NewGeometryFromDOY derives the acquisition geometry from an explicit day of
// year, bypassing timestamp parsing. Downstream behaviour is identical to the
// timestamp path.
func NewGeometryFromDOY(doy int, sunElevationDeg float64) (Geometry, error) {
	if doy < 1 || doy > 366 {
		return Geometry{}, fmt.Errorf("%w: day of year %d out of range [1, 366]", ErrInvalidTimestamp, doy)
	}
	zenith, err := SolarZenith(sunElevationDeg)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		DayOfYear:       doy,
		SunElevationDeg: sunElevationDeg,
		SolarZenithDeg:  zenith,
		EarthSunAU:      EarthSunDistance(doy),
	}, nil
}

// CosZenith returns cos(solar zenith angle).
func (g Geometry) CosZenith() float64 {
	return math.Cos(g.SolarZenithDeg * math.Pi / 180.0)
}
