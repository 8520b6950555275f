package radiometry

import (
	"errors"
	"math"
	"testing"

	"github.com/NikosAlexandris/ikonos-toar/internal/calibration"
	"github.com/NikosAlexandris/ikonos-toar/internal/solar"
)

func TestReflectanceReferenceScenario(t *testing.T) {
	// dn=100 with calCoef=60, bandwidth=100 gives L=166.666...; at d=1 AU and
	// 30° zenith against esun=1375.8 the reflectance is ~0.4396.
	radiance, err := Radiance(100, refCal)
	if err != nil {
		t.Fatalf("Radiance: %v", err)
	}

	got, err := Reflectance(radiance, 1375.8, 1.0, 30.0)
	if err != nil {
		t.Fatalf("Reflectance: %v", err)
	}
	if math.Abs(got-0.4396) > 0.0005 {
		t.Errorf("Reflectance = %v, want ~0.4396", got)
	}
}

func TestReflectanceErrors(t *testing.T) {
	tests := []struct {
		name     string
		esun     float64
		distance float64
		zenith   float64
	}{
		{"zero esun", 0, 1.0, 30},
		{"negative esun", -100, 1.0, 30},
		{"sun at horizon", 1375.8, 1.0, 90},
		{"sun below horizon", 1375.8, 1.0, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reflectance(166.6, tt.esun, tt.distance, tt.zenith)
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("Reflectance error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestReflectanceNotClamped(t *testing.T) {
	// High radiance at low sun can push reflectance past 1; the model must
	// report it rather than clamp.
	got, err := Reflectance(600, 1156.9, 1.017, 75)
	if err != nil {
		t.Fatalf("Reflectance: %v", err)
	}
	if got <= 1 {
		t.Errorf("Reflectance = %v, expected a value above 1 for this input", got)
	}
}

func TestReflectanceConverter(t *testing.T) {
	geom, err := solar.NewGeometryFromDOY(166, 60) // zenith 30°
	if err != nil {
		t.Fatalf("NewGeometryFromDOY: %v", err)
	}

	c, err := NewReflectanceConverter(refCal, geom, -9999)
	if err != nil {
		t.Fatalf("NewReflectanceConverter: %v", err)
	}

	radiance := 166.6666666666667
	want, err := Reflectance(radiance, refCal.Esun, geom.EarthSunAU, geom.SolarZenithDeg)
	if err != nil {
		t.Fatalf("Reflectance: %v", err)
	}
	got := c.Convert(radiance)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Convert(%v) = %v, want %v", radiance, got, want)
	}

	// Sentinel passes through the reflectance stage too.
	if got := c.Convert(-9999); got != -9999 {
		t.Errorf("Convert(noData) = %v, want -9999", got)
	}
}

func TestNewReflectanceConverterRejectsHorizonSun(t *testing.T) {
	// Sun elevation 0 is a valid acquisition geometry but an invalid
	// reflectance geometry: cos(90°) = 0.
	geom, err := solar.NewGeometryFromDOY(166, 0)
	if err != nil {
		t.Fatalf("NewGeometryFromDOY: %v", err)
	}
	if _, err := NewReflectanceConverter(refCal, geom, -9999); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("NewReflectanceConverter error = %v, want ErrInvalidGeometry", err)
	}
}

func TestNewReflectanceConverterRejectsBadEsun(t *testing.T) {
	geom, err := solar.NewGeometryFromDOY(166, 60)
	if err != nil {
		t.Fatalf("NewGeometryFromDOY: %v", err)
	}
	cal := calibration.Entry{Band: "X", CalCoef: 60, BandwidthNm: 100, Esun: 0}
	if _, err := NewReflectanceConverter(cal, geom, -9999); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("NewReflectanceConverter error = %v, want ErrInvalidGeometry", err)
	}
}
