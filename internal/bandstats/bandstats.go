// Package bandstats summarises converted band output, replacing the raster
// history metadata the processing chain used to attach to each product.
package bandstats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the valid pixels of one converted band.
type Summary struct {
	Pixels int // total pixels in the processed window
	NoData int // pixels carrying the no-data sentinel
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Compute summarises a pixel slice, skipping the no-data sentinel. With no
// valid pixels the numeric fields are NaN.
func Compute(pix []float64, noData float64) Summary {
	s := Summary{Pixels: len(pix)}

	valid := make([]float64, 0, len(pix))
	for _, v := range pix {
		if isNoData(v, noData) {
			s.NoData++
			continue
		}
		valid = append(valid, v)
	}

	if len(valid) == 0 {
		s.Min, s.Max, s.Mean, s.StdDev = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}

	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	return s
}

// Valid returns the number of non-sentinel pixels.
func (s Summary) Valid() int {
	return s.Pixels - s.NoData
}

func isNoData(v, noData float64) bool {
	if math.IsNaN(noData) {
		return math.IsNaN(v)
	}
	return v == noData
}
