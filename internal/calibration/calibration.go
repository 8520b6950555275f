// Package calibration holds the sensor calibration table used to convert
// IKONOS digital numbers to at-sensor spectral radiance.
//
// Constants are taken from "IKONOS Planetary Reflectance and Mean Solar
// Exoatmospheric Irradiance" (Martin Taylor, GeoEye). The sensor's TDI
// settings changed on 2001-02-22, so every band carries two calibration
// coefficients; a Table is built for one era and is immutable afterwards.
package calibration

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Band identifies one IKONOS spectral band.
type Band string

// The five IKONOS bands. Pan is the TDI-13 panchromatic band.
const (
	Pan   Band = "Pan"
	Blue  Band = "Blue"
	Green Band = "Green"
	Red   Band = "Red"
	NIR   Band = "NIR"
)

// Bands lists the supported bands in sensor order.
var Bands = []Band{Pan, Blue, Green, Red, NIR}

// ErrUnknownBand indicates a band id absent from the calibration table.
var ErrUnknownBand = errors.New("unknown band")

// TDIChangeDate is the date the sensor's TDI settings changed; imagery
// acquired on or after this date uses the post-change coefficients.
var TDIChangeDate = time.Date(2001, time.February, 22, 0, 0, 0, 0, time.UTC)

// Entry is the immutable calibration record for one band.
type Entry struct {
	Band Band

	// CalCoef is the radiometric calibration coefficient in DN/(mW/cm²·sr).
	CalCoef float64

	// BandwidthNm is the effective bandwidth of the band in nanometres.
	BandwidthNm float64

	// Esun is the mean solar exoatmospheric irradiance in W/m²/µm.
	Esun float64
}

// bandConstants carries both coefficient eras for one band.
type bandConstants struct {
	calCoefPre  float64
	calCoefPost float64
	bandwidthNm float64
	esun        float64
}

var ikonosConstants = map[Band]bandConstants{
	Pan:   {161, 161, 403.0, 1375.8},
	Blue:  {633, 728, 71.3, 1930.9},
	Green: {649, 727, 88.6, 1854.8},
	Red:   {840, 949, 65.8, 1556.5},
	NIR:   {746, 843, 95.4, 1156.9},
}

// Table is a fixed band-to-calibration mapping, constructed once and shared
// read-only for the life of a run.
type Table struct {
	entries map[Band]Entry
}

// NewTable builds a table from explicit entries, for alternate sensors or
// config-supplied constants. Entries are copied; later Band duplicates win.
func NewTable(entries []Entry) Table {
	m := make(map[Band]Entry, len(entries))
	for _, e := range entries {
		m[e.Band] = e
	}
	return Table{entries: m}
}

// PreTDIChangeTable returns the IKONOS table for imagery acquired before
// 2001-02-22.
func PreTDIChangeTable() Table {
	return ikonosTable(false)
}

// PostTDIChangeTable returns the IKONOS table for imagery acquired on or
// after 2001-02-22.
func PostTDIChangeTable() Table {
	return ikonosTable(true)
}

// TableForDate selects the coefficient era from the acquisition date. A zero
// time (geometry built from an explicit day-of-year, so no full date known)
// selects the post-change table, which covers all current imagery.
func TableForDate(acquired time.Time) Table {
	if !acquired.IsZero() && acquired.Before(TDIChangeDate) {
		return PreTDIChangeTable()
	}
	return PostTDIChangeTable()
}

func ikonosTable(post bool) Table {
	m := make(map[Band]Entry, len(ikonosConstants))
	for band, c := range ikonosConstants {
		coef := c.calCoefPre
		if post {
			coef = c.calCoefPost
		}
		m[band] = Entry{Band: band, CalCoef: coef, BandwidthNm: c.bandwidthNm, Esun: c.esun}
	}
	return Table{entries: m}
}

// Lookup returns the calibration entry for a band, or ErrUnknownBand.
func (t Table) Lookup(band Band) (Entry, error) {
	e, ok := t.entries[band]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownBand, band, supportedList(t))
	}
	return e, nil
}

// Has reports whether the table carries an entry for band.
func (t Table) Has(band Band) bool {
	_, ok := t.entries[band]
	return ok
}

// Len returns the number of bands in the table.
func (t Table) Len() int {
	return len(t.entries)
}

func supportedList(t Table) string {
	names := make([]string, 0, len(t.entries))
	for band := range t.entries {
		names = append(names, string(band))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ParseBand maps a case-insensitive band name to its Band id.
func ParseBand(s string) (Band, error) {
	for _, band := range Bands {
		if strings.EqualFold(s, string(band)) {
			return band, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBand, s)
}

// ParseBandList parses a comma-separated band list such as "Blue,Green,Red".
func ParseBandList(s string) ([]Band, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Band, 0, len(parts))
	for _, p := range parts {
		band, err := ParseBand(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, band)
	}
	return out, nil
}
