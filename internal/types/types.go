package types

import (
	"fmt"
	"strings"
	"time"
)

// Vec3 is a Cartesian position in kilometers.
type Vec3 struct {
	X, Y, Z float64
}

// EphemerisSample is one satellite position in the GEI frame.
type EphemerisSample struct {
	Time time.Time `json:"time"`
	GEI  Vec3      `json:"gei_km"`
}

// Geodetic holds latitude/longitude in degrees and altitude in kilometers.
type Geodetic struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt_km"`
}

// OptFloat is a coordinate component that may be undefined.
type OptFloat struct {
	Value float64
	Valid bool
}

// Some wraps a defined value.
func Some(v float64) OptFloat { return OptFloat{Value: v, Valid: true} }

// None is the undefined marker.
func None() OptFloat { return OptFloat{} }

func (o OptFloat) String() string {
	if !o.Valid {
		return "NaN"
	}
	return fmt.Sprintf("%g", o.Value)
}

// FootprintSample is the traced footprint for one ephemeris sample.
// Components are undefined when the field-line trace failed.
type FootprintSample struct {
	Time time.Time
	Lat  OptFloat
	Lon  OptFloat
	Alt  OptFloat
}

// Defined reports whether every component of the footprint is known.
func (f FootprintSample) Defined() bool {
	return f.Lat.Valid && f.Lon.Valid && f.Alt.Valid
}

// Position returns the footprint as a Geodetic. ok is false when undefined.
func (f FootprintSample) Position() (Geodetic, bool) {
	if !f.Defined() {
		return Geodetic{}, false
	}
	return Geodetic{Lat: f.Lat.Value, Lon: f.Lon.Value, Alt: f.Alt.Value}, true
}

// Hemisphere selects the direction a field line is traced, using the
// IRBEM flag values.
type Hemisphere int

const (
	HemisphereSame     Hemisphere = 0
	HemisphereNorth    Hemisphere = 1
	HemisphereSouth    Hemisphere = -1
	HemisphereOpposite Hemisphere = 2
)

func (h Hemisphere) String() string {
	switch h {
	case HemisphereSame:
		return "same"
	case HemisphereNorth:
		return "north"
	case HemisphereSouth:
		return "south"
	case HemisphereOpposite:
		return "opposite"
	default:
		return "unknown"
	}
}

// ParseHemisphere accepts the names returned by String and the IRBEM integers.
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "same", "0":
		return HemisphereSame, nil
	case "north", "1", "+1":
		return HemisphereNorth, nil
	case "south", "-1":
		return HemisphereSouth, nil
	case "opposite", "2", "+2":
		return HemisphereOpposite, nil
	default:
		return 0, fmt.Errorf("unknown hemisphere %q (use same, north, south or opposite)", s)
	}
}

// FieldOfView describes where an imager can see at the mapping altitude.
// A sample is in view when its elevation seen from the site is at least
// MinElevation degrees and its time falls in [ValidFrom, ValidTo].
// Zero ValidFrom/ValidTo leave that side unbounded.
type FieldOfView struct {
	Imager       string    `json:"imager"`
	Array        string    `json:"array"`
	Site         Geodetic  `json:"site"`
	MinElevation float64   `json:"min_elevation_deg"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

// Covers reports whether t falls inside the descriptor's valid time span.
func (f FieldOfView) Covers(t time.Time) bool {
	if !f.ValidFrom.IsZero() && t.Before(f.ValidFrom) {
		return false
	}
	if !f.ValidTo.IsZero() && t.After(f.ValidTo) {
		return false
	}
	return true
}

// Interval is one conjunction between a satellite footprint and an imager.
type Interval struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Satellite string    `json:"satellite"`
	Imager    string    `json:"asi"`
	EPDData   bool      `json:"epd_data"`
	ASIData   bool      `json:"asi_data"`
}

// Complete reports whether both data-availability flags are set.
func (iv Interval) Complete() bool {
	return iv.EPDData && iv.ASIData
}

// Key identifies a row for de-duplication.
func (iv Interval) Key() string {
	return strings.Join([]string{
		strings.ToLower(iv.Satellite),
		strings.ToLower(iv.Imager),
		iv.Start.UTC().Format(time.RFC3339Nano),
		iv.End.UTC().Format(time.RFC3339Nano),
	}, "|")
}
