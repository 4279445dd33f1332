// Package imager knows where the all-sky imagers are and which frame files
// they recorded.
package imager

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

// Location is one row of the imager location catalog.
type Location struct {
	Code      string
	Array     string
	Site      types.Geodetic
	ValidFrom time.Time
	ValidTo   time.Time
}

// LoadLocations reads a catalog with the header
// location_code,array,latitude,longitude,altitude_m[,valid_from,valid_to].
// Codes and arrays are stored upper case.
func LoadLocations(path string) ([]Location, error) {
	const op = "load imager locations"
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.Missingf(op, path, "no location catalog")
	}
	if err != nil {
		return nil, errs.Unavailable(op, path, err)
	}
	defer f.Close()

	locs, err := parseLocations(f)
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}
	return locs, nil
}

func parseLocations(r io.Reader) ([]Location, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"location_code", "array", "latitude", "longitude", "altitude_m"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Location
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		loc := Location{
			Code:  strings.ToUpper(field(rec, "location_code")),
			Array: strings.ToUpper(field(rec, "array")),
		}
		if loc.Code == "" {
			return nil, fmt.Errorf("line %d: empty location_code", line)
		}
		var alt float64
		for name, dst := range map[string]*float64{"latitude": &loc.Site.Lat, "longitude": &loc.Site.Lon, "altitude_m": &alt} {
			v, err := strconv.ParseFloat(field(rec, name), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			*dst = v
		}
		loc.Site.Alt = alt / 1000
		for name, dst := range map[string]*time.Time{"valid_from": &loc.ValidFrom, "valid_to": &loc.ValidTo} {
			if s := field(rec, name); s != "" {
				t, err := types.ParseTime(s)
				if err != nil {
					return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
				}
				*dst = t
			}
		}
		out = append(out, loc)
	}
	return out, nil
}

// Catalog turns locations into field-of-view descriptors.
type Catalog struct {
	locations    []Location
	minElevation float64
}

func NewCatalog(locations []Location, minElevationDeg float64) *Catalog {
	return &Catalog{locations: locations, minElevation: minElevationDeg}
}

// Filter returns the locations matching array and code. Empty arguments
// match everything; comparison ignores case.
func (c *Catalog) Filter(array, code string) []Location {
	var out []Location
	for _, l := range c.locations {
		if array != "" && !strings.EqualFold(l.Array, array) {
			continue
		}
		if code != "" && !strings.EqualFold(l.Code, code) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// FieldOfView returns the descriptor for code on day. An unknown code, or
// an imager not operating at any time that day, is Missing.
func (c *Catalog) FieldOfView(code string, day time.Time) (types.FieldOfView, error) {
	const op = "imager field of view"
	locs := c.Filter("", code)
	if len(locs) == 0 {
		return types.FieldOfView{}, errs.Missingf(op, code, "unknown imager")
	}
	start := types.Day(day)
	end := start.Add(24 * time.Hour)
	for _, l := range locs {
		if !l.ValidTo.IsZero() && l.ValidTo.Before(start) {
			continue
		}
		if !l.ValidFrom.IsZero() && !l.ValidFrom.Before(end) {
			continue
		}
		return types.FieldOfView{
			Imager:       strings.ToLower(l.Code),
			Array:        strings.ToLower(l.Array),
			Site:         l.Site,
			MinElevation: c.minElevation,
			ValidFrom:    l.ValidFrom,
			ValidTo:      l.ValidTo,
		}, nil
	}
	return types.FieldOfView{}, errs.Missingf(op, code, "not operating on %s", start.Format("2006-01-02"))
}
