// Package archive loads per-day mission archives (state ephemeris and EPD
// particle flux) from the local data directory.
//
// Layout, relative to the data directory, for spacecraft "a":
//
//	ela/l1/state/defn/.../ela_l1_state_defn_20200101_v01.csv   time,x_gei,y_gei,z_gei (km)
//	ela/l1/epd/fast/electron/.../ela_l1_epdef_20200101_v01.csv time,<channel>...
//
// Files are searched recursively below the instrument directory. Exactly one
// match is required; anything else is reported as missing.
package archive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

// Loader resolves a (satellite, day) pair to archive contents.
type Loader interface {
	Ephemeris(ctx context.Context, sat string, day time.Time) ([]types.EphemerisSample, error)
	EPD(ctx context.Context, sat string, day time.Time) (*Flux, error)
}

// Flux is an EPD measurement table aligned with Times.
type Flux struct {
	Times    []time.Time
	Channels []string
	Values   [][]float64
}

// Archive reads CSV archives below Root.
type Archive struct {
	Root    string
	Version string
}

func New(root string) *Archive {
	return &Archive{Root: root, Version: "v01"}
}

func prefix(sat string) string {
	return "el" + strings.ToLower(sat)
}

// StateFile returns the directory searched and the file name expected for
// the state (ephemeris) archive.
func (a *Archive) StateFile(sat string, day time.Time) (string, string) {
	p := prefix(sat)
	dir := filepath.Join(a.Root, p, "l1", "state", "defn")
	name := fmt.Sprintf("%s_l1_state_defn_%s_%s.csv", p, day.Format("20060102"), a.Version)
	return dir, name
}

// EPDFile is StateFile for the electron EPD archive.
func (a *Archive) EPDFile(sat string, day time.Time) (string, string) {
	p := prefix(sat)
	dir := filepath.Join(a.Root, p, "l1", "epd", "fast", "electron")
	name := fmt.Sprintf("%s_l1_epdef_%s_%s.csv", p, day.Format("20060102"), a.Version)
	return dir, name
}

// find walks dir for files named name.
func find(ctx context.Context, op, kind, dir, name string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		if ctx.Err() != nil {
			return "", err
		}
		return "", errs.Unavailable(op, dir, err)
	}
	if len(matches) != 1 {
		return "", errs.Missingf(op, dir, "%d %s files found (and subdirectories) that match: %s", len(matches), kind, name)
	}
	return matches[0], nil
}

// FindEPD locates the EPD archive without reading it.
func (a *Archive) FindEPD(ctx context.Context, sat string, day time.Time) (string, error) {
	dir, name := a.EPDFile(sat, day)
	return find(ctx, "find epd", "EPD", dir, name)
}

// Ephemeris loads the state archive. Timestamps must be strictly increasing.
func (a *Archive) Ephemeris(ctx context.Context, sat string, day time.Time) ([]types.EphemerisSample, error) {
	const op = "load state"
	dir, name := a.StateFile(sat, day)
	path, err := find(ctx, op, "state", dir, name)
	if err != nil {
		return nil, err
	}

	header, rows, err := readCSV(path)
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}
	cols, err := columns(header, "time", "x_gei", "y_gei", "z_gei")
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}

	out := make([]types.EphemerisSample, 0, len(rows))
	for i, row := range rows {
		ts, err := types.ParseTime(row[cols[0]])
		if err != nil {
			return nil, errs.Malformed(op, path, fmt.Errorf("row %d: %w", i+2, err))
		}
		var v [3]float64
		for k := 0; k < 3; k++ {
			if v[k], err = strconv.ParseFloat(strings.TrimSpace(row[cols[k+1]]), 64); err != nil {
				return nil, errs.Malformed(op, path, fmt.Errorf("row %d: %w", i+2, err))
			}
		}
		if n := len(out); n > 0 && !ts.After(out[n-1].Time) {
			return nil, errs.Malformed(op, path, fmt.Errorf("row %d: timestamp %s not after previous", i+2, row[cols[0]]))
		}
		out = append(out, types.EphemerisSample{Time: ts, GEI: types.Vec3{X: v[0], Y: v[1], Z: v[2]}})
	}
	if len(out) == 0 {
		return nil, errs.Malformed(op, path, errors.New("no samples"))
	}
	return out, nil
}

// EPD loads the electron flux archive.
func (a *Archive) EPD(ctx context.Context, sat string, day time.Time) (*Flux, error) {
	const op = "load epd"
	path, err := a.FindEPD(ctx, sat, day)
	if err != nil {
		return nil, err
	}

	header, rows, err := readCSV(path)
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}
	cols, err := columns(header, "time")
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}
	ti := cols[0]

	f := &Flux{}
	for i, h := range header {
		if i != ti {
			f.Channels = append(f.Channels, h)
		}
	}
	for i, row := range rows {
		ts, err := types.ParseTime(row[ti])
		if err != nil {
			return nil, errs.Malformed(op, path, fmt.Errorf("row %d: %w", i+2, err))
		}
		vals := make([]float64, 0, len(f.Channels))
		for j, cell := range row {
			if j == ti {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errs.Malformed(op, path, fmt.Errorf("row %d: %w", i+2, err))
			}
			vals = append(vals, v)
		}
		f.Times = append(f.Times, ts)
		f.Values = append(f.Values, vals)
	}
	return f, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.Comment = '#'
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func columns(header []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = -1
		for j, h := range header {
			if h == n {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("required variable %q absent", n)
		}
	}
	return idx, nil
}
