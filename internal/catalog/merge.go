package catalog

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

// Table is one per-imager table together with its provenance.
type Table struct {
	Path   string
	Imager string
	Rows   []types.Interval
}

// LoadTables finds every per-imager table of one satellite under dir,
// ordered by file name.
func LoadTables(dir, mission, sat, array string) ([]Table, error) {
	const op = "load conjunction tables"
	prefix := strings.ToLower(strings.Join([]string{mission, sat, array}, "_")) + "_"
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "_conjunctions.csv") {
			return nil
		}
		if name == MergedName(mission, sat, array) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, errs.Unavailable(op, dir, err)
	}
	sort.Slice(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})

	tables := make([]Table, 0, len(paths))
	for _, p := range paths {
		imager, err := ImagerFromFilename(p)
		if err != nil {
			return nil, errs.Malformed(op, p, err)
		}
		rows, err := ReadTable(p)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].Satellite = strings.ToLower(sat)
		}
		tables = append(tables, Table{Path: p, Imager: imager, Rows: rows})
	}
	return tables, nil
}

// Merge concatenates the tables in order, tags each row with its table's
// imager and stable-sorts by start time.
func Merge(tables []Table) []types.Interval {
	var out []types.Interval
	for _, t := range tables {
		for _, r := range t.Rows {
			r.Imager = t.Imager
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// FilterComplete keeps rows with both data flags set.
func FilterComplete(rows []types.Interval) []types.Interval {
	out := make([]types.Interval, 0, len(rows))
	for _, r := range rows {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// Result names the files written by WriteCatalogs.
type Result struct {
	MergedPath   string
	FilteredPath string
	Merged       []types.Interval
	Filtered     []types.Interval
	Tables       int
}

// WriteCatalogs merges the satellite's tables under dir and rewrites the
// merged and filtered catalogs in dir's parent.
func WriteCatalogs(dir, mission, sat, array string) (*Result, error) {
	tables, err := LoadTables(dir, mission, sat, array)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	res := &Result{
		MergedPath:   filepath.Join(parent, MergedName(mission, sat, array)),
		FilteredPath: filepath.Join(parent, FilteredName(mission, sat, array)),
		Tables:       len(tables),
	}
	res.Merged = Merge(tables)
	res.Filtered = FilterComplete(res.Merged)
	if err := WriteTable(res.MergedPath, MergedHeader, res.Merged); err != nil {
		return nil, err
	}
	if err := WriteTable(res.FilteredPath, MergedHeader, res.Filtered); err != nil {
		return nil, err
	}
	return res, nil
}
