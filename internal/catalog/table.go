// Package catalog persists conjunction intervals as CSV tables: one table
// per (satellite, imager) appended day by day, and per-satellite merged and
// filtered catalogs rewritten in full.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

var (
	// Header is the per-imager table schema.
	Header = []string{"start", "end", "epd_data", "asi_data"}
	// MergedHeader adds the imager id taken from the source file name.
	MergedHeader = []string{"start", "end", "epd_data", "asi_data", "asi"}
)

// TableName is the per-imager file name
// <mission>_<sc>_<array>_<imager>_conjunctions.csv.
func TableName(mission, sat, array, imager string) string {
	return strings.ToLower(strings.Join([]string{mission, sat, array, imager, "conjunctions.csv"}, "_"))
}

// MergedName is the per-satellite merged catalog name.
func MergedName(mission, sat, array string) string {
	return TableName(mission, sat, array, "asi")
}

// FilteredName is the per-satellite catalog of complete rows.
func FilteredName(mission, sat, array string) string {
	return strings.TrimSuffix(MergedName(mission, sat, array), ".csv") + "_filtered.csv"
}

// ImagerFromFilename returns the imager token (the fourth '_' separated
// field) of a per-imager table name.
func ImagerFromFilename(name string) (string, error) {
	parts := strings.Split(filepath.Base(name), "_")
	if len(parts) < 5 || parts[3] == "" {
		return "", fmt.Errorf("no imager token in %q", name)
	}
	return strings.ToLower(parts[3]), nil
}

// Writer writes interval rows as CSV, emitting the header at most once.
type Writer struct {
	mu        sync.Mutex
	csv       *csv.Writer
	header    []string
	hasHeader bool
}

// NewWriter writes header before the first row unless hasHeader is set.
func NewWriter(w io.Writer, header []string, hasHeader bool) *Writer {
	return &Writer{csv: csv.NewWriter(w), header: header, hasHeader: hasHeader}
}

func (w *Writer) Write(rows []types.Interval) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hasHeader {
		if err := w.csv.Write(w.header); err != nil {
			return err
		}
		w.hasHeader = true
	}
	withImager := len(w.header) > len(Header)
	for _, r := range rows {
		rec := []string{
			types.FormatTime(r.Start),
			types.FormatTime(r.End),
			formatBool(r.EPDData),
			formatBool(r.ASIData),
		}
		if withImager {
			rec = append(rec, r.Imager)
		}
		if err := w.csv.Write(rec); err != nil {
			return err
		}
	}
	return w.csv.Error()
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	return w.csv.Error()
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Append adds rows to the table at path, writing the header only when the
// file is new or empty. Rows are flushed and synced before returning.
func Append(path string, rows []types.Interval) error {
	const op = "append conjunction table"
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	w := NewWriter(f, Header, fi.Size() > 0)
	if err := w.Write(rows); err != nil {
		f.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := f.Close(); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	return nil
}

// ReadTable loads a per-imager or merged table. An asi column, when
// present, fills Imager.
func ReadTable(path string) ([]types.Interval, error) {
	const op = "read conjunction table"
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errs.Missingf(op, path, "no table")
	}
	if err != nil {
		return nil, errs.Unavailable(op, path, err)
	}
	defer f.Close()

	rows, err := parseTable(f)
	if err != nil {
		return nil, errs.Malformed(op, path, err)
	}
	return rows, nil
}

func parseTable(r io.Reader) ([]types.Interval, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range Header {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	asi, hasASI := col["asi"]

	var out []types.Interval
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < len(header) {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(rec), len(header))
		}
		var iv types.Interval
		if iv.Start, err = types.ParseTime(rec[col["start"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if iv.End, err = types.ParseTime(rec[col["end"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if iv.EPDData, err = strconv.ParseBool(strings.TrimSpace(rec[col["epd_data"]])); err != nil {
			return nil, fmt.Errorf("line %d: epd_data: %w", line, err)
		}
		if iv.ASIData, err = strconv.ParseBool(strings.TrimSpace(rec[col["asi_data"]])); err != nil {
			return nil, fmt.Errorf("line %d: asi_data: %w", line, err)
		}
		if hasASI {
			iv.Imager = strings.ToLower(strings.TrimSpace(rec[asi]))
		}
		out = append(out, iv)
	}
}

// WriteTable replaces the file at path with rows, via a temporary file
// renamed into place.
func WriteTable(path string, header []string, rows []types.Interval) error {
	const op = "write conjunction table"
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	defer os.Remove(tmp.Name())

	w := NewWriter(tmp, header, false)
	if err := w.Write(rows); err != nil {
		tmp.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.E(errs.KindFatal, op, path, err)
	}
	return nil
}
