package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gustycube/conjunctions/internal/catalog"
	"github.com/gustycube/conjunctions/internal/types"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatJSONL OutputFormat = "jsonl"
	FormatCSV   OutputFormat = "csv"
)

// Formatter writes a merged catalog.
type Formatter interface {
	FormatStream(rows []types.Interval, w io.Writer) error
}

// row is the exported shape of one catalog entry.
type row struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Satellite string `json:"satellite,omitempty"`
	Imager    string `json:"asi"`
	EPDData   bool   `json:"epd_data"`
	ASIData   bool   `json:"asi_data"`
}

func toRow(iv types.Interval) row {
	return row{
		Start:     types.FormatTime(iv.Start),
		End:       types.FormatTime(iv.End),
		Satellite: iv.Satellite,
		Imager:    iv.Imager,
		EPDData:   iv.EPDData,
		ASIData:   iv.ASIData,
	}
}

type JSONFormatter struct {
	Indent bool
}

func NewJSONFormatter(indent bool) *JSONFormatter {
	return &JSONFormatter{Indent: indent}
}

func (f *JSONFormatter) FormatStream(rows []types.Interval, w io.Writer) error {
	out := make([]row, len(rows))
	for i, iv := range rows {
		out[i] = toRow(iv)
	}
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

// JSONLFormatter writes one object per line.
type JSONLFormatter struct{}

func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

func (f *JSONLFormatter) FormatStream(rows []types.Interval, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, iv := range rows {
		if err := enc.Encode(toRow(iv)); err != nil {
			return err
		}
	}
	return nil
}

// CSVFormatter writes the merged catalog schema.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (f *CSVFormatter) FormatStream(rows []types.Interval, w io.Writer) error {
	cw := catalog.NewWriter(w, catalog.MergedHeader, false)
	if err := cw.Write(rows); err != nil {
		return err
	}
	return cw.Flush()
}

// GetFormatter returns a formatter for the specified format
func GetFormatter(format OutputFormat, options map[string]interface{}) (Formatter, error) {
	switch format {
	case FormatJSON:
		indent := false
		if v, ok := options["indent"].(bool); ok {
			indent = v
		}
		return NewJSONFormatter(indent), nil
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ParseFormat parses a format string
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}
