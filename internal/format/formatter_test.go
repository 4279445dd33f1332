package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/types"
)

var rows = []types.Interval{
	{Start: time.Date(2020, 1, 5, 7, 10, 0, 0, time.UTC), End: time.Date(2020, 1, 5, 7, 11, 0, 0, time.UTC), Satellite: "a", Imager: "gako", EPDData: true, ASIData: true},
	{Start: time.Date(2020, 1, 5, 9, 0, 0, 0, time.UTC), End: time.Date(2020, 1, 5, 9, 2, 0, 0, time.UTC), Satellite: "a", Imager: "fsmi", EPDData: true},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSONL", FormatJSONL, false},
		{"ndjson", FormatJSONL, false},
		{"csv", FormatCSV, false},
		{"parquet", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatters(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		f, _ := GetFormatter(FormatJSON, map[string]interface{}{"indent": true})
		var buf bytes.Buffer
		if err := f.FormatStream(rows, &buf); err != nil {
			t.Fatal(err)
		}
		var got []map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0]["asi"] != "gako" || got[1]["asi_data"] != false {
			t.Errorf("unexpected json %s", buf.String())
		}
	})

	t.Run("jsonl", func(t *testing.T) {
		f, _ := GetFormatter(FormatJSONL, nil)
		var buf bytes.Buffer
		if err := f.FormatStream(rows, &buf); err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 || !strings.Contains(lines[1], `"start":"2020-01-05T09:00:00.000000Z"`) {
			t.Errorf("unexpected jsonl %s", buf.String())
		}
	})

	t.Run("csv", func(t *testing.T) {
		f, _ := GetFormatter(FormatCSV, nil)
		var buf bytes.Buffer
		if err := f.FormatStream(rows, &buf); err != nil {
			t.Fatal(err)
		}
		want := "start,end,epd_data,asi_data,asi\n" +
			"2020-01-05T07:10:00.000000Z,2020-01-05T07:11:00.000000Z,True,True,gako\n" +
			"2020-01-05T09:00:00.000000Z,2020-01-05T09:02:00.000000Z,True,False,fsmi\n"
		if buf.String() != want {
			t.Errorf("csv = %q, want %q", buf.String(), want)
		}
	})
}
