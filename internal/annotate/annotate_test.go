package annotate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

type fakeIndex struct {
	files map[string][]string
	err   error
	calls []time.Time
}

func (f *fakeIndex) Files(_ context.Context, code string, hour time.Time) ([]string, error) {
	f.calls = append(f.calls, hour)
	if f.err != nil {
		return nil, f.err
	}
	if files, ok := f.files[code]; ok {
		return files, nil
	}
	return nil, errs.Missingf("index", code, "no frames")
}

var t0 = time.Date(2020, 1, 5, 7, 10, 0, 0, time.UTC)

func TestHasEPD(t *testing.T) {
	start, end := t0, t0.Add(time.Minute)
	tests := []struct {
		name  string
		times []time.Time
		want  bool
	}{
		{"empty", nil, false},
		{"inside", []time.Time{t0.Add(30 * time.Second)}, true},
		{"equal start", []time.Time{start}, false},
		{"equal end", []time.Time{end}, false},
		{"before and after", []time.Time{t0.Add(-time.Second), end.Add(time.Second)}, false},
		{"boundaries then inside", []time.Time{start, t0.Add(time.Second), end}, true},
		{"unordered", []time.Time{end.Add(30 * time.Minute), t0.Add(11 * time.Second), t0.Add(-time.Hour)}, true},
		{"unordered outside", []time.Time{end.Add(time.Hour), t0.Add(-time.Minute), end}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasEPD(tt.times, start, end); got != tt.want {
				t.Errorf("HasEPD = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotate(t *testing.T) {
	idx := &fakeIndex{files: map[string][]string{"gako": {"20200105_0710_gako_themis20_full.pgm.gz"}}}
	a := New(idx)
	iv := types.Interval{Start: t0, End: t0.Add(2 * time.Minute), Satellite: "a", Imager: "gako"}

	got, err := a.Annotate(context.Background(), iv, []time.Time{t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !got.EPDData || !got.ASIData || !got.Complete() {
		t.Errorf("expected both flags set, got %+v", got)
	}
	if len(idx.calls) != 1 || !idx.calls[0].Equal(time.Date(2020, 1, 5, 7, 0, 0, 0, time.UTC)) {
		t.Errorf("expected lookup for the start hour, got %v", idx.calls)
	}
	if iv.EPDData || iv.ASIData {
		t.Error("input interval must not be mutated")
	}

	iv.Imager = "fsmi"
	got, err = a.Annotate(context.Background(), iv, nil)
	if err != nil {
		t.Fatalf("Annotate missing: %v", err)
	}
	if got.EPDData || got.ASIData {
		t.Errorf("expected no flags, got %+v", got)
	}
}

func TestAnnotate_IndexFailure(t *testing.T) {
	down := errs.Unavailable("index", "https://example.org/", errors.New("503"))
	a := New(&fakeIndex{err: down})
	iv := types.Interval{Start: t0, End: t0.Add(time.Minute), Imager: "gako"}

	_, err := a.Annotate(context.Background(), iv, nil)
	if !errs.Is(err, errs.KindUnavailable) {
		t.Errorf("expected unavailable error, got %v", err)
	}
}
