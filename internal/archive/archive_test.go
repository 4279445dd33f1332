package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
)

var day = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEphemeris_OK(t *testing.T) {
	a := New(t.TempDir())
	dir, name := a.StateFile("A", day)
	write(t, filepath.Join(dir, "2020"), name, "time,x_gei,y_gei,z_gei\n"+
		"2020-01-01T00:00:00Z,3400,1000,5800\n"+
		"2020-01-01T00:00:03Z,3410,1010,5790\n")

	eph, err := a.Ephemeris(context.Background(), "A", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eph) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(eph))
	}
	if eph[1].GEI.X != 3410 || !eph[1].Time.Equal(day.Add(3*time.Second)) {
		t.Errorf("unexpected second sample %+v", eph[1])
	}
}

func TestEphemeris_Missing(t *testing.T) {
	a := New(t.TempDir())
	_, err := a.Ephemeris(context.Background(), "b", day)
	if !errs.Is(err, errs.KindMissing) {
		t.Fatalf("expected missing error, got %v", err)
	}
}

func TestEphemeris_Duplicate(t *testing.T) {
	a := New(t.TempDir())
	dir, name := a.StateFile("a", day)
	body := "time,x_gei,y_gei,z_gei\n2020-01-01T00:00:00Z,1,2,3\n"
	write(t, filepath.Join(dir, "x"), name, body)
	write(t, filepath.Join(dir, "y"), name, body)

	_, err := a.Ephemeris(context.Background(), "a", day)
	if !errs.Is(err, errs.KindMissing) {
		t.Fatalf("two matching files should be reported as missing, got %v", err)
	}
}

func TestEphemeris_Malformed(t *testing.T) {
	tests := map[string]string{
		"missing column": "time,x_gei,y_gei\n2020-01-01T00:00:00Z,1,2\n",
		"bad number":     "time,x_gei,y_gei,z_gei\n2020-01-01T00:00:00Z,1,two,3\n",
		"bad time":       "time,x_gei,y_gei,z_gei\nnoon,1,2,3\n",
		"not increasing": "time,x_gei,y_gei,z_gei\n2020-01-01T00:00:03Z,1,2,3\n2020-01-01T00:00:03Z,1,2,3\n",
		"no rows":        "time,x_gei,y_gei,z_gei\n",
		"empty":          "",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			a := New(t.TempDir())
			dir, file := a.StateFile("a", day)
			write(t, dir, file, body)
			_, err := a.Ephemeris(context.Background(), "a", day)
			if !errs.Is(err, errs.KindMalformed) {
				t.Fatalf("expected malformed error, got %v", err)
			}
		})
	}
}

func TestEPD(t *testing.T) {
	a := New(t.TempDir())
	dir, name := a.EPDFile("a", day)
	write(t, dir, name, "time,ch0,ch1\n"+
		"2020-01-01T10:00:00.5Z,1.5,2\n"+
		"2020-01-01T10:00:01.5Z,3,4\n")

	f, err := a.EPD(context.Background(), "a", day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Times) != 2 || len(f.Channels) != 2 || f.Values[0][0] != 1.5 {
		t.Errorf("unexpected flux %+v", f)
	}
}

func TestEPD_Errors(t *testing.T) {
	a := New(t.TempDir())
	if _, err := a.EPD(context.Background(), "a", day); !errs.Is(err, errs.KindMissing) {
		t.Errorf("expected missing error, got %v", err)
	}

	dir, name := a.EPDFile("a", day)
	write(t, dir, name, "epoch,ch0\n2020-01-01T10:00:00Z,1\n")
	if _, err := a.EPD(context.Background(), "a", day); !errs.Is(err, errs.KindMalformed) {
		t.Errorf("expected malformed error for absent time column, got %v", err)
	}
}
