package geo

import (
	"math"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

func TestGMST_J2000(t *testing.T) {
	epoch := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	want := 280.46061837 * math.Pi / 180.0
	if got := GMST(epoch); math.Abs(got-want) > 1e-6 {
		t.Errorf("GMST(J2000) = %.8f rad, want %.8f", got, want)
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	points := []types.Geodetic{
		{Lat: 0, Lon: 0, Alt: 0},
		{Lat: 62.8, Lon: -147.5, Alt: 110},
		{Lat: -45.2, Lon: 170.1, Alt: 450},
		{Lat: 89.5, Lon: 12, Alt: 600},
	}
	for _, p := range points {
		got := ECEFToGeodetic(GeodeticToECEF(p))
		if math.Abs(got.Lat-p.Lat) > 1e-7 || math.Abs(got.Lon-p.Lon) > 1e-7 || math.Abs(got.Alt-p.Alt) > 1e-6 {
			t.Errorf("round trip %+v -> %+v", p, got)
		}
	}
}

func TestECEFToGeodetic_Equator(t *testing.T) {
	g := ECEFToGeodetic(types.Vec3{X: EarthRadiusKm})
	if math.Abs(g.Lat) > 1e-9 || math.Abs(g.Lon) > 1e-9 || math.Abs(g.Alt) > 1e-6 {
		t.Errorf("equator point = %+v, want zero lat/lon/alt", g)
	}
}

func TestGEIToECEF_PreservesNormAndZ(t *testing.T) {
	p := types.Vec3{X: 4000, Y: -3000, Z: 5000}
	r := GEIToECEF(p, time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC))
	if math.Abs(r.Z-p.Z) > 1e-9 {
		t.Errorf("z changed: %v -> %v", p.Z, r.Z)
	}
	n0 := math.Sqrt(p.X*p.X + p.Y*p.Y)
	n1 := math.Sqrt(r.X*r.X + r.Y*r.Y)
	if math.Abs(n0-n1) > 1e-9 {
		t.Errorf("equatorial norm changed: %v -> %v", n0, n1)
	}
}

func TestLook_Overhead(t *testing.T) {
	site := types.Geodetic{Lat: 61.0, Lon: -149.0}
	target := types.Geodetic{Lat: 61.0, Lon: -149.0, Alt: 110}

	la := Look(site, target)
	if math.Abs(la.ElevationDeg-90) > 0.01 {
		t.Errorf("overhead elevation = %.3f, want 90", la.ElevationDeg)
	}
	if math.Abs(la.RangeKm-110) > 0.01 {
		t.Errorf("overhead range = %.3f, want 110", la.RangeKm)
	}
}

func TestLook_ElevationFallsWithDistance(t *testing.T) {
	site := types.Geodetic{Lat: 61.0, Lon: -149.0}
	prev := 91.0
	for _, dlat := range []float64{0.5, 1, 2, 4, 8} {
		la := Look(site, types.Geodetic{Lat: 61.0 + dlat, Lon: -149.0, Alt: 110})
		if la.ElevationDeg >= prev {
			t.Errorf("elevation did not decrease at dlat=%v: %.2f >= %.2f", dlat, la.ElevationDeg, prev)
		}
		if la.AzimuthDeg > 1 && la.AzimuthDeg < 359 {
			t.Errorf("northward target azimuth = %.2f, want ~0", la.AzimuthDeg)
		}
		prev = la.ElevationDeg
	}
}

func TestTransform(t *testing.T) {
	tr := Transformer{}
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		times   []time.Time
		pos     []types.Vec3
		in, out string
		wantErr bool
	}{
		{"ok", []time.Time{now}, []types.Vec3{{X: 6800}}, FrameGEI, FrameGDZ, false},
		{"geo input", []time.Time{now}, []types.Vec3{{X: 6800}}, FrameGEO, FrameGDZ, false},
		{"length mismatch", []time.Time{now, now}, []types.Vec3{{X: 6800}}, FrameGEI, FrameGDZ, true},
		{"zero time", []time.Time{{}}, []types.Vec3{{X: 6800}}, FrameGEI, FrameGDZ, true},
		{"nan position", []time.Time{now}, []types.Vec3{{X: math.NaN()}}, FrameGEI, FrameGDZ, true},
		{"bad frame", []time.Time{now}, []types.Vec3{{X: 6800}}, FrameGDZ, FrameGEI, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tr.Transform(tt.times, tt.pos, tt.in, tt.out)
			if tt.wantErr {
				if !errs.Is(err, errs.KindFatal) {
					t.Fatalf("expected fatal error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != len(tt.pos) {
				t.Fatalf("expected %d results, got %d", len(tt.pos), len(out))
			}
			if math.Abs(out[0].Alt-(6800-EarthRadiusKm)) > 1 {
				t.Errorf("altitude = %.3f, want ~%.3f", out[0].Alt, 6800-EarthRadiusKm)
			}
		})
	}
}
