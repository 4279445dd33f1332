package geo

import (
	"math"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/types"
)

// Frame names accepted by Transform.
const (
	FrameGEI = "GEI"
	FrameGEO = "GEO"
	FrameGDZ = "GDZ"
)

// Transformer converts GEI positions to geodetic coordinates.
type Transformer struct{}

// Transform converts positions between frames. Only GEI or GEO to GDZ is
// supported. A malformed time array (length mismatch, zero or non-finite
// input) is a fatal error.
func (Transformer) Transform(times []time.Time, pos []types.Vec3, in, out string) ([]types.Geodetic, error) {
	const op = "coords transform"
	if out != FrameGDZ || (in != FrameGEI && in != FrameGEO) {
		return nil, errs.Fatalf(op, "unsupported frames %s -> %s", in, out)
	}
	if len(times) != len(pos) {
		return nil, errs.Fatalf(op, "%d times but %d positions", len(times), len(pos))
	}

	res := make([]types.Geodetic, len(pos))
	for i, p := range pos {
		if times[i].IsZero() {
			return nil, errs.Fatalf(op, "zero time at index %d", i)
		}
		if !finite(p) {
			return nil, errs.Fatalf(op, "non-finite position at index %d", i)
		}
		if in == FrameGEI {
			p = GEIToECEF(p, times[i])
		}
		res[i] = ECEFToGeodetic(p)
	}
	return res, nil
}

func finite(p types.Vec3) bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
