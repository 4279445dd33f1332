// Package fieldline traces geomagnetic field lines from a satellite position
// down to a reference altitude.
//
// The tracer models the field as a tilted centered dipole. Along a dipole
// field line r = L cos²λ (r in Earth radii, λ magnetic latitude), so the
// footprint at radius rt sits at cos²λ = rt/L on the same magnetic meridian.
// A trace fails when the line never reaches rt (L < rt) or when L exceeds
// MaxL, beyond which the line is treated as open. Failures are reported the
// way IRBEM reports them: every returned component equals Sentinel.
package fieldline

import (
	"context"
	"math"
	"time"

	"github.com/gustycube/conjunctions/internal/geo"
	"github.com/gustycube/conjunctions/internal/types"
)

// Sentinel is the value returned for each component of a failed trace.
const Sentinel = -1e31

// RefRadiusKm is the IGRF reference radius.
const RefRadiusKm = 6371.2

// IGRF-13 (2020) north geomagnetic pole.
const (
	DefaultPoleLat = 80.65
	DefaultPoleLon = -72.68
	DefaultMaxL    = 20.0
)

const deg2rad = math.Pi / 180.0

// Dipole is a tilted centered dipole tracer. It is safe for concurrent use.
type Dipole struct {
	maxL float64
	// rotation rows from geographic ECEF to dipole coordinates
	m [3][3]float64
}

// NewDipole returns a tracer whose north geomagnetic pole sits at the given
// geographic latitude/longitude in degrees. maxL <= 0 selects DefaultMaxL.
func NewDipole(poleLat, poleLon, maxL float64) *Dipole {
	if maxL <= 0 {
		maxL = DefaultMaxL
	}
	th := (90 - poleLat) * deg2rad
	ph := poleLon * deg2rad
	st, ct := math.Sin(th), math.Cos(th)
	sp, cp := math.Sin(ph), math.Cos(ph)

	return &Dipole{
		maxL: maxL,
		m: [3][3]float64{
			{ct * cp, ct * sp, -st},
			{-sp, cp, 0},
			{st * cp, st * sp, ct},
		},
	}
}

// Trace maps p along its field line to altKm in the requested hemisphere.
// The time is accepted for interface parity with time-dependent field
// models; the dipole itself is static.
func (d *Dipole) Trace(ctx context.Context, _ time.Time, p types.Geodetic, altKm float64, hemi types.Hemisphere) (types.Geodetic, error) {
	if err := ctx.Err(); err != nil {
		return types.Geodetic{}, err
	}

	mag := d.toDipole(geo.GeodeticToECEF(p))
	r := math.Sqrt(mag.X*mag.X+mag.Y*mag.Y+mag.Z*mag.Z) / RefRadiusKm
	if r == 0 {
		return failed(), nil
	}
	sinLat := mag.Z / (r * RefRadiusKm)
	cos2 := 1 - sinLat*sinLat
	if cos2 < 1e-12 {
		return failed(), nil
	}

	l := r / cos2
	if l > d.maxL {
		return failed(), nil
	}

	sign := 1.0
	if sinLat < 0 {
		sign = -1
	}
	switch hemi {
	case types.HemisphereNorth:
		sign = 1
	case types.HemisphereSouth:
		sign = -1
	case types.HemisphereOpposite:
		sign = -sign
	}

	// The foot is where the line crosses altKm above the WGS-84 ellipsoid.
	// Start on the sphere RefRadiusKm+altKm and correct the crossing radius
	// to the ellipsoid beneath the previous estimate.
	lon := math.Atan2(mag.Y, mag.X)
	rad := RefRadiusKm + altKm
	var g types.Geodetic
	for i := 0; i < 4; i++ {
		rt := rad / RefRadiusKm
		if l < rt {
			return failed(), nil
		}
		lat := sign * math.Acos(math.Sqrt(rt/l))
		g = geo.ECEFToGeodetic(d.fromDipole(types.Vec3{
			X: rad * math.Cos(lat) * math.Cos(lon),
			Y: rad * math.Cos(lat) * math.Sin(lon),
			Z: rad * math.Sin(lat),
		}))
		rad = norm(geo.GeodeticToECEF(types.Geodetic{Lat: g.Lat, Lon: g.Lon, Alt: altKm}))
	}
	return g, nil
}

func norm(v types.Vec3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// MagneticLatitude returns the dipole latitude of p in degrees.
func (d *Dipole) MagneticLatitude(p types.Geodetic) float64 {
	m := d.toDipole(geo.GeodeticToECEF(p))
	return math.Atan2(m.Z, math.Hypot(m.X, m.Y)) / deg2rad
}

func (d *Dipole) toDipole(v types.Vec3) types.Vec3 {
	return types.Vec3{
		X: d.m[0][0]*v.X + d.m[0][1]*v.Y + d.m[0][2]*v.Z,
		Y: d.m[1][0]*v.X + d.m[1][1]*v.Y + d.m[1][2]*v.Z,
		Z: d.m[2][0]*v.X + d.m[2][1]*v.Y + d.m[2][2]*v.Z,
	}
}

func (d *Dipole) fromDipole(v types.Vec3) types.Vec3 {
	return types.Vec3{
		X: d.m[0][0]*v.X + d.m[1][0]*v.Y + d.m[2][0]*v.Z,
		Y: d.m[0][1]*v.X + d.m[1][1]*v.Y + d.m[2][1]*v.Z,
		Z: d.m[0][2]*v.X + d.m[1][2]*v.Y + d.m[2][2]*v.Z,
	}
}

func failed() types.Geodetic {
	return types.Geodetic{Lat: Sentinel, Lon: Sentinel, Alt: Sentinel}
}
