// Package geo converts satellite positions between the inertial GEI frame,
// Earth-fixed Cartesian coordinates and WGS-84 geodetic coordinates, and
// computes look angles from a ground site. All distances are kilometers.
package geo

import (
	"math"
	"time"

	"github.com/gustycube/conjunctions/internal/types"
)

// WGS-84 ellipsoid.
const (
	EarthRadiusKm = 6378.137
	wgs84F        = 1.0 / 298.257223563
	wgs84E2       = wgs84F * (2 - wgs84F)
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// GEIToECEF rotates an inertial position about Z by GMST. Polar motion and
// the equation of the equinoxes are ignored.
func GEIToECEF(p types.Vec3, t time.Time) types.Vec3 {
	return rotateZ(p, GMST(t))
}

func rotateZ(p types.Vec3, theta float64) types.Vec3 {
	c, s := math.Cos(theta), math.Sin(theta)
	return types.Vec3{
		X: p.X*c + p.Y*s,
		Y: -p.X*s + p.Y*c,
		Z: p.Z,
	}
}

// GeodeticToECEF converts geodetic coordinates to Earth-fixed Cartesian.
func GeodeticToECEF(g types.Geodetic) types.Vec3 {
	lat := g.Lat * deg2rad
	lon := g.Lon * deg2rad
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	n := EarthRadiusKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return types.Vec3{
		X: (n + g.Alt) * cosLat * math.Cos(lon),
		Y: (n + g.Alt) * cosLat * math.Sin(lon),
		Z: (n*(1-wgs84E2) + g.Alt) * sinLat,
	}
}

// ECEFToGeodetic converts Earth-fixed Cartesian to geodetic coordinates
// with a fixed number of Bowring iterations.
func ECEFToGeodetic(p types.Vec3) types.Geodetic {
	lon := math.Atan2(p.Y, p.X)
	r := math.Hypot(p.X, p.Y)
	lat := math.Atan2(p.Z, r*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := EarthRadiusKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*n*sinLat, r)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	n := EarthRadiusKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = r/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return types.Geodetic{Lat: lat * rad2deg, Lon: lon * rad2deg, Alt: alt}
}

// LookAngles are the azimuth (clockwise from north), elevation and range
// from a ground site to a target.
type LookAngles struct {
	AzimuthDeg   float64
	ElevationDeg float64
	RangeKm      float64
}

// Look computes look angles from site to target using the SEZ frame.
func Look(site, target types.Geodetic) LookAngles {
	s := GeodeticToECEF(site)
	p := GeodeticToECEF(target)
	rx, ry, rz := p.X-s.X, p.Y-s.Y, p.Z-s.Z

	lat := site.Lat * deg2rad
	lon := site.Lon * deg2rad
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: math.Asin(zenith/rng) * rad2deg,
		RangeKm:      rng,
	}
}
