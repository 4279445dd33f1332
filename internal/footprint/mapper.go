// Package footprint maps a satellite ephemeris to its magnetic footprint at a
// reference altitude.
package footprint

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/fieldline"
	"github.com/gustycube/conjunctions/internal/geo"
	"github.com/gustycube/conjunctions/internal/types"
)

// Transformer converts inertial positions to geodetic coordinates.
type Transformer interface {
	Transform(times []time.Time, pos []types.Vec3, in, out string) ([]types.Geodetic, error)
}

// Tracer follows the field line through p down to altKm. A failed trace is
// not an error: each component of the result equals fieldline.Sentinel.
type Tracer interface {
	Trace(ctx context.Context, t time.Time, p types.Geodetic, altKm float64, hemi types.Hemisphere) (types.Geodetic, error)
}

type Mapper struct {
	transform Transformer
	tracer    Tracer
}

func New(transform Transformer, tracer Tracer) *Mapper {
	return &Mapper{transform: transform, tracer: tracer}
}

// Geodetic converts the ephemeris to geodetic coordinates. Failures of the
// transform are returned unchanged and are fatal to the caller's unit.
func (m *Mapper) Geodetic(eph []types.EphemerisSample) ([]types.Geodetic, error) {
	times := make([]time.Time, len(eph))
	pos := make([]types.Vec3, len(eph))
	for i, s := range eph {
		times[i] = s.Time
		pos[i] = s.GEI
	}
	lla, err := m.transform.Transform(times, pos, geo.FrameGEI, geo.FrameGDZ)
	if err != nil {
		return nil, err
	}
	if len(lla) != len(eph) {
		return nil, errs.Fatalf("coords transform", "returned %d positions for %d samples", len(lla), len(eph))
	}
	return lla, nil
}

// Map traces every ephemeris sample to altKm. The result has the same length
// and timestamps as eph; samples whose trace failed carry undefined components.
func (m *Mapper) Map(ctx context.Context, eph []types.EphemerisSample, altKm float64, hemi types.Hemisphere) ([]types.FootprintSample, error) {
	if len(eph) == 0 {
		return nil, errs.Fatalf("map footprint", "empty ephemeris")
	}
	if !(altKm > 0) {
		return nil, errs.Fatalf("map footprint", "altitude must be positive, got %v", altKm)
	}

	lla, err := m.Geodetic(eph)
	if err != nil {
		return nil, err
	}

	out := make([]types.FootprintSample, len(eph))
	for i, s := range eph {
		fp, err := m.tracer.Trace(ctx, s.Time, lla[i], altKm, hemi)
		if err != nil {
			return nil, fmt.Errorf("trace sample %d at %s: %w", i, s.Time.Format(time.RFC3339), err)
		}
		out[i] = types.FootprintSample{
			Time: s.Time,
			Lat:  component(fp.Lat),
			Lon:  component(fp.Lon),
			Alt:  component(fp.Alt),
		}
	}
	return out, nil
}

func component(v float64) types.OptFloat {
	if v == fieldline.Sentinel || math.IsNaN(v) || math.IsInf(v, 0) {
		return types.None()
	}
	return types.Some(v)
}

// Undefined counts samples whose trace failed.
func Undefined(fp []types.FootprintSample) int {
	n := 0
	for _, s := range fp {
		if !s.Defined() {
			n++
		}
	}
	return n
}

// Window returns the samples with from <= Time <= to.
func Window(eph []types.EphemerisSample, from, to time.Time) []types.EphemerisSample {
	var out []types.EphemerisSample
	for _, s := range eph {
		if s.Time.Before(from) || s.Time.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}
