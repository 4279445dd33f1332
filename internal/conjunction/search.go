// Package conjunction finds the time intervals during which a footprint
// track lies inside an imager's field of view.
package conjunction

import (
	"time"

	"github.com/gustycube/conjunctions/internal/geo"
	"github.com/gustycube/conjunctions/internal/types"
)

// Visibility is the classification of one footprint sample.
type Visibility int8

const (
	Undefined Visibility = iota
	OutOfView
	InView
)

func (v Visibility) String() string {
	switch v {
	case InView:
		return "in"
	case OutOfView:
		return "out"
	default:
		return "undefined"
	}
}

// Visible reports whether p at time t lies in the field of view. The
// elevation boundary is inclusive.
func Visible(p types.Geodetic, t time.Time, fov types.FieldOfView) bool {
	if !fov.Covers(t) {
		return false
	}
	return geo.Look(fov.Site, p).ElevationDeg >= fov.MinElevation
}

// Classify labels every footprint sample. Undefined samples stay Undefined.
func Classify(fp []types.FootprintSample, fov types.FieldOfView) []Visibility {
	out := make([]Visibility, len(fp))
	for i, s := range fp {
		p, ok := s.Position()
		switch {
		case !ok:
			out[i] = Undefined
		case Visible(p, s.Time, fov):
			out[i] = InView
		default:
			out[i] = OutOfView
		}
	}
	return out
}

// Run is an inclusive index range of consecutive in-view samples.
type Run struct {
	First, Last int
}

// Runs scans the classification once. A run opens on the first InView
// sample after anything else and closes on the next sample that is not
// InView, including Undefined ones, or at the end of the sequence.
func Runs(vis []Visibility) []Run {
	var runs []Run
	open := -1
	for i, v := range vis {
		if v == InView {
			if open < 0 {
				open = i
			}
			continue
		}
		if open >= 0 {
			runs = append(runs, Run{First: open, Last: i - 1})
			open = -1
		}
	}
	if open >= 0 {
		runs = append(runs, Run{First: open, Last: len(vis) - 1})
	}
	return runs
}

// Find returns the conjunction intervals between the footprint and fov, in
// time order. Flags are left unset and Satellite empty for the caller to fill.
func Find(fp []types.FootprintSample, fov types.FieldOfView) []types.Interval {
	runs := Runs(Classify(fp, fov))
	out := make([]types.Interval, 0, len(runs))
	for _, r := range runs {
		out = append(out, types.Interval{
			Start:  fp[r.First].Time,
			End:    fp[r.Last].Time,
			Imager: fov.Imager,
		})
	}
	return out
}
