// Package annotate tags conjunction intervals with the availability of
// particle-detector and imager data.
package annotate

import (
	"context"
	"fmt"
	"time"

	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/imager"
	"github.com/gustycube/conjunctions/internal/types"
)

type Annotator struct {
	index imager.Index
}

func New(index imager.Index) *Annotator {
	return &Annotator{index: index}
}

// Annotate returns iv with EPDData and ASIData set. epdTimes must be sorted.
// A Missing answer from the index means no imager data; any other index
// error is returned with iv unchanged.
func (a *Annotator) Annotate(ctx context.Context, iv types.Interval, epdTimes []time.Time) (types.Interval, error) {
	iv.EPDData = HasEPD(epdTimes, iv.Start, iv.End)

	hour := iv.Start.UTC().Truncate(time.Hour)
	files, err := a.index.Files(ctx, iv.Imager, hour)
	switch {
	case err == nil:
		iv.ASIData = len(files) > 0
	case errs.Is(err, errs.KindMissing):
		iv.ASIData = false
	default:
		return iv, fmt.Errorf("asi data for %s at %s: %w", iv.Imager, hour.Format(time.RFC3339), err)
	}
	return iv, nil
}

// HasEPD reports whether any of times lies strictly inside (start, end).
// Archive files are not guaranteed to be in time order.
func HasEPD(times []time.Time, start, end time.Time) bool {
	for _, t := range times {
		if t.After(start) && t.Before(end) {
			return true
		}
	}
	return false
}
