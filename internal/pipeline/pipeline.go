// Package pipeline drives the conjunction search over (satellite, day)
// units: map the footprint, match it against every imager, annotate the
// intervals, append them to the per-imager tables and checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gustycube/conjunctions/internal/archive"
	"github.com/gustycube/conjunctions/internal/catalog"
	"github.com/gustycube/conjunctions/internal/checkpoint"
	"github.com/gustycube/conjunctions/internal/conjunction"
	"github.com/gustycube/conjunctions/internal/dedup"
	"github.com/gustycube/conjunctions/internal/errs"
	"github.com/gustycube/conjunctions/internal/footprint"
	"github.com/gustycube/conjunctions/internal/logging"
	"github.com/gustycube/conjunctions/internal/metrics"
	"github.com/gustycube/conjunctions/internal/queue"
	"github.com/gustycube/conjunctions/internal/telemetry"
	"github.com/gustycube/conjunctions/internal/types"
)

type Mapper interface {
	Map(ctx context.Context, eph []types.EphemerisSample, altKm float64, hemi types.Hemisphere) ([]types.FootprintSample, error)
}

// FieldsOfView resolves an imager code to its descriptor for a day.
type FieldsOfView interface {
	FieldOfView(code string, day time.Time) (types.FieldOfView, error)
}

type Annotator interface {
	Annotate(ctx context.Context, iv types.Interval, epdTimes []time.Time) (types.Interval, error)
}

// Reporter receives one call per finished unit.
type Reporter interface {
	Unit(status string, conjunctions int)
}

type Leaser interface {
	Lease(ctx context.Context) (queue.Unit, func() error, bool, error)
}

const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

type Options struct {
	Mission         string
	Array           string
	Imagers         []string
	AltitudeKm      float64
	Hemisphere      types.Hemisphere
	OutputDir       string
	Checkpoint      bool
	SkipUnavailable bool
	RunID           string
}

type Driver struct {
	opts     Options
	loader   archive.Loader
	mapper   Mapper
	fovs     FieldsOfView
	annot    Annotator
	seen     dedup.Interface
	reporter Reporter
	log      *logging.Logger
}

// New builds a Driver. seen and reporter may be nil.
func New(opts Options, loader archive.Loader, mapper Mapper, fovs FieldsOfView, annot Annotator, seen dedup.Interface, reporter Reporter, log *logging.Logger) *Driver {
	if seen == nil {
		seen = dedup.NewMemory()
	}
	if log == nil {
		log = logging.Nop()
	}
	opts.Imagers = uniqueCodes(opts.Imagers)
	return &Driver{opts: opts, loader: loader, mapper: mapper, fovs: fovs, annot: annot, seen: seen, reporter: reporter, log: log}
}

// uniqueCodes lowercases codes and drops repeats, keeping the first order.
func uniqueCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	have := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToLower(strings.TrimSpace(c))
		if _, ok := have[c]; ok || c == "" {
			continue
		}
		have[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// TablePath is the per-imager table for sat.
func (d *Driver) TablePath(sat, imager string) string {
	return filepath.Join(d.opts.OutputDir, catalog.TableName(d.opts.Mission, sat, d.opts.Array, imager))
}

// CheckpointPath is the resume marker for sat.
func (d *Driver) CheckpointPath(sat string) string {
	return filepath.Join(d.opts.OutputDir, checkpoint.Name(d.opts.Mission, sat))
}

// ProcessDay runs one unit and returns the number of rows appended. No
// rows are written unless every imager was matched and annotated.
func (d *Driver) ProcessDay(ctx context.Context, sat string, day time.Time) (int, error) {
	sat = strings.ToLower(sat)
	day = types.Day(day)
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "ProcessDay")
	defer span.End()
	span.SetAttributes(
		attribute.String("satellite", sat),
		attribute.String("day", day.Format("2006-01-02")),
		attribute.String("run.id", d.opts.RunID),
	)

	n, err := d.processDay(ctx, sat, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.KindOf(err).String())
	}
	span.SetAttributes(attribute.Int("conjunctions", n))
	return n, err
}

func (d *Driver) processDay(ctx context.Context, sat string, day time.Time) (int, error) {
	flux, err := d.loader.EPD(ctx, sat, day)
	if err != nil {
		return 0, err
	}
	eph, err := d.loader.Ephemeris(ctx, sat, day)
	if err != nil {
		return 0, err
	}
	fp, err := d.mapper.Map(ctx, eph, d.opts.AltitudeKm, d.opts.Hemisphere)
	if err != nil {
		return 0, err
	}
	if bad := footprint.Undefined(fp); bad > 0 {
		metrics.TraceFailures.Add(float64(bad))
		d.log.Debugw("footprint trace failures", "satellite", sat, "day", day.Format("2006-01-02"), "undefined", bad, "samples", len(fp))
	}

	rows := make(map[string][]types.Interval, len(d.opts.Imagers))
	for _, code := range d.opts.Imagers {
		imager := strings.ToLower(code)
		fov, err := d.fovs.FieldOfView(code, day)
		if errs.Is(err, errs.KindMissing) {
			continue
		}
		if err != nil {
			return 0, err
		}
		for _, iv := range conjunction.Find(fp, fov) {
			iv.Satellite, iv.Imager = sat, imager
			iv, err = d.annot.Annotate(ctx, iv, flux.Times)
			if err != nil {
				return 0, err
			}
			rows[imager] = append(rows[imager], iv)
		}
	}

	total := 0
	for _, code := range d.opts.Imagers {
		imager := strings.ToLower(code)
		fresh := rows[imager][:0]
		batch := make(map[string]struct{}, len(rows[imager]))
		for _, iv := range rows[imager] {
			key := iv.Key()
			if _, dup := batch[key]; dup || d.seen.Has(key) {
				metrics.DuplicatesTotal.Inc()
				continue
			}
			batch[key] = struct{}{}
			fresh = append(fresh, iv)
		}
		if err := catalog.Append(d.TablePath(sat, imager), fresh); err != nil {
			return total, err
		}
		// Keys are recorded only once the rows are on disk.
		for _, iv := range fresh {
			d.seen.Seen(iv.Key())
		}
		metrics.ConjunctionsTotal.WithLabelValues(imager).Add(float64(len(fresh)))
		total += len(fresh)
	}
	return total, nil
}

// status applies the skip policy to a unit's error. A non-nil returned
// error terminates the run.
func (d *Driver) status(err error) (string, error) {
	switch {
	case err == nil:
		return StatusOK, nil
	case errs.Skippable(err):
		return StatusSkipped, nil
	case errs.Is(err, errs.KindUnavailable) && d.opts.SkipUnavailable:
		return StatusSkipped, nil
	default:
		return StatusFailed, err
	}
}

func (d *Driver) finishUnit(sat string, day time.Time, n int, err error) (string, error) {
	status, fatal := d.status(err)
	fields := []interface{}{"satellite", sat, "day", day.Format("2006-01-02"), "status", status, "conjunctions", n, "run", d.opts.RunID}
	switch {
	case err == nil:
		d.log.Infow("unit processed", fields...)
	case errs.Is(err, errs.KindMissing):
		d.log.Infow("unit skipped: no data", append(fields, "kind", errs.KindOf(err).String(), "err", err)...)
	case fatal == nil:
		d.log.Warnw("unit skipped", append(fields, "kind", errs.KindOf(err).String(), "err", err)...)
	default:
		d.log.Errorw("unit failed", append(fields, "kind", errs.KindOf(err).String(), "err", err)...)
	}
	metrics.UnitsTotal.WithLabelValues(status).Inc()
	if d.reporter != nil {
		d.reporter.Unit(status, n)
	}
	return status, fatal
}

// RunSatellite processes every day of [start, end] for sat. With
// checkpointing, days up to the stored marker are skipped, rows appended
// after it seed the de-duplication set, a marker is written after every
// finished or skipped unit and removed once the range is done.
func (d *Driver) RunSatellite(ctx context.Context, sat string, start, end time.Time) error {
	sat = strings.ToLower(sat)
	start, end = types.Day(start), types.Day(end)
	ck := d.CheckpointPath(sat)

	if d.opts.Checkpoint {
		last, ok, err := checkpoint.Load(ck)
		if err != nil {
			return err
		}
		if ok {
			resume := types.Day(last).AddDate(0, 0, 1)
			if resume.After(start) {
				start = resume
			}
			seeded, err := d.seed(sat, resume)
			if err != nil {
				return err
			}
			d.log.Infow("resuming from checkpoint", "satellite", sat, "checkpoint", types.FormatTime(last), "start", start.Format("2006-01-02"), "seeded_rows", seeded)
		}
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := d.ProcessDay(ctx, sat, day)
		if _, fatal := d.finishUnit(sat, day, n, err); fatal != nil {
			return fatal
		}
		if d.opts.Checkpoint {
			if err := checkpoint.Save(ck, day); err != nil {
				return err
			}
		}
	}

	if d.opts.Checkpoint {
		return checkpoint.Remove(ck)
	}
	return nil
}

// seed records rows of sat's tables starting at or after from.
func (d *Driver) seed(sat string, from time.Time) (int, error) {
	tables, err := catalog.LoadTables(d.opts.OutputDir, d.opts.Mission, sat, d.opts.Array)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tables {
		for _, r := range t.Rows {
			if r.Start.Before(from) {
				continue
			}
			r.Imager = t.Imager
			d.seen.Seen(r.Key())
			n++
		}
	}
	return n, nil
}

// Run processes each satellite in turn.
func (d *Driver) Run(ctx context.Context, satellites []string, start, end time.Time) error {
	for _, sat := range satellites {
		if err := d.RunSatellite(ctx, sat, start, end); err != nil {
			return fmt.Errorf("satellite %s: %w", sat, err)
		}
	}
	return nil
}

// RunQueue processes leased units until the queue stays empty or a unit
// fails fatally. Fatally failed units are not acknowledged.
func (d *Driver) RunQueue(ctx context.Context, q Leaser) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, ack, ok, err := q.Lease(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.log.Warnw("queue lease failed", "err", err)
			continue
		}
		if !ok {
			d.log.Infow("queue drained")
			return nil
		}
		n, err := d.ProcessDay(ctx, u.Satellite, u.Day)
		if _, fatal := d.finishUnit(u.Satellite, u.Day, n, err); fatal != nil {
			return fmt.Errorf("unit %s: %w", u, fatal)
		}
		if err := ack(); err != nil {
			d.log.Warnw("queue ack failed", "unit", u.String(), "err", err)
		}
	}
}
