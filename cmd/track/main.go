package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gustycube/conjunctions/internal/archive"
	"github.com/gustycube/conjunctions/internal/config"
	"github.com/gustycube/conjunctions/internal/fieldline"
	"github.com/gustycube/conjunctions/internal/footprint"
	"github.com/gustycube/conjunctions/internal/geo"
	"github.com/gustycube/conjunctions/internal/imager"
	"github.com/gustycube/conjunctions/internal/logging"
	"github.com/gustycube/conjunctions/internal/types"
)

// point is one line of track output.
type point struct {
	Time      time.Time `json:"time"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	Alt       *float64  `json:"alt_km"`
	MagLat    *float64  `json:"mlat,omitempty"`
	Elevation *float64  `json:"elevation_deg,omitempty"`
}

func main() {
	var configFile, dataDir, sat, imagerCode string
	var start, end, outFormat string
	var pad time.Duration
	var altitude float64
	var hemisphere string
	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&dataDir, "data_dir", "", "mission data directory")
	flag.StringVar(&sat, "satellite", "a", "spacecraft id")
	flag.StringVar(&imagerCode, "imager", "", "imager code; adds the footprint elevation seen from that site")
	flag.StringVar(&start, "start", "", "conjunction start (RFC3339)")
	flag.StringVar(&end, "end", "", "conjunction end (RFC3339, default start)")
	flag.DurationVar(&pad, "pad", 3*time.Minute, "time added on both sides of the conjunction")
	flag.Float64Var(&altitude, "altitude_km", 0, "footprint altitude in km")
	flag.StringVar(&hemisphere, "hemisphere", "", "trace hemisphere: same, north, south or opposite")
	flag.StringVar(&outFormat, "format", "csv", "output format: csv or jsonl")
	flag.Parse()

	log := logging.New()
	defer log.Sync()

	var cfg *config.Config
	var err error
	if configFile != "" {
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			log.Fatalw("failed to load config file", "file", configFile, "err", err)
		}
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	cfg.LoadFromEnv()
	cfg.MergeWithFlags(map[string]interface{}{
		"data_dir":    dataDir,
		"altitude_km": altitude,
		"hemisphere":  hemisphere,
	})
	if cfg.DataDir == "" || start == "" {
		flag.Usage()
		os.Exit(2)
	}
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		log.Fatalw("invalid start", "err", err)
	}
	to := from
	if end != "" {
		if to, err = time.Parse(time.RFC3339, end); err != nil {
			log.Fatalw("invalid end", "err", err)
		}
	}
	from, to = from.UTC().Add(-pad), to.UTC().Add(pad)

	var site *types.Geodetic
	if imagerCode != "" {
		locs, err := imager.LoadLocations(cfg.Locations())
		if err != nil {
			log.Fatalw("load imager locations", "file", cfg.Locations(), "err", err)
		}
		fov, err := imager.NewCatalog(locs, cfg.MinElevationDeg).FieldOfView(imagerCode, from)
		if err != nil {
			log.Fatalw("imager", "code", imagerCode, "err", err)
		}
		site = &fov.Site
	}

	ctx := context.Background()
	arch := archive.New(cfg.DataDir)
	var eph []types.EphemerisSample
	for d := types.Day(from); !d.After(types.Day(to)); d = d.AddDate(0, 0, 1) {
		day, err := arch.Ephemeris(ctx, sat, d)
		if err != nil {
			log.Fatalw("load ephemeris", "satellite", sat, "day", d.Format("2006-01-02"), "err", err)
		}
		eph = append(eph, footprint.Window(day, from, to)...)
	}
	if len(eph) == 0 {
		log.Fatalw("no ephemeris samples in window", "from", from, "to", to)
	}

	dipole := fieldline.NewDipole(cfg.DipolePoleLat, cfg.DipolePoleLon, fieldline.DefaultMaxL)
	mapper := footprint.New(geo.Transformer{}, dipole)
	fp, err := mapper.Map(ctx, eph, cfg.AltitudeKm, cfg.HemisphereFlag())
	if err != nil {
		log.Fatalw("map footprint", "err", err)
	}
	points := make([]point, len(fp))
	for i, s := range fp {
		points[i] = point{Time: s.Time, Lat: ptr(s.Lat), Lon: ptr(s.Lon), Alt: ptr(s.Alt)}
		if !s.Defined() {
			continue
		}
		foot := types.Geodetic{Lat: s.Lat.Value, Lon: s.Lon.Value, Alt: s.Alt.Value}
		mlat := dipole.MagneticLatitude(foot)
		points[i].MagLat = &mlat
		if site != nil {
			el := geo.Look(*site, foot).ElevationDeg
			points[i].Elevation = &el
		}
	}

	switch outFormat {
	case "jsonl":
		err = writeJSONL(os.Stdout, points)
	case "csv":
		err = writeCSV(os.Stdout, points)
	default:
		err = fmt.Errorf("unknown format: %s", outFormat)
	}
	if err != nil {
		log.Fatalw("write track", "err", err)
	}
	log.Infow("track written", "satellite", sat, "samples", len(points), "undefined", footprint.Undefined(fp))
}

func ptr(v types.OptFloat) *float64 {
	if !v.Valid {
		return nil
	}
	x := v.Value
	return &x
}

func writeJSONL(w io.Writer, points []point) error {
	enc := json.NewEncoder(w)
	for _, p := range points {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, points []point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "lat", "lon", "alt_km", "mlat", "elevation_deg"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{p.Time.Format(time.RFC3339), num(p.Lat), num(p.Lon), num(p.Alt), num(p.MagLat), num(p.Elevation)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
