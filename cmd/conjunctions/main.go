package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gustycube/conjunctions/internal/annotate"
	"github.com/gustycube/conjunctions/internal/archive"
	"github.com/gustycube/conjunctions/internal/catalog"
	"github.com/gustycube/conjunctions/internal/config"
	"github.com/gustycube/conjunctions/internal/dedup"
	"github.com/gustycube/conjunctions/internal/fieldline"
	"github.com/gustycube/conjunctions/internal/footprint"
	"github.com/gustycube/conjunctions/internal/geo"
	"github.com/gustycube/conjunctions/internal/health"
	"github.com/gustycube/conjunctions/internal/imager"
	"github.com/gustycube/conjunctions/internal/logging"
	"github.com/gustycube/conjunctions/internal/metrics"
	"github.com/gustycube/conjunctions/internal/pipeline"
	"github.com/gustycube/conjunctions/internal/queue"
	"github.com/gustycube/conjunctions/internal/telemetry"
	"github.com/gustycube/conjunctions/internal/ui"
)

const version = "1.0.0"

func main() {
	var configFile string
	var initConfig bool
	var dataDir, outputDir, locations string
	var satellites, imagers string
	var start, end string
	var altitude, minElevation float64
	var hemisphere string
	var indexURL, indexDir string
	var indexRPS float64
	var ua string
	var skipUnavailable, disableCheckpoint bool
	var useQueue, merge bool
	var metricsAddr string
	var otelEndpoint, otelService string
	var otelInsecure bool
	var otelSample float64
	var progress, showVersion bool

	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.BoolVar(&initConfig, "init", false, "write a config file for -data_dir to -config and exit")
	flag.StringVar(&dataDir, "data_dir", "", "mission data directory")
	flag.StringVar(&outputDir, "output_dir", "", "directory for per-imager tables (default <data_dir>/conjunctions)")
	flag.StringVar(&locations, "locations", "", "imager location catalog (default <data_dir>/asi_locations.csv)")
	flag.StringVar(&satellites, "satellites", "", "comma-separated spacecraft ids (default a,b)")
	flag.StringVar(&imagers, "imagers", "", "comma-separated imager codes (default: every imager of the array)")
	flag.StringVar(&start, "start", "", "first day (YYYY-MM-DD)")
	flag.StringVar(&end, "end", "", "last day (YYYY-MM-DD, default today)")
	flag.Float64Var(&altitude, "altitude_km", 0, "footprint altitude in km")
	flag.StringVar(&hemisphere, "hemisphere", "", "trace hemisphere: same, north, south or opposite")
	flag.Float64Var(&minElevation, "min_elevation_deg", 0, "imager elevation mask in degrees")
	flag.StringVar(&indexURL, "index_url", "", "imager frame index base URL")
	flag.StringVar(&indexDir, "index_dir", "", "local mirror of the frame index (overrides -index_url)")
	flag.Float64Var(&indexRPS, "index_rps", 0, "max index requests per second")
	flag.StringVar(&ua, "ua", "", "user-agent for index requests")
	flag.BoolVar(&skipUnavailable, "skip_unavailable", false, "skip units whose external services fail instead of stopping")
	flag.BoolVar(&disableCheckpoint, "no_checkpoint", false, "do not write or resume from checkpoint markers")
	flag.BoolVar(&useQueue, "queue", false, "take units from the Redis queue (REDIS_QUEUE_ADDR)")
	flag.BoolVar(&merge, "merge", false, "write merged and filtered catalogs after the run")
	flag.StringVar(&metricsAddr, "metrics_addr", "", "metrics listen addr (empty to disable)")
	flag.StringVar(&otelEndpoint, "otel_endpoint", "", "OTLP HTTP endpoint (host:port)")
	flag.BoolVar(&otelInsecure, "otel_insecure", true, "OTLP insecure (no TLS)")
	flag.StringVar(&otelService, "otel_service", "", "OTEL service.name")
	flag.Float64Var(&otelSample, "otel_sample_ratio", 0, "fraction of unit traces to keep (0 keeps all)")
	flag.BoolVar(&progress, "progress", true, "show progress on a terminal")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "conjunctions: find when a satellite's magnetic footprint passes over an all-sky imager\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -init -data_dir=/data/elfin -config=conjunctions.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config=conjunctions.yaml -start=2020-01-01 -end=2020-12-31\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data_dir=/data/elfin -satellites=a -imagers=gako,fsmi -merge\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  CONJ_DATA_DIR    mission data directory\n")
		fmt.Fprintf(os.Stderr, "  CONJ_OUTPUT_DIR  per-imager table directory\n")
		fmt.Fprintf(os.Stderr, "  REDIS_ADDR       Redis server for row de-duplication\n")
		fmt.Fprintf(os.Stderr, "  REDIS_QUEUE_ADDR Redis server for the unit queue\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL        Log level (debug, info, warn, error)\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Println("conjunctions v" + version)
		fmt.Println("Built with Go", strings.TrimPrefix(runtime.Version(), "go"))
		os.Exit(0)
	}

	log := logging.New()
	defer log.Sync()
	runID := uuid.NewString()

	var cfg *config.Config
	var err error
	if configFile != "" && !initConfig {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalw("failed to load config file", "file", configFile, "err", err)
		}
		log.Infow("loaded config from file", "file", configFile)
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	cfg.LoadFromEnv()

	flags := map[string]interface{}{
		"data_dir":           dataDir,
		"output_dir":         outputDir,
		"locations_file":     locations,
		"satellites":         satellites,
		"imagers":            imagers,
		"start":              start,
		"end":                end,
		"altitude_km":        altitude,
		"hemisphere":         hemisphere,
		"min_elevation_deg":  minElevation,
		"index_url":          indexURL,
		"index_dir":          indexDir,
		"index_rps":          indexRPS,
		"user_agent":         ua,
		"skip_unavailable":   skipUnavailable,
		"disable_checkpoint": disableCheckpoint,
		"metrics_addr":       metricsAddr,
		"otel_endpoint":      otelEndpoint,
		"otel_service":       otelService,
		"otel_insecure":      otelInsecure,
		"otel_sample_ratio":  otelSample,
	}
	cfg.MergeWithFlags(flags)

	if initConfig {
		if configFile == "" {
			configFile = "conjunctions.yaml"
		}
		if cfg.DataDir == "" {
			log.Fatalw("-init needs -data_dir")
		}
		if err := cfg.WriteFile(configFile); err != nil {
			log.Fatalw("failed to write config", "file", configFile, "err", err)
		}
		log.Infow("config written", "file", configFile, "data_dir", cfg.DataDir)
		return
	}

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		log.Fatalw("invalid configuration", "err", err)
	}
	first, last, _ := cfg.Window(time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		Service:     cfg.OTELService,
		RunID:       runID,
		Mission:     cfg.Mission,
		SampleRatio: cfg.OTELSample,
	})
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer shutdown(context.Background())
	}

	if err := os.MkdirAll(cfg.ConjunctionDir(), 0o755); err != nil {
		log.Fatalw("create output dir", "dir", cfg.ConjunctionDir(), "err", err)
	}

	il := ui.NewInteractiveLogger(log, progress)
	healthHandler := health.NewHandler(log)
	healthHandler.SetMetadata("run", runID)
	healthHandler.SetMetadata("version", version)
	healthHandler.RegisterChecker("data_dir", health.NewDirChecker(cfg.DataDir, false))
	healthHandler.RegisterChecker("output_dir", health.NewDirChecker(cfg.ConjunctionDir(), true))
	healthHandler.RegisterChecker("progress", health.NewProgressChecker(il.Stats().LastUnit, 30*time.Minute))
	if cfg.MetricsAddr != "" {
		go metrics.ServeWithHealth(cfg.MetricsAddr, healthHandler, log)
		log.Infow("metrics and health server started", "addr", cfg.MetricsAddr)
	}

	locs, err := imager.LoadLocations(cfg.Locations())
	if err != nil {
		log.Fatalw("load imager locations", "file", cfg.Locations(), "err", err)
	}
	imagerCatalog := imager.NewCatalog(locs, cfg.MinElevationDeg)
	codes := selectImagers(imagerCatalog, cfg.Array, cfg.Imagers)
	if len(codes) == 0 {
		log.Fatalw("no imagers selected", "array", cfg.Array, "imagers", cfg.Imagers)
	}

	var index imager.Index
	if cfg.IndexDir != "" {
		index = imager.DirIndex{Root: cfg.IndexDir}
	} else {
		index, err = imager.NewHTTPIndex(cfg.IndexURL, imager.HTTPOptions{
			UserAgent:     cfg.UserAgent,
			RatePerSecond: cfg.IndexRPS,
			Log:           log,
		})
		if err != nil {
			log.Fatalw("imager index", "url", cfg.IndexURL, "err", err)
		}
	}

	var seen dedup.Interface
	if cfg.RedisAddr != "" {
		rd, err := dedup.NewRedis(cfg.RedisAddr, time.Duration(cfg.DedupTTLHours)*time.Hour, log)
		if err != nil {
			log.Fatalw("redis init", "err", err)
		}
		defer rd.Close()
		seen = rd
		healthHandler.RegisterChecker("redis", health.NewRedisChecker(rd.Ping))
		log.Infow("redis dedupe enabled", "addr", cfg.RedisAddr)
	} else {
		seen = dedup.NewMemory()
	}

	mapper := footprint.New(geo.Transformer{}, fieldline.NewDipole(cfg.DipolePoleLat, cfg.DipolePoleLon, fieldline.DefaultMaxL))
	driver := pipeline.New(pipeline.Options{
		Mission:         cfg.Mission,
		Array:           cfg.Array,
		Imagers:         codes,
		AltitudeKm:      cfg.AltitudeKm,
		Hemisphere:      cfg.HemisphereFlag(),
		OutputDir:       cfg.ConjunctionDir(),
		Checkpoint:      !cfg.DisableCheckpoint,
		SkipUnavailable: cfg.SkipUnavailable,
		RunID:           runID,
	}, archive.New(cfg.DataDir), mapper, imagerCatalog, annotate.New(index), seen, il, log)

	log.Infow("starting conjunction search",
		"run", runID,
		"mission", cfg.Mission,
		"satellites", cfg.Satellites,
		"imagers", len(codes),
		"start", first.Format("2006-01-02"),
		"end", last.Format("2006-01-02"),
		"altitude_km", cfg.AltitudeKm,
		"hemisphere", cfg.Hemisphere,
		"config_file", configFile,
	)
	healthHandler.SetReady(true)

	if useQueue {
		if cfg.RedisQueueAddr == "" {
			log.Fatalw("-queue needs REDIS_QUEUE_ADDR or redis_queue_addr")
		}
		q, err := queue.NewRedis(cfg.RedisQueueAddr, cfg.RedisQueueKey, 5*time.Second)
		if err != nil {
			log.Fatalw("redis queue init", "err", err)
		}
		defer q.Close()
		log.Infow("redis queue enabled", "addr", cfg.RedisQueueAddr, "key", cfg.RedisQueueKey)
		err = driver.RunQueue(ctx, q)
		il.Finish()
		if err != nil {
			log.Fatalw("run stopped", "err", err)
		}
	} else {
		units := int64(len(cfg.Satellites)) * (int64(last.Sub(first)/(24*time.Hour)) + 1)
		il.SetTotal(units)
		err = driver.Run(ctx, cfg.Satellites, first, last)
		il.Finish()
		if err != nil {
			log.Fatalw("run stopped; checkpoint kept for resume", "err", err)
		}
	}

	if merge {
		for _, sat := range cfg.Satellites {
			res, err := catalog.WriteCatalogs(cfg.ConjunctionDir(), cfg.Mission, sat, cfg.Array)
			if err != nil {
				log.Fatalw("merge catalogs", "satellite", sat, "err", err)
			}
			log.Infow("catalogs written", "satellite", sat, "merged", res.MergedPath, "rows", len(res.Merged), "filtered", res.FilteredPath, "complete", len(res.Filtered))
		}
	}
	log.Infow("run complete", "run", runID)
}

// selectImagers returns the lowercased codes of the array's imagers, each
// once, restricted to wanted when it is non-empty.
func selectImagers(c *imager.Catalog, array string, wanted []string) []string {
	var codes []string
	have := make(map[string]bool)
	for _, l := range c.Filter(array, "") {
		code := strings.ToLower(l.Code)
		if have[code] || (len(wanted) > 0 && !contains(wanted, code)) {
			continue
		}
		have[code] = true
		codes = append(codes, code)
	}
	return codes
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
