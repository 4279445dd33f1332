package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gustycube/conjunctions/internal/catalog"
	"github.com/gustycube/conjunctions/internal/config"
	"github.com/gustycube/conjunctions/internal/format"
	"github.com/gustycube/conjunctions/internal/logging"
)

func main() {
	var configFile, dataDir, outputDir, satellites string
	var exportFormat string
	var filtered, indent bool
	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&dataDir, "data_dir", "", "mission data directory")
	flag.StringVar(&outputDir, "output_dir", "", "per-imager table directory (default <data_dir>/conjunctions)")
	flag.StringVar(&satellites, "satellites", "", "comma-separated spacecraft ids (default a,b)")
	flag.StringVar(&exportFormat, "format", "", "also print the catalog to stdout: json, jsonl or csv")
	flag.BoolVar(&filtered, "filtered", false, "print the filtered catalog instead of the merged one")
	flag.BoolVar(&indent, "indent", false, "indent JSON output")
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
		"data_dir":   dataDir,
		"output_dir": outputDir,
		"satellites": satellites,
	})
	if cfg.DataDir == "" && cfg.OutputDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	var formatter format.Formatter
	if exportFormat != "" {
		f, err := format.ParseFormat(exportFormat)
		if err != nil {
			log.Fatalw("invalid format", "err", err)
		}
		if formatter, err = format.GetFormatter(f, map[string]interface{}{"indent": indent}); err != nil {
			log.Fatalw("formatter", "err", err)
		}
	}

	for _, sat := range cfg.Satellites {
		res, err := catalog.WriteCatalogs(cfg.ConjunctionDir(), cfg.Mission, sat, cfg.Array)
		if err != nil {
			log.Fatalw("merge catalogs", "satellite", sat, "err", err)
		}
		log.Infow("catalogs written",
			"satellite", sat,
			"tables", res.Tables,
			"merged", res.MergedPath,
			"rows", len(res.Merged),
			"filtered", res.FilteredPath,
			"complete", len(res.Filtered),
		)
		if formatter == nil {
			continue
		}
		rows := res.Merged
		if filtered {
			rows = res.Filtered
		}
		if err := formatter.FormatStream(rows, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "write:", err)
			os.Exit(1)
		}
	}
}
