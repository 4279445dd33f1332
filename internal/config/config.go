package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gustycube/conjunctions/internal/types"
)

// DefaultIndexURL is the THEMIS ASI stream0 archive.
const DefaultIndexURL = "https://data.phys.ucalgary.ca/sort_by_project/THEMIS/asi/stream0/"

// Config is the complete configuration of a conjunction search run.
type Config struct {
	// Data locations
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	OutputDir     string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	LocationsFile string `yaml:"locations_file,omitempty" json:"locations_file,omitempty"`

	// Search
	Mission         string   `yaml:"mission" json:"mission"`
	Array           string   `yaml:"array" json:"array"`
	Imagers         []string `yaml:"imagers,omitempty" json:"imagers,omitempty"`
	Satellites      []string `yaml:"satellites" json:"satellites"`
	Start           string   `yaml:"start" json:"start"`
	End             string   `yaml:"end,omitempty" json:"end,omitempty"`
	AltitudeKm      float64  `yaml:"altitude_km" json:"altitude_km"`
	Hemisphere      string   `yaml:"hemisphere" json:"hemisphere"`
	MinElevationDeg float64  `yaml:"min_elevation_deg" json:"min_elevation_deg"`
	DipolePoleLat   float64  `yaml:"dipole_pole_lat" json:"dipole_pole_lat"`
	DipolePoleLon   float64  `yaml:"dipole_pole_lon" json:"dipole_pole_lon"`

	// Imager frame index
	IndexURL  string  `yaml:"index_url" json:"index_url"`
	IndexDir  string  `yaml:"index_dir,omitempty" json:"index_dir,omitempty"`
	IndexRPS  float64 `yaml:"index_rps" json:"index_rps"`
	UserAgent string  `yaml:"user_agent" json:"user_agent"`

	// Batch policy
	DisableCheckpoint bool `yaml:"disable_checkpoint,omitempty" json:"disable_checkpoint,omitempty"`
	SkipUnavailable   bool `yaml:"skip_unavailable,omitempty" json:"skip_unavailable,omitempty"`

	// Observability
	MetricsAddr  string  `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
	OTELEndpoint string  `yaml:"otel_endpoint,omitempty" json:"otel_endpoint,omitempty"`
	OTELInsecure bool    `yaml:"otel_insecure,omitempty" json:"otel_insecure,omitempty"`
	OTELService  string  `yaml:"otel_service" json:"otel_service"`
	OTELSample   float64 `yaml:"otel_sample_ratio,omitempty" json:"otel_sample_ratio,omitempty"`

	// Redis
	RedisAddr      string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisQueueAddr string `yaml:"redis_queue_addr,omitempty" json:"redis_queue_addr,omitempty"`
	RedisQueueKey  string `yaml:"redis_queue_key" json:"redis_queue_key"`
	DedupTTLHours  int    `yaml:"dedup_ttl_hours" json:"dedup_ttl_hours"`
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.Mission == "" {
		c.Mission = "elfin"
	}
	if c.Array == "" {
		c.Array = "themis"
	}
	if len(c.Satellites) == 0 {
		c.Satellites = []string{"a", "b"}
	}
	if c.Start == "" {
		c.Start = "2018-01-01"
	}
	if c.AltitudeKm == 0 {
		c.AltitudeKm = 110
	}
	if c.Hemisphere == "" {
		c.Hemisphere = "same"
	}
	if c.MinElevationDeg == 0 {
		c.MinElevationDeg = 20
	}
	if c.DipolePoleLat == 0 && c.DipolePoleLon == 0 {
		c.DipolePoleLat, c.DipolePoleLon = 80.65, -72.68
	}
	if c.IndexURL == "" {
		c.IndexURL = DefaultIndexURL
	}
	if c.IndexRPS == 0 {
		c.IndexRPS = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = "ConjunctionFinder/1.0 (+https://github.com/gustycube/conjunctions)"
	}
	if c.OTELService == "" {
		c.OTELService = "conjunctions"
	}
	if c.RedisQueueKey == "" {
		c.RedisQueueKey = "conjunctions:queue"
	}
	if c.DedupTTLHours == 0 {
		c.DedupTTLHours = 24 * 30
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required (run with -init to create a config)")
	}
	if len(c.Satellites) == 0 {
		return fmt.Errorf("at least one satellite is required")
	}
	if c.AltitudeKm <= 0 {
		return fmt.Errorf("altitude_km must be positive")
	}
	if _, err := types.ParseHemisphere(c.Hemisphere); err != nil {
		return err
	}
	if c.MinElevationDeg < -90 || c.MinElevationDeg > 90 {
		return fmt.Errorf("min_elevation_deg must be within [-90, 90]")
	}
	if _, _, err := c.Window(time.Now()); err != nil {
		return err
	}
	if c.IndexDir == "" {
		u, err := url.Parse(c.IndexURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("index_url %q is not an absolute URL", c.IndexURL)
		}
	}
	if c.IndexRPS < 0 {
		return fmt.Errorf("index_rps must not be negative")
	}
	if c.DedupTTLHours < 0 {
		return fmt.Errorf("dedup_ttl_hours must not be negative")
	}
	if c.OTELSample < 0 || c.OTELSample > 1 {
		return fmt.Errorf("otel_sample_ratio must be within [0, 1]")
	}
	return nil
}

// Window returns the first and last day to process. An empty end means the
// day containing now.
func (c *Config) Window(now time.Time) (time.Time, time.Time, error) {
	start, err := types.ParseTime(c.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end := types.Day(now)
	if c.End != "" {
		if end, err = types.ParseTime(c.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
		}
	}
	start, end = types.Day(start), types.Day(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", c.End, c.Start)
	}
	return start, end, nil
}

// HemisphereFlag parses Hemisphere.
func (c *Config) HemisphereFlag() types.Hemisphere {
	h, _ := types.ParseHemisphere(c.Hemisphere)
	return h
}

// ConjunctionDir is where per-imager tables are written.
func (c *Config) ConjunctionDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(c.DataDir, "conjunctions")
}

// Locations is the imager location catalog path.
func (c *Config) Locations() string {
	if c.LocationsFile != "" {
		return c.LocationsFile
	}
	return filepath.Join(c.DataDir, "asi_locations.csv")
}

// LoadFromFile loads configuration from a YAML or JSON file and applies
// defaults. Validation is left to the caller, after flags and environment
// have been merged.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	config.SetDefaults()
	return &config, nil
}

// WriteFile creates the data directory and saves c as YAML or JSON,
// chosen by the extension of path.
func (c *Config) WriteFile(path string) error {
	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// MergeWithFlags merges command-line flags with file configuration
// Command-line flags take precedence over file configuration
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	str := map[string]*string{
		"data_dir":         &c.DataDir,
		"output_dir":       &c.OutputDir,
		"locations_file":   &c.LocationsFile,
		"mission":          &c.Mission,
		"array":            &c.Array,
		"start":            &c.Start,
		"end":              &c.End,
		"hemisphere":       &c.Hemisphere,
		"index_url":        &c.IndexURL,
		"index_dir":        &c.IndexDir,
		"user_agent":       &c.UserAgent,
		"metrics_addr":     &c.MetricsAddr,
		"otel_endpoint":    &c.OTELEndpoint,
		"otel_service":     &c.OTELService,
		"redis_addr":       &c.RedisAddr,
		"redis_queue_addr": &c.RedisQueueAddr,
		"redis_queue_key":  &c.RedisQueueKey,
	}
	for k, dst := range str {
		if v, ok := flags[k].(string); ok && v != "" {
			*dst = v
		}
	}
	num := map[string]*float64{
		"altitude_km":       &c.AltitudeKm,
		"min_elevation_deg": &c.MinElevationDeg,
		"index_rps":         &c.IndexRPS,
		"otel_sample_ratio": &c.OTELSample,
	}
	for k, dst := range num {
		if v, ok := flags[k].(float64); ok && v != 0 {
			*dst = v
		}
	}
	if v, ok := flags["satellites"].(string); ok && v != "" {
		c.Satellites = splitList(v)
	}
	if v, ok := flags["imagers"].(string); ok && v != "" {
		c.Imagers = splitList(v)
	}
	if v, ok := flags["disable_checkpoint"].(bool); ok && v {
		c.DisableCheckpoint = true
	}
	if v, ok := flags["skip_unavailable"].(bool); ok && v {
		c.SkipUnavailable = true
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("CONJ_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CONJ_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_QUEUE_ADDR"); v != "" {
		c.RedisQueueAddr = v
	}
	if v := os.Getenv("REDIS_QUEUE_KEY"); v != "" {
		c.RedisQueueKey = v
	}
}
