package model

import (
	"runtime"
	"strings"
	"time"
)

// Config is the run-wide configuration, layered from defaults, the config
// file, DRILLGRADE_* environment variables and CLI flags
type Config struct {
	Output      OutputConfig      `yaml:"output"`
	Location    LocationDefaults  `yaml:"location"`
	Cache       CacheConfig       `yaml:"cache"`
	Feedback    FeedbackConfig    `yaml:"feedback"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Log         LogConfig         `yaml:"log"`
}

// OutputConfig controls report artifacts
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Verbose bool   `yaml:"verbose"`
	KML     bool   `yaml:"kml"`
	Metrics bool   `yaml:"metrics"`
}

// LocationDefaults is the fallback jitter center and radius
type LocationDefaults struct {
	Fallback     Coordinate `yaml:"fallback"`
	RadiusMeters float64    `yaml:"radius_meters"`
}

// CacheConfig controls the image-similarity score cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// FeedbackConfig controls delivery of per-sender grade messages
type FeedbackConfig struct {
	Enabled           bool          `yaml:"enabled"`
	From              string        `yaml:"from"`
	OutboxDir         string        `yaml:"outbox_dir"`
	WebhookURL        string        `yaml:"webhook_url,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty"`
	NoProxy           string        `yaml:"no_proxy,omitempty"`
}

// ConcurrencyConfig bounds how many exercises a batch grades at once
type ConcurrencyConfig struct {
	Workers int `yaml:"workers"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level string `yaml:"level"`
}

// FallbackOrigin is the geographic center of the contiguous United States,
// used to place entities when neither they nor the exercise have a location
var FallbackOrigin = Coordinate{Lat: 39.8283, Lon: -98.5795}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir: "./drillgrade-reports",
			KML: true,
		},
		Location: LocationDefaults{
			Fallback:     FallbackOrigin,
			RadiusMeters: 10_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".drillgrade-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Feedback: FeedbackConfig{
			From:              "GRADER",
			OutboxDir:         "./drillgrade-outbox",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
