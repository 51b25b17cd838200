// Package config loads runtime settings from an optional .env file, an
// optional YAML file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Config is the full runtime configuration.
type Config struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Backend         string        `yaml:"backend"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	Timezone        string        `yaml:"timezone"`
	LogLevel        string        `yaml:"log_level"`

	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	BigQuery  BigQueryConfig  `yaml:"bigquery"`
	HTTP      HTTPConfig      `yaml:"http"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// RetryConfig controls rate-limit retries of remote calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

// RateLimitConfig paces remote calls. A zero PerSecond disables pacing.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// SnapshotConfig locates pre-replace table snapshots. An empty Bucket
// disables snapshots.
type SnapshotConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// BigQueryConfig locates the ledger mirror. An empty Project disables it.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port string `yaml:"port"`
}

// ScheduleConfig holds the worker's cron specs. An empty spec disables the job.
type ScheduleConfig struct {
	Snapshot string `yaml:"snapshot"`
	Mirror   string `yaml:"mirror"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:  BackendSheets,
		CacheTTL: 60 * time.Second,
		Timezone: "Local",
		LogLevel: "info",
		Retry:    RetryConfig{MaxRetries: 5, BaseDelay: 2 * time.Second},
		RateLimit: RateLimitConfig{
			PerSecond: 1,
			Burst:     5,
		},
		Snapshot: SnapshotConfig{Prefix: "snapshots"},
		BigQuery: BigQueryConfig{Dataset: "finance"},
		HTTP:     HTTPConfig{Port: "8080"},
		Schedule: ScheduleConfig{
			Snapshot: "0 3 * * *",
			Mirror:   "30 3 * * *",
		},
	}
}

// Load builds the configuration. It reads .env when present, then the YAML
// file at path (FT_CONFIG when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: reading .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("FT_CONFIG")
	}
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom is Load without the .env step, with lookup standing in for the
// environment.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("LoadFrom: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("LoadFrom: parsing %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, fmt.Errorf("LoadFrom: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("LoadFrom: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("FT_SPREADSHEET_ID", &cfg.SpreadsheetID)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.CredentialsFile)
	str("FT_BACKEND", &cfg.Backend)
	str("FT_TIMEZONE", &cfg.Timezone)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("GCS_BUCKET", &cfg.Snapshot.Bucket)
	str("FT_SNAPSHOT_PREFIX", &cfg.Snapshot.Prefix)
	str("GCP_PROJECT_ID", &cfg.BigQuery.Project)
	str("FT_BQ_DATASET", &cfg.BigQuery.Dataset)
	str("PORT", &cfg.HTTP.Port)
	str("FT_SNAPSHOT_SCHEDULE", &cfg.Schedule.Snapshot)
	str("FT_MIRROR_SCHEDULE", &cfg.Schedule.Mirror)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FT_CACHE_TTL", &cfg.CacheTTL},
		{"FT_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay},
	}
	for _, d := range durations {
		if v, ok := lookup(d.key); ok {
			parsed, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"FT_MAX_RETRIES", &cfg.Retry.MaxRetries},
		{"FT_RATE_BURST", &cfg.RateLimit.Burst},
	}
	for _, n := range ints {
		if v, ok := lookup(n.key); ok {
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", n.key, err)
			}
			*n.dst = parsed
		}
	}

	if v, ok := lookup("FT_RATE_LIMIT"); ok {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("FT_RATE_LIMIT: %w", err)
		}
		cfg.RateLimit.PerSecond = parsed
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet ID is required for the sheets backend (set FT_SPREADSHEET_ID)")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.CacheTTL < 0 || c.Retry.MaxRetries < 0 || c.Retry.BaseDelay < 0 {
		return errors.New("cache TTL and retry settings must not be negative")
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
