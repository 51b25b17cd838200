package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("", env(map[string]string{"FT_SPREADSHEET_ID": "sheet-1"}))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	want := Default()
	want.SpreadsheetID = "sheet-1"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
spreadsheet_id: from-yaml
backend: sheets
cache_ttl: 30s
timezone: UTC
retry:
  max_retries: 3
  base_delay: 500ms
rate_limit:
  per_second: 2.5
  burst: 10
snapshot:
  bucket: my-bucket
http:
  port: "9000"
`)
	cfg, err := LoadFrom(path, env(map[string]string{
		"FT_SPREADSHEET_ID": "from-env",
		"FT_MAX_RETRIES":    "7",
		"PORT":              "7070",
	}))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.SpreadsheetID != "from-env" {
		t.Errorf("Expected env to override yaml, got %q", cfg.SpreadsheetID)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("Unexpected durations: ttl=%v base=%v", cfg.CacheTTL, cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxRetries != 7 || cfg.HTTP.Port != "7070" {
		t.Errorf("Expected env overrides, got retries=%d port=%s", cfg.Retry.MaxRetries, cfg.HTTP.Port)
	}
	if cfg.RateLimit.PerSecond != 2.5 || cfg.RateLimit.Burst != 10 {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Snapshot.Bucket != "my-bucket" || cfg.Snapshot.Prefix != "snapshots" {
		t.Errorf("Expected yaml bucket with default prefix, got %+v", cfg.Snapshot)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = (%v, %v)", loc, err)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		env  map[string]string
	}{
		{"missing spreadsheet", "", map[string]string{}},
		{"unknown backend", "", map[string]string{"FT_BACKEND": "excel"}},
		{"bad duration", "", map[string]string{"FT_BACKEND": "memory", "FT_CACHE_TTL": "soon"}},
		{"bad int", "", map[string]string{"FT_BACKEND": "memory", "FT_MAX_RETRIES": "many"}},
		{"bad rate", "", map[string]string{"FT_BACKEND": "memory", "FT_RATE_LIMIT": "fast"}},
		{"negative rate", "", map[string]string{"FT_BACKEND": "memory", "FT_RATE_LIMIT": "-1"}},
		{"bad timezone", "", map[string]string{"FT_BACKEND": "memory", "FT_TIMEZONE": "Mars/Olympus"}},
		{"missing file", filepath.Join(os.TempDir(), "does-not-exist.yaml"), map[string]string{"FT_BACKEND": "memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFrom(tt.path, env(tt.env)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestLoadFrom_MemoryBackendNeedsNoSpreadsheet(t *testing.T) {
	cfg, err := LoadFrom("", env(map[string]string{"FT_BACKEND": "memory", "FT_RATE_LIMIT": "0"}))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.RateLimit.PerSecond != 0 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}
