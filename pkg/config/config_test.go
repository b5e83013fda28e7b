package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Logger.Mode != "info" {
		t.Errorf("Expected default mode to be info, got %s", config.Logger.Mode)
	}

	if config.Logger.Type != "all" {
		t.Errorf("Expected default type to be all, got %s", config.Logger.Type)
	}

	if !config.Logger.URL.Host || !config.Logger.URL.Search || config.Logger.URL.Pathname != "short" {
		t.Errorf("Expected default url options {host short search}, got %+v", config.Logger.URL)
	}

	if config.Queue.Workers != 1 {
		t.Errorf("Expected default workers to be 1, got %d", config.Queue.Workers)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FETCHLOG_MODE", "debug")
	t.Setenv("FETCHLOG_TYPE", "image")
	t.Setenv("FETCHLOG_COLUMNS", "requestType, responseStatus,,url")
	t.Setenv("FETCHLOG_URL_HOST", "false")
	t.Setenv("FETCHLOG_URL_PATHNAME", "full")
	t.Setenv("FETCHLOG_FORMAT", "json")
	t.Setenv("FETCHLOG_WORKERS", "3")
	t.Setenv("FETCHLOG_SIZE_TIMEOUT", "250ms")
	t.Setenv("FETCHLOG_METRICS_ADDR", ":9100")
	t.Setenv("FETCHLOG_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Logger.Mode != "debug" {
		t.Errorf("Expected mode to be debug, got %s", config.Logger.Mode)
	}

	if config.Logger.Type != "image" {
		t.Errorf("Expected type to be image, got %s", config.Logger.Type)
	}

	if got := strings.Join(config.Logger.Columns, ","); got != "requestType,responseStatus,url" {
		t.Errorf("Expected columns requestType,responseStatus,url, got %s", got)
	}

	if config.Logger.URL.Host {
		t.Error("Expected url host to be disabled")
	}

	if config.Logger.URL.Pathname != "full" {
		t.Errorf("Expected pathname to be full, got %s", config.Logger.URL.Pathname)
	}

	if config.Output.Format != FormatJSON {
		t.Errorf("Expected format to be json, got %s", config.Output.Format)
	}

	if config.Queue.Workers != 3 {
		t.Errorf("Expected workers to be 3, got %d", config.Queue.Workers)
	}

	if config.Queue.SizeTimeout != 250*time.Millisecond {
		t.Errorf("Expected size timeout to be 250ms, got %v", config.Queue.SizeTimeout)
	}

	if !config.Metrics.Enabled || config.Metrics.Address != ":9100" {
		t.Errorf("Expected metrics on :9100, got %+v", config.Metrics)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected env config to be valid, got %v", err)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("FETCHLOG_WORKERS", "many")
	t.Setenv("FETCHLOG_SIZE_TIMEOUT", "soon")
	t.Setenv("FETCHLOG_REQUESTS_PER_MINUTE", "fast")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected an error for invalid environment values")
	}
	if config.Client.RequestsPerMinute != DefaultConfig().Client.RequestsPerMinute {
		t.Errorf("Invalid rate limit should leave the default, got %d", config.Client.RequestsPerMinute)
	}

	for _, name := range []string{"FETCHLOG_WORKERS", "FETCHLOG_SIZE_TIMEOUT", "FETCHLOG_REQUESTS_PER_MINUTE"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("Expected error to mention %s, got %v", name, err)
		}
	}
}

func TestNegativeRateLimitEnvFailsValidation(t *testing.T) {
	t.Setenv("FETCHLOG_REQUESTS_PER_MINUTE", "-5")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}
	if err := config.Validate(); err == nil {
		t.Error("Expected a negative rate limit to fail validation")
	}
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Output.Color != "never" || !config.Logging.NoColor {
		t.Errorf("Expected NO_COLOR to disable colors, got color=%s no_color=%v", config.Output.Color, config.Logging.NoColor)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "error mode",
			modify:    func(c *Config) { c.Logger.Mode = "error" },
			wantError: false,
		},
		{
			name:      "unknown mode",
			modify:    func(c *Config) { c.Logger.Mode = "verbose" },
			wantError: true,
		},
		{
			name:      "unknown type",
			modify:    func(c *Config) { c.Logger.Type = "video" },
			wantError: true,
		},
		{
			name:      "camel case column aliases",
			modify:    func(c *Config) { c.Logger.Columns = []string{"requestType", "filename"} },
			wantError: false,
		},
		{
			name:      "unknown column",
			modify:    func(c *Config) { c.Logger.Columns = []string{"latency"} },
			wantError: true,
		},
		{
			name:      "invalid pathname style",
			modify:    func(c *Config) { c.Logger.URL.Pathname = "medium" },
			wantError: true,
		},
		{
			name:      "invalid output format",
			modify:    func(c *Config) { c.Output.Format = "xml" },
			wantError: true,
		},
		{
			name:      "invalid color mode",
			modify:    func(c *Config) { c.Output.Color = "sometimes" },
			wantError: true,
		},
		{
			name:      "zero workers",
			modify:    func(c *Config) { c.Queue.Workers = 0 },
			wantError: true,
		},
		{
			name:      "metrics without address",
			modify:    func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" },
			wantError: true,
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	config := DefaultConfig()
	config.Logger.Mode = "loud"
	config.Queue.Workers = -1

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "invalid mode") || !strings.Contains(msg, "queue workers") {
		t.Errorf("Expected both problems to be reported, got %v", err)
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"mode":       "error",
		"type":       "fetch",
		"columns":    []string{"status", "url"},
		"host":       false,
		"concurrent": 7,
		"timeout":    5 * time.Second,
		"log-level":  "error",
		"no-color":   true,
	}

	config.MergeCommandLineFlags(flags)

	if config.Logger.Mode != "error" {
		t.Errorf("Expected mode to be error, got %s", config.Logger.Mode)
	}

	if config.Logger.Type != "fetch" {
		t.Errorf("Expected type to be fetch, got %s", config.Logger.Type)
	}

	if len(config.Logger.Columns) != 2 {
		t.Errorf("Expected 2 columns, got %v", config.Logger.Columns)
	}

	if config.Logger.URL.Host {
		t.Error("Expected url host to be disabled")
	}

	if !config.Logger.URL.Search {
		t.Error("Expected url search to keep its default")
	}

	if config.Client.Concurrency != 7 {
		t.Errorf("Expected concurrency to be 7, got %d", config.Client.Concurrency)
	}

	if config.Client.Timeout != 5*time.Second {
		t.Errorf("Expected timeout to be 5s, got %v", config.Client.Timeout)
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}

	if config.Output.Color != "never" {
		t.Errorf("Expected color to be never, got %s", config.Output.Color)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "fetchlog.yaml")

	config := DefaultConfig()
	config.Logger.Mode = "debug"
	config.Logger.Columns = []string{"category", "url"}
	config.Queue.SizeTimeout = 2 * time.Second

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Logger.Mode != "debug" {
		t.Errorf("Expected loaded mode to be debug, got %s", loadedConfig.Logger.Mode)
	}

	if len(loadedConfig.Logger.Columns) != 2 {
		t.Errorf("Expected 2 loaded columns, got %v", loadedConfig.Logger.Columns)
	}

	if loadedConfig.Queue.SizeTimeout != 2*time.Second {
		t.Errorf("Expected loaded size timeout to be 2s, got %v", loadedConfig.Queue.SizeTimeout)
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "partial.yaml")
	data := "logger:\n  type: css\noutput:\n  format: json\n"
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Logger.Type != "css" || config.Output.Format != "json" {
		t.Errorf("Expected file values to apply, got type=%s format=%s", config.Logger.Type, config.Output.Format)
	}

	if config.Logger.Mode != "info" || !config.Logger.URL.Host {
		t.Error("Expected defaults to survive a partial file")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}
