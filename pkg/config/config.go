package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fetchlog/pkg/category"
	"fetchlog/pkg/format"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "FETCHLOG_"

// Config holds all configuration options for fetchlog
type Config struct {
	// Request line settings
	Logger LoggerConfig `yaml:"logger" json:"logger"`

	// Where and how request lines are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Background log queue
	Queue QueueConfig `yaml:"queue" json:"queue"`

	// HTTP client used by the CLI
	Client ClientConfig `yaml:"client" json:"client"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Diagnostic logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggerConfig selects which requests are logged and which columns are shown
type LoggerConfig struct {
	Mode    string    `yaml:"mode" json:"mode"`
	Type    string    `yaml:"type" json:"type"`
	Columns []string  `yaml:"columns,omitempty" json:"columns,omitempty"`
	URL     URLConfig `yaml:"url" json:"url"`
}

// URLConfig controls the url column
type URLConfig struct {
	Host     bool   `yaml:"host" json:"host"`
	Pathname string `yaml:"pathname" json:"pathname"`
	Search   bool   `yaml:"search" json:"search"`
}

// OutputConfig holds request line output settings
type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
	Color  string `yaml:"color" json:"color"`
}

// QueueConfig holds log queue settings
type QueueConfig struct {
	Workers     int           `yaml:"workers" json:"workers"`
	BufferSize  int           `yaml:"buffer_size" json:"buffer_size"`
	SizeTimeout time.Duration `yaml:"size_timeout" json:"size_timeout"`
}

// ClientConfig holds settings for requests issued by the CLI
type ClientConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds diagnostic logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Mode: "info",
			Type: "all",
			URL: URLConfig{
				Host:     true,
				Pathname: string(format.PathnameShort),
				Search:   true,
			},
		},
		Output: OutputConfig{
			Format: FormatText,
			Color:  string(format.ColorAuto),
		},
		Queue: QueueConfig{
			Workers:     1,
			BufferSize:  256,
			SizeTimeout: 5 * time.Second,
		},
		Client: ClientConfig{
			Timeout:           30 * time.Second,
			Concurrency:       4,
			RequestsPerMinute: 0, // 0 means no limit
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getenv("MODE"); v != "" {
		c.Logger.Mode = v
	}
	if v := getenv("TYPE"); v != "" {
		c.Logger.Type = v
	}
	if v := getenv("COLUMNS"); v != "" {
		c.Logger.Columns = splitList(v)
	}
	if v := getenv("URL_HOST"); v != "" {
		c.Logger.URL.Host = parseBool(v)
	}
	if v := getenv("URL_PATHNAME"); v != "" {
		c.Logger.URL.Pathname = v
	}
	if v := getenv("URL_SEARCH"); v != "" {
		c.Logger.URL.Search = parseBool(v)
	}

	if v := getenv("FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := getenv("COLOR"); v != "" {
		c.Output.Color = v
	}

	if v := getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.Workers = n
		} else {
			errs = append(errs, fmt.Errorf("%sWORKERS: %w", EnvPrefix, err))
		}
	}
	if v := getenv("QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Queue.BufferSize = n
		} else {
			errs = append(errs, fmt.Errorf("%sQUEUE_SIZE: %w", EnvPrefix, err))
		}
	}
	if v := getenv("SIZE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Queue.SizeTimeout = d
		} else {
			errs = append(errs, fmt.Errorf("%sSIZE_TIMEOUT: %w", EnvPrefix, err))
		}
	}

	if v := getenv("TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Client.Timeout = d
		} else {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		}
	}
	if v := getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Client.RequestsPerMinute = n
		} else {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		}
	}

	if v := getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Output.Color = string(format.ColorNever)
		c.Logging.NoColor = true
	}

	return errors.Join(errs...)
}

func getenv(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// splitList splits a comma separated value, dropping empty items
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".fetchlog.yaml",
		".fetchlog.yml",
		filepath.Join(home, ".config", "fetchlog", "config.yaml"),
		filepath.Join(home, ".config", "fetchlog", "config.yml"),
		filepath.Join(home, ".fetchlog.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logger.Mode) {
	case "info", "debug", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (want info, debug or error)", c.Logger.Mode))
	}
	if _, err := category.ParseFilter(c.Logger.Type); err != nil {
		errs = append(errs, fmt.Errorf("invalid type filter: %w", err))
	}
	if _, err := format.ParseColumns(c.Logger.Columns); err != nil {
		errs = append(errs, fmt.Errorf("invalid columns: %w", err))
	}
	if _, err := format.ParsePathnameStyle(c.Logger.URL.Pathname); err != nil {
		errs = append(errs, fmt.Errorf("invalid url options: %w", err))
	}

	switch strings.ToLower(c.Output.Format) {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid output format %q (want text or json)", c.Output.Format))
	}
	if _, err := format.ParseColorMode(c.Output.Color); err != nil {
		errs = append(errs, err)
	}

	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("queue workers must be positive"))
	}
	if c.Queue.BufferSize < 0 {
		errs = append(errs, errors.New("queue buffer size cannot be negative"))
	}
	if c.Queue.SizeTimeout < 0 {
		errs = append(errs, errors.New("size timeout cannot be negative"))
	}

	if c.Client.Timeout < 0 {
		errs = append(errs, errors.New("client timeout cannot be negative"))
	}
	if c.Client.Concurrency <= 0 {
		errs = append(errs, errors.New("client concurrency must be positive"))
	}
	if c.Client.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["mode"].(string); ok && v != "" {
		c.Logger.Mode = v
	}
	if v, ok := flags["type"].(string); ok && v != "" {
		c.Logger.Type = v
	}
	if v, ok := flags["columns"].([]string); ok && len(v) > 0 {
		c.Logger.Columns = v
	}
	if v, ok := flags["host"].(bool); ok {
		c.Logger.URL.Host = v
	}
	if v, ok := flags["pathname"].(string); ok && v != "" {
		c.Logger.URL.Pathname = v
	}
	if v, ok := flags["search"].(bool); ok {
		c.Logger.URL.Search = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Output.Format = v
	}
	if v, ok := flags["color"].(string); ok && v != "" {
		c.Output.Color = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Queue.Workers = v
	}
	if v, ok := flags["size-timeout"].(time.Duration); ok && v > 0 {
		c.Queue.SizeTimeout = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Client.Timeout = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Client.Concurrency = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v >= 0 {
		c.Client.RequestsPerMinute = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Output.Color = string(format.ColorNever)
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".fetchlog.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
