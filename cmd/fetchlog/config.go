package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"fetchlog/pkg/config"
	"fetchlog/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fetchlog configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FETCHLOG_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.fetchlog.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging flags, environment
variables, .env files, the configuration file and defaults.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the effective configuration.

This command checks:
  - YAML syntax
  - Modes, categories, columns and url options
  - Value ranges for the queue and the client`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# fetchlog configuration file
#
# Every option can also be set with an environment variable prefixed with
# FETCHLOG_, for example FETCHLOG_MODE=debug or FETCHLOG_TYPE=image.

# Which requests are logged and how
logger:
  # info, debug or error
  mode: info

  # all, fetch, image, js, css, html or unknown
  type: all

  # Columns override the mode's default set. Printed in fixed order:
  # category, status, duration, url, size, originFile, timestamp
  # columns: [category, status, duration, url]

  url:
    host: true
    # full or short (last path segment)
    pathname: short
    search: true

# Request line output
output:
  # text or json
  format: text
  # auto, always or never
  color: auto

# Background queue writing request lines
queue:
  workers: 1
  buffer_size: 256
  # How long the size column waits for a body without Content-Length
  size_timeout: 5s

# Requests issued by get and watch
client:
  timeout: 30s
  concurrency: 4
  # 0 means unlimited
  requests_per_minute: 0

# Prometheus metrics (watch)
metrics:
  enabled: false
  address: ":9464"

# Diagnostic logging on stderr
logging:
  # debug, info, warn, error or disabled
  level: warn
  # Optional JSON log file
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".fetchlog.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		return fmt.Errorf("refusing to overwrite %s", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\n# Configuration sources (in order of priority):")
	fmt.Fprintln(out, "# 1. Command line flags")
	fmt.Fprintln(out, "# 2. Environment variables (FETCHLOG_*)")
	if configFile != "" {
		fmt.Fprintf(out, "# 3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "# 3. Configuration file: (default locations)")
	}
	fmt.Fprintln(out, "# 4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration has errors:")
		out := cmd.ErrOrStderr()
		for _, line := range splitJoined(err) {
			fmt.Fprintf(out, "  - %s\n", line)
		}
		return errors.New("configuration is invalid")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Mode: %s\n", cfg.Logger.Mode)
	fmt.Fprintf(out, "  Type: %s\n", cfg.Logger.Type)
	if len(cfg.Logger.Columns) > 0 {
		fmt.Fprintf(out, "  Columns: %s\n", strings.Join(cfg.Logger.Columns, ", "))
	}
	fmt.Fprintf(out, "  Format: %s\n", cfg.Output.Format)
	fmt.Fprintf(out, "  Workers: %d\n", cfg.Queue.Workers)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// splitJoined lists the errors combined by errors.Join
func splitJoined(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, e.Error())
		}
		return lines
	}
	return []string{err.Error()}
}
