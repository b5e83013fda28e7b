package fetchlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fetchlog/pkg/category"
	"fetchlog/pkg/config"
	"fetchlog/pkg/format"
)

// Mode selects which requests are logged and with which default columns
type Mode string

const (
	// ModeInfo logs every request with the short column set
	ModeInfo Mode = "info"

	// ModeDebug logs every request with origin file and timestamp
	ModeDebug Mode = "debug"

	// ModeError logs only failed requests, rendered as in debug mode
	ModeError Mode = "error"
)

// ParseMode converts a mode name to a Mode
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeInfo, ModeDebug, ModeError:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode: %q", s)
	}
}

// String returns the mode name
func (m Mode) String() string {
	return string(m)
}

// Config configures a Logger. Zero values select the defaults.
type Config struct {
	Mode    Mode
	Type    category.Category
	Columns []format.Column

	// URL replaces the default url options when set
	URL *format.URLOptions

	Format      string
	Color       format.ColorMode
	Workers     int
	QueueSize   int
	SizeTimeout time.Duration
}

// DefaultConfig returns the configuration used for omitted settings
func DefaultConfig() Config {
	url := format.DefaultURLOptions()
	return Config{
		Mode:        ModeInfo,
		Type:        category.All,
		URL:         &url,
		Format:      config.FormatText,
		Color:       format.ColorAuto,
		Workers:     1,
		QueueSize:   256,
		SizeTimeout: 5 * time.Second,
	}
}

// withDefaults fills every unset field from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.URL == nil {
		c.URL = d.URL
	} else {
		opts := *c.URL
		if opts.Pathname == "" {
			opts.Pathname = format.PathnameShort
		}
		c.URL = &opts
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.SizeTimeout == 0 {
		c.SizeTimeout = d.SizeTimeout
	}
	return c
}

// FromConfig converts the file/env/flag configuration into a Logger Config
func FromConfig(cfg *config.Config) (Config, error) {
	var errs []error

	mode, err := ParseMode(cfg.Logger.Mode)
	if err != nil {
		errs = append(errs, err)
	}

	typ, err := category.ParseFilter(cfg.Logger.Type)
	if err != nil {
		errs = append(errs, err)
	}

	var columns []format.Column
	if len(cfg.Logger.Columns) > 0 {
		columns, err = format.ParseColumns(cfg.Logger.Columns)
		if err != nil {
			errs = append(errs, err)
		}
	}

	pathname, err := format.ParsePathnameStyle(cfg.Logger.URL.Pathname)
	if err != nil {
		errs = append(errs, err)
	}

	color, err := format.ParseColorMode(cfg.Output.Color)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return Config{
		Mode:    mode,
		Type:    typ,
		Columns: columns,
		URL: &format.URLOptions{
			Host:     cfg.Logger.URL.Host,
			Pathname: pathname,
			Search:   cfg.Logger.URL.Search,
		},
		Format:      strings.ToLower(cfg.Output.Format),
		Color:       color,
		Workers:     cfg.Queue.Workers,
		QueueSize:   cfg.Queue.BufferSize,
		SizeTimeout: cfg.Queue.SizeTimeout,
	}.withDefaults(), nil
}
