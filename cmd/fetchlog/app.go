package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fetchlog/pkg/config"
	fetcherrors "fetchlog/pkg/errors"
	"fetchlog/pkg/fetchlog"
	"fetchlog/pkg/logger"
	"fetchlog/pkg/metrics"
	"fetchlog/pkg/ratelimit"
	"fetchlog/pkg/ui"
)

var (
	// Request flags shared by get and watch
	mode       string
	typeFilter string
	columns    []string
	noHost     bool
	pathname   string
	noSearch   bool
	outFormat  string
	concurrent int
	rateLimit  int
	timeout    time.Duration
)

// addRequestFlags registers the flags that configure the fetch logger
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "log mode (info, debug, error)")
	cmd.Flags().StringVarP(&typeFilter, "type", "t", "", "only log this category (all, fetch, image, js, css, html, unknown)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to print (category, status, duration, url, size, originFile, timestamp)")
	cmd.Flags().BoolVar(&noHost, "no-host", false, "omit the host from the url column")
	cmd.Flags().StringVar(&pathname, "pathname", "", "url path style (full, short)")
	cmd.Flags().BoolVar(&noSearch, "no-search", false, "omit the query string from the url column")
	cmd.Flags().StringVarP(&outFormat, "format", "f", "", "output format (text, json)")
	cmd.Flags().IntVar(&concurrent, "concurrent", 4, "number of concurrent requests")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute (0 means unlimited)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

// collectFlags returns the flags the user actually set, keyed as
// config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("mode") {
		flags["mode"] = mode
	}
	if changed("type") {
		flags["type"] = typeFilter
	}
	if changed("columns") {
		flags["columns"] = columns
	}
	if changed("no-host") {
		flags["host"] = !noHost
	}
	if changed("pathname") {
		flags["pathname"] = pathname
	}
	if changed("no-search") {
		flags["search"] = !noSearch
	}
	if changed("format") {
		flags["format"] = outFormat
	}
	if changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if changed("timeout") {
		flags["timeout"] = timeout
	}
	if changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}

	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

// app wires configuration, the fetch logger and the request loop
type app struct {
	cfg     *config.Config
	log     logger.Logger
	fetch   *fetchlog.Logger
	metrics *metrics.Recorder
	limiter ratelimit.Limiter
	tracker *ui.StatusTracker
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	fcfg, err := fetchlog.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		limiter: ratelimit.PerMinute(cfg.Client.RequestsPerMinute),
		tracker: ui.NewStatusTracker(),
	}

	opts := []fetchlog.Option{fetchlog.WithLogger(log)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = metrics.New(reg)
		opts = append(opts, fetchlog.WithMetrics(a.metrics))
	}

	http.DefaultClient.Timeout = cfg.Client.Timeout
	a.fetch = fetchlog.Initialize(fcfg, opts...)
	if err := a.fetch.Attach(); err != nil {
		return nil, err
	}

	log.InfoWithFields("Fetch logger attached", map[string]interface{}{
		"mode":        fcfg.Mode.String(),
		"type":        fcfg.Type.String(),
		"format":      fcfg.Format,
		"concurrency": cfg.Client.Concurrency,
	})
	return a, nil
}

// fetchAll requests every target, at most Client.Concurrency at a time
func (a *app) fetchAll(ctx context.Context, targets []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Client.Concurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
			a.fetchOne(ctx, target)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// fetchOne issues a GET through the intercepted default client and drains
// the body so the size column can be computed
func (a *app) fetchOne(ctx context.Context, target string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		a.tracker.Record(0, err)
		ui.PrintError("Invalid request", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.tracker.Record(0, err)
		failure := fetcherrors.FromResult(target, 0, err)
		if failure.Type != fetcherrors.ErrorTypeCanceled {
			a.log.WithError(err).WithFields(map[string]interface{}{
				"url":        target,
				"error_type": string(failure.Type),
			}).Warn("Request failed")
			ui.PrintError("Request failed", failure)
		}
		return
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		a.log.WithError(err).WithField("url", target).Warn("Failed to read response body")
	}
	a.tracker.Record(resp.StatusCode, nil)

	fields := map[string]interface{}{
		"url":    target,
		"status": resp.StatusCode,
		"bytes":  n,
	}
	if failure := fetcherrors.FromResult(target, resp.StatusCode, nil); failure != nil {
		fields["error_type"] = string(failure.Type)
	}
	a.log.DebugWithFields("Request completed", fields)
}

// flush waits for queued lines, bounded by the client timeout
func (a *app) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Client.Timeout+a.cfg.Queue.SizeTimeout)
	defer cancel()
	if err := a.fetch.Flush(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to flush request lines")
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Queue.SizeTimeout+time.Second)
	defer cancel()
	if err := a.fetch.Close(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to close fetch logger")
	}
}

// normalizeTargets adds https:// to bare hosts and rejects unparsable URLs
func normalizeTargets(args []string) ([]string, error) {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		target := strings.TrimSpace(arg)
		if !strings.Contains(target, "://") {
			target = "https://" + target
		}
		u, err := url.Parse(target)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid url: %q", arg)
		}
		targets = append(targets, u.String())
	}
	return targets, nil
}
