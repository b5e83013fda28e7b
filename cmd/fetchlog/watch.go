package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"fetchlog/pkg/ui"
)

var (
	// Watch command flags
	interval    time.Duration
	schedule    string
	metricsAddr string
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <url>...",
	Short: "Request URLs repeatedly until interrupted",
	Long: `Request every URL on a fixed interval and log each response, until
interrupted with Ctrl+C. With --metrics-addr the request counters are served
for Prometheus on /metrics.`,
	Example: `  # Poll an API every 5 seconds, only logging failures
  fetchlog watch https://api.example.com/health --interval 5s --mode error

  # Run a round at the start of every minute
  fetchlog watch https://example.com --schedule "* * * * *"

  # Expose metrics on :9464
  fetchlog watch https://example.com --metrics-addr :9464`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addRequestFlags(watchCmd)
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", 10*time.Second, "time between rounds")
	watchCmd.Flags().StringVar(&schedule, "schedule", "", "cron expression or @every descriptor, overrides --interval")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sched, err := parseSchedule(schedule, interval)
	if err != nil {
		return err
	}

	targets, err := normalizeTargets(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.metrics != nil {
		shutdown := a.serveMetrics()
		defer shutdown()
	}

	for {
		round := a.tracker.NextRound()
		a.log.DebugWithFields("Starting round", map[string]interface{}{
			"round":   round,
			"targets": len(targets),
		})

		if err := a.fetchAll(ctx, targets); err != nil && ctx.Err() == nil {
			return err
		}
		a.flush()
		a.tracker.PrintSummary()

		timer := time.NewTimer(time.Until(sched.Next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			ui.PrintHighlight("Stopped watching")
			return nil
		case <-timer.C:
		}
	}
}

// parseSchedule builds the round schedule. A cron expression wins over the
// interval; intervals are rounded down to whole seconds.
func parseSchedule(expr string, every time.Duration) (cron.Schedule, error) {
	if expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
		}
		return sched, nil
	}
	if every < time.Second {
		return nil, errors.New("interval must be at least 1s")
	}
	return cron.Every(every), nil
}

// serveMetrics starts the /metrics endpoint and returns its shutdown func
func (a *app) serveMetrics() func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Metrics server failed")
			ui.PrintError("Metrics server failed", err)
		}
	}()
	ui.PrintInfo("Metrics", "http://"+a.cfg.Metrics.Address+"/metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("Failed to stop metrics server")
		}
	}
}
