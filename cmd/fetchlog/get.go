package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"fetchlog/pkg/ui"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Request URLs and log each response",
	Long: `Request every URL once through the intercepted HTTP client and print one
log line per response. Bodies are read and discarded so sizes are known even
without a Content-Length header.`,
	Example: `  # Log a single request
  fetchlog get https://example.com

  # Debug columns, JSON output
  fetchlog get https://example.com/app.js https://example.com/style.css --mode debug --format json

  # Only images, full paths, at most 30 requests per minute
  fetchlog get $(cat urls.txt) --type image --pathname full --rate-limit 30`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	addRequestFlags(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	targets, err := normalizeTargets(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ui.PrintInfo("Requests", strconv.Itoa(len(targets)))

	if err := a.fetchAll(cmd.Context(), targets); err != nil {
		return err
	}
	a.flush()
	a.tracker.PrintSummary()
	return nil
}
