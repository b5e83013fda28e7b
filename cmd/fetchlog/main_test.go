package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetchlog/pkg/config"
)

func TestNormalizeTargets(t *testing.T) {
	targets, err := normalizeTargets([]string{"example.com/app.js", " http://localhost:8080/api?x=1 "})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/app.js", "http://localhost:8080/api?x=1"}, targets)

	_, err = normalizeTargets([]string{"http://"})
	assert.Error(t, err)
}

func TestCollectFlagsOnlyChanged(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addRequestFlags(cmd)
	t.Cleanup(func() { logLevel, verbose, noColor = "", false, false })

	require.NoError(t, cmd.ParseFlags([]string{"--mode", "debug", "--no-host", "--columns", "status,url", "--timeout", "2s"}))
	verbose = true

	flags := collectFlags(cmd)
	assert.Equal(t, "debug", flags["mode"])
	assert.Equal(t, false, flags["host"])
	assert.Equal(t, []string{"status", "url"}, flags["columns"])
	assert.Equal(t, 2*time.Second, flags["timeout"])
	assert.Equal(t, "debug", flags["log-level"])

	_, hasSearch := flags["search"]
	assert.False(t, hasSearch)
	_, hasConcurrent := flags["concurrent"]
	assert.False(t, hasConcurrent)
}

func TestExampleConfigIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))

	cfg := config.DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Queue.SizeTimeout)
	assert.Equal(t, ":9464", cfg.Metrics.Address)
}

func TestSplitJoined(t *testing.T) {
	err := errors.Join(errors.New("bad mode"), errors.New("bad type"))
	assert.Equal(t, []string{"bad mode", "bad type"}, splitJoined(err))
	assert.Equal(t, []string{"single"}, splitJoined(errors.New("single")))
}

func TestParseSchedule(t *testing.T) {
	start := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	sched, err := parseSchedule("", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, start.Add(10*time.Second), sched.Next(start))

	sched, err = parseSchedule("*/5 * * * *", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 14, 10, 0, 0, time.UTC), sched.Next(start))

	sched, err = parseSchedule("@every 1m", 0)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), sched.Next(start))

	_, err = parseSchedule("not a schedule", time.Second)
	assert.Error(t, err)

	_, err = parseSchedule("", 500*time.Millisecond)
	assert.Error(t, err)
}
