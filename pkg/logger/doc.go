// Package logger provides the diagnostic logger of fetchlog.
//
// Request lines are written by package format; this logger reports what the
// instrumentation itself does: attach and detach, dropped lines, queue
// lifecycle. It wraps zerolog with:
// - Multiple log levels (Debug, Info, Warn, Error)
// - Structured logging with fields
// - Colored console output on stderr
// - Optional JSON file output
// - A nop logger and a capturing TestLogger for tests
//
// Basic Usage:
//
//	log, err := logger.New(&config.LoggingConfig{Level: "debug"})
//	log.WithField("transport", "default").Info("Interceptor attached")
package logger
