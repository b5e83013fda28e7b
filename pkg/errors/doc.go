// Package errors classifies failed requests issued by the CLI so that
// diagnostics and counters can tell network trouble from HTTP errors.
package errors
