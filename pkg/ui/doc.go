// Package ui prints CLI status messages and request counters.
//
// Everything is written to stderr by default; stdout is reserved for the
// request lines produced by package fetchlog.
package ui
