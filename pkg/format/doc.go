// Package format turns intercepted requests into log lines.
//
// A Formatter builds a Line, a list of Fields made of text Segments tagged with
// a semantic Color and Style. Fields always appear in the fixed column order
// category, status, duration, url, size, originFile, timestamp, whatever order
// the caller selected them in.
//
// Renderers decide presentation:
//
//	TextRenderer  lipgloss/termenv styled text, " - " between fields
//	JSONRenderer  one zerolog JSON object per line, typed values per column
//
// Sample text output in info mode:
//
//	FETCH - 200 - 42ms - api.example.com/users?page=2 - 1.50 KB
package format
