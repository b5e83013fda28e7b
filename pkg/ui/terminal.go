package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Status output goes to stderr so stdout only carries request lines
var (
	mu       sync.Mutex
	out      io.Writer = os.Stderr
	renderer           = lipgloss.NewRenderer(os.Stderr)
	quiet    bool
)

// Color functions for terminal output
var (
	Cyan    = colorize("6")
	Yellow  = colorize("3")
	Red     = colorize("1")
	Green   = colorize("2")
	Magenta = colorize("5")
	Dim     = colorize("8")
)

// SetOutput redirects status output. color forces ANSI colors on or off.
func SetOutput(w io.Writer, color bool) {
	mu.Lock()
	defer mu.Unlock()

	out = w
	renderer = lipgloss.NewRenderer(w)
	if color {
		renderer.SetColorProfile(termenv.ANSI)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}
}

// SetNoColor disables colors on the current output
func SetNoColor() {
	mu.Lock()
	defer mu.Unlock()
	renderer.SetColorProfile(termenv.Ascii)
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// colorize returns a function that renders text in an ANSI color
func colorize(color string) func(string) string {
	return func(text string) string {
		mu.Lock()
		r := renderer
		mu.Unlock()
		return r.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
	}
}

func writeLine(text string, always bool) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, text)
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		writeLine(Red(msg+": "+fmt.Sprintf("%v", args[0])), true)
	} else {
		writeLine(Red(msg), true)
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	writeLine(Green(msg), false)
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	writeLine(fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)), false)
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		writeLine(Yellow(msg+": "+fmt.Sprintf("%v", args[0])), false)
	} else {
		writeLine(Yellow(msg), false)
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	writeLine(Magenta(msg), false)
}
