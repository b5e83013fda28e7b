package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Renderer writes a Line to its output
type Renderer interface {
	Render(line Line) error
}

// ColorMode selects when the text renderer emits ANSI sequences
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode converts auto/always/never to a ColorMode
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(s))) {
	case ColorAuto, "":
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	default:
		return "", fmt.Errorf("unknown color mode: %q", s)
	}
}

// terminal colors for the semantic palette (ANSI 16)
var ansiColors = map[Color]lipgloss.Color{
	ColorRed:    lipgloss.Color("1"),
	ColorGreen:  lipgloss.Color("2"),
	ColorYellow: lipgloss.Color("3"),
	ColorCyan:   lipgloss.Color("6"),
	ColorGray:   lipgloss.Color("8"),
}

// TextRenderer writes one styled text line per request
type TextRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
}

// NewTextRenderer creates a text renderer writing to w
func NewTextRenderer(w io.Writer, mode ColorMode) *TextRenderer {
	r := lipgloss.NewRenderer(w)
	if useColor(w, mode) {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &TextRenderer{
		out:      w,
		renderer: r,
	}
}

// useColor decides whether w gets ANSI sequences. Auto mode honors NO_COLOR
// and only colors terminals.
func useColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Format returns the styled text of a line without writing it
func (t *TextRenderer) Format(line Line) string {
	var b strings.Builder
	for i, field := range line {
		if i > 0 {
			b.WriteString(Separator)
		}
		for _, s := range field.Segments {
			b.WriteString(t.style(s).Render(s.Text))
		}
	}
	return b.String()
}

// Render writes the line followed by a newline
func (t *TextRenderer) Render(line Line) error {
	text := t.Format(line)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, text+"\n")
	return err
}

func (t *TextRenderer) style(s Segment) lipgloss.Style {
	style := t.renderer.NewStyle()
	if c, ok := ansiColors[s.Color]; ok {
		style = style.Foreground(c)
	}
	if s.Style.Has(Bold) {
		style = style.Bold(true)
	}
	if s.Style.Has(Italic) {
		style = style.Italic(true)
	}
	if s.Style.Has(Underline) {
		style = style.Underline(true)
	}
	return style
}

// JSONRenderer writes one zerolog JSON event per request
type JSONRenderer struct {
	mu     sync.Mutex
	out    *recordingWriter
	logger zerolog.Logger
}

// NewJSONRenderer creates a structured renderer writing to w
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	out := &recordingWriter{w: w}
	return &JSONRenderer{
		out:    out,
		logger: zerolog.New(out),
	}
}

// Render emits the line as a JSON object keyed by column and returns the
// error of the write, if any
func (j *JSONRenderer) Render(line Line) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.out.err = nil
	event := j.logger.Log()
	for _, f := range line {
		event = addFieldToEvent(event, f.Column.Key(), f.Raw)
	}
	event.Msg("request")
	return j.out.err
}

// recordingWriter keeps the first write error since the last reset, since
// zerolog reports write failures only to its global error handler
type recordingWriter struct {
	w   io.Writer
	err error
}

func (r *recordingWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	return n, err
}

// addFieldToEvent adds a typed field; nil values are written as JSON null
func addFieldToEvent(event *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case nil:
		return event.Interface(key, nil)
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case float64:
		return event.Float64(key, v)
	case time.Time:
		return event.Time(key, v)
	default:
		return event.Interface(key, v)
	}
}
