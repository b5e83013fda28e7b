package format

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fetchlog/pkg/capture"
	"fetchlog/pkg/category"
)

// PathnameStyle selects how much of the URL path is shown
type PathnameStyle string

const (
	PathnameFull  PathnameStyle = "full"
	PathnameShort PathnameStyle = "short"
)

// URLOptions controls the url column
type URLOptions struct {
	Host     bool          `yaml:"host" json:"host"`
	Pathname PathnameStyle `yaml:"pathname" json:"pathname"`
	Search   bool          `yaml:"search" json:"search"`
}

// DefaultURLOptions shows host, last path segment and query
func DefaultURLOptions() URLOptions {
	return URLOptions{
		Host:     true,
		Pathname: PathnameShort,
		Search:   true,
	}
}

// ParsePathnameStyle converts "full" or "short" to a PathnameStyle
func ParsePathnameStyle(s string) (PathnameStyle, error) {
	switch PathnameStyle(strings.ToLower(strings.TrimSpace(s))) {
	case PathnameFull:
		return PathnameFull, nil
	case PathnameShort:
		return PathnameShort, nil
	default:
		return "", fmt.Errorf("unknown pathname style: %q", s)
	}
}

// Entry is everything known about one intercepted request
type Entry struct {
	URL      *url.URL
	Category category.Category
	Duration float64 // milliseconds
	Response *capture.Response
	Origin   string
	Time     time.Time

	// Size is a body size measured ahead of Build; nil means Build
	// measures it from Response
	Size *Size
}

// Size is a measured body size. Known is false when it could not be
// determined.
type Size struct {
	Bytes int64
	Known bool
}

// Formatter builds Lines from entries
type Formatter struct {
	url         URLOptions
	sizeTimeout time.Duration
}

// NewFormatter creates a Formatter. sizeTimeout bounds how long the size
// column waits for a body without Content-Length; zero means no bound.
func NewFormatter(opts URLOptions, sizeTimeout time.Duration) *Formatter {
	if opts.Pathname == "" {
		opts.Pathname = PathnameShort
	}
	return &Formatter{
		url:         opts,
		sizeTimeout: sizeTimeout,
	}
}

// Build renders the requested columns of e in display order
func (f *Formatter) Build(ctx context.Context, columns []Column, e Entry) Line {
	wanted := make(map[Column]bool, len(columns))
	for _, c := range columns {
		wanted[c] = true
	}

	ok := e.Response != nil && e.Response.OK()

	line := make(Line, 0, len(columns))
	for _, c := range allColumns {
		if !wanted[c] {
			continue
		}
		switch c {
		case ColumnCategory:
			line = append(line, categoryField(e.Category, ok))
		case ColumnStatus:
			status := 0
			if e.Response != nil {
				status = e.Response.StatusCode
			}
			line = append(line, statusField(status, ok))
		case ColumnDuration:
			line = append(line, durationField(e.Duration))
		case ColumnURL:
			line = append(line, urlField(e.URL, f.url))
		case ColumnSize:
			size := e.Size
			if size == nil {
				measured := f.MeasureSize(ctx, e.Response)
				size = &measured
			}
			line = append(line, sizeField(*size))
		case ColumnOriginFile:
			line = append(line, originField(e.Origin))
		case ColumnTimestamp:
			line = append(line, timestampField(e.Time))
		}
	}
	return line
}

func categoryField(cat category.Category, ok bool) Field {
	text := strings.ToUpper(cat.String())
	return Field{
		Column:   ColumnCategory,
		Value:    text,
		Raw:      cat.String(),
		Segments: []Segment{{Text: text, Color: CategoryColor(cat, ok), Style: Bold}},
	}
}

func statusField(status int, ok bool) Field {
	text := strconv.Itoa(status)
	return Field{
		Column:   ColumnStatus,
		Value:    text,
		Raw:      status,
		Segments: []Segment{{Text: text, Color: StatusColor(ok)}},
	}
}

func durationField(ms float64) Field {
	text := FormatDuration(ms)
	return Field{
		Column:   ColumnDuration,
		Value:    text,
		Raw:      ms,
		Segments: []Segment{{Text: text, Color: DurationColor(ms), Style: Italic}},
	}
}

func urlField(u *url.URL, opts URLOptions) Field {
	segments := URLSegments(u, opts)
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	raw := ""
	if u != nil {
		raw = u.String()
	}
	return Field{
		Column:   ColumnURL,
		Value:    b.String(),
		Raw:      raw,
		Segments: segments,
	}
}

// MeasureSize waits at most the size timeout for the size of resp
func (f *Formatter) MeasureSize(ctx context.Context, resp *capture.Response) Size {
	if resp == nil {
		return Size{}
	}

	if f.sizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.sizeTimeout)
		defer cancel()
	}

	n, err := resp.Size(ctx)
	if err != nil {
		return Size{}
	}
	return Size{Bytes: n, Known: true}
}

// sizeField renders empty when the size is unknown
func sizeField(size Size) Field {
	field := Field{Column: ColumnSize}
	if !size.Known {
		return field
	}

	field.Value = FormatSize(size.Bytes)
	field.Raw = size.Bytes
	field.Segments = []Segment{{Text: field.Value, Color: ColorGray}}
	return field
}

func originField(origin string) Field {
	text := TruncatePath(origin, 4)
	return Field{
		Column:   ColumnOriginFile,
		Value:    text,
		Raw:      text,
		Segments: []Segment{{Text: text, Color: ColorGray, Style: Underline}},
	}
}

func timestampField(t time.Time) Field {
	text := FormatTimestamp(t)
	return Field{
		Column:   ColumnTimestamp,
		Value:    text,
		Raw:      t,
		Segments: []Segment{{Text: text, Color: ColorGray}},
	}
}

// CategoryColor: failures are red regardless of category
func CategoryColor(cat category.Category, ok bool) Color {
	switch {
	case !ok:
		return ColorRed
	case cat == category.Fetch:
		return ColorGreen
	case cat == category.Image:
		return ColorCyan
	case cat == category.HTML, cat == category.CSS, cat == category.JS:
		return ColorYellow
	default:
		return ColorGray
	}
}

// StatusColor is green for 2xx responses and red otherwise
func StatusColor(ok bool) Color {
	if ok {
		return ColorGreen
	}
	return ColorRed
}

// DurationColor is green under 50ms, yellow under 100ms, red otherwise
func DurationColor(ms float64) Color {
	switch {
	case ms < 50:
		return ColorGreen
	case ms < 100:
		return ColorYellow
	default:
		return ColorRed
	}
}

// FormatDuration rounds to the nearest millisecond
func FormatDuration(ms float64) string {
	return fmt.Sprintf("%dms", int64(math.Round(ms)))
}

// FormatSize renders a byte count as kilobytes with two decimals
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
}

// FormatTimestamp renders t as a local date-time such as "3/7/2026 4:05:09 PM"
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("1/2/2006 3:04:05 PM")
}

// URLSegments splits u into host, pathname and search pieces per opts
func URLSegments(u *url.URL, opts URLOptions) []Segment {
	if u == nil {
		return nil
	}

	var segments []Segment
	if opts.Host && u.Host != "" {
		segments = append(segments, Segment{Text: u.Host, Color: ColorGray, Style: Underline})
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if opts.Pathname == PathnameFull {
		segments = append(segments, Segment{Text: path, Color: ColorCyan})
	} else {
		segments = append(segments, Segment{Text: "/" + path[strings.LastIndex(path, "/")+1:], Color: ColorCyan})
	}

	if opts.Search && u.RawQuery != "" {
		segments = append(segments, Segment{Text: "?" + u.RawQuery, Color: ColorGray})
	}
	return segments
}

// TruncatePath keeps the last n segments of a file path, with forward slashes
func TruncatePath(path string, n int) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(strings.ReplaceAll(path, "\\", "/"), "/")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "/")
}
