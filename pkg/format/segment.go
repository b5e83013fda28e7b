package format

import "strings"

// Color is a semantic color, mapped to terminal colors by renderers
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorCyan
	ColorGray
)

var colorNames = map[Color]string{
	ColorNone:   "none",
	ColorRed:    "red",
	ColorGreen:  "green",
	ColorYellow: "yellow",
	ColorCyan:   "cyan",
	ColorGray:   "gray",
}

func (c Color) String() string {
	return colorNames[c]
}

// Style is a set of text attributes
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Underline
)

// Has reports whether s includes every attribute of other
func (s Style) Has(other Style) bool {
	return s&other == other
}

// Segment is a piece of text with presentation hints
type Segment struct {
	Text  string
	Color Color
	Style Style
}

// Field is one rendered column. Value is the uncolored text, Raw the typed
// value for structured output (nil when the column could not be computed).
type Field struct {
	Column   Column
	Value    string
	Raw      interface{}
	Segments []Segment
}

// Separator is placed between fields in text output
const Separator = " - "

// Line is a formatted request, fields in display order
type Line []Field

// Plain returns the line as uncolored text
func (l Line) Plain() string {
	values := make([]string, len(l))
	for i, f := range l {
		values[i] = f.Value
	}
	return strings.Join(values, Separator)
}

// Field returns the field for a column
func (l Line) Field(c Column) (Field, bool) {
	for _, f := range l {
		if f.Column == c {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the columns present in the line
func (l Line) Columns() []Column {
	columns := make([]Column, len(l))
	for i, f := range l {
		columns[i] = f.Column
	}
	return columns
}
