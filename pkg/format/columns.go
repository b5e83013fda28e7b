package format

import (
	"fmt"
	"strings"
)

// Column names a field of a request line
type Column int

// Columns in display order. Build always emits fields in this order no matter
// how the caller orders its selection.
const (
	ColumnCategory Column = iota
	ColumnStatus
	ColumnDuration
	ColumnURL
	ColumnSize
	ColumnOriginFile
	ColumnTimestamp
)

var allColumns = []Column{
	ColumnCategory,
	ColumnStatus,
	ColumnDuration,
	ColumnURL,
	ColumnSize,
	ColumnOriginFile,
	ColumnTimestamp,
}

var columnNames = map[Column]string{
	ColumnCategory:   "category",
	ColumnStatus:     "status",
	ColumnDuration:   "duration",
	ColumnURL:        "url",
	ColumnSize:       "size",
	ColumnOriginFile: "originFile",
	ColumnTimestamp:  "timestamp",
}

// columnKeys are the field names used by structured renderers
var columnKeys = map[Column]string{
	ColumnCategory:   "category",
	ColumnStatus:     "status",
	ColumnDuration:   "duration_ms",
	ColumnURL:        "url",
	ColumnSize:       "size_bytes",
	ColumnOriginFile: "origin",
	ColumnTimestamp:  "timestamp",
}

// columnAliases maps lowercased names, including the requestType /
// responseStatus / responseSize / filename spelling, to columns
var columnAliases = map[string]Column{
	"category":       ColumnCategory,
	"type":           ColumnCategory,
	"requesttype":    ColumnCategory,
	"status":         ColumnStatus,
	"responsestatus": ColumnStatus,
	"duration":       ColumnDuration,
	"url":            ColumnURL,
	"size":           ColumnSize,
	"responsesize":   ColumnSize,
	"originfile":     ColumnOriginFile,
	"origin":         ColumnOriginFile,
	"filename":       ColumnOriginFile,
	"timestamp":      ColumnTimestamp,
}

// InfoColumns is the default column set of info mode
var InfoColumns = []Column{ColumnCategory, ColumnStatus, ColumnDuration, ColumnURL, ColumnSize}

// DebugColumns is the default column set of debug and error mode
var DebugColumns = []Column{ColumnCategory, ColumnStatus, ColumnDuration, ColumnURL, ColumnOriginFile, ColumnTimestamp}

// String returns the column name
func (c Column) String() string {
	if name, ok := columnNames[c]; ok {
		return name
	}
	return fmt.Sprintf("column(%d)", int(c))
}

// Key returns the structured field name of the column
func (c Column) Key() string {
	if key, ok := columnKeys[c]; ok {
		return key
	}
	return c.String()
}

// ParseColumn converts a column name to a Column, case-insensitively
func ParseColumn(s string) (Column, error) {
	c, ok := columnAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown column: %q", s)
	}
	return c, nil
}

// ParseColumns converts a list of column names, keeping the given order
func ParseColumns(names []string) ([]Column, error) {
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		c, err := ParseColumn(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// ColumnNames returns the names of columns
func ColumnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.String()
	}
	return names
}
