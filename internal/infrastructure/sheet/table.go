package sheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Row is one data row with its spreadsheet line number (header is line 1)
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// Lookup returns the value for a column and whether the column exists
func (r *Row) Lookup(header string) (string, bool) {
	v, ok := r.Data[header]
	return v, ok
}

// GetOrDefault returns the value for a column, or def when absent or blank
func (r *Row) GetOrDefault(header, def string) string {
	if v, ok := r.Data[header]; ok && v != "" {
		return v
	}
	return def
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Table is a parsed sheet
type Table struct {
	Headers []string
	Rows    []*Row
}

// HasHeader checks if a header exists
func (t *Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// MissingHeaders returns the required headers that are not present
func (t *Table) MissingHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if !t.HasHeader(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// Open reads a spreadsheet, choosing the reader by file extension
func Open(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// IsSpreadsheet reports whether name is a file Open can read. Office lock
// files (~$name.xlsx) are excluded.
func IsSpreadsheet(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}

// newTable builds a table from raw records where records[0] is the header
func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}

	headers := make([]string, len(records[0]))
	blank := true
	for i, h := range records[0] {
		headers[i] = cleanHeader(h)
		if headers[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrMissingHeader
	}

	table := &Table{Headers: headers, Rows: make([]*Row, 0, len(records)-1)}
	for i, record := range records[1:] {
		row := &Row{
			LineNumber: i + 2,
			Data:       make(map[string]string, len(headers)),
		}
		for j, header := range headers {
			if header == "" {
				continue
			}
			if j < len(record) {
				row.Data[header] = strings.TrimSpace(record[j])
			} else {
				row.Data[header] = ""
			}
		}
		if row.IsEmpty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// cleanHeader trims a header and composes accents so "região" matches
// however the workbook stored it
func cleanHeader(h string) string {
	return norm.NFC.String(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}
