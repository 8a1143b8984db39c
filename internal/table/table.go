// Package table is a thin tabular I/O layer over encoding/csv. It carries
// sample metadata into the assignment core and the enriched result back out,
// and knows nothing about trees or labels.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Table is an in-memory CSV: a header row plus data rows, all cells kept as
// strings. Column lookup is by exact header name.
type Table struct {
	Header []string
	Rows   [][]string

	cols map[string]int
}

// New creates an empty table with the given header.
// Returns an error on a duplicated column name.
func New(header []string) (*Table, error) {
	t := &Table{Header: append([]string(nil), header...)}
	if err := t.reindex(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) reindex() error {
	t.cols = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, ok := t.cols[name]; ok {
			return fmt.Errorf("duplicate column %q", name)
		}
		t.cols[name] = i
	}
	return nil
}

// Read parses CSV from r. The first record is the header; every data row
// must have the same number of fields as the header.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: missing header row")
	}

	t := &Table{Header: records[0], Rows: records[1:]}
	if err := t.reindex(); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return t, nil
}

// ReadFile reads a CSV file from disk.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Col returns the index of the named column.
func (t *Table) Col(name string) (int, bool) {
	i, ok := t.cols[name]
	return i, ok
}

// RequireCols returns an error naming every listed column that is absent.
func (t *Table) RequireCols(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := t.cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("metadata is missing required column(s): %v", missing)
	}
	return nil
}

// Cell returns the value at (row, column name), or "" if the column does
// not exist.
func (t *Table) Cell(row int, name string) string {
	i, ok := t.cols[name]
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

// Column returns all values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	i, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("no such column %q", name)
	}
	values := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		values[r] = row[i]
	}
	return values, nil
}

// AddColumn appends a new column. values must have one entry per row.
func (t *Table) AddColumn(name string, values []string) error {
	if _, ok := t.cols[name]; ok {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Header = append(t.Header, name)
	t.cols[name] = len(t.Header) - 1
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], values[r])
	}
	return nil
}

// Write serializes the table as CSV. Output is byte-stable for identical
// tables: same row order, same quoting, LF line endings.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteFile writes the table to a CSV file, replacing any existing file.
func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
