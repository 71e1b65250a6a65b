package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// Table is a delimited table with named columns. Column order is preserved
// from the source file and is the order used when writing.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row maps column name to cell value. Cells absent from a ragged row read as "".
type Row map[string]string

// MissingColumnsError reports required columns absent from a table header.
type MissingColumnsError struct {
	Path    string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("required columns %v not found in %s", e.Columns, e.Path)
}

// ReadFile reads a CSV file with a header row into a Table.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged lines, like the upstream exports

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("table %s has no header row", path)
	}

	t := &Table{Columns: records[0]}

	for _, rec := range records[1:] {
		row := make(Row, len(t.Columns))

		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}

		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// WriteFile writes the table as CSV with its column order.
func WriteFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rec := make([]string, len(t.Columns))

	for _, row := range t.Rows {
		for i, col := range t.Columns {
			rec[i] = row[col]
		}

		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()

	return w.Error()
}

// RequireColumns checks that every named column exists in the header.
func (t *Table) RequireColumns(path string, columns ...string) error {
	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}

	var missing []string

	for _, c := range columns {
		if !present[c] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnsError{Path: path, Columns: missing}
	}

	return nil
}

// HasColumn reports whether the header contains the named column.
func (t *Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}

	return false
}

// UniqueValues returns the distinct non-empty values of a column, sorted.
func (t *Table) UniqueValues(column string) []string {
	seen := make(map[string]bool)

	for _, row := range t.Rows {
		if v := row[column]; v != "" {
			seen[v] = true
		}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}

	sort.Strings(values)

	return values
}
