// Package truth loads ground-truth spreadsheets used to check reported
// values against known facts (for example, the hospital bed counts or
// weather observations for each city).
package truth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrEmptyTable is returned when a spreadsheet has no data rows
	ErrEmptyTable = errors.New("ground truth table is empty")
	// ErrBadColumn is returned when the key column is outside the rows
	ErrBadColumn = errors.New("key column out of range")
)

// Table is a ground-truth spreadsheet indexed by a natural key. Keys are
// compared case-insensitively with surrounding whitespace ignored.
type Table struct {
	path      string
	keyColumn int
	rows      map[string][]string
	order     []string

	// Duplicates lists keys that appeared on more than one row. The last
	// row wins the lookup.
	Duplicates []string
}

// Load reads a CSV spreadsheet, skipping skipRows header rows. A missing
// file, or one with no data rows, is an error: the exercise cannot be
// graded without its ground truth.
func Load(path string, skipRows, keyColumn int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ground truth: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f, skipRows, keyColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.path = path
	return t, nil
}

// Read parses a CSV spreadsheet from r
func Read(r io.Reader, skipRows, keyColumn int) (*Table, error) {
	if keyColumn < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadColumn, keyColumn)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	t := &Table{
		keyColumn: keyColumn,
		rows:      make(map[string][]string),
	}

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++
		if line <= skipRows || blankRecord(record) {
			continue
		}
		if keyColumn >= len(record) {
			return nil, fmt.Errorf("%w: row %d has %d columns, key column is %d", ErrBadColumn, line, len(record), keyColumn)
		}

		key := NormalizeKey(record[keyColumn])
		if key == "" {
			continue
		}
		if _, dup := t.rows[key]; dup {
			t.Duplicates = append(t.Duplicates, record[keyColumn])
		} else {
			t.order = append(t.order, key)
		}
		t.rows[key] = record
	}

	if len(t.rows) == 0 {
		return nil, ErrEmptyTable
	}
	return t, nil
}

// Lookup returns the row for key
func (t *Table) Lookup(key string) ([]string, bool) {
	row, ok := t.rows[NormalizeKey(key)]
	return row, ok
}

// Cell returns one column of the row for key
func (t *Table) Cell(key string, column int) (string, bool) {
	row, ok := t.Lookup(key)
	if !ok || column < 0 || column >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[column]), true
}

// Len returns the number of distinct keys
func (t *Table) Len() int {
	return len(t.rows)
}

// Keys returns the distinct keys in first-seen order
func (t *Table) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Path returns the file the table was loaded from, if any
func (t *Table) Path() string {
	return t.path
}

// NormalizeKey folds a natural key for comparison
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
