/*
PURPOSE:
  In-memory view of a CSV dataset and the cleaning operations applied by the
  prepare stage (duplicate removal, null-row removal).

REQUIREMENTS:
  - Cleaning order is fixed: duplicates first, then nulls.
  - Output must be byte-identical across runs for the same input + config,
    because DVC caches on file hashes.

IMPLEMENTATION RULES:
  - Cells are kept as raw strings; typing happens in Features / quality.
  - A row is a duplicate only when every cell matches an earlier row.

RELATED FILES:
  - internal/engine/prepare.go
  - internal/quality/check.go
*/

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// nullTokens are the cell values read as missing.
var nullTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {},
}

// IsNull reports whether a raw cell is a missing value.
func IsNull(cell string) bool {
	_, ok := nullTokens[strings.TrimSpace(cell)]
	return ok
}

// Table is a header plus string rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV loads a CSV file with a header line.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return t, nil
}

// Parse reads CSV from r. Short rows are padded with empty (null) cells.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file: missing header")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Index returns the position of a column or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Header, column)
}

// Column returns every cell of a column.
func (t *Table) Column(column string) ([]string, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

func rowKey(row []string) string {
	norm := make([]string, len(row))
	for i, c := range row {
		// all missing-value spellings compare equal
		if IsNull(c) {
			norm[i] = "\x00"
			continue
		}
		norm[i] = c
	}
	return strings.Join(norm, "\x1f")
}

// DuplicateCount returns how many rows repeat an earlier row.
func (t *Table) DuplicateCount() int {
	seen := make(map[string]struct{}, len(t.Rows))
	n := 0
	for _, row := range t.Rows {
		k := rowKey(row)
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}

// NullCount returns the total number of null cells.
func (t *Table) NullCount() int {
	n := 0
	for _, row := range t.Rows {
		for _, c := range row {
			if IsNull(c) {
				n++
			}
		}
	}
	return n
}

// DropDuplicates returns a copy keeping the first occurrence of each row.
func (t *Table) DropDuplicates() *Table {
	out := &Table{Header: slices.Clone(t.Header)}
	seen := make(map[string]struct{}, len(t.Rows))
	for _, row := range t.Rows {
		k := rowKey(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, slices.Clone(row))
	}
	return out
}

// DropNulls returns a copy without rows containing a null cell.
func (t *Table) DropNulls() *Table {
	out := &Table{Header: slices.Clone(t.Header)}
	for _, row := range t.Rows {
		if slices.ContainsFunc(row, IsNull) {
			continue
		}
		out.Rows = append(out.Rows, slices.Clone(row))
	}
	return out
}

// Head returns a copy with at most n rows.
func (t *Table) Head(n int) *Table {
	n = min(n, len(t.Rows))
	out := &Table{Header: slices.Clone(t.Header)}
	for _, row := range t.Rows[:n] {
		out.Rows = append(out.Rows, slices.Clone(row))
	}
	return out
}

// Write encodes the table as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteCSV writes the table to path, creating parent directories.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
