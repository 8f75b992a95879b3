// Package csvio reads and writes the tabular inspection corpus.
//
// Input files may carry a UTF-8 BOM (common for spreadsheet exports); it is
// stripped transparently. Writes are atomic (write .tmp then rename) so a
// crash mid-save never truncates a previously good output file.
package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Table is a header plus rows, all cells as strings.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the column is absent or the row short.
func (t *Table) Cell(row []string, name string) string {
	i := t.Column(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Read loads a CSV file. Rows shorter than the header are padded with empty
// cells so positional access stays safe.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvio: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvio: %s: empty file", path)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	rows := records[1:]
	for i, row := range rows {
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows[i] = row
	}
	return &Table{Header: header, Rows: rows}, nil
}

// Write saves a table atomically, creating parent directories as needed.
func Write(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csvio: mkdir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csvio: create: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvio: write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvio: write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvio: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("csvio: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("csvio: rename: %w", err)
	}
	return nil
}
