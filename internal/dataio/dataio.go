// Package dataio loads observed-data columns from CSV files and watches
// data files for changes.
package dataio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// File is a loaded CSV file held column-wise. Columns are read as text and
// converted on access, so a file can mix numeric and categorical columns.
type File struct {
	path   string
	header []string
	cols   map[string][]string
	rows   int
}

// Load reads a headered CSV file into memory.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}

	r := csv.NewReader(strings.NewReader(string(raw)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	header := records[0]
	f := &File{
		path:   path,
		header: header,
		cols:   make(map[string][]string, len(header)),
		rows:   len(records) - 1,
	}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%s: column %d has an empty name", path, i+1)
		}
		if _, ok := f.cols[name]; ok {
			return nil, fmt.Errorf("%s: duplicate column %q", path, name)
		}
		header[i] = name
		col := make([]string, 0, f.rows)
		for _, rec := range records[1:] {
			col = append(col, strings.TrimSpace(rec[i]))
		}
		f.cols[name] = col
	}
	return f, nil
}

// Columns returns the column names in file order.
func (f *File) Columns() []string {
	return append([]string(nil), f.header...)
}

// Rows returns the number of data rows.
func (f *File) Rows() int { return f.rows }

// Has reports whether the file contains the named column.
func (f *File) Has(col string) bool {
	_, ok := f.cols[col]
	return ok
}

// Strings returns the named column as text values.
func (f *File) Strings(col string) ([]string, error) {
	vals, ok := f.cols[col]
	if !ok {
		return nil, fmt.Errorf("%s has no column %q (columns: %s)",
			f.path, col, strings.Join(f.header, ", "))
	}
	return append([]string(nil), vals...), nil
}

// Floats returns the named column parsed as numbers.
func (f *File) Floats(col string) ([]float64, error) {
	vals, ok := f.cols[col]
	if !ok {
		return nil, fmt.Errorf("%s has no column %q (columns: %s)",
			f.path, col, strings.Join(f.header, ", "))
	}
	out := make([]float64, len(vals))
	for i, s := range vals {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: column %q row %d: %q is not numeric",
				f.path, col, i+2, s)
		}
		out[i] = v
	}
	return out, nil
}
